package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/civic-hotspot-service/internal/domain"
)

// Reserved port with nothing listening; every command fails fast.
const deadAddr = "127.0.0.1:1"

func TestSuggestionStore_UnreachableServer(t *testing.T) {
	s := Open(deadAddr, time.Minute)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "ac:windsor")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "ac:windsor")

	err = s.Set(ctx, "ac:windsor", []domain.Suggestion{{Name: "Windsor"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set")

	require.Error(t, s.CheckReadiness(ctx))
}
