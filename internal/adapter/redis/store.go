// Package redis stores autocomplete results in Redis so replicas share one
// suggestion cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/couchcryptid/civic-hotspot-service/internal/domain"
)

const keyPrefix = "hotspot:"

// SuggestionStore implements geocache.Store on a Redis client.
type SuggestionStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// Open connects to addr. It does not dial until first use.
func Open(addr string, ttl time.Duration) *SuggestionStore {
	return NewSuggestionStore(goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
		ReadTimeout: time.Second,
	}), ttl)
}

// NewSuggestionStore wraps an existing client.
func NewSuggestionStore(client *goredis.Client, ttl time.Duration) *SuggestionStore {
	return &SuggestionStore{client: client, ttl: ttl}
}

// Get returns the cached suggestions for key. A missing key is not an error.
func (s *SuggestionStore) Get(ctx context.Context, key string) ([]domain.Suggestion, bool, error) {
	b, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var out []domain.Suggestion
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, false, fmt.Errorf("decode cached suggestions: %w", err)
	}
	return out, true, nil
}

// Set stores value under key with the store TTL.
func (s *SuggestionStore) Set(ctx context.Context, key string, value []domain.Suggestion) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode suggestions: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+key, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// CheckReadiness pings the server.
func (s *SuggestionStore) CheckReadiness(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *SuggestionStore) Close() error {
	return s.client.Close()
}
