package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/civic-hotspot-service/internal/domain"
	"github.com/couchcryptid/civic-hotspot-service/internal/layers"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	set := &layers.LayerSet{
		Token:     7,
		DataToken: 3,
		Layers: []layers.Layer{
			&layers.PinLayer{
				ID:       layers.LayerID(layers.KindPin, 3, 7),
				Kind:     layers.KindPin,
				Position: [2]float64{-122.41, 37.77},
			},
		},
		BuiltAt: now,
	}

	msg, err := serializeToMessage(set)
	require.NoError(t, err)

	assert.Equal(t, []byte("layers-7"), msg.Key)
	assert.Contains(t, string(msg.Value), `"token":7`)
	assert.Contains(t, string(msg.Value), `"data_token":3`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "data_token", msg.Headers[0].Key)
	assert.Equal(t, []byte("3"), msg.Headers[0].Value)
	assert.Equal(t, "layer_ids", msg.Headers[1].Key)
	assert.Equal(t, []byte("search-marker-3-7"), msg.Headers[1].Value)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)
}

func TestSerializeToMessage_BuiltSet(t *testing.T) {
	set := layers.NewBuilder(nil).Build(layers.BuildInput{
		Token: 2,
		Records: []domain.GeoRecord{
			{ID: "a", Longitude: -122.41, Latitude: 37.77, Severity: domain.SeverityHigh},
		},
		Marker: &domain.SearchMarker{Longitude: -122.4, Latitude: 37.8, Label: "here"},
		Style:  layers.DefaultStyle(),
	})

	msg, err := serializeToMessage(set)
	require.NoError(t, err)

	var decoded struct {
		Token  uint64            `json:"token"`
		Layers []json.RawMessage `json:"layers"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, uint64(2), decoded.Token)
	assert.Len(t, decoded.Layers, len(set.Layers))
}

func TestPublishLayerSet_Nil(t *testing.T) {
	w := NewLayerWriter([]string{"127.0.0.1:1"}, "unused", slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	assert.NoError(t, w.PublishLayerSet(context.Background(), nil))
}
