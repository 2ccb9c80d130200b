//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/civic-hotspot-service/internal/adapter/feed"
	"github.com/couchcryptid/civic-hotspot-service/internal/adapter/kafka"
	"github.com/couchcryptid/civic-hotspot-service/internal/interaction"
	"github.com/couchcryptid/civic-hotspot-service/internal/layers"
	"github.com/couchcryptid/civic-hotspot-service/internal/navigator"
	"github.com/couchcryptid/civic-hotspot-service/internal/observability"
	"github.com/couchcryptid/civic-hotspot-service/internal/refresh"
	"github.com/couchcryptid/civic-hotspot-service/internal/search"
	"github.com/couchcryptid/civic-hotspot-service/internal/session"
)

const testLayerTopic = "test-hotspot-layers"

type snapshot struct {
	Key       string
	Headers   map[string]string
	Token     uint64 `json:"token"`
	DataToken uint64 `json:"data_token"`
	Records   int    `json:"record_count"`
	Layers    []struct {
		ID   string `json:"id"`
		Kind string `json:"kind"`
	} `json:"layers"`
}

func readSnapshot(ctx context.Context, t *testing.T, consumer *kafkago.Reader) snapshot {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read layer snapshot")

	var s snapshot
	require.NoError(t, json.Unmarshal(msg.Value, &s))
	s.Key = string(msg.Key)
	s.Headers = make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		s.Headers[h.Key] = string(h.Value)
	}
	return s
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testLayerTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestLayerWriter verifies a LayerSet round-trips through Kafka with its
// key and headers.
func TestLayerWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testLayerTopic)

	writer := kafka.NewLayerWriter([]string{broker}, testLayerTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	set := &layers.LayerSet{
		Token:     4,
		DataToken: 2,
		Layers: []layers.Layer{
			&layers.PinLayer{ID: layers.LayerID(layers.KindPin, 2, 4), Kind: layers.KindPin, Position: [2]float64{-122.4, 37.8}},
		},
		BuiltAt: time.Date(2024, 4, 26, 15, 0, 0, 0, time.UTC),
	}
	require.NoError(t, writer.PublishLayerSet(ctx, set))

	s := readSnapshot(ctx, t, newConsumer(t, broker))
	assert.Equal(t, "layers-4", s.Key)
	assert.Equal(t, uint64(4), s.Token)
	assert.Equal(t, "2", s.Headers["data_token"])
	assert.Equal(t, "search-marker-2-4", s.Headers["layer_ids"])
	require.Len(t, s.Layers, 1)
	assert.Equal(t, "search-marker", s.Layers[0].Kind)
}

// TestSessionPublishesSnapshots wires feed, refresh loop, composer and Kafka
// and checks that a refresh and a style change each publish a snapshot.
func TestSessionPublishesSnapshots(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testLayerTopic)

	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/api/flattened"))
		_, _ = io.WriteString(w, `[
			[-122.4194, 37.7749, 2],
			[-122.4180, 37.7755, 1],
			{"lat": 37.8044, "lon": -122.2711, "severity": "medium", "text": "Illegal dumping"},
			[0, 0, 1]
		]`)
	}))
	t.Cleanup(feedSrv.Close)

	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewRealClock()

	writer := kafka.NewLayerWriter([]string{broker}, testLayerTopic, logger)
	t.Cleanup(func() { _ = writer.Close() })

	nav, err := navigator.New(navigator.ViewState{Longitude: -122.4194, Latitude: 37.7749, Zoom: 10, Pitch: 45},
		navigator.DefaultLocations, clock, logger)
	require.NoError(t, err)
	composer := layers.NewComposer(layers.NewBuilder(clock), writer, logger, metrics)
	sess, err := session.New(session.Components{
		Refresh:   refresh.New(feed.NewClient(feedSrv.URL+"/api/flattened", 5*time.Second, logger), time.Hour, "", clock, logger, metrics),
		Search:    search.NewService(nil, nav, search.Options{MinLength: 3, Debounce: 100 * time.Millisecond, FlyZoom: 6.5}, clock, logger, metrics),
		Navigator: nav,
		Composer:  composer,
		Broker:    interaction.NewBroker(composer, 5*time.Second, clock, logger, metrics),
	}, layers.DefaultStyle(), logger)
	require.NoError(t, err)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{}, 2)
	go func() { _ = sess.Refresh.Run(runCtx); done <- struct{}{} }()
	go func() { _ = sess.Run(runCtx); done <- struct{}{} }()
	t.Cleanup(func() {
		stop()
		<-done
		<-done
	})

	consumer := newConsumer(t, broker)

	// The first snapshot may be the empty pre-refresh composition.
	var loaded snapshot
	for loaded.Records == 0 {
		loaded = readSnapshot(ctx, t, consumer)
	}
	assert.Equal(t, 3, loaded.Records)
	assert.Equal(t, uint64(1), loaded.DataToken)
	kinds := make([]string, 0, len(loaded.Layers))
	for _, l := range loaded.Layers {
		kinds = append(kinds, l.Kind)
	}
	assert.Equal(t, []string{"hexagon", "markers"}, kinds)

	style := layers.DefaultStyle()
	style.CellRadius = 3000
	require.NoError(t, sess.SetStyle(style))

	restyled := readSnapshot(ctx, t, consumer)
	assert.Greater(t, restyled.Token, loaded.Token)
	assert.Equal(t, loaded.DataToken, restyled.DataToken)
	assert.NotEqual(t, loaded.Layers[0].ID, restyled.Layers[0].ID)
}
