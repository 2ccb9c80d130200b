package layers

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/civic-hotspot-service/internal/domain"
	"github.com/couchcryptid/civic-hotspot-service/internal/observability"
	"github.com/couchcryptid/civic-hotspot-service/internal/state"
)

// SnapshotPublisher receives every newly built LayerSet.
type SnapshotPublisher interface {
	PublishLayerSet(ctx context.Context, set *LayerSet) error
}

// Inputs are the upstream values a LayerSet depends on.
type Inputs struct {
	Records *domain.RecordSet
	Style   StyleConfig
	Marker  *domain.SearchMarker
}

// Status is the composer state machine position.
type Status int32

const (
	StatusIdle Status = iota
	StatusBuilding
)

func (s Status) String() string {
	if s == StatusBuilding {
		return "building"
	}
	return "idle"
}

// compositionKey identifies the inputs of the current LayerSet. Records are
// compared by identity; the working set is replaced wholesale on refresh.
type compositionKey struct {
	records   *domain.RecordSet
	dataToken uint64
	style     StyleConfig
	marker    domain.SearchMarker
	hasMarker bool
}

func keyOf(in Inputs) compositionKey {
	k := compositionKey{records: in.Records, style: in.Style}
	if in.Records != nil {
		k.dataToken = in.Records.Token
	}
	if in.Marker != nil {
		k.marker, k.hasMarker = *in.Marker, true
	}
	return k
}

// Composer is the single writer of the current LayerSet. It rebuilds only
// when records, style, marker or the refresh token change, and publishes the
// result atomically through a slot.
type Composer struct {
	builder   *Builder
	publisher SnapshotPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics

	sets   *state.Slot[LayerSet]
	status atomic.Int32

	mu    sync.Mutex
	key   compositionKey
	built bool
	token uint64
}

// NewComposer creates a Composer. publisher may be nil.
func NewComposer(builder *Builder, publisher SnapshotPublisher, logger *slog.Logger, metrics *observability.Metrics) *Composer {
	return &Composer{
		builder:   builder,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		sets:      state.NewSlot[LayerSet](nil),
	}
}

// Compose returns the LayerSet for in, building a new one only if the inputs
// differ from the last build. The second result reports whether a build ran.
func (c *Composer) Compose(ctx context.Context, in Inputs) (*LayerSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := keyOf(in)
	if c.built && key == c.key {
		c.metrics.LayerReuse.Inc()
		return c.sets.Load(), false
	}

	c.status.Store(int32(StatusBuilding))
	start := time.Now()

	c.token++
	var records []domain.GeoRecord
	if in.Records != nil {
		records = in.Records.Records
	}
	set := c.builder.Build(BuildInput{
		Token:     c.token,
		DataToken: key.dataToken,
		Records:   records,
		Marker:    in.Marker,
		Style:     in.Style,
	})
	c.sets.Store(set)
	c.key, c.built = key, true

	c.metrics.LayerBuilds.Inc()
	c.metrics.LayerBuildDuration.Observe(time.Since(start).Seconds())
	c.status.Store(int32(StatusIdle))

	c.logger.Debug("layer set built",
		"token", set.Token,
		"data_token", set.DataToken,
		"layers", set.IDs(),
		"records", set.RecordCount,
	)

	if c.publisher != nil {
		if err := c.publisher.PublishLayerSet(ctx, set); err != nil {
			c.logger.Warn("layer set publish failed", "token", set.Token, "error", err)
		}
	}
	return set, true
}

// Current is the most recently built LayerSet, or nil before the first build.
func (c *Composer) Current() *LayerSet {
	return c.sets.Load()
}

// Changed is closed when the next LayerSet is stored.
func (c *Composer) Changed() <-chan struct{} {
	return c.sets.Changed()
}

// Status reports whether a build is running.
func (c *Composer) Status() Status {
	return Status(c.status.Load())
}

// Lookup resolves a pick against the current LayerSet.
func (c *Composer) Lookup(layerID string, index int) (Primitive, bool) {
	return c.Current().Lookup(layerID, index)
}
