// Package interaction turns renderer pick events into bounded Selections and
// clears them after an idle window.
package interaction

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/civic-hotspot-service/internal/domain"
	"github.com/couchcryptid/civic-hotspot-service/internal/layers"
	"github.com/couchcryptid/civic-hotspot-service/internal/observability"
)

// MaxRecords caps the records carried by one Selection.
const MaxRecords = 8

// Source is the pointer event that produced a pick.
type Source string

const (
	SourceHover Source = "hover"
	SourceClick Source = "click"
)

// PickEvent is a low-level pick reported by the renderer. An empty LayerID
// means nothing was under the cursor.
type PickEvent struct {
	Source     Source     `json:"source"`
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	Coordinate [2]float64 `json:"coordinate"` // lon, lat under the cursor
	LayerID    string     `json:"layer_id"`
	Index      int        `json:"index"`
}

// Selection is what the tooltip shows.
type Selection struct {
	Source     Source             `json:"source"`
	X          float64            `json:"x"`
	Y          float64            `json:"y"`
	Coordinate [2]float64         `json:"coordinate"`
	LayerID    string             `json:"layer_id"`
	Kind       layers.Kind        `json:"kind"`
	Records    []domain.GeoRecord `json:"records"`
	Total      int                `json:"total"`
	Label      string             `json:"label,omitempty"`
	At         time.Time          `json:"at"`
}

// Resolver maps a pick onto the primitive of the current LayerSet.
type Resolver interface {
	Lookup(layerID string, index int) (layers.Primitive, bool)
}

// Broker owns the current Selection.
type Broker struct {
	resolver Resolver
	clock    clockwork.Clock
	idle     time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu      sync.Mutex
	current *Selection
	gen     uint64
	timer   clockwork.Timer
}

// NewBroker creates a Broker that clears selections after idle without a new
// pick.
func NewBroker(resolver Resolver, idle time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Broker {
	return &Broker{
		resolver: resolver,
		clock:    clock,
		idle:     idle,
		logger:   logger,
		metrics:  metrics,
	}
}

// Pick resolves ev into the current Selection. It returns nil and clears the
// selection when nothing, or a primitive from a replaced LayerSet, is under
// the cursor.
func (b *Broker) Pick(ev PickEvent) *Selection {
	var (
		prim layers.Primitive
		ok   bool
	)
	if ev.LayerID != "" {
		prim, ok = b.resolver.Lookup(ev.LayerID, ev.Index)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !ok {
		b.clearLocked()
		return nil
	}

	if ev.Source == "" {
		ev.Source = SourceHover
	}
	records := prim.Records
	if len(records) > MaxRecords {
		records = records[:MaxRecords]
	}
	sel := &Selection{
		Source:     ev.Source,
		X:          ev.X,
		Y:          ev.Y,
		Coordinate: ev.Coordinate,
		LayerID:    ev.LayerID,
		Kind:       prim.Kind,
		Records:    append([]domain.GeoRecord(nil), records...),
		Total:      len(prim.Records),
		Label:      prim.Label,
		At:         b.clock.Now(),
	}
	b.current = sel
	b.armLocked()

	b.metrics.Selections.WithLabelValues(string(ev.Source)).Inc()
	return sel
}

// Current returns the active Selection, or nil.
func (b *Broker) Current() *Selection {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Clear drops the Selection, as on pointer-out.
func (b *Broker) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
}

func (b *Broker) clearLocked() {
	b.current = nil
	b.gen++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// armLocked restarts the idle window. A timer that fires after being
// superseded sees a newer generation and does nothing.
func (b *Broker) armLocked() {
	if b.timer != nil {
		b.timer.Stop()
	}
	b.gen++
	gen := b.gen
	b.timer = b.clock.AfterFunc(b.idle, func() { b.expire(gen) })
}

func (b *Broker) expire(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen || b.current == nil {
		return
	}
	b.logger.Debug("selection cleared after idle", "layer_id", b.current.LayerID)
	b.current = nil
	b.timer = nil
	b.metrics.SelectionIdleClears.Inc()
}
