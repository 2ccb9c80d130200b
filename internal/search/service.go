// Package search resolves free text and literal coordinates to positions,
// debounces autocomplete lookups and places the search marker.
package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/civic-hotspot-service/internal/domain"
	"github.com/couchcryptid/civic-hotspot-service/internal/navigator"
	"github.com/couchcryptid/civic-hotspot-service/internal/observability"
	"github.com/couchcryptid/civic-hotspot-service/internal/state"
)

// Flyer moves the camera.
type Flyer interface {
	FlyTo(longitude, latitude, zoom float64) (navigator.Transition, error)
}

// Options tunes the search behavior.
type Options struct {
	MinLength int           // characters required before autocomplete runs
	Debounce  time.Duration // quiet period before a debounced lookup
	FlyZoom   float64       // zoom used when a result is selected
}

// Result is the resolution of one query.
type Result struct {
	Query       string              `json:"query"`
	Coordinate  *Coordinate         `json:"coordinate,omitempty"`
	Suggestions []domain.Suggestion `json:"suggestions"`
}

// Service is the single writer of the search marker.
type Service struct {
	suggester domain.Suggester
	flyer     Flyer
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics

	marker   *state.Slot[domain.SearchMarker]
	debounce *Debouncer

	mu       sync.Mutex
	latest   Result
	inflight context.CancelFunc
}

// NewService creates a Service. suggester may be nil, which disables
// autocomplete but keeps coordinate parsing.
func NewService(suggester domain.Suggester, flyer Flyer, opts Options, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		suggester: suggester,
		flyer:     flyer,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
		marker:    state.NewSlot[domain.SearchMarker](nil),
		debounce:  NewDebouncer(opts.Debounce, clock),
		latest:    Result{Suggestions: []domain.Suggestion{}},
	}
}

// Resolve answers a query right away. A literal coordinate wins over
// autocomplete; short queries and geocoder failures yield no suggestions.
func (s *Service) Resolve(ctx context.Context, query string) Result {
	query = strings.TrimSpace(query)
	res := Result{Query: query, Suggestions: []domain.Suggestion{}}

	if c, ok := ParseCoordinates(query); ok {
		res.Coordinate = &c
		return res
	}
	if s.suggester == nil || utf8.RuneCountInString(query) < s.opts.MinLength {
		return res
	}

	list, err := s.suggester.Autocomplete(ctx, query)
	if err != nil {
		s.logger.Warn("autocomplete failed", "query", query, "error", err)
		return res
	}
	if list != nil {
		res.Suggestions = list
	}
	return res
}

// Input records a keystroke. The lookup runs once input has been quiet for
// the debounce delay; a newer keystroke cancels both the pending timer and
// any lookup still in flight.
func (s *Service) Input(ctx context.Context, query string) {
	base := context.WithoutCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
	s.debounce.Call(func(gen uint64) { go s.run(base, gen, query) })
}

func (s *Service) run(base context.Context, gen uint64, query string) {
	s.mu.Lock()
	if !s.debounce.Current(gen) {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(base)
	s.inflight = cancel
	s.mu.Unlock()

	res := s.Resolve(ctx, query)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.debounce.Current(gen) {
		s.metrics.SearchStale.Inc()
		return
	}
	s.inflight = nil
	s.latest = res
}

// Suggestions returns the latest debounced result.
func (s *Service) Suggestions() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// SelectSuggestion flies to a suggestion and marks it.
func (s *Service) SelectSuggestion(sug domain.Suggestion) (navigator.Transition, error) {
	return s.selectPosition(sug.Longitude, sug.Latitude, sug.Name)
}

// SelectCoordinate flies to a literal coordinate and marks it.
func (s *Service) SelectCoordinate(c Coordinate) (navigator.Transition, error) {
	return s.selectPosition(c.Longitude, c.Latitude, c.Label())
}

func (s *Service) selectPosition(lon, lat float64, label string) (navigator.Transition, error) {
	t, err := s.flyer.FlyTo(lon, lat, s.opts.FlyZoom)
	if err != nil {
		return navigator.Transition{}, err
	}
	s.marker.Store(&domain.SearchMarker{Longitude: lon, Latitude: lat, Label: label})
	s.logger.Info("search result selected", "label", label, "longitude", lon, "latitude", lat)
	return t, nil
}

// ClearMarker removes the search marker.
func (s *Service) ClearMarker() {
	if s.marker.Load() != nil {
		s.marker.Store(nil)
	}
}

// Marker returns the current search marker, or nil.
func (s *Service) Marker() *domain.SearchMarker {
	return s.marker.Load()
}

// MarkerChanged is closed when the marker is next replaced.
func (s *Service) MarkerChanged() <-chan struct{} {
	return s.marker.Changed()
}

// Stop cancels pending and running lookups.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debounce.Stop()
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
}
