// Package navigator owns the camera pose and animates fly-to transitions
// between poses.
package navigator

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/s2"
	"github.com/jonboulle/clockwork"
)

// Camera limits.
const (
	MinZoom  = 0.0
	MaxZoom  = 24.0
	MaxPitch = 85.0

	// FlyDuration is the fixed length of every fly-to transition.
	FlyDuration = 2000 * time.Millisecond

	earthRadiusKm = 6371.0088
)

var (
	// ErrInvalidViewState reports a camera parameter that is not finite or out of range.
	ErrInvalidViewState = errors.New("invalid view state")
	// ErrTransitionInFlight is returned when a user pan arrives while a fly-to is animating.
	ErrTransitionInFlight = errors.New("transition in flight")
	// ErrNoLocations is returned by the cycle operations when no locations are known.
	ErrNoLocations = errors.New("no known locations")
)

// ViewState is a camera pose.
type ViewState struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Zoom      float64 `json:"zoom"`
	Pitch     float64 `json:"pitch"`
	Bearing   float64 `json:"bearing"`
}

// Validate rejects NaN, infinities and out-of-range values.
func (v ViewState) Validate() error {
	for name, f := range map[string]float64{
		"longitude": v.Longitude, "latitude": v.Latitude, "zoom": v.Zoom, "pitch": v.Pitch, "bearing": v.Bearing,
	} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidViewState, name)
		}
	}
	switch {
	case math.Abs(v.Latitude) > 90:
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidViewState, v.Latitude)
	case math.Abs(v.Longitude) > 180:
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidViewState, v.Longitude)
	case v.Zoom < MinZoom || v.Zoom > MaxZoom:
		return fmt.Errorf("%w: zoom %v outside [%v,%v]", ErrInvalidViewState, v.Zoom, MinZoom, MaxZoom)
	case v.Pitch < 0 || v.Pitch > MaxPitch:
		return fmt.Errorf("%w: pitch %v outside [0,%v]", ErrInvalidViewState, v.Pitch, MaxPitch)
	}
	return nil
}

// Transition is an in-flight or finished fly-to animation.
type Transition struct {
	Seq        uint64        `json:"seq"`
	From       ViewState     `json:"from"`
	To         ViewState     `json:"to"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	DistanceKm float64       `json:"distance_km"`
}

// Progress is the eased completion of the transition at now, in [0,1].
func (t Transition) Progress(now time.Time) float64 {
	if t.Duration <= 0 {
		return 1
	}
	x := float64(now.Sub(t.StartedAt)) / float64(t.Duration)
	x = math.Max(0, math.Min(1, x))
	return easeOut(x)
}

func easeOut(t float64) float64 { return t * (2 - t) }

// Navigator is the single owner of the camera pose.
type Navigator struct {
	clock  clockwork.Clock
	logger *slog.Logger

	mu        sync.Mutex
	settled   ViewState
	flight    *Transition
	seq       uint64
	locations []Location
	cursor    int
}

// New creates a Navigator at initial. locations may be empty, in which case
// the cycle operations fail with ErrNoLocations.
func New(initial ViewState, locations []Location, clock clockwork.Clock, logger *slog.Logger) (*Navigator, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	for _, loc := range locations {
		if err := loc.view(initial).Validate(); err != nil {
			return nil, fmt.Errorf("location %q: %w", loc.Name, err)
		}
	}
	return &Navigator{
		clock:     clock,
		logger:    logger,
		settled:   initial,
		locations: append([]Location(nil), locations...),
	}, nil
}

// FlyTo starts a transition to the given position. Pitch and bearing are
// kept. Any in-flight transition is superseded from its current pose, so the
// camera ends exactly on the latest target.
func (n *Navigator) FlyTo(longitude, latitude, zoom float64) (Transition, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.flyToLocked(longitude, latitude, zoom)
}

func (n *Navigator) flyToLocked(longitude, latitude, zoom float64) (Transition, error) {
	now := n.clock.Now()
	from := n.poseLocked(now)

	to := from
	to.Longitude, to.Latitude, to.Zoom = longitude, latitude, zoom
	if err := to.Validate(); err != nil {
		return Transition{}, err
	}

	n.seq++
	t := Transition{
		Seq:        n.seq,
		From:       from,
		To:         to,
		StartedAt:  now,
		Duration:   FlyDuration,
		DistanceKm: distanceKm(from, to),
	}
	if n.flight != nil {
		n.logger.Debug("transition superseded", "seq", n.flight.Seq, "by", t.Seq)
	}
	n.flight = &t

	n.logger.Info("fly-to started",
		"seq", t.Seq,
		"longitude", to.Longitude,
		"latitude", to.Latitude,
		"zoom", to.Zoom,
		"distance_km", math.Round(t.DistanceKm*10)/10,
	)
	return t, nil
}

// ApplyUserPan replaces the pose without animation. It is rejected while a
// fly-to is animating so the transition still lands on its target.
func (n *Navigator) ApplyUserPan(v ViewState) error {
	if err := v.Validate(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	n.poseLocked(n.clock.Now())
	if n.flight != nil {
		return ErrTransitionInFlight
	}
	n.settled = v
	return nil
}

// Current returns the pose at the current instant, interpolated when a
// transition is in flight.
func (n *Navigator) Current() ViewState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.poseLocked(n.clock.Now())
}

// InFlight returns the active transition, if any.
func (n *Navigator) InFlight() (Transition, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.poseLocked(n.clock.Now())
	if n.flight == nil {
		return Transition{}, false
	}
	return *n.flight, true
}

// poseLocked settles a finished transition and returns the pose at now.
func (n *Navigator) poseLocked(now time.Time) ViewState {
	if n.flight == nil {
		return n.settled
	}
	t := n.flight
	if !now.Before(t.StartedAt.Add(t.Duration)) {
		n.settled = t.To
		n.flight = nil
		return n.settled
	}
	p := t.Progress(now)
	return ViewState{
		Longitude: lerp(t.From.Longitude, t.To.Longitude, p),
		Latitude:  lerp(t.From.Latitude, t.To.Latitude, p),
		Zoom:      lerp(t.From.Zoom, t.To.Zoom, p),
		Pitch:     t.To.Pitch,
		Bearing:   t.To.Bearing,
	}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func distanceKm(a, b ViewState) float64 {
	from := s2.LatLngFromDegrees(a.Latitude, a.Longitude)
	to := s2.LatLngFromDegrees(b.Latitude, b.Longitude)
	return from.Distance(to).Radians() * earthRadiusKm
}
