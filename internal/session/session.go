// Package session holds the explicit state of one map session and runs the
// composition loop that turns upstream changes into LayerSets.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/civic-hotspot-service/internal/domain"
	"github.com/couchcryptid/civic-hotspot-service/internal/interaction"
	"github.com/couchcryptid/civic-hotspot-service/internal/layers"
	"github.com/couchcryptid/civic-hotspot-service/internal/navigator"
	"github.com/couchcryptid/civic-hotspot-service/internal/refresh"
	"github.com/couchcryptid/civic-hotspot-service/internal/search"
	"github.com/couchcryptid/civic-hotspot-service/internal/state"
)

// Components are the collaborators a Session owns. Each one is the single
// writer of its own slot.
type Components struct {
	Refresh   *refresh.Loop
	Search    *search.Service
	Navigator *navigator.Navigator
	Composer  *layers.Composer
	Broker    *interaction.Broker
}

// Session is the state container shared by the HTTP API and the background
// loops.
type Session struct {
	Components

	style  *state.Slot[layers.StyleConfig]
	logger *slog.Logger
}

// Summary describes the working record set without the records themselves.
type Summary struct {
	Topic       string         `json:"topic"`
	Token       uint64         `json:"token"`
	Kept        int            `json:"kept"`
	Dropped     int            `json:"dropped"`
	DropReasons map[string]int `json:"drop_reasons,omitempty"`
	Loaded      bool           `json:"loaded"`
}

// New creates a Session with the given initial style.
func New(c Components, style layers.StyleConfig, logger *slog.Logger) (*Session, error) {
	if err := style.Validate(); err != nil {
		return nil, fmt.Errorf("initial style: %w", err)
	}
	return &Session{
		Components: c,
		style:      state.NewSlot(&style),
		logger:     logger,
	}, nil
}

// Style returns the active style.
func (s *Session) Style() layers.StyleConfig {
	return *s.style.Load()
}

// SetStyle replaces the active style. Invalid styles are rejected and the
// previous one stays in place.
func (s *Session) SetStyle(style layers.StyleConfig) error {
	if err := style.Validate(); err != nil {
		return err
	}
	s.style.Store(&style)
	s.logger.Info("style updated", "cell_radius", style.CellRadius, "aggregation", style.Aggregation)
	return nil
}

// SetTopic switches the feed topic and triggers an immediate refresh.
func (s *Session) SetTopic(topic string) bool {
	return s.Refresh.SetTopic(topic)
}

// Records returns the current working set, which may be nil before the first
// successful refresh.
func (s *Session) Records() *domain.RecordSet {
	return s.Refresh.Current()
}

// Summary describes the current working set.
func (s *Session) Summary() Summary {
	set := s.Refresh.Current()
	if set == nil {
		return Summary{Topic: s.Refresh.Topic()}
	}
	return Summary{
		Topic:       set.Topic,
		Token:       set.Token,
		Kept:        set.Kept,
		Dropped:     set.Dropped,
		DropReasons: set.Reasons,
		Loaded:      true,
	}
}

// Inputs snapshots everything the composer depends on.
func (s *Session) Inputs() layers.Inputs {
	return layers.Inputs{
		Records: s.Refresh.Current(),
		Style:   s.Style(),
		Marker:  s.Search.Marker(),
	}
}

// Run composes once and then again after every change to records, marker or
// style, until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("composition loop started")
	for {
		// Subscribe before reading so a change between the read and the
		// select still wakes the loop.
		records := s.Refresh.Changed()
		marker := s.Search.MarkerChanged()
		style := s.style.Changed()

		s.Composer.Compose(ctx, s.Inputs())

		select {
		case <-ctx.Done():
			s.logger.Info("composition loop stopping", "reason", ctx.Err())
			return nil
		case <-records:
		case <-marker:
		case <-style:
		}
	}
}
