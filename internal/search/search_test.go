package search_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/civic-hotspot-service/internal/domain"
	"github.com/couchcryptid/civic-hotspot-service/internal/navigator"
	"github.com/couchcryptid/civic-hotspot-service/internal/observability"
	"github.com/couchcryptid/civic-hotspot-service/internal/search"
)

const debounce = 100 * time.Millisecond

// --- fakes ---

type fakeSuggester struct {
	mu      sync.Mutex
	queries []string
	err     error
}

func (f *fakeSuggester) Autocomplete(_ context.Context, text string) ([]domain.Suggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Suggestion{{PlaceID: "p-" + text, Name: text, Longitude: -122.8164, Latitude: 38.5471}}, nil
}

func (f *fakeSuggester) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeFlyer struct {
	calls [][3]float64
	err   error
}

func (f *fakeFlyer) FlyTo(lon, lat, zoom float64) (navigator.Transition, error) {
	if f.err != nil {
		return navigator.Transition{}, f.err
	}
	f.calls = append(f.calls, [3]float64{lon, lat, zoom})
	return navigator.Transition{To: navigator.ViewState{Longitude: lon, Latitude: lat, Zoom: zoom}}, nil
}

func newTestService(sug domain.Suggester) (*search.Service, *fakeFlyer, *clockwork.FakeClock) {
	flyer := &fakeFlyer{}
	clock := clockwork.NewFakeClock()
	metrics := observability.NewMetricsForTesting()
	opts := search.Options{MinLength: 3, Debounce: debounce, FlyZoom: 6.5}
	return search.NewService(sug, flyer, opts, clock, slog.Default(), metrics), flyer, clock
}

// --- coordinates ---

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		in   string
		want search.Coordinate
		ok   bool
	}{
		{"37.7749, -122.4194", search.Coordinate{Latitude: 37.7749, Longitude: -122.4194}, true},
		{"-122.4194, 37.7749", search.Coordinate{Latitude: 37.7749, Longitude: -122.4194}, true},
		{"  37.7749   -122.4194 ", search.Coordinate{Latitude: 37.7749, Longitude: -122.4194}, true},
		{"38.5471,-122.8164", search.Coordinate{Latitude: 38.5471, Longitude: -122.8164}, true},
		{"33 118", search.Coordinate{Latitude: 33, Longitude: 118}, true},
		{"200, 50", search.Coordinate{}, false},
		{"95, 95", search.Coordinate{}, false},
		{"Windsor", search.Coordinate{}, false},
		{"37.7749", search.Coordinate{}, false},
		{"37.7749, -122.4194, 10", search.Coordinate{}, false},
		{"", search.Coordinate{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := search.ParseCoordinates(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoordinate_Label(t *testing.T) {
	c := search.Coordinate{Latitude: 37.77493, Longitude: -122.41942}
	assert.Equal(t, "37.7749, -122.4194", c.Label())
}

// --- resolve ---

func TestResolve_CoordinateSkipsGeocoder(t *testing.T) {
	sug := &fakeSuggester{}
	s, _, _ := newTestService(sug)

	res := s.Resolve(context.Background(), "37.7749, -122.4194")
	require.NotNil(t, res.Coordinate)
	assert.Empty(t, res.Suggestions)
	assert.Empty(t, sug.seen())
}

func TestResolve_MinLength(t *testing.T) {
	sug := &fakeSuggester{}
	s, _, _ := newTestService(sug)

	assert.Empty(t, s.Resolve(context.Background(), "Wi").Suggestions)
	assert.Empty(t, sug.seen())

	res := s.Resolve(context.Background(), "Win")
	require.Len(t, res.Suggestions, 1)
	assert.Equal(t, []string{"Win"}, sug.seen())
}

func TestResolve_GeocoderFailureIsEmpty(t *testing.T) {
	s, _, _ := newTestService(&fakeSuggester{err: errors.New("status 500")})

	res := s.Resolve(context.Background(), "Healdsburg")
	assert.NotNil(t, res.Suggestions)
	assert.Empty(t, res.Suggestions)
	assert.Nil(t, res.Coordinate)
}

func TestResolve_NoSuggester(t *testing.T) {
	s, _, _ := newTestService(nil)
	assert.Empty(t, s.Resolve(context.Background(), "Larkspur").Suggestions)
}

// --- debounce ---

func TestInput_DebouncesToLastKeystroke(t *testing.T) {
	sug := &fakeSuggester{}
	s, _, clock := newTestService(sug)

	for _, q := range []string{"L", "La", "Law", "Lawn", "Lawnd"} {
		s.Input(context.Background(), q)
		clock.Advance(debounce / 2)
	}
	assert.Empty(t, sug.seen(), "no lookup while typing")

	clock.Advance(debounce)
	require.Eventually(t, func() bool { return s.Suggestions().Query == "Lawnd" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Lawnd"}, sug.seen())

	want := []domain.Suggestion{{PlaceID: "p-Lawnd", Name: "Lawnd", Longitude: -122.8164, Latitude: 38.5471}}
	if diff := cmp.Diff(want, s.Suggestions().Suggestions); diff != "" {
		t.Errorf("suggestions mismatch (-want +got):\n%s", diff)
	}
}

func TestInput_StopCancelsPending(t *testing.T) {
	sug := &fakeSuggester{}
	s, _, clock := newTestService(sug)

	s.Input(context.Background(), "Yorba")
	s.Stop()
	clock.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)

	assert.Empty(t, sug.seen())
	assert.Empty(t, s.Suggestions().Query)
}

func TestDebouncer_Current(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := search.NewDebouncer(debounce, clock)
	fired := make(chan uint64, 2)

	first := d.Call(func(gen uint64) { fired <- gen })
	second := d.Call(func(gen uint64) { fired <- gen })
	assert.False(t, d.Current(first))
	assert.True(t, d.Current(second))

	clock.Advance(debounce)
	select {
	case gen := <-fired:
		assert.Equal(t, second, gen)
	case <-time.After(time.Second):
		t.Fatal("debounced call did not fire")
	}
	select {
	case gen := <-fired:
		t.Fatalf("superseded call fired with gen %d", gen)
	case <-time.After(20 * time.Millisecond):
	}
}

// --- select ---

func TestSelectSuggestion_FliesAndMarks(t *testing.T) {
	s, flyer, _ := newTestService(&fakeSuggester{})
	changed := s.MarkerChanged()

	tr, err := s.SelectSuggestion(domain.Suggestion{Name: "Windsor", Longitude: -122.8164, Latitude: 38.5471})
	require.NoError(t, err)

	assert.Equal(t, [][3]float64{{-122.8164, 38.5471, 6.5}}, flyer.calls)
	assert.InDelta(t, 6.5, tr.To.Zoom, 0)
	assert.Equal(t, &domain.SearchMarker{Longitude: -122.8164, Latitude: 38.5471, Label: "Windsor"}, s.Marker())
	select {
	case <-changed:
	default:
		t.Fatal("marker change not signalled")
	}
}

func TestSelectCoordinate_LabelsWithLatLon(t *testing.T) {
	s, _, _ := newTestService(nil)

	_, err := s.SelectCoordinate(search.Coordinate{Latitude: 33.8872, Longitude: -118.3526})
	require.NoError(t, err)
	require.NotNil(t, s.Marker())
	assert.Equal(t, "33.8872, -118.3526", s.Marker().Label)

	s.ClearMarker()
	assert.Nil(t, s.Marker())
}

func TestSelect_FlyErrorLeavesMarker(t *testing.T) {
	s, flyer, _ := newTestService(nil)
	flyer.err = navigator.ErrInvalidViewState

	_, err := s.SelectCoordinate(search.Coordinate{Latitude: 33.8872, Longitude: -118.3526})
	require.ErrorIs(t, err, navigator.ErrInvalidViewState)
	assert.Nil(t, s.Marker())
}

// slowSuggester blocks on "slow" until its context is cancelled.
type slowSuggester struct {
	started chan struct{}
}

func (f *slowSuggester) Autocomplete(ctx context.Context, text string) ([]domain.Suggestion, error) {
	if text != "slow" {
		return []domain.Suggestion{{Name: text}}, nil
	}
	close(f.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestInput_NewKeystrokeSupersedesInflightLookup(t *testing.T) {
	sug := &slowSuggester{started: make(chan struct{})}
	clock := clockwork.NewFakeClock()
	metrics := observability.NewMetricsForTesting()
	s := search.NewService(sug, &fakeFlyer{}, search.Options{MinLength: 3, Debounce: debounce, FlyZoom: 6.5}, clock, slog.Default(), metrics)

	s.Input(context.Background(), "slow")
	clock.Advance(debounce)
	select {
	case <-sug.started:
	case <-time.After(time.Second):
		t.Fatal("lookup did not start")
	}

	s.Input(context.Background(), "fast")
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.SearchStale) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, s.Suggestions().Query, "superseded result is discarded")

	clock.Advance(debounce)
	require.Eventually(t, func() bool { return s.Suggestions().Query == "fast" }, time.Second, 5*time.Millisecond)
}
