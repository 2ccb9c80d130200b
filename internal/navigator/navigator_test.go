package navigator

import (
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var startView = ViewState{Longitude: -122.4194, Latitude: 37.7749, Zoom: 10, Pitch: 45}

func newTestNavigator(t *testing.T, locs []Location) (*Navigator, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	n, err := New(startView, locs, clock, slog.Default())
	require.NoError(t, err)
	return n, clock
}

func TestFlyTo_LandsExactly(t *testing.T) {
	n, clock := newTestNavigator(t, nil)

	tr, err := n.FlyTo(-122.8164, 38.5471, 12)
	require.NoError(t, err)
	assert.Equal(t, FlyDuration, tr.Duration)
	assert.Greater(t, tr.DistanceKm, 80.0)

	clock.Advance(FlyDuration)

	got := n.Current()
	assert.Equal(t, ViewState{Longitude: -122.8164, Latitude: 38.5471, Zoom: 12, Pitch: 45}, got)
	_, inFlight := n.InFlight()
	assert.False(t, inFlight)
}

func TestFlyTo_EaseOutMidpoint(t *testing.T) {
	n, clock := newTestNavigator(t, nil)
	_, err := n.FlyTo(-122.4194+1, 37.7749, 10)
	require.NoError(t, err)

	clock.Advance(FlyDuration / 2)

	// t(2-t) at t=0.5 is 0.75.
	assert.InDelta(t, -122.4194+0.75, n.Current().Longitude, 1e-9)
}

func TestFlyTo_LastWriteWins(t *testing.T) {
	n, clock := newTestNavigator(t, nil)

	first, err := n.FlyTo(-118.3526, 33.8872, 10)
	require.NoError(t, err)
	clock.Advance(300 * time.Millisecond)
	second, err := n.FlyTo(-117.8131, 33.8886, 11)
	require.NoError(t, err)
	assert.Greater(t, second.Seq, first.Seq)

	// The first transition's end time passes without landing there.
	clock.Advance(FlyDuration - 300*time.Millisecond)
	mid := n.Current()
	assert.NotEqual(t, -118.3526, mid.Longitude)

	clock.Advance(time.Second)
	got := n.Current()
	assert.InDelta(t, -117.8131, got.Longitude, 0)
	assert.InDelta(t, 33.8886, got.Latitude, 0)
	assert.InDelta(t, 11, got.Zoom, 0)
}

func TestFlyTo_RejectsBadParameters(t *testing.T) {
	tests := []struct {
		name           string
		lon, lat, zoom float64
	}{
		{"nan longitude", math.NaN(), 37, 10},
		{"infinite latitude", -122, math.Inf(1), 10},
		{"latitude out of range", -122, 91, 10},
		{"longitude out of range", 181, 37, 10},
		{"zoom too high", -122, 37, 25},
		{"negative zoom", -122, 37, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, _ := newTestNavigator(t, nil)
			_, err := n.FlyTo(tt.lon, tt.lat, tt.zoom)
			require.ErrorIs(t, err, ErrInvalidViewState)
			assert.Equal(t, startView, n.Current())
			_, inFlight := n.InFlight()
			assert.False(t, inFlight)
		})
	}
}

func TestApplyUserPan(t *testing.T) {
	n, clock := newTestNavigator(t, nil)
	pan := ViewState{Longitude: -122.3, Latitude: 37.8, Zoom: 11, Pitch: 30, Bearing: 15}

	require.NoError(t, n.ApplyUserPan(pan))
	assert.Equal(t, pan, n.Current())

	bad := pan
	bad.Zoom = math.NaN()
	require.ErrorIs(t, n.ApplyUserPan(bad), ErrInvalidViewState)
	assert.Equal(t, pan, n.Current())

	_, err := n.FlyTo(-122.5350, 37.9341, 10)
	require.NoError(t, err)
	require.ErrorIs(t, n.ApplyUserPan(startView), ErrTransitionInFlight)

	clock.Advance(FlyDuration)
	require.NoError(t, n.ApplyUserPan(startView))
	assert.Equal(t, startView, n.Current())
}

func TestFlyTo_KeepsPitchAndBearing(t *testing.T) {
	n, clock := newTestNavigator(t, nil)
	require.NoError(t, n.ApplyUserPan(ViewState{Longitude: -122, Latitude: 37, Zoom: 9, Pitch: 60, Bearing: 30}))

	_, err := n.FlyTo(-121, 36, 8)
	require.NoError(t, err)
	clock.Advance(FlyDuration)

	got := n.Current()
	assert.InDelta(t, 60, got.Pitch, 0)
	assert.InDelta(t, 30, got.Bearing, 0)
}

func TestCycle_WrapsAround(t *testing.T) {
	n, clock := newTestNavigator(t, DefaultLocations)
	count := len(DefaultLocations)
	start := n.Cursor()

	for range count {
		_, _, err := n.CycleNext()
		require.NoError(t, err)
		clock.Advance(FlyDuration)
	}
	assert.Equal(t, start, n.Cursor())

	want := DefaultLocations[start]
	got := n.Current()
	assert.InDelta(t, want.Longitude, got.Longitude, 0)
	assert.InDelta(t, want.Latitude, got.Latitude, 0)
}

func TestCycle_PrevWrapsAtStart(t *testing.T) {
	n, _ := newTestNavigator(t, DefaultLocations)

	loc, tr, err := n.CyclePrev()
	require.NoError(t, err)
	assert.Equal(t, "Yorba Linda", loc.Name)
	assert.InDelta(t, -117.8131, tr.To.Longitude, 0)
	assert.Equal(t, len(DefaultLocations)-1, n.Cursor())

	loc, _, err = n.CycleNext()
	require.NoError(t, err)
	assert.Equal(t, "Windsor", loc.Name)
}

func TestCycle_NoLocations(t *testing.T) {
	n, _ := newTestNavigator(t, nil)
	_, _, err := n.CycleNext()
	require.ErrorIs(t, err, ErrNoLocations)
	_, _, err = n.CyclePrev()
	require.ErrorIs(t, err, ErrNoLocations)
}

func TestNew_RejectsInvalidInputs(t *testing.T) {
	clock := clockwork.NewFakeClock()

	_, err := New(ViewState{Zoom: 99}, nil, clock, slog.Default())
	require.ErrorIs(t, err, ErrInvalidViewState)

	_, err = New(startView, []Location{{Name: "Nowhere", Latitude: 120, Zoom: 10}}, clock, slog.Default())
	require.ErrorIs(t, err, ErrInvalidViewState)
	assert.Contains(t, err.Error(), "Nowhere")
}

func TestLoadLocations(t *testing.T) {
	locs, err := LoadLocations("")
	require.NoError(t, err)
	assert.Equal(t, DefaultLocations, locs)

	path := filepath.Join(t.TempDir(), "locations.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"Oakland","longitude":-122.2711,"latitude":37.8044,"zoom":11}]`), 0o600))
	locs, err = LoadLocations(path)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "Oakland", locs[0].Name)

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o600))
	_, err = LoadLocations(path)
	require.Error(t, err)
}
