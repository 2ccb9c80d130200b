package navigator

import (
	"encoding/json"
	"fmt"
	"os"
)

// Location is a named stop in the cycle list.
type Location struct {
	Name      string  `json:"name"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Zoom      float64 `json:"zoom"`
}

func (l Location) view(base ViewState) ViewState {
	base.Longitude, base.Latitude, base.Zoom = l.Longitude, l.Latitude, l.Zoom
	return base
}

// DefaultLocations is the stock cycle list.
var DefaultLocations = []Location{
	{Name: "Windsor", Longitude: -122.8164, Latitude: 38.5471, Zoom: 10},
	{Name: "Larkspur", Longitude: -122.5350, Latitude: 37.9341, Zoom: 10},
	{Name: "Healdsburg", Longitude: -122.8697, Latitude: 38.6191, Zoom: 10},
	{Name: "Lawndale", Longitude: -118.3526, Latitude: 33.8872, Zoom: 10},
	{Name: "Yorba Linda", Longitude: -117.8131, Latitude: 33.8886, Zoom: 10},
}

// LoadLocations reads a JSON array of locations. An empty path returns
// DefaultLocations.
func LoadLocations(path string) ([]Location, error) {
	if path == "" {
		return append([]Location(nil), DefaultLocations...), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locations: %w", err)
	}
	var locs []Location
	if err := json.Unmarshal(data, &locs); err != nil {
		return nil, fmt.Errorf("decode locations %s: %w", path, err)
	}
	return locs, nil
}

// Locations returns a copy of the cycle list.
func (n *Navigator) Locations() []Location {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Location(nil), n.locations...)
}

// Cursor is the index of the current location in the cycle list.
func (n *Navigator) Cursor() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cursor
}

// CycleNext advances to the next known location, wrapping at the end, and
// flies there.
func (n *Navigator) CycleNext() (Location, Transition, error) {
	return n.cycle(1)
}

// CyclePrev steps back to the previous known location, wrapping at the start,
// and flies there.
func (n *Navigator) CyclePrev() (Location, Transition, error) {
	return n.cycle(-1)
}

func (n *Navigator) cycle(step int) (Location, Transition, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	count := len(n.locations)
	if count == 0 {
		return Location{}, Transition{}, ErrNoLocations
	}
	n.cursor = ((n.cursor+step)%count + count) % count
	loc := n.locations[n.cursor]

	t, err := n.flyToLocked(loc.Longitude, loc.Latitude, loc.Zoom)
	if err != nil {
		return Location{}, Transition{}, err
	}
	return loc, t, nil
}
