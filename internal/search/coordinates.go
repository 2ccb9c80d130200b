package search

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	spaceRun   = regexp.MustCompile(`\s+`)
	coordinate = regexp.MustCompile(`^(-?\d+\.?\d*)[,\s]+(-?\d+\.?\d*)$`)
)

// Coordinate is a literal position typed into the search box.
type Coordinate struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Label formats the coordinate the way the search marker shows it.
func (c Coordinate) Label() string {
	return fmt.Sprintf("%.4f, %.4f", c.Latitude, c.Longitude)
}

// ParseCoordinates reads "lat, lon" or "lon, lat", separated by commas or
// whitespace. The pair is read as lat, lon when that fits the ranges;
// otherwise a first component beyond ±90 is taken as the longitude. Pairs
// out of range either way do not match.
func ParseCoordinates(input string) (Coordinate, bool) {
	cleaned := spaceRun.ReplaceAllString(strings.TrimSpace(input), " ")
	m := coordinate.FindStringSubmatch(cleaned)
	if m == nil {
		return Coordinate{}, false
	}
	a, errA := strconv.ParseFloat(m[1], 64)
	b, errB := strconv.ParseFloat(m[2], 64)
	if errA != nil || errB != nil {
		return Coordinate{}, false
	}

	switch {
	case math.Abs(a) <= 90 && math.Abs(b) <= 180:
		return Coordinate{Latitude: a, Longitude: b}, true
	case math.Abs(a) <= 180 && math.Abs(b) <= 90:
		return Coordinate{Latitude: b, Longitude: a}, true
	default:
		return Coordinate{}, false
	}
}
