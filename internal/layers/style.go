package layers

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidStyle reports a style parameter outside its recognized range.
var ErrInvalidStyle = errors.New("invalid layer style")

// Color is an RGBA quadruple.
type Color [4]uint8

// ColorRamp is the fixed six-stop ramp from low (green) to high (dark red).
type ColorRamp [6]Color

// DefaultColorRamp runs green → lime → yellow → orange → red → dark red.
var DefaultColorRamp = ColorRamp{
	{34, 197, 94, 180},
	{132, 204, 22, 200},
	{234, 179, 8, 220},
	{251, 146, 60, 235},
	{239, 68, 68, 250},
	{220, 38, 38, 255},
}

// Aggregation reduces the weights of every record in a cell to one value.
type Aggregation string

const (
	AggregationSum  Aggregation = "SUM"
	AggregationMean Aggregation = "MEAN"
	AggregationMin  Aggregation = "MIN"
	AggregationMax  Aggregation = "MAX"
)

// ParseAggregation accepts SUM, MEAN, MIN or MAX in any case.
func ParseAggregation(s string) (Aggregation, error) {
	a := Aggregation(strings.ToUpper(strings.TrimSpace(s)))
	switch a {
	case AggregationSum, AggregationMean, AggregationMin, AggregationMax:
		return a, nil
	default:
		return "", fmt.Errorf("%w: unknown aggregation %q", ErrInvalidStyle, s)
	}
}

// Apply reduces values. It returns 0 for an empty slice.
func (a Aggregation) Apply(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	switch a {
	case AggregationMean:
		return sum(values) / float64(len(values))
	case AggregationMin:
		m := values[0]
		for _, v := range values[1:] {
			m = math.Min(m, v)
		}
		return m
	case AggregationMax:
		m := values[0]
		for _, v := range values[1:] {
			m = math.Max(m, v)
		}
		return m
	default:
		return sum(values)
	}
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// StyleConfig is the complete styling surface of the layer builder. It is a
// comparable value so the composer can detect changes with ==.
type StyleConfig struct {
	CellRadius     float64     `json:"cell_radius"` // meters
	Opacity        float64     `json:"opacity"`
	ColorRamp      ColorRamp   `json:"color_range"`
	ColorDomain    [2]float64  `json:"color_domain"`
	ElevationRange [2]float64  `json:"elevation_range"` // meters
	ElevationScale float64     `json:"elevation_scale"`
	Coverage       float64     `json:"coverage"`
	Aggregation    Aggregation `json:"aggregation"`
	Pickable       bool        `json:"pickable"`
	ShowMarkers    bool        `json:"show_markers"`
}

// DefaultStyle returns the dashboard's stock hexagon styling.
func DefaultStyle() StyleConfig {
	return StyleConfig{
		CellRadius:     1200,
		Opacity:        0.8,
		ColorRamp:      DefaultColorRamp,
		ColorDomain:    [2]float64{0, 20},
		ElevationRange: [2]float64{0, 500},
		ElevationScale: 20,
		Coverage:       0.9,
		Aggregation:    AggregationSum,
		Pickable:       true,
		ShowMarkers:    true,
	}
}

// Validate rejects styles the builder cannot render.
func (s StyleConfig) Validate() error {
	switch {
	case !finite(s.CellRadius) || s.CellRadius <= 0:
		return fmt.Errorf("%w: cell radius must be positive, got %v", ErrInvalidStyle, s.CellRadius)
	case !finite(s.Opacity) || s.Opacity < 0 || s.Opacity > 1:
		return fmt.Errorf("%w: opacity must be within [0,1], got %v", ErrInvalidStyle, s.Opacity)
	case !finite(s.Coverage) || s.Coverage <= 0 || s.Coverage > 1:
		return fmt.Errorf("%w: coverage must be within (0,1], got %v", ErrInvalidStyle, s.Coverage)
	case !finite(s.ElevationRange[0]) || !finite(s.ElevationRange[1]) ||
		s.ElevationRange[0] < 0 || s.ElevationRange[0] > s.ElevationRange[1]:
		return fmt.Errorf("%w: elevation range %v", ErrInvalidStyle, s.ElevationRange)
	case !finite(s.ElevationScale) || s.ElevationScale < 0:
		return fmt.Errorf("%w: elevation scale must be non-negative, got %v", ErrInvalidStyle, s.ElevationScale)
	case !finite(s.ColorDomain[0]) || !finite(s.ColorDomain[1]) || s.ColorDomain[0] > s.ColorDomain[1]:
		return fmt.Errorf("%w: color domain %v", ErrInvalidStyle, s.ColorDomain)
	}
	if _, err := ParseAggregation(string(s.Aggregation)); err != nil {
		return err
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
