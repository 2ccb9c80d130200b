package layers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAggregation(t *testing.T) {
	for _, in := range []string{"sum", "MEAN", " Min ", "max"} {
		_, err := ParseAggregation(in)
		require.NoError(t, err, in)
	}
	_, err := ParseAggregation("median")
	require.ErrorIs(t, err, ErrInvalidStyle)
}

func TestAggregation_ApplyEmpty(t *testing.T) {
	assert.InDelta(t, 0, AggregationMax.Apply(nil), 0)
}

func TestStyleConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultStyle().Validate())

	tests := []struct {
		name   string
		mutate func(*StyleConfig)
	}{
		{"zero radius", func(s *StyleConfig) { s.CellRadius = 0 }},
		{"nan radius", func(s *StyleConfig) { s.CellRadius = math.NaN() }},
		{"opacity above one", func(s *StyleConfig) { s.Opacity = 1.5 }},
		{"zero coverage", func(s *StyleConfig) { s.Coverage = 0 }},
		{"inverted elevation range", func(s *StyleConfig) { s.ElevationRange = [2]float64{500, 0} }},
		{"negative elevation scale", func(s *StyleConfig) { s.ElevationScale = -1 }},
		{"inverted color domain", func(s *StyleConfig) { s.ColorDomain = [2]float64{10, 0} }},
		{"unknown aggregation", func(s *StyleConfig) { s.Aggregation = "P95" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultStyle()
			tt.mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidStyle)
		})
	}
}

func TestEncodeColor_EmptyDomainFallsBackToObserved(t *testing.T) {
	style := DefaultStyle()
	style.ColorDomain = [2]float64{0, 0}
	cells := []HexCell{{ColorValue: 1}, {ColorValue: 4}, {ColorValue: 7}}

	encodeColor(cells, style)

	assert.Equal(t, style.ColorRamp[0], cells[0].Color)
	assert.Equal(t, style.ColorRamp[3], cells[1].Color)
	assert.Equal(t, style.ColorRamp[5], cells[2].Color)
}

func TestEncodeColor_DegenerateSpan(t *testing.T) {
	style := DefaultStyle()
	style.ColorDomain = [2]float64{0, 0}
	cells := []HexCell{{ColorValue: 3}, {ColorValue: 3}}

	encodeColor(cells, style)

	assert.Equal(t, style.ColorRamp[0], cells[0].Color)
	assert.Equal(t, style.ColorRamp[0], cells[1].Color)
}
