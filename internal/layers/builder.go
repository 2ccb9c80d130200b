// Package layers turns validated record sets into renderable layer sets and
// decides when a set must be rebuilt.
package layers

import (
	"fmt"
	"math"
	"net/url"

	"github.com/cespare/xxhash/v2"
	"github.com/couchcryptid/civic-hotspot-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// pinSVG is the map-pin glyph of the search marker.
const pinSVG = `<svg width="48" height="48" viewBox="0 0 24 24" xmlns="http://www.w3.org/2000/svg">` +
	`<path fill="#EF4444" stroke="#991B1B" stroke-width="1" d="M12 2C8.13 2 5 5.13 5 9c0 5.25 7 13 7 13s7-7.75 7-13c0-3.87-3.13-7-7-7zm0 9.5c-1.38 0-2.5-1.12-2.5-2.5s1.12-2.5 2.5-2.5 2.5 1.12 2.5 2.5-1.12 2.5-2.5 2.5z"/>` +
	`</svg>`

// PinIcon is the icon used for every search marker layer.
var PinIcon = Icon{
	URL:     "data:image/svg+xml;utf8," + url.PathEscape(pinSVG),
	Width:   48,
	Height:  48,
	AnchorY: 48,
}

type markerStyle struct {
	fill   Color
	line   Color
	radius float64
}

var severityStyles = map[domain.Severity]markerStyle{
	domain.SeverityHigh:   {fill: Color{239, 68, 68, 230}, line: Color{153, 27, 27, 255}, radius: 9},
	domain.SeverityMedium: {fill: Color{249, 115, 22, 220}, line: Color{154, 52, 18, 255}, radius: 7},
	domain.SeverityLow:    {fill: Color{34, 197, 94, 210}, line: Color{20, 83, 45, 255}, radius: 5},
}

// BuildInput is everything a LayerSet is derived from.
type BuildInput struct {
	Token     uint64
	DataToken uint64
	Records   []domain.GeoRecord
	Marker    *domain.SearchMarker
	Style     StyleConfig
}

// Builder constructs LayerSets. It holds no state besides its clock, so Build
// is deterministic for a given input apart from BuiltAt.
type Builder struct {
	clock clockwork.Clock
}

// NewBuilder creates a Builder. Pass nil to use the real clock.
func NewBuilder(clock clockwork.Clock) *Builder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Builder{clock: clock}
}

// Build produces the complete LayerSet for in. The style must already be valid.
// An empty record set yields no hexagon layer at all.
func (b *Builder) Build(in BuildInput) *LayerSet {
	set := &LayerSet{
		Token:       in.Token,
		DataToken:   in.DataToken,
		Layers:      make([]Layer, 0, 3),
		RecordCount: len(in.Records),
		BuiltAt:     b.clock.Now(),
	}

	if len(in.Records) > 0 {
		set.Layers = append(set.Layers, buildHexagons(LayerID(KindHexagon, in.DataToken, in.Token), in.Records, in.Style))
	}
	if in.Style.ShowMarkers {
		if ml := buildMarkers(LayerID(KindMarkers, in.DataToken, in.Token), in.Records, in.Style); ml != nil {
			set.Layers = append(set.Layers, ml)
		}
	}
	if in.Marker != nil {
		set.Layers = append(set.Layers, buildPin(LayerID(KindPin, in.DataToken, in.Token), *in.Marker))
	}
	return set
}

// LayerID is the identifier of a layer kind built from the record set at
// dataToken. build is the composer's rebuild counter, so a style or marker
// change over the same data still yields a fresh identifier.
func LayerID(kind Kind, dataToken, build uint64) string {
	return fmt.Sprintf("%s-%d-%d", kind, dataToken, build)
}

func buildHexagons(id string, records []domain.GeoRecord, style StyleConfig) *HexagonLayer {
	grid := newHexGrid(style.CellRadius, records)
	order, members := grid.bin(records)

	cells := make([]HexCell, len(order))
	for i, c := range order {
		points := members[c]
		weights := make([]float64, len(points))
		for j, p := range points {
			weights[j] = RecordWeight(p)
		}
		value := style.Aggregation.Apply(weights)
		lon, lat := grid.center(c)
		cells[i] = HexCell{
			ID:             c.id(),
			Index:          i,
			Position:       [2]float64{lon, lat},
			Polygon:        grid.polygon(c, style.Coverage),
			Count:          len(points),
			ElevationValue: value,
			ColorValue:     value,
			Points:         points,
		}
	}

	encodeElevation(cells, style)
	encodeColor(cells, style)

	return &HexagonLayer{
		ID:             id,
		Kind:           KindHexagon,
		Opacity:        style.Opacity,
		Radius:         style.CellRadius,
		Coverage:       style.Coverage,
		ElevationScale: style.ElevationScale,
		ElevationRange: style.ElevationRange,
		Aggregation:    style.Aggregation,
		Extruded:       true,
		Pickable:       style.Pickable,
		Cells:          cells,
	}
}

// encodeElevation maps [0, max] of the cell values linearly onto the elevation range.
func encodeElevation(cells []HexCell, style StyleConfig) {
	maxValue := 0.0
	for _, c := range cells {
		maxValue = math.Max(maxValue, c.ElevationValue)
	}
	lo, hi := style.ElevationRange[0], style.ElevationRange[1]
	for i := range cells {
		e := lo
		if maxValue > 0 {
			e = lo + (cells[i].ElevationValue/maxValue)*(hi-lo)
		}
		cells[i].Elevation = e * style.ElevationScale
	}
}

// encodeColor quantizes cell values into the ramp over the color domain. An
// empty domain falls back to the observed [min, max]; a degenerate span maps
// everything to the first stop.
func encodeColor(cells []HexCell, style StyleConfig) {
	d0, d1 := style.ColorDomain[0], style.ColorDomain[1]
	if d1 <= d0 && len(cells) > 0 {
		d0, d1 = cells[0].ColorValue, cells[0].ColorValue
		for _, c := range cells[1:] {
			d0 = math.Min(d0, c.ColorValue)
			d1 = math.Max(d1, c.ColorValue)
		}
	}
	stops := len(style.ColorRamp)
	for i := range cells {
		idx := 0
		if d1 > d0 {
			idx = int(math.Floor((cells[i].ColorValue - d0) / (d1 - d0) * float64(stops)))
			idx = max(0, min(stops-1, idx))
		}
		cells[i].Color = style.ColorRamp[idx]
	}
}

func buildMarkers(id string, records []domain.GeoRecord, style StyleConfig) *MarkerLayer {
	var markers []Marker
	for _, rec := range records {
		ms, ok := severityStyles[rec.Severity]
		if !ok {
			continue
		}
		markers = append(markers, Marker{
			ID:           rec.ID,
			Position:     [2]float64{rec.Longitude, rec.Latitude},
			RadiusPixels: ms.radius,
			FillColor:    ms.fill,
			LineColor:    ms.line,
			Severity:     rec.Severity,
			Label:        rec.Label,
			record:       rec,
		})
	}
	if len(markers) == 0 {
		return nil
	}
	return &MarkerLayer{
		ID:       id,
		Kind:     KindMarkers,
		Pickable: style.Pickable,
		Markers:  markers,
	}
}

func buildPin(id string, m domain.SearchMarker) *PinLayer {
	return &PinLayer{
		ID:       id,
		Kind:     KindPin,
		Icon:     PinIcon,
		Size:     48,
		Position: [2]float64{m.Longitude, m.Latitude},
		Label:    m.Label,
		Pickable: true,
	}
}

// RecordWeight is the height/color weight of one record: the explicit feed
// weight when present, otherwise 1 to 3 derived from a hash of the record's
// content key so repeated renders agree even as the feed grows or reorders.
func RecordWeight(r domain.GeoRecord) float64 {
	if r.HasWeight {
		return r.Weight
	}
	return float64(xxhash.Sum64String(r.ContentKey())%3 + 1)
}
