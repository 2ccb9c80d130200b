package layers

import (
	"time"

	"github.com/couchcryptid/civic-hotspot-service/internal/domain"
)

// Kind is the semantic suffix of a layer.
type Kind string

const (
	KindHexagon Kind = "hexagon"
	KindMarkers Kind = "markers"
	KindPin     Kind = "search-marker"
)

// Layer is one renderable layer of a LayerSet.
type Layer interface {
	LayerID() string
	LayerKind() Kind
	primitive(index int) (Primitive, bool)
}

// Primitive is what sits under the pointer for a given layer and object index.
type Primitive struct {
	Kind     Kind
	Records  []domain.GeoRecord
	Position [2]float64
	Label    string
}

// HexagonLayer is the extruded density aggregation.
type HexagonLayer struct {
	ID             string      `json:"id"`
	Kind           Kind        `json:"kind"`
	Opacity        float64     `json:"opacity"`
	Radius         float64     `json:"radius"`
	Coverage       float64     `json:"coverage"`
	ElevationScale float64     `json:"elevation_scale"`
	ElevationRange [2]float64  `json:"elevation_range"`
	Aggregation    Aggregation `json:"aggregation"`
	Extruded       bool        `json:"extruded"`
	Pickable       bool        `json:"pickable"`
	Cells          []HexCell   `json:"cells"`
}

func (l *HexagonLayer) LayerID() string { return l.ID }
func (l *HexagonLayer) LayerKind() Kind { return l.Kind }

func (l *HexagonLayer) primitive(index int) (Primitive, bool) {
	if index < 0 || index >= len(l.Cells) {
		return Primitive{}, false
	}
	c := l.Cells[index]
	return Primitive{Kind: l.Kind, Records: c.Points, Position: c.Position}, true
}

// Marker is one severity-styled point.
type Marker struct {
	ID           string          `json:"id"`
	Position     [2]float64      `json:"position"`
	RadiusPixels float64         `json:"radius_pixels"`
	FillColor    Color           `json:"fill_color"`
	LineColor    Color           `json:"line_color"`
	Severity     domain.Severity `json:"severity"`
	Label        string          `json:"label,omitempty"`

	record domain.GeoRecord
}

// MarkerLayer renders discrete records colored and sized by severity.
type MarkerLayer struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"kind"`
	Pickable bool     `json:"pickable"`
	Markers  []Marker `json:"markers"`
}

func (l *MarkerLayer) LayerID() string { return l.ID }
func (l *MarkerLayer) LayerKind() Kind { return l.Kind }

func (l *MarkerLayer) primitive(index int) (Primitive, bool) {
	if index < 0 || index >= len(l.Markers) {
		return Primitive{}, false
	}
	m := l.Markers[index]
	return Primitive{Kind: l.Kind, Records: []domain.GeoRecord{m.record}, Position: m.Position, Label: m.Label}, true
}

// Icon describes the pin glyph.
type Icon struct {
	URL     string `json:"url"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	AnchorY int    `json:"anchor_y"`
}

// PinLayer shows the last resolved search result.
type PinLayer struct {
	ID       string     `json:"id"`
	Kind     Kind       `json:"kind"`
	Icon     Icon       `json:"icon"`
	Size     int        `json:"size"`
	Position [2]float64 `json:"position"`
	Label    string     `json:"label,omitempty"`
	Pickable bool       `json:"pickable"`
}

func (l *PinLayer) LayerID() string { return l.ID }
func (l *PinLayer) LayerKind() Kind { return l.Kind }

func (l *PinLayer) primitive(index int) (Primitive, bool) {
	if index != 0 {
		return Primitive{}, false
	}
	return Primitive{Kind: l.Kind, Position: l.Position, Label: l.Label}, true
}

// LayerSet is an ordered, immutable list of layers built for one composition
// token. DataToken is the refresh token of the records it was built from.
type LayerSet struct {
	Token       uint64    `json:"token"`
	DataToken   uint64    `json:"data_token"`
	Layers      []Layer   `json:"layers"`
	RecordCount int       `json:"record_count"`
	BuiltAt     time.Time `json:"built_at"`
}

// IDs lists layer identifiers in render order.
func (s *LayerSet) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, len(s.Layers))
	for i, l := range s.Layers {
		ids[i] = l.LayerID()
	}
	return ids
}

// Layer finds a layer by id.
func (s *LayerSet) Layer(id string) (Layer, bool) {
	if s == nil {
		return nil, false
	}
	for _, l := range s.Layers {
		if l.LayerID() == id {
			return l, true
		}
	}
	return nil, false
}

// Lookup resolves a picked object. Ids from an older token never match, so
// picks against stale layers resolve to nothing.
func (s *LayerSet) Lookup(layerID string, index int) (Primitive, bool) {
	l, ok := s.Layer(layerID)
	if !ok {
		return Primitive{}, false
	}
	return l.primitive(index)
}
