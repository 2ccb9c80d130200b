package layers

import (
	"fmt"
	"math"

	"github.com/couchcryptid/civic-hotspot-service/internal/domain"
)

const (
	earthRadius = 6378137.0 // WGS-84 semi-major axis, meters
	maxMercLat  = 85.051129
)

// HexCell is one populated hexagon of the density layer.
type HexCell struct {
	ID             string       `json:"id"` // axial "q,r"
	Index          int          `json:"index"`
	Position       [2]float64   `json:"position"` // centroid lon, lat
	Polygon        [][2]float64 `json:"polygon"`  // six vertices scaled by coverage
	Count          int          `json:"count"`
	ElevationValue float64      `json:"elevation_value"`
	ColorValue     float64      `json:"color_value"`
	Elevation      float64      `json:"elevation"`
	Color          Color        `json:"color"`

	// Points are the records in the cell, in feed order.
	Points []domain.GeoRecord `json:"-"`
}

type axial struct{ q, r int }

// hexGrid bins points on a pointy-top axial grid laid over Web Mercator. The
// cell size is corrected by the mean latitude of the input so the requested
// ground radius holds near the data.
type hexGrid struct {
	radius float64 // mercator units
}

func newHexGrid(groundRadius float64, records []domain.GeoRecord) hexGrid {
	var latSum float64
	for _, r := range records {
		latSum += clampLat(r.Latitude)
	}
	refLat := 0.0
	if len(records) > 0 {
		refLat = latSum / float64(len(records))
	}
	return hexGrid{radius: groundRadius / math.Cos(refLat*math.Pi/180)}
}

func (g hexGrid) cellOf(lon, lat float64) axial {
	x, y := project(lon, lat)
	qf := (math.Sqrt(3)/3*x - y/3) / g.radius
	rf := (2.0 / 3.0 * y) / g.radius
	return hexRound(qf, rf)
}

func (g hexGrid) center(c axial) (float64, float64) {
	x := g.radius * math.Sqrt(3) * (float64(c.q) + float64(c.r)/2)
	y := g.radius * 1.5 * float64(c.r)
	return unproject(x, y)
}

func (g hexGrid) polygon(c axial, coverage float64) [][2]float64 {
	cx := g.radius * math.Sqrt(3) * (float64(c.q) + float64(c.r)/2)
	cy := g.radius * 1.5 * float64(c.r)
	size := g.radius * coverage
	out := make([][2]float64, 6)
	for i := range out {
		angle := (60*float64(i) - 30) * math.Pi / 180
		lon, lat := unproject(cx+size*math.Cos(angle), cy+size*math.Sin(angle))
		out[i] = [2]float64{lon, lat}
	}
	return out
}

// bin groups records by cell, preserving first-seen cell order and feed order
// inside each cell so output is identical for identical input.
func (g hexGrid) bin(records []domain.GeoRecord) ([]axial, map[axial][]domain.GeoRecord) {
	order := make([]axial, 0)
	cells := make(map[axial][]domain.GeoRecord)
	for _, rec := range records {
		c := g.cellOf(rec.Longitude, rec.Latitude)
		if _, ok := cells[c]; !ok {
			order = append(order, c)
		}
		cells[c] = append(cells[c], rec)
	}
	return order, cells
}

func hexRound(qf, rf float64) axial {
	sf := -qf - rf
	q, r, s := math.Round(qf), math.Round(rf), math.Round(sf)
	dq, dr, ds := math.Abs(q-qf), math.Abs(r-rf), math.Abs(s-sf)
	switch {
	case dq > dr && dq > ds:
		q = -r - s
	case dr > ds:
		r = -q - s
	}
	return axial{q: int(q), r: int(r)}
}

func (c axial) id() string {
	return fmt.Sprintf("%d,%d", c.q, c.r)
}

func project(lon, lat float64) (float64, float64) {
	lat = clampLat(lat)
	x := earthRadius * lon * math.Pi / 180
	y := earthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return x, y
}

func unproject(x, y float64) (float64, float64) {
	lon := x / earthRadius * 180 / math.Pi
	lat := (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2) * 180 / math.Pi
	return lon, lat
}

func clampLat(lat float64) float64 {
	return math.Max(-maxMercLat, math.Min(maxMercLat, lat))
}
