package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	geohash "github.com/TomiHiltunen/geohash-golang"
)

var (
	ErrUnsupportedShape     = errors.New("record is neither a tuple nor an object")
	ErrMissingCoordinate    = errors.New("record has no coordinate pair")
	ErrNonNumericCoordinate = errors.New("coordinate is not a finite number")
	ErrZeroCoordinate       = errors.New("coordinate is zero")
	ErrOutOfBounds          = errors.New("coordinate is outside geographic bounds")
)

// RecordShape tags which wire form a RawRecord arrived in.
type RecordShape int

const (
	ShapeUnknown RecordShape = iota
	ShapeTuple
	ShapeObject
)

// RawRecord is one undecoded feed element. Decoding never fails on a bad
// element so a single malformed entry cannot poison the whole response; the
// rejection happens in Normalize where it is counted.
type RawRecord struct {
	Shape  RecordShape
	Tuple  []json.RawMessage
	Object map[string]json.RawMessage
}

// UnmarshalJSON tags the record as tuple or object.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*r = RawRecord{}
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '[':
		var tuple []json.RawMessage
		if err := json.Unmarshal(trimmed, &tuple); err == nil {
			r.Shape = ShapeTuple
			r.Tuple = tuple
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err == nil {
			r.Shape = ShapeObject
			r.Object = obj
		}
	}
	return nil
}

// MarshalJSON writes the record back in its original shape.
func (r RawRecord) MarshalJSON() ([]byte, error) {
	switch r.Shape {
	case ShapeTuple:
		return json.Marshal(r.Tuple)
	case ShapeObject:
		return json.Marshal(r.Object)
	default:
		return []byte("null"), nil
	}
}

// TupleRecord builds a [lon, lat, weight] record.
func TupleRecord(lon, lat, weight float64) RawRecord {
	return RawRecord{Shape: ShapeTuple, Tuple: []json.RawMessage{number(lon), number(lat), number(weight)}}
}

// ObjectRecord builds an object record from arbitrary field values.
func ObjectRecord(fields map[string]any) RawRecord {
	obj := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		obj[k] = b
	}
	return RawRecord{Shape: ShapeObject, Object: obj}
}

func number(v float64) json.RawMessage {
	return json.RawMessage(strconv.FormatFloat(v, 'g', -1, 64))
}

// Normalize validates a raw record and converts it into a GeoRecord. index is
// the record's position in the feed response and seeds fallback identifiers.
func Normalize(raw RawRecord, index int) (GeoRecord, error) {
	switch raw.Shape {
	case ShapeTuple:
		return normalizeTuple(raw.Tuple, index)
	case ShapeObject:
		return normalizeObject(raw.Object, index)
	default:
		return GeoRecord{}, ErrUnsupportedShape
	}
}

func normalizeTuple(t []json.RawMessage, index int) (GeoRecord, error) {
	if len(t) < 2 {
		return GeoRecord{}, ErrMissingCoordinate
	}
	lon, lat, err := parsePair(t[0], t[1])
	if err != nil {
		return GeoRecord{}, err
	}
	rec := GeoRecord{Longitude: lon, Latitude: lat}
	if len(t) > 2 {
		rec.Weight, rec.HasWeight = parseWeight(t[2])
	}
	rec.ID, rec.GeneratedID = fallbackID(lat, lon, index), true
	return rec, nil
}

func normalizeObject(obj map[string]json.RawMessage, index int) (GeoRecord, error) {
	lonRaw, hasLon := firstField(obj, "lon", "lng", "longitude")
	latRaw, hasLat := firstField(obj, "lat", "latitude")

	var lon, lat float64
	var err error
	switch {
	case hasLon && hasLat:
		lon, lat, err = parsePair(lonRaw, latRaw)
	case !hasLon && !hasLat:
		lon, lat, err = parseCoordinatesField(obj)
	default:
		err = ErrMissingCoordinate
	}
	if err != nil {
		return GeoRecord{}, err
	}

	rec := GeoRecord{
		ID:           stringField(obj, "id", "offense_id"),
		Label:        stringField(obj, "text", "title", "label", "offense_type"),
		Description:  stringField(obj, "description"),
		Severity:     ParseSeverity(stringField(obj, "severity")),
		Category:     stringField(obj, "source", "category"),
		Topic:        stringField(obj, "topic"),
		Longitude:    lon,
		Latitude:     lat,
		Neighborhood: stringField(obj, "neighborhood"),
		Author:       stringField(obj, "author"),
	}
	if w, ok := firstField(obj, "weight", "intensity", "count"); ok {
		rec.Weight, rec.HasWeight = parseWeight(w)
	}
	if rec.ID == "" {
		rec.ID, rec.GeneratedID = fallbackID(lat, lon, index), true
	}
	return rec, nil
}

// parseCoordinatesField reads a GeoJSON-style "coordinates": [lon, lat] pair.
func parseCoordinatesField(obj map[string]json.RawMessage) (float64, float64, error) {
	raw, ok := obj["coordinates"]
	if !ok {
		return 0, 0, ErrMissingCoordinate
	}
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair) < 2 {
		return 0, 0, ErrMissingCoordinate
	}
	return parsePair(pair[0], pair[1])
}

func parsePair(lonRaw, latRaw json.RawMessage) (float64, float64, error) {
	lon, err := parseNumber(lonRaw)
	if err != nil {
		return 0, 0, fmt.Errorf("longitude: %w", err)
	}
	lat, err := parseNumber(latRaw)
	if err != nil {
		return 0, 0, fmt.Errorf("latitude: %w", err)
	}
	if err := CheckCoordinate(lon, lat); err != nil {
		return 0, 0, err
	}
	return lon, lat, nil
}

// CheckCoordinate applies the renderability rule to a parsed pair.
func CheckCoordinate(lon, lat float64) error {
	if !isFinite(lon) || !isFinite(lat) {
		return ErrNonNumericCoordinate
	}
	if lon == 0 || lat == 0 {
		return ErrZeroCoordinate
	}
	if math.Abs(lat) > 90 || math.Abs(lon) > 180 {
		return ErrOutOfBounds
	}
	return nil
}

// parseNumber accepts a JSON number or a numeric JSON string.
func parseNumber(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, ErrMissingCoordinate
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, ErrNonNumericCoordinate
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || !isFinite(v) {
			return 0, ErrNonNumericCoordinate
		}
		return v, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, ErrNonNumericCoordinate
	}
	return v, nil
}

// parseWeight returns the explicit weight when it is a positive finite number.
func parseWeight(raw json.RawMessage) (float64, bool) {
	v, err := parseNumber(raw)
	if err != nil || !isFinite(v) || v <= 0 {
		return 0, false
	}
	return v, true
}

func firstField(obj map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return v, true
		}
	}
	return nil, false
}

// stringField returns the first present key as text. Numbers are kept in their
// literal form so numeric ids survive.
func stringField(obj map[string]json.RawMessage, keys ...string) string {
	raw, ok := firstField(obj, keys...)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && (trimmed[0] == '-' || (trimmed[0] >= '0' && trimmed[0] <= '9')) {
		return string(trimmed)
	}
	return ""
}

func fallbackID(lat, lon float64, index int) string {
	return fmt.Sprintf("%s-%d", cellKey(lat, lon), index)
}

func cellKey(lat, lon float64) string {
	return "geo-" + geohash.EncodeWithPrecision(lat, lon, 9)
}

// ContentKey identifies a record by what it says rather than where it sits in
// the feed: the author, then a feed-supplied id, then the label, then the
// coordinate's geohash cell. It does not change when the feed is reordered.
func (r GeoRecord) ContentKey() string {
	switch {
	case r.Author != "":
		return r.Author
	case r.ID != "" && !r.GeneratedID:
		return r.ID
	case r.Label != "":
		return r.Label
	default:
		return cellKey(r.Latitude, r.Longitude)
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
