package domain

import (
	"strings"
	"time"
)

// Severity is the three-tier urgency attached to service requests.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
	SeverityNone   Severity = ""
)

// ParseSeverity normalizes a feed severity string. Unknown values map to SeverityNone.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	case SeverityLow:
		return SeverityLow
	default:
		return SeverityNone
	}
}

// GeoRecord is a single validated issue report. Values are immutable once
// produced by Normalize; refreshes replace whole record sets instead of
// mutating records.
type GeoRecord struct {
	ID           string   `json:"id"`
	Label        string   `json:"label,omitempty"`
	Description  string   `json:"description,omitempty"`
	Severity     Severity `json:"severity,omitempty"`
	Category     string   `json:"category,omitempty"`
	Topic        string   `json:"topic,omitempty"`
	Longitude    float64  `json:"lon"`
	Latitude     float64  `json:"lat"`
	Neighborhood string   `json:"neighborhood,omitempty"`
	Author       string   `json:"author,omitempty"`

	// Weight is the explicit intensity supplied by the feed. HasWeight is false
	// when the feed gave none (or gave zero), and the layer builder derives one.
	Weight    float64 `json:"weight,omitempty"`
	HasWeight bool    `json:"-"`

	// GeneratedID marks an ID synthesized from the coordinate and feed
	// position because the feed supplied none.
	GeneratedID bool `json:"-"`
}

// RecordSet is one complete, immutable snapshot of the working set. The refresh
// loop publishes a new *RecordSet per successful poll; consumers compare by
// pointer identity.
type RecordSet struct {
	Records   []GeoRecord    `json:"records"`
	Topic     string         `json:"topic"`
	Token     uint64         `json:"token"`
	Kept      int            `json:"kept"`
	Dropped   int            `json:"dropped"`
	Reasons   map[string]int `json:"drop_reasons,omitempty"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// Len returns the number of records, tolerating a nil set.
func (s *RecordSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// SearchMarker is the single pin dropped on the last resolved search result.
type SearchMarker struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Label     string  `json:"label,omitempty"`
}
