// Package domain models geocoded civic issue reports: social-media mentions and
// municipal service requests pinned to a map.
//
// # Feed Records
//
// The upstream feed is loosely validated. Each element of the JSON array is one
// of two shapes:
//
//	[-122.4194, 37.7749, 3]                         tuple: lon, lat, weight
//	{"lon": -122.4194, "lat": 37.7749, "author": …} object with named fields
//
// Objects may also spell coordinates as lng/longitude/latitude, or carry a
// GeoJSON-style "coordinates": [lon, lat] pair (311 service requests). Numbers
// may arrive as JSON strings. [RawRecord] captures the shape once at decode time
// and [Normalize] converts it to the canonical [GeoRecord].
//
// # Coordinate Rules
//
// A record is renderable only if longitude and latitude both parse as finite
// numbers, neither is exactly zero, and they lie within |lat| ≤ 90 and
// |lon| ≤ 180. Zero is the feed's sentinel for "not geocoded"; -0 counts as
// zero. Rejected records are counted per reason in [ValidationResult], never
// silently discarded.
//
// # Severity
//
// Service requests carry a three-tier severity (high, medium, low). Anything
// else normalizes to [SeverityNone], which keeps the record in density layers
// but excludes it from severity markers.
//
// # Identity
//
// Records without an id receive "geo-<geohash>-<index>", where the geohash has
// nine characters (≈5 m cells) and index is the position in the feed response.
package domain
