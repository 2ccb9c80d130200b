package domain

import "errors"

// Drop reasons reported in ValidationResult.Reasons and as metric labels.
const (
	ReasonUnsupportedShape  = "unsupported_shape"
	ReasonMissingCoordinate = "missing_coordinate"
	ReasonNonNumeric        = "non_numeric"
	ReasonZeroCoordinate    = "zero_coordinate"
	ReasonOutOfBounds       = "out_of_bounds"
)

// ValidationResult is the outcome of validating one feed response.
// Dropped always equals input count minus len(Records).
type ValidationResult struct {
	Records []GeoRecord
	Kept    int
	Dropped int
	Reasons map[string]int
}

// ValidateBatch normalizes every raw record, keeping the valid ones in input
// order and counting rejections by reason.
func ValidateBatch(raws []RawRecord) ValidationResult {
	res := ValidationResult{
		Records: make([]GeoRecord, 0, len(raws)),
		Reasons: make(map[string]int),
	}
	for i, raw := range raws {
		rec, err := Normalize(raw, i)
		if err != nil {
			res.Dropped++
			res.Reasons[DropReason(err)]++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	res.Kept = len(res.Records)
	return res
}

// DropReason maps a Normalize error to its reason label.
func DropReason(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedShape):
		return ReasonUnsupportedShape
	case errors.Is(err, ErrMissingCoordinate):
		return ReasonMissingCoordinate
	case errors.Is(err, ErrZeroCoordinate):
		return ReasonZeroCoordinate
	case errors.Is(err, ErrOutOfBounds):
		return ReasonOutOfBounds
	default:
		return ReasonNonNumeric
	}
}
