package domain

import "context"

// Suggestion is one autocomplete candidate returned by a geocoding provider.
type Suggestion struct {
	PlaceID   string  `json:"place_id"`
	Name      string  `json:"name"`
	City      string  `json:"city,omitempty"`
	Region    string  `json:"region,omitempty"`
	Country   string  `json:"country,omitempty"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Suggester resolves partial free text to place candidates.
type Suggester interface {
	Autocomplete(ctx context.Context, text string) ([]Suggestion, error)
}
