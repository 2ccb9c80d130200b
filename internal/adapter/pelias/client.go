// Package pelias is an autocomplete client for Pelias-compatible geocoders
// such as geocode.earth.
package pelias

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/civic-hotspot-service/internal/domain"
	"github.com/couchcryptid/civic-hotspot-service/internal/observability"
)

// DefaultBaseURL is the hosted geocode.earth API.
const DefaultBaseURL = "https://api.geocode.earth"

const provider = "pelias"

// Client implements domain.Suggester against /v1/autocomplete.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Pelias client. An empty baseURL uses DefaultBaseURL.
func NewClient(apiKey, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		metrics:    metrics,
		logger:     logger,
	}
}

// Autocomplete returns place candidates for partial text.
func (c *Client) Autocomplete(ctx context.Context, text string) ([]domain.Suggestion, error) {
	params := url.Values{
		"api_key": {c.apiKey},
		"text":    {text},
	}
	fullURL := c.baseURL + "/v1/autocomplete?" + params.Encode()

	start := time.Now()
	out, err := c.get(ctx, fullURL)
	c.metrics.GeocodeAPIDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues(provider, "error").Inc()
		return nil, err
	case len(out) == 0:
		c.metrics.GeocodeRequests.WithLabelValues(provider, "empty").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues(provider, "success").Inc()
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, fullURL string) ([]domain.Suggestion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("autocomplete request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pelias API error: status %d: %s", resp.StatusCode, body)
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([]domain.Suggestion, 0, len(fc.Features))
	for _, f := range fc.Features {
		var point []float64
		if f.Geometry.Type != "Point" || json.Unmarshal(f.Geometry.Coordinates, &point) != nil || len(point) != 2 {
			c.logger.Debug("skipping feature without point geometry", "id", f.Properties.ID)
			continue
		}
		out = append(out, domain.Suggestion{
			PlaceID:   f.Properties.ID,
			Name:      f.Properties.Name,
			City:      f.Properties.Locality,
			Region:    f.Properties.Region,
			Country:   f.Properties.Country,
			Longitude: point[0],
			Latitude:  point[1],
		})
	}
	return out, nil
}

// GeoJSON response types.

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Properties properties `json:"properties"`
	Geometry   geometry   `json:"geometry"`
}

type properties struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Locality string `json:"locality"`
	Region   string `json:"region"`
	Country  string `json:"country"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"` // [lon, lat] for points
}
