package mapbox

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

// DefaultBaseURL is the Mapbox places geocoding endpoint.
const DefaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

const provider = "mapbox"

// Client implements domain.Suggester using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	limit      int
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox autocomplete client. An empty baseURL uses
// DefaultBaseURL.
func NewClient(token, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		limit:   5,
		metrics: metrics,
		logger:  logger,
	}
}

// Autocomplete returns place candidates for partial text.
func (c *Client) Autocomplete(ctx context.Context, text string) ([]domain.Suggestion, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(text))
	params := url.Values{
		"access_token": {c.token},
		"autocomplete": {"true"},
		"limit":        {fmt.Sprint(c.limit)},
		"types":        {"place,locality,neighborhood,address,poi"},
	}

	start := time.Now()
	suggestions, err := c.doRequest(ctx, u+"?"+params.Encode())
	c.metrics.GeocodeAPIDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues(provider, "error").Inc()
		return nil, err
	case len(suggestions) == 0:
		c.metrics.GeocodeRequests.WithLabelValues(provider, "empty").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues(provider, "success").Inc()
	}
	c.logger.Debug("mapbox autocomplete", "text", text, "results", len(suggestions))
	return suggestions, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.Suggestion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("autocomplete request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([]domain.Suggestion, 0, len(mapboxResp.Features))
	for _, f := range mapboxResp.Features {
		if len(f.Center) != 2 {
			continue
		}
		s := domain.Suggestion{
			PlaceID:   f.ID,
			Name:      f.Text,
			Longitude: f.Center[0],
			Latitude:  f.Center[1],
		}
		for _, ctxItem := range f.Context {
			switch strings.SplitN(ctxItem.ID, ".", 2)[0] {
			case "place":
				s.City = ctxItem.Text
			case "region":
				s.Region = ctxItem.Text
			case "country":
				s.Country = ctxItem.Text
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID        string        `json:"id"`
	Center    []float64     `json:"center"` // [lon, lat]
	PlaceName string        `json:"place_name"`
	Text      string        `json:"text"`
	Relevance float64       `json:"relevance"`
	Context   []contextItem `json:"context"`
}

type contextItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
