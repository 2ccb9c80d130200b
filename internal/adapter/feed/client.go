// Package feed fetches the topic-scoped issue feed polled by the refresh loop.
package feed

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
)

// maxBodyBytes caps a single feed response.
const maxBodyBytes = 32 << 20

// Client implements refresh.Source over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a feed client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// URL returns the request URL for a topic. An empty topic selects all topics.
func (c *Client) URL(topic string) string {
	if topic == "" {
		return c.baseURL
	}
	return c.baseURL + "/" + url.PathEscape(topic)
}

// Fetch downloads the feed for topic. Individual elements are not validated
// here; a body that is not a JSON array is an error.
func (c *Client) Fetch(ctx context.Context, topic string) ([]domain.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(topic), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var raws []domain.RawRecord
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&raws); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	c.logger.Debug("feed fetched", "topic", topic, "records", len(raws))
	return raws, nil
}
