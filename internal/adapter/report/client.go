// Package report calls the report-generation collaborator that turns a
// location into a summary with problem and solution pairs. Responses are
// passed through untouched.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrInvalidLevel    = errors.New("level must be county, city or neighborhood")
	ErrMissingLocation = errors.New("location is required")
	ErrMissingProblem  = errors.New("problem id is required")
)

// Level is the geographic granularity of a report.
type Level string

const (
	LevelCounty       Level = "county"
	LevelCity         Level = "city"
	LevelNeighborhood Level = "neighborhood"
)

// ParseLevel validates a report level.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelCounty, LevelCity, LevelNeighborhood:
		return l, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
}

// StatusError is returned when the collaborator answers with a non-2xx status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("report api status %d: %s", e.Status, e.Body)
}

// Client is an HTTP client for the report API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a report client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Generate requests a report for location at the given level.
func (c *Client) Generate(ctx context.Context, location string, level Level) (json.RawMessage, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, ErrMissingLocation
	}
	if _, err := ParseLevel(string(level)); err != nil {
		return nil, err
	}
	params := url.Values{
		"location": {location},
		"level":    {string(level)},
	}
	c.logger.Info("generating report", "location", location, "level", level)
	return c.get(ctx, "/reports/generate-report", params)
}

// SolutionDetails fetches the expanded solution for a single problem.
func (c *Client) SolutionDetails(ctx context.Context, problemID string) (json.RawMessage, error) {
	problemID = strings.TrimSpace(problemID)
	if problemID == "" {
		return nil, ErrMissingProblem
	}
	return c.get(ctx, "/reports/solution-details", url.Values{"problem_id": {problemID}})
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("report request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read report response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if !json.Valid(body) {
		return nil, errors.New("report api returned invalid json")
	}
	return json.RawMessage(body), nil
}
