// Package client is a small HTTP client for the prediction API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/matchcast/internal/domain/types"
)

const (
	defaultTimeout  = 30 * time.Second
	requestIDHeader = "X-Request-ID"
	maxErrorBody    = 4 << 10
)

var (
	ErrBaseURL = errors.New("base url is required")
	ErrTeam    = errors.New("team is required")
)

// APIError is a non-2xx answer from the service.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client calls the prediction API.
type Client struct {
	baseURL   string
	http      *http.Client
	requestID func() string
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrBaseURL
	}
	c := &Client{
		baseURL:   baseURL,
		http:      &http.Client{Timeout: defaultTimeout},
		requestID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Predict returns the prediction report for team.
func (c *Client) Predict(ctx context.Context, team string) (types.Report, error) {
	var report types.Report
	if strings.TrimSpace(team) == "" {
		return report, ErrTeam
	}
	body, err := json.Marshal(map[string]string{"team": team})
	if err != nil {
		return report, fmt.Errorf("encode request: %w", err)
	}
	err = c.do(ctx, http.MethodPost, "/predict", body, &report)
	return report, err
}

// Teams lists the teams the model can predict.
func (c *Client) Teams(ctx context.Context) ([]string, error) {
	var resp struct {
		Teams []string `json:"teams"`
	}
	if err := c.do(ctx, http.MethodGet, "/teams", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Teams, nil
}

// Stats returns the service statistics document.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	var stats map[string]any
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	id := c.requestID()
	req.Header.Set(requestIDHeader, id)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, RequestID: resp.Header.Get(requestIDHeader)}
		if apiErr.RequestID == "" {
			apiErr.RequestID = id
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var payload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &payload) == nil {
			apiErr.Code, apiErr.Message = payload.Code, payload.Message
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
