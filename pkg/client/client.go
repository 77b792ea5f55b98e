package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// Client provides HTTP client functionality to communicate with a running
// tracecap daemon. It is also the instrumentation entry point: external
// code calls Submit to capture one record.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL string        // e.g. http://127.0.0.1:7070
	Timeout time.Duration // request timeout (default 10s)
	Logger  *slog.Logger  // optional logger for client operations
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:7070",
		Timeout: 10 * time.Second,
	}
}

// New creates a new tracecap API client.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:7070"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: config.BaseURL,
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// IsReachable checks if the daemon is running and reachable.
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("daemon unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Submit captures one record. data may be any JSON-serializable value;
// an empty label is recorded as "unknown" by the daemon.
func (c *Client) Submit(ctx context.Context, label string, data any) error {
	payload := map[string]any{}
	if label != "" {
		payload["label"] = label
	}
	if data != nil {
		payload["data"] = data
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	return c.doJSON(ctx, http.MethodPost, c.baseURL+"/log", b, nil)
}

// Status returns the daemon's state snapshot.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/api/status", nil, &st)
	return st, err
}

// ReadLogs returns captured records; a positive tail limits the result
// to the last tail records.
func (c *Client) ReadLogs(ctx context.Context, tail int) ([]Record, error) {
	u := c.baseURL + "/api/logs"
	if tail > 0 {
		u += "?tail=" + strconv.Itoa(tail)
	}
	var recs []Record
	err := c.doJSON(ctx, http.MethodGet, u, nil, &recs)
	return recs, err
}

// ClearLogs truncates the daemon's capture log.
func (c *Client) ClearLogs(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, c.baseURL+"/api/clear", nil, nil)
}

// Stop asks the daemon to shut down.
func (c *Client) Stop(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, c.baseURL+"/api/stop", nil, nil)
}

// doJSON performs a request with common error handling, decoding the
// response into out when non-nil.
func (c *Client) doJSON(ctx context.Context, method, url string, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "url", url, "error", err)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error == "" {
			return fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return fmt.Errorf("API error: %s", errResp.Error)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
