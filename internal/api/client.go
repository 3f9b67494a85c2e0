package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"jellywatch/internal/services/jellyfin"
	"jellywatch/internal/settings"
)

const defaultClientTimeout = 30 * time.Second

// Client provides HTTP access to a running daemon.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d", e.StatusCode)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// NewClient returns a client for the daemon listening at baseURL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: defaultClientTimeout},
	}
}

// BaseURL reports the daemon address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var resp DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp)
	return resp, err
}

// Jobs retrieves the scheduled job table.
func (c *Client) Jobs(ctx context.Context) (JobsResponse, error) {
	var resp JobsResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &resp)
	return resp, err
}

// Service retrieves the stored service settings with the API key masked.
func (c *Client) Service(ctx context.Context) (ServiceSettings, error) {
	var resp ServiceSettings
	err := c.do(ctx, http.MethodGet, "/api/settings/service", nil, &resp)
	return resp, err
}

// SaveService stores service settings; the daemon rebuilds its job table.
func (c *Client) SaveService(ctx context.Context, req ServiceRequest) (ServiceSettings, error) {
	var resp ServiceSettings
	err := c.do(ctx, http.MethodPut, "/api/settings/service", req, &resp)
	return resp, err
}

// DatabaseHealth retrieves settings database diagnostics. A failed check
// surfaces as a *StatusError with status 503.
func (c *Client) DatabaseHealth(ctx context.Context) (settings.DatabaseHealth, error) {
	var resp settings.DatabaseHealth
	err := c.do(ctx, http.MethodGet, "/api/health/database", nil, &resp)
	return resp, err
}

// SyncNow triggers an immediate library sync.
func (c *Client) SyncNow(ctx context.Context) (SyncNowResponse, error) {
	var resp SyncNowResponse
	err := c.do(ctx, http.MethodPost, "/services/sync-now", nil, &resp)
	return resp, err
}

// Libraries retrieves the library list.
func (c *Client) Libraries(ctx context.Context) ([]jellyfin.Library, error) {
	var resp []jellyfin.Library
	err := c.do(ctx, http.MethodGet, "/dashboard/libraries", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect to daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &payload)
		return &StatusError{StatusCode: resp.StatusCode, Message: payload.Error}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsUnauthorized reports whether err is a 401 from the daemon.
func IsUnauthorized(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized
}
