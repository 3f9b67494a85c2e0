package jellyfin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"jellywatch/internal/logging"
	"jellywatch/internal/metrics"
)

// Fixed endpoint paths.
const (
	PathItemCounts   = "/Items/Counts"
	PathUsers        = "/Users"
	PathMediaAdded   = "/Library/MediaAdded"
	PathMediaRemoved = "/Library/MediaRemoved"
	PathSessions     = "/Sessions"
	PathTranscoding  = "/Transcoding"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 16 << 20
	maxErrorBody   = 512
)

// HTTPDoer describes the HTTP client used by the Jellyfin client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues authenticated GET requests against one Jellyfin server.
type Client struct {
	baseURL string
	apiKey  string
	http    HTTPDoer
	limiter *rate.Limiter
	breaker *Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithTimeout bounds each request when the default *http.Client is used.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http = &http.Client{Timeout: timeout}
		}
	}
}

// WithLimiter waits on limiter before every request.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) { c.limiter = limiter }
}

// WithBreaker routes every request through breaker.
func WithBreaker(breaker *Breaker) Option {
	return func(c *Client) { c.breaker = breaker }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records request counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New builds a client for baseURL authenticated with apiKey.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "jellyfin")
	return c
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Get fetches path and returns the raw JSON body of a 200 response.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	endpoint := endpointLabel(path)
	start := time.Now()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.metrics.ObserveJellyfinRequest(endpoint, metrics.OutcomeReject, time.Since(start))
			return nil, &TransportError{Path: path, Err: fmt.Errorf("rate limit wait: %w", err)}
		}
	}

	body, err := c.breaker.execute(func() ([]byte, error) {
		return c.do(ctx, path)
	})
	elapsed := time.Since(start)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, ErrCircuitOpen) {
			outcome = metrics.OutcomeReject
		}
		c.metrics.ObserveJellyfinRequest(endpoint, outcome, elapsed)
		logging.WithContext(ctx, c.logger).Debug("jellyfin request failed",
			logging.String("path", path),
			logging.Duration("elapsed", elapsed),
			logging.Error(err),
		)
		return nil, err
	}
	c.metrics.ObserveJellyfinRequest(endpoint, metrics.OutcomeSuccess, elapsed)
	logging.WithContext(ctx, c.logger).Debug("jellyfin request complete",
		logging.String("path", path),
		logging.Duration("elapsed", elapsed),
		logging.Int("bytes", len(body)),
	)
	return json.RawMessage(body), nil
}

func (c *Client) do(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, &TransportError{Path: path, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{Path: path, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Path: path, StatusCode: resp.StatusCode, Body: truncate(strings.TrimSpace(string(body)), maxErrorBody)}
	}
	if !json.Valid(body) {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("invalid JSON body (%d bytes)", len(body))}
	}
	return body, nil
}

func (c *Client) getInto(ctx context.Context, path string, dest any) error {
	raw, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}

// ItemCounts fetches library item totals.
func (c *Client) ItemCounts(ctx context.Context) (ItemCounts, error) {
	var counts ItemCounts
	if err := c.getInto(ctx, PathItemCounts, &counts); err != nil {
		return ItemCounts{}, err
	}
	return counts, nil
}

// Users lists server users.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.getInto(ctx, PathUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Views lists the library views visible to userID.
func (c *Client) Views(ctx context.Context, userID string) ([]Library, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("jellyfin views: user id is required")
	}
	var resp viewsResponse
	if err := c.getInto(ctx, PathUsers+"/"+url.PathEscape(userID)+"/Views", &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Libraries lists the views of the first user. It fails with ErrNoUsers,
// without calling the views endpoint, when the server reports no users.
func (c *Client) Libraries(ctx context.Context) ([]Library, error) {
	users, err := c.Users(ctx)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNoUsers
	}
	return c.Views(ctx, users[0].ID)
}

// MediaAdded returns the raw media-added feed.
func (c *Client) MediaAdded(ctx context.Context) (json.RawMessage, error) {
	return c.Get(ctx, PathMediaAdded)
}

// MediaRemoved returns the raw media-removed feed.
func (c *Client) MediaRemoved(ctx context.Context) (json.RawMessage, error) {
	return c.Get(ctx, PathMediaRemoved)
}

// Sessions returns the raw active session list.
func (c *Client) Sessions(ctx context.Context) (json.RawMessage, error) {
	return c.Get(ctx, PathSessions)
}

// Transcoding returns the raw transcoding status.
func (c *Client) Transcoding(ctx context.Context) (json.RawMessage, error) {
	return c.Get(ctx, PathTranscoding)
}

func endpointLabel(path string) string {
	switch {
	case path == PathItemCounts:
		return "item_counts"
	case path == PathUsers:
		return "users"
	case strings.HasPrefix(path, PathUsers+"/") && strings.HasSuffix(path, "/Views"):
		return "views"
	case path == PathMediaAdded:
		return "media_added"
	case path == PathMediaRemoved:
		return "media_removed"
	case path == PathSessions:
		return "sessions"
	case path == PathTranscoding:
		return "transcoding"
	default:
		return "other"
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
