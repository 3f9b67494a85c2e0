package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"jellywatch/internal/logging"
	"jellywatch/internal/metrics"
	"jellywatch/internal/scheduler"
	"jellywatch/internal/services"
	"jellywatch/internal/services/jellyfin"
	"jellywatch/internal/settings"
)

// DefaultJobTimeout bounds a scheduled run when none is configured.
const DefaultJobTimeout = time.Minute

const maxLoggedPayload = 2048

// SettingsReader loads the current service row.
type SettingsReader interface {
	Service(ctx context.Context) (settings.Service, error)
}

// Client is the subset of the Jellyfin client the callbacks use.
type Client interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	ItemCounts(ctx context.Context) (jellyfin.ItemCounts, error)
	Users(ctx context.Context) ([]jellyfin.User, error)
	Libraries(ctx context.Context) ([]jellyfin.Library, error)
}

// ClientFactory builds a client for the connection stored in svc.
type ClientFactory func(svc settings.Service) Client

// JellyfinFactory returns a factory producing *jellyfin.Client values with
// opts applied. Shared options (breaker, limiter) keep their state across
// settings changes.
func JellyfinFactory(opts ...jellyfin.Option) ClientFactory {
	return func(svc settings.Service) Client {
		return jellyfin.New(svc.JellyfinURL, svc.JellyfinAPIKey, opts...)
	}
}

var endpoints = map[settings.Monitor]string{
	settings.MonitorMediaAdded:    jellyfin.PathMediaAdded,
	settings.MonitorMediaRemoved:  jellyfin.PathMediaRemoved,
	settings.MonitorStreamStarted: jellyfin.PathSessions,
	settings.MonitorTranscoding:   jellyfin.PathTranscoding,
}

// Endpoint returns the path polled for m.
func Endpoint(m settings.Monitor) (string, bool) {
	path, ok := endpoints[m]
	return path, ok
}

// Result is the outcome of one monitor check.
type Result struct {
	Monitor   settings.Monitor `json:"monitor"`
	Skipped   bool             `json:"skipped"`
	Path      string           `json:"path,omitempty"`
	Items     int              `json:"items"`
	Payload   json.RawMessage  `json:"payload,omitempty"`
	CheckedAt time.Time        `json:"checked_at"`
}

// RunRecord summarizes the last run of a job.
type RunRecord struct {
	JobID    string        `json:"job_id"`
	At       time.Time     `json:"at"`
	Outcome  string        `json:"outcome"`
	Items    int           `json:"items"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Dashboard is the overview shown for a configured server.
type Dashboard struct {
	ServerURL string              `json:"server_url"`
	Counts    jellyfin.ItemCounts `json:"counts"`
	Users     []jellyfin.User     `json:"users"`
}

// Monitor runs the polling callbacks.
type Monitor struct {
	settings  SettingsReader
	newClient ClientFactory
	logger    *slog.Logger
	metrics   *metrics.Metrics
	timeout   time.Duration
	now       func() time.Time

	mu        sync.Mutex
	lastRuns  map[string]RunRecord
	libraries []jellyfin.Library
	syncedAt  time.Time
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger used by Job.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics records job outcomes.
func WithMetrics(mtr *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mtr }
}

// WithJobTimeout bounds each scheduled run.
func WithJobTimeout(timeout time.Duration) Option {
	return func(m *Monitor) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// New creates a Monitor reading settings from reader and building clients
// with factory.
func New(reader SettingsReader, factory ClientFactory, opts ...Option) *Monitor {
	m := &Monitor{
		settings:  reader,
		newClient: factory,
		logger:    logging.NewNop(),
		timeout:   DefaultJobTimeout,
		now:       time.Now,
		lastRuns:  make(map[string]RunRecord),
	}
	if m.newClient == nil {
		m.newClient = JellyfinFactory()
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "monitor")
	return m
}

func (m *Monitor) client(ctx context.Context) (Client, settings.Service, error) {
	svc, err := m.settings.Service(ctx)
	if err != nil {
		return nil, settings.Service{}, err
	}
	return m.newClient(svc), svc, nil
}

// Check polls the endpoint for mon. It returns settings.ErrNotConfigured when
// no service row exists and a skipped result when the monitor flag is off.
func (m *Monitor) Check(ctx context.Context, mon settings.Monitor) (Result, error) {
	path, ok := endpoints[mon]
	if !ok {
		return Result{}, services.Wrap(services.ErrValidation, "monitor", "check", fmt.Sprintf("unknown monitor %q", mon), nil)
	}
	svc, err := m.settings.Service(ctx)
	if err != nil {
		return Result{}, err
	}
	result := Result{Monitor: mon, Path: path, CheckedAt: m.now().UTC()}
	if !svc.Enabled(mon) {
		result.Skipped = true
		return result, nil
	}
	raw, err := m.newClient(svc).Get(ctx, path)
	if err != nil {
		return Result{}, err
	}
	result.Payload = raw
	result.Items = countItems(raw)
	return result, nil
}

// SyncLibraries lists the libraries of the first Jellyfin user and caches
// the result for LastLibraries.
func (m *Monitor) SyncLibraries(ctx context.Context) ([]jellyfin.Library, error) {
	client, _, err := m.client(ctx)
	if err != nil {
		return nil, err
	}
	libs, err := client.Libraries(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.libraries = append([]jellyfin.Library(nil), libs...)
	m.syncedAt = m.now().UTC()
	m.mu.Unlock()
	return libs, nil
}

// LastLibraries returns the most recent successful sync and when it ran.
func (m *Monitor) LastLibraries() ([]jellyfin.Library, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]jellyfin.Library(nil), m.libraries...), m.syncedAt
}

// Dashboard fetches item counts and users concurrently. A non-2xx answer
// from either endpoint leaves that half empty; transport and breaker
// failures fail the whole view.
func (m *Monitor) Dashboard(ctx context.Context) (Dashboard, error) {
	client, svc, err := m.client(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	dash := Dashboard{ServerURL: svc.JellyfinURL, Users: []jellyfin.User{}}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := client.ItemCounts(gctx)
		if err != nil {
			return m.dashboardFallback(gctx, jellyfin.PathItemCounts, err)
		}
		dash.Counts = counts
		return nil
	})
	g.Go(func() error {
		users, err := client.Users(gctx)
		if err != nil {
			return m.dashboardFallback(gctx, jellyfin.PathUsers, err)
		}
		if users != nil {
			dash.Users = users
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return dash, nil
}

func (m *Monitor) dashboardFallback(ctx context.Context, path string, err error) error {
	var statusErr *jellyfin.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}
	logging.WarnWithContext(logging.WithContext(ctx, m.logger), "dashboard section unavailable", "dashboard_partial",
		logging.String("path", path),
		logging.Int("status", statusErr.StatusCode),
	)
	return nil
}

// LastRuns returns the most recent run of every job that has fired.
func (m *Monitor) LastRuns() map[string]RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]RunRecord, len(m.lastRuns))
	for id, rec := range m.lastRuns {
		out[id] = rec
	}
	return out
}

// Job returns the scheduler callback for id. The callback runs under the
// configured timeout, logs the payload or the error, and records metrics.
func (m *Monitor) Job(id string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(services.WithJobID(context.Background(), id), m.timeout)
		defer cancel()
		m.run(ctx, id)
	}
}

func (m *Monitor) run(ctx context.Context, id string) {
	logger := logging.WithContext(ctx, m.logger)
	start := m.now()

	var (
		items   int
		payload json.RawMessage
		skipped bool
		err     error
	)
	if id == scheduler.SyncLibrariesID {
		var libs []jellyfin.Library
		libs, err = m.SyncLibraries(ctx)
		items = len(libs)
		if err == nil {
			var encErr error
			if payload, encErr = json.Marshal(libs); encErr != nil {
				logger.Debug("library payload not encoded", logging.Error(encErr))
				payload = nil
			}
		}
	} else if mon, ok := settings.ParseMonitor(id); ok {
		var res Result
		res, err = m.Check(ctx, mon)
		items, payload, skipped = res.Items, res.Payload, res.Skipped
	} else {
		err = services.Wrap(services.ErrValidation, "monitor", "run", fmt.Sprintf("unknown job %q", id), nil)
	}
	elapsed := m.now().Sub(start)

	record := RunRecord{JobID: id, At: start.UTC(), Items: items, Duration: elapsed}
	switch {
	case err != nil:
		record.Outcome = metrics.OutcomeError
		record.Error = err.Error()
		attrs := []logging.Attr{
			logging.Duration("elapsed", elapsed),
			logging.Error(err),
		}
		if settings.IsNotConfigured(err) {
			attrs = append(attrs, logging.String(logging.FieldErrorHint, "save jellyfin settings to enable polling"))
		} else if errors.Is(err, jellyfin.ErrCircuitOpen) {
			attrs = append(attrs, logging.String(logging.FieldErrorHint, "jellyfin unreachable; requests paused until the breaker closes"))
		}
		logging.WarnWithContext(logger, "job failed", "job_failed", attrs...)
	case skipped:
		record.Outcome = metrics.OutcomeSkipped
		logger.Debug("job skipped; monitor disabled")
	default:
		record.Outcome = metrics.OutcomeSuccess
		if len(payload) > 0 {
			logger.Debug("job payload", logging.String("payload", truncate(string(payload), maxLoggedPayload)))
		}
		logger.Info("job complete",
			logging.Int("items", items),
			logging.Duration("elapsed", elapsed),
			logging.String(logging.FieldEventType, "job_complete"),
		)
	}

	m.metrics.ObserveJob(id, record.Outcome, elapsed)
	m.mu.Lock()
	m.lastRuns[id] = record
	m.mu.Unlock()
}

// countItems reports the length of a top-level array or of an "Items" array.
func countItems(raw json.RawMessage) int {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return len(list)
	}
	var wrapped struct {
		Items []json.RawMessage `json:"Items"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return len(wrapped.Items)
	}
	return 0
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
