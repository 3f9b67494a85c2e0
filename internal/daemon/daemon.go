package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"jellywatch/internal/config"
	"jellywatch/internal/logging"
	"jellywatch/internal/metrics"
	"jellywatch/internal/monitor"
	"jellywatch/internal/scheduler"
	"jellywatch/internal/services/jellyfin"
	"jellywatch/internal/settings"
)

const shutdownTimeout = 10 * time.Second

// Daemon owns the settings store, the job scheduler and the HTTP API, and
// enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *settings.Store
	metrics   *metrics.Metrics
	breaker   *jellyfin.Breaker
	monitor   *monitor.Monitor
	scheduler *scheduler.Scheduler
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	// saveMu keeps persist-then-rebuild atomic with respect to other saves.
	saveMu sync.Mutex

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running          bool
	PID              int
	DatabasePath     string
	LockFilePath     string
	Configured       bool
	JellyfinURL      string
	SchedulerRunning bool
	Jobs             []scheduler.Job
	BreakerState     string
	LibraryCount     int
	LastSync         time.Time
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *settings.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		metrics:  metrics.New(),
	}

	d.breaker = jellyfin.NewBreaker(jellyfin.BreakerSettings{
		Name:             "jellyfin",
		FailureThreshold: uint32(cfg.Jellyfin.BreakerFailureThreshold),
		OpenTimeout:      cfg.BreakerTimeout(),
	}, logger, d.metrics)

	clientOpts := []jellyfin.Option{
		jellyfin.WithTimeout(cfg.RequestTimeout()),
		jellyfin.WithBreaker(d.breaker),
		jellyfin.WithLogger(logging.NewComponentLogger(logger, "jellyfin")),
		jellyfin.WithMetrics(d.metrics),
	}
	if cfg.Jellyfin.RateLimitPerSecond > 0 {
		limiter := rate.NewLimiter(rate.Limit(cfg.Jellyfin.RateLimitPerSecond), cfg.Jellyfin.RateBurst)
		clientOpts = append(clientOpts, jellyfin.WithLimiter(limiter))
	}

	d.monitor = monitor.New(store, monitor.JellyfinFactory(clientOpts...),
		monitor.WithLogger(logger),
		monitor.WithMetrics(d.metrics),
		monitor.WithJobTimeout(cfg.JobTimeout()),
	)
	d.scheduler = scheduler.New(d.monitor, cfg.SyncInterval(),
		scheduler.WithLogger(logger),
		scheduler.WithMetrics(d.metrics),
	)
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, seeds and loads settings, builds the job
// table and starts the scheduler and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another jellywatch daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.startServices(d.ctx); err != nil {
		d.cancel()
		_ = d.scheduler.Stop(context.Background())
		_ = d.lock.Unlock()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("jellywatch daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.APIAddr()),
	)
	return nil
}

func (d *Daemon) startServices(ctx context.Context) error {
	d.seedFromConfig(ctx)
	if err := d.rebuild(ctx); err != nil {
		return err
	}
	d.scheduler.Start()
	if err := d.api.start(ctx); err != nil {
		return fmt.Errorf("start api server: %w", err)
	}
	return nil
}

// seedFromConfig stores the configured Jellyfin connection on first start.
// An existing row always wins.
func (d *Daemon) seedFromConfig(ctx context.Context) {
	if d.cfg.Jellyfin.URL == "" || d.cfg.Jellyfin.APIKey == "" {
		return
	}
	seeded, err := d.store.SeedService(ctx, settings.Service{
		JellyfinURL:    d.cfg.Jellyfin.URL,
		JellyfinAPIKey: d.cfg.Jellyfin.APIKey,
	})
	if err != nil {
		logging.WarnWithContext(d.logger, "failed to seed service settings", "settings_seed_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check jellyfin.url and jellyfin.api_key in the config file"),
		)
		return
	}
	if seeded {
		d.logger.Info("service settings seeded from configuration",
			logging.String("jellyfin_url", d.cfg.Jellyfin.URL),
		)
	}
}

// rebuild loads the stored settings and replaces the job table. Unconfigured
// settings leave the table empty.
func (d *Daemon) rebuild(ctx context.Context) error {
	svc, err := d.store.Service(ctx)
	if settings.IsNotConfigured(err) {
		d.scheduler.Clear()
		d.logger.Info("jellyfin not configured; no jobs scheduled",
			logging.String(logging.FieldErrorHint, "save service settings through the API or jellywatch settings set"),
		)
		return nil
	}
	if err != nil {
		return err
	}
	d.scheduler.Rebuild(svc)
	return nil
}

// Stop shuts down the API server and the scheduler, then releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	g, gctx := errgroup.WithContext(shutdownCtx)
	g.Go(func() error { return d.api.stop(gctx) })
	g.Go(func() error { return d.scheduler.Stop(gctx) })
	if err := g.Wait(); err != nil {
		d.logger.Warn("shutdown incomplete", logging.Error(err))
	}

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("jellywatch daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddr returns the bound API address, or "" when the API is not listening.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Service returns the stored service row.
func (d *Daemon) Service(ctx context.Context) (settings.Service, error) {
	return d.store.Service(ctx)
}

// SaveService persists svc and rebuilds the job table from the stored row.
// This is the only path that writes service settings while running.
func (d *Daemon) SaveService(ctx context.Context, svc settings.Service) (settings.Service, error) {
	d.saveMu.Lock()
	defer d.saveMu.Unlock()

	saved, err := d.store.SaveService(ctx, svc)
	if err != nil {
		return settings.Service{}, err
	}
	d.scheduler.Rebuild(saved)
	return saved, nil
}

// Jobs returns the current job table.
func (d *Daemon) Jobs() []scheduler.Job {
	return d.scheduler.Jobs()
}

// LastRuns returns the latest outcome of every job that has fired.
func (d *Daemon) LastRuns() map[string]monitor.RunRecord {
	return d.monitor.LastRuns()
}

// SyncNow runs a library sync immediately.
func (d *Daemon) SyncNow(ctx context.Context) ([]jellyfin.Library, error) {
	libs, err := d.monitor.SyncLibraries(ctx)
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, d.logger).Info("manual library sync complete",
		logging.Int("libraries", len(libs)),
		logging.String(logging.FieldEventType, "sync_now"),
	)
	return libs, nil
}

// Libraries serves the cached sync result while it is younger than the sync
// interval and fetches from Jellyfin otherwise.
func (d *Daemon) Libraries(ctx context.Context) ([]jellyfin.Library, error) {
	libs, syncedAt := d.monitor.LastLibraries()
	if !syncedAt.IsZero() && time.Since(syncedAt) < d.scheduler.SyncInterval() {
		return libs, nil
	}
	return d.monitor.SyncLibraries(ctx)
}

// Dashboard fetches item counts and users from Jellyfin.
func (d *Daemon) Dashboard(ctx context.Context) (monitor.Dashboard, error) {
	return d.monitor.Dashboard(ctx)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:          d.running.Load(),
		PID:              os.Getpid(),
		DatabasePath:     d.store.Path(),
		LockFilePath:     d.lockPath,
		SchedulerRunning: d.scheduler.Running(),
		Jobs:             d.scheduler.Jobs(),
		BreakerState:     d.breaker.State(),
	}
	if svc, err := d.store.Service(ctx); err == nil {
		status.Configured = true
		status.JellyfinURL = svc.JellyfinURL
	}
	libs, syncedAt := d.monitor.LastLibraries()
	status.LibraryCount = len(libs)
	status.LastSync = syncedAt
	return status
}
