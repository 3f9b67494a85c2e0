package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"jellywatch/internal/api"
	"jellywatch/internal/config"
	"jellywatch/internal/logging"
	"jellywatch/internal/monitor"
	"jellywatch/internal/services/jellyfin"
	"jellywatch/internal/settings"
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	return &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		handler: api.NewRouter(apiBackend{d: d}, d.store, api.Options{
			Token:   cfg.Paths.APIToken,
			Logger:  logger,
			Metrics: d.metrics,
		}),
	}
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}

func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// apiBackend adapts the daemon to the HTTP handlers.
type apiBackend struct {
	d *Daemon
}

func (b apiBackend) Status(ctx context.Context) api.DaemonStatus {
	status := b.d.Status(ctx)
	out := api.DaemonStatus{
		Running:          status.Running,
		PID:              status.PID,
		DatabasePath:     status.DatabasePath,
		LockFilePath:     status.LockFilePath,
		Configured:       status.Configured,
		JellyfinURL:      status.JellyfinURL,
		SchedulerRunning: status.SchedulerRunning,
		JobCount:         len(status.Jobs),
		BreakerState:     status.BreakerState,
		LibraryCount:     status.LibraryCount,
	}
	if !status.LastSync.IsZero() {
		out.LastSync = status.LastSync.UTC().Format(time.RFC3339)
	}
	return out
}

func (b apiBackend) Service(ctx context.Context) (settings.Service, error) {
	return b.d.Service(ctx)
}

func (b apiBackend) SaveService(ctx context.Context, svc settings.Service) (settings.Service, error) {
	return b.d.SaveService(ctx, svc)
}

func (b apiBackend) Jobs() api.JobsResponse {
	return api.JobsResponse{
		Running: b.d.scheduler.Running(),
		Jobs:    api.JobViews(b.d.Jobs(), b.d.LastRuns()),
	}
}

func (b apiBackend) SyncNow(ctx context.Context) ([]jellyfin.Library, error) {
	return b.d.SyncNow(ctx)
}

func (b apiBackend) Libraries(ctx context.Context) ([]jellyfin.Library, error) {
	return b.d.Libraries(ctx)
}

func (b apiBackend) Dashboard(ctx context.Context) (monitor.Dashboard, error) {
	return b.d.Dashboard(ctx)
}
