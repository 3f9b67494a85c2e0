package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"jellywatch/internal/logging"
	"jellywatch/internal/metrics"
	"jellywatch/internal/monitor"
	"jellywatch/internal/services/jellyfin"
	"jellywatch/internal/settings"
)

// Backend is the daemon as seen by the HTTP handlers.
type Backend interface {
	Status(ctx context.Context) DaemonStatus
	Service(ctx context.Context) (settings.Service, error)
	SaveService(ctx context.Context, svc settings.Service) (settings.Service, error)
	Jobs() JobsResponse
	SyncNow(ctx context.Context) ([]jellyfin.Library, error)
	Libraries(ctx context.Context) ([]jellyfin.Library, error)
	Dashboard(ctx context.Context) (monitor.Dashboard, error)
}

// Store is the settings persistence used by the CRUD routes.
type Store interface {
	SMTP(ctx context.Context) (settings.SMTP, error)
	SaveSMTP(ctx context.Context, cfg settings.SMTP) (settings.SMTP, error)

	ListPeople(ctx context.Context) ([]settings.Person, error)
	GetPerson(ctx context.Context, id int64) (settings.Person, error)
	CreatePerson(ctx context.Context, p settings.Person) (settings.Person, error)
	UpdatePerson(ctx context.Context, p settings.Person) (settings.Person, error)
	DeletePerson(ctx context.Context, id int64) error

	ListAutoSends(ctx context.Context, personID int64) ([]settings.AutoSend, error)
	GetAutoSend(ctx context.Context, id int64) (settings.AutoSend, error)
	CreateAutoSend(ctx context.Context, a settings.AutoSend) (settings.AutoSend, error)
	UpdateAutoSend(ctx context.Context, a settings.AutoSend) (settings.AutoSend, error)
	DeleteAutoSend(ctx context.Context, id int64) error

	CheckHealth(ctx context.Context) (settings.DatabaseHealth, error)
}

// DefaultMutationLimit is the per-IP budget of mutating requests per minute.
const DefaultMutationLimit = 60

// Options configures the router.
type Options struct {
	// Token enables bearer authentication when non-empty.
	Token   string
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// MutationLimit caps POST/PUT/DELETE requests per IP per minute.
	MutationLimit int
}

type server struct {
	backend Backend
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRouter builds the HTTP handler for the daemon API.
func NewRouter(backend Backend, store Store, opts Options) http.Handler {
	s := &server{
		backend: backend,
		store:   store,
		logger:  logging.NewComponentLogger(opts.Logger, "api-server"),
		metrics: opts.Metrics,
	}
	limit := opts.MutationLimit
	if limit <= 0 {
		limit = DefaultMutationLimit
	}
	mutations := httprate.LimitByIP(limit, time.Minute)

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.instrument)
	r.Use(chimiddleware.Recoverer)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(opts.Token))

		r.Get("/api/status", s.handleStatus)
		r.Get("/api/jobs", s.handleJobs)
		r.Get("/api/health/database", s.handleDatabaseHealth)

		r.Route("/api/settings", func(r chi.Router) {
			r.Get("/service", s.handleGetService)
			r.Get("/smtp", s.handleGetSMTP)
			r.With(mutations).Put("/service", s.handlePutService)
			r.With(mutations).Put("/smtp", s.handlePutSMTP)
		})

		r.Route("/api/people", func(r chi.Router) {
			r.Get("/", s.handleListPeople)
			r.Get("/{id}", s.handleGetPerson)
			r.With(mutations).Post("/", s.handleCreatePerson)
			r.With(mutations).Put("/{id}", s.handleUpdatePerson)
			r.With(mutations).Delete("/{id}", s.handleDeletePerson)
		})

		r.Route("/api/auto-sends", func(r chi.Router) {
			r.Get("/", s.handleListAutoSends)
			r.Get("/{id}", s.handleGetAutoSend)
			r.With(mutations).Post("/", s.handleCreateAutoSend)
			r.With(mutations).Put("/{id}", s.handleUpdateAutoSend)
			r.With(mutations).Delete("/{id}", s.handleDeleteAutoSend)
		})

		r.With(mutations).Post("/services/sync-now", s.handleSyncNow)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/dashboard/libraries", s.handleLibraries)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
