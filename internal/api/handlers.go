package api

import (
	"net/http"

	"jellywatch/internal/logging"
	"jellywatch/internal/services/jellyfin"
	"jellywatch/internal/settings"
)

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.backend.Status(r.Context()))
}

func (s *server) handleJobs(w http.ResponseWriter, _ *http.Request) {
	resp := s.backend.Jobs()
	if resp.Jobs == nil {
		resp.Jobs = []JobView{}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleDatabaseHealth answers 503 with the partial report when a check fails.
func (s *server) handleDatabaseHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.store.CheckHealth(r.Context())
	if err != nil {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "database health check failed", "database_health_failed",
			logging.Error(err),
		)
		if health.Error == "" {
			health.Error = err.Error()
		}
		s.writeJSON(w, http.StatusServiceUnavailable, health)
		return
	}
	s.writeJSON(w, http.StatusOK, health)
}

func (s *server) handleGetService(w http.ResponseWriter, r *http.Request) {
	svc, err := s.backend.Service(r.Context())
	if settings.IsNotConfigured(err) {
		s.writeJSON(w, http.StatusOK, FromService(settings.Service{}, false))
		return
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, FromService(svc, true))
}

func (s *server) handlePutService(w http.ResponseWriter, r *http.Request) {
	var req ServiceRequest
	if err := decodeRequest(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	current, err := s.backend.Service(r.Context())
	if err != nil && !settings.IsNotConfigured(err) {
		s.writeFailure(w, r, err)
		return
	}
	saved, err := s.backend.SaveService(r.Context(), req.ToService(current))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("service settings saved",
		logging.String("jellyfin_url", saved.JellyfinURL),
	)
	s.writeJSON(w, http.StatusOK, FromService(saved, true))
}

func (s *server) handleGetSMTP(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.SMTP(r.Context())
	if settings.IsNotConfigured(err) {
		s.writeJSON(w, http.StatusOK, FromSMTP(settings.SMTP{}, false))
		return
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, FromSMTP(cfg, true))
}

func (s *server) handlePutSMTP(w http.ResponseWriter, r *http.Request) {
	var req SMTPRequest
	if err := decodeRequest(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	current, err := s.store.SMTP(r.Context())
	if err != nil && !settings.IsNotConfigured(err) {
		s.writeFailure(w, r, err)
		return
	}
	saved, err := s.store.SaveSMTP(r.Context(), req.ToSMTP(current))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, FromSMTP(saved, true))
}

// handleSyncNow always answers 200; the outcome is carried in the body.
func (s *server) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	libs, err := s.backend.SyncNow(r.Context())
	if err != nil {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "manual sync failed", "sync_now_failed",
			logging.Error(err),
		)
		s.writeJSON(w, http.StatusOK, SyncNowResponse{Success: false, Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, SyncNowResponse{Success: true, Libraries: libs})
}

func (s *server) handleLibraries(w http.ResponseWriter, r *http.Request) {
	libs, err := s.backend.Libraries(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if libs == nil {
		libs = []jellyfin.Library{}
	}
	s.writeJSON(w, http.StatusOK, libs)
}

func (s *server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := s.backend.Dashboard(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if dash.Users == nil {
		dash.Users = []jellyfin.User{}
	}
	s.writeJSON(w, http.StatusOK, dash)
}
