package api

import (
	"net/http"
	"strconv"
	"strings"

	"jellywatch/internal/services"
	"jellywatch/internal/settings"
)

func (s *server) handleListPeople(w http.ResponseWriter, r *http.Request) {
	people, err := s.store.ListPeople(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if people == nil {
		people = []settings.Person{}
	}
	s.writeJSON(w, http.StatusOK, PeopleResponse{People: people})
}

func (s *server) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	person, err := s.store.GetPerson(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, person)
}

func (s *server) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	var req PersonRequest
	if err := decodeRequest(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	person, err := s.store.CreatePerson(r.Context(), settings.Person{Name: req.Name, Email: req.Email})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, person)
}

func (s *server) handleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	var req PersonRequest
	if err := decodeRequest(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	person, err := s.store.UpdatePerson(r.Context(), settings.Person{ID: id, Name: req.Name, Email: req.Email})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, person)
}

func (s *server) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if err := s.store.DeletePerson(r.Context(), id); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListAutoSends accepts an optional ?person_id= filter.
func (s *server) handleListAutoSends(w http.ResponseWriter, r *http.Request) {
	var personID int64
	if raw := strings.TrimSpace(r.URL.Query().Get("person_id")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			s.writeFailure(w, r, services.Wrap(services.ErrValidation, "api", "list auto-sends", "invalid person_id", nil))
			return
		}
		personID = parsed
	}
	entries, err := s.store.ListAutoSends(r.Context(), personID)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if entries == nil {
		entries = []settings.AutoSend{}
	}
	s.writeJSON(w, http.StatusOK, AutoSendsResponse{AutoSends: entries})
}

func (s *server) handleGetAutoSend(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	entry, err := s.store.GetAutoSend(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *server) handleCreateAutoSend(w http.ResponseWriter, r *http.Request) {
	var req AutoSendRequest
	if err := decodeRequest(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	entry, err := s.store.CreateAutoSend(r.Context(), req.ToAutoSend(0))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, entry)
}

func (s *server) handleUpdateAutoSend(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	var req AutoSendRequest
	if err := decodeRequest(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	current, err := s.store.GetAutoSend(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	next := req.ToAutoSend(id)
	next.LastSentAt = current.LastSentAt
	entry, err := s.store.UpdateAutoSend(r.Context(), next)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *server) handleDeleteAutoSend(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if err := s.store.DeleteAutoSend(r.Context(), id); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
