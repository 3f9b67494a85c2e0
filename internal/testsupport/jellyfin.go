package testsupport

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// JellyfinServer is a canned Jellyfin API that records request paths.
type JellyfinServer struct {
	*httptest.Server

	mu        sync.Mutex
	responses map[string]cannedResponse
	requests  []string
	tokens    []string
}

type cannedResponse struct {
	status int
	body   string
}

// NewJellyfinServer starts a fake server. Unregistered paths answer 404.
func NewJellyfinServer(t testing.TB) *JellyfinServer {
	t.Helper()

	srv := &JellyfinServer{responses: make(map[string]cannedResponse)}
	srv.Server = httptest.NewServer(http.HandlerFunc(srv.serve))
	t.Cleanup(srv.Close)
	return srv
}

// Respond registers the status and JSON body returned for path.
func (s *JellyfinServer) Respond(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[path] = cannedResponse{status: status, body: body}
}

// Requests returns the paths requested so far, in order.
func (s *JellyfinServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// Tokens returns the X-Emby-Token header of each request, in order.
func (s *JellyfinServer) Tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.tokens))
	copy(out, s.tokens)
	return out
}

// Requested reports whether path was requested at least once.
func (s *JellyfinServer) Requested(path string) bool {
	for _, p := range s.Requests() {
		if p == path {
			return true
		}
	}
	return false
}

func (s *JellyfinServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.URL.Path)
	s.tokens = append(s.tokens, r.Header.Get("X-Emby-Token"))
	resp, ok := s.responses[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	_, _ = w.Write([]byte(resp.body))
}
