package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"jellywatch/internal/api"
	"jellywatch/internal/metrics"
	"jellywatch/internal/monitor"
	"jellywatch/internal/services"
	"jellywatch/internal/services/jellyfin"
	"jellywatch/internal/settings"
	"jellywatch/internal/testsupport"
)

type fakeBackend struct {
	store   *settings.Store
	saves   int
	syncErr error
	libs    []jellyfin.Library
	libErr  error
	dash    monitor.Dashboard
	dashErr error
	jobs    api.JobsResponse
}

func (f *fakeBackend) Status(context.Context) api.DaemonStatus {
	return api.DaemonStatus{Running: true, PID: 42, JobCount: len(f.jobs.Jobs)}
}

func (f *fakeBackend) Service(ctx context.Context) (settings.Service, error) {
	return f.store.Service(ctx)
}

func (f *fakeBackend) SaveService(ctx context.Context, svc settings.Service) (settings.Service, error) {
	saved, err := f.store.SaveService(ctx, svc)
	if err == nil {
		f.saves++
	}
	return saved, err
}

func (f *fakeBackend) Jobs() api.JobsResponse { return f.jobs }

func (f *fakeBackend) SyncNow(context.Context) ([]jellyfin.Library, error) {
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	return f.libs, nil
}

func (f *fakeBackend) Libraries(context.Context) ([]jellyfin.Library, error) {
	if f.libErr != nil {
		return nil, f.libErr
	}
	return f.libs, nil
}

func (f *fakeBackend) Dashboard(context.Context) (monitor.Dashboard, error) {
	return f.dash, f.dashErr
}

type apiHarness struct {
	backend *fakeBackend
	store   *settings.Store
	metrics *metrics.Metrics
	handler http.Handler
}

func newAPIHarness(t *testing.T, opts api.Options) *apiHarness {
	t.Helper()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	backend := &fakeBackend{store: store}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	return &apiHarness{
		backend: backend,
		store:   store,
		metrics: opts.Metrics,
		handler: api.NewRouter(backend, store, opts),
	}
}

func (h *apiHarness) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, w)["error"]
}

func TestStatusSetsRequestID(t *testing.T) {
	h := newAPIHarness(t, api.Options{})

	w := h.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get(api.RequestIDHeader))
	status := decode[api.DaemonStatus](t, w)
	require.True(t, status.Running)
	require.Equal(t, 42, status.PID)

	w = h.do(t, http.MethodGet, "/api/status", nil, api.RequestIDHeader, "req-123")
	require.Equal(t, "req-123", w.Header().Get(api.RequestIDHeader))
}

func TestBearerAuth(t *testing.T) {
	h := newAPIHarness(t, api.Options{Token: "s3cret"})

	w := h.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "unauthorized", errorMessage(t, w))

	w = h.do(t, http.MethodGet, "/api/status", nil, "Authorization", "Bearer wrong")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(t, http.MethodGet, "/api/status", nil, "Authorization", "Bearer s3cret")
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestServiceSettingsUnconfigured(t *testing.T) {
	h := newAPIHarness(t, api.Options{})

	w := h.do(t, http.MethodGet, "/api/settings/service", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[api.ServiceSettings](t, w)
	require.False(t, got.Configured)
	require.Len(t, got.Monitors, 4)
	for _, m := range got.Monitors {
		require.False(t, m.Enabled, m.Name)
		require.Equal(t, "15 min", m.Timeframe)
		require.Equal(t, 15, m.IntervalMinutes)
	}
}

func TestPutServiceSavesAndMasksKey(t *testing.T) {
	h := newAPIHarness(t, api.Options{})

	w := h.do(t, http.MethodPut, "/api/settings/service", api.ServiceRequest{
		JellyfinURL:    "http://jellyfin.local:8096/",
		JellyfinAPIKey: "secret-key",
		Monitors: []api.MonitorSettingRequest{
			{Name: "transcoding", Enabled: true, Timeframe: "4 hours"},
			{Name: "media_added", Enabled: true, Timeframe: "every tuesday"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[api.ServiceSettings](t, w)
	require.True(t, got.Configured)
	require.Equal(t, "http://jellyfin.local:8096", got.JellyfinURL)
	require.Equal(t, "******-key", got.JellyfinAPIKey)
	require.Equal(t, 1, h.backend.saves)

	byName := map[string]api.MonitorSetting{}
	for _, m := range got.Monitors {
		byName[m.Name] = m
	}
	require.True(t, byName["transcoding"].Enabled)
	require.Equal(t, 240, byName["transcoding"].IntervalMinutes)
	require.True(t, byName["media_added"].Enabled)
	require.Equal(t, "15 min", byName["media_added"].Timeframe)
	require.False(t, byName["media_removed"].Enabled)

	stored, err := h.store.Service(context.Background())
	require.NoError(t, err)
	require.Equal(t, "secret-key", stored.JellyfinAPIKey)
}

func TestPutServiceKeepsStoredKeyWhenOmitted(t *testing.T) {
	h := newAPIHarness(t, api.Options{})
	testsupport.SaveService(t, h.store, "http://old.local", nil)

	w := h.do(t, http.MethodPut, "/api/settings/service", api.ServiceRequest{
		JellyfinURL: "http://new.local",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err := h.store.Service(context.Background())
	require.NoError(t, err)
	require.Equal(t, "http://new.local", stored.JellyfinURL)
	require.Equal(t, "test-key", stored.JellyfinAPIKey)
}

func TestPutServiceValidation(t *testing.T) {
	cases := []struct {
		name string
		body api.ServiceRequest
		want string
	}{
		{"missing url", api.ServiceRequest{JellyfinAPIKey: "k"}, "jellyfin_url is required"},
		{"bad url", api.ServiceRequest{JellyfinURL: "not a url", JellyfinAPIKey: "k"}, "jellyfin_url must be a valid URL"},
		{"unknown monitor", api.ServiceRequest{
			JellyfinURL:    "http://jellyfin.local",
			JellyfinAPIKey: "k",
			Monitors:       []api.MonitorSettingRequest{{Name: "bogus"}},
		}, "monitors[0].name must be one of"},
		{"no key stored", api.ServiceRequest{JellyfinURL: "http://jellyfin.local"}, "jellyfin api key is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newAPIHarness(t, api.Options{})
			w := h.do(t, http.MethodPut, "/api/settings/service", tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			require.Contains(t, errorMessage(t, w), tc.want)
			require.Zero(t, h.backend.saves)
		})
	}
}

func TestPutServiceRejectsMalformedJSON(t *testing.T) {
	h := newAPIHarness(t, api.Options{})
	req := httptest.NewRequest(http.MethodPut, "/api/settings/service", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, errorMessage(t, w), "invalid JSON")
}

func TestSMTPSettings(t *testing.T) {
	h := newAPIHarness(t, api.Options{})

	w := h.do(t, http.MethodGet, "/api/settings/smtp", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, decode[api.SMTPSettings](t, w).Configured)

	w = h.do(t, http.MethodPut, "/api/settings/smtp", api.SMTPRequest{Host: "smtp.local", Port: 587, Sender: "nope"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, errorMessage(t, w), "sender must be a valid email address")

	w = h.do(t, http.MethodPut, "/api/settings/smtp", api.SMTPRequest{
		Host: "smtp.local", Port: 587, Sender: "jellywatch@example.com", Password: "pw", UseTLS: true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[api.SMTPSettings](t, w)
	require.True(t, got.Configured)
	require.True(t, got.HasPassword)
	require.NotContains(t, w.Body.String(), `"pw"`)

	w = h.do(t, http.MethodPut, "/api/settings/smtp", api.SMTPRequest{
		Host: "smtp2.local", Port: 465, Sender: "jellywatch@example.com",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, decode[api.SMTPSettings](t, w).HasPassword)

	stored, err := h.store.SMTP(context.Background())
	require.NoError(t, err)
	require.Equal(t, "smtp2.local", stored.Host)
	require.Equal(t, "pw", stored.Password)
}

func TestPeopleCRUD(t *testing.T) {
	h := newAPIHarness(t, api.Options{})

	w := h.do(t, http.MethodPost, "/api/people", api.PersonRequest{Name: "Ada", Email: "Ada@Example.com"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[settings.Person](t, w)
	require.Equal(t, "ada@example.com", created.Email)

	w = h.do(t, http.MethodPost, "/api/people", api.PersonRequest{Name: "Ada 2", Email: "ada@example.com"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, errorMessage(t, w), "already exists")

	w = h.do(t, http.MethodGet, "/api/people", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[api.PeopleResponse](t, w).People, 1)

	path := fmt.Sprintf("/api/people/%d", created.ID)
	w = h.do(t, http.MethodPut, path, api.PersonRequest{Name: "Ada Lovelace", Email: "ada@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Ada Lovelace", decode[settings.Person](t, w).Name)

	w = h.do(t, http.MethodGet, "/api/people/999", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodGet, "/api/people/abc", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = h.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAutoSendsCRUD(t *testing.T) {
	h := newAPIHarness(t, api.Options{})
	person, err := h.store.CreatePerson(context.Background(), settings.Person{Name: "Grace", Email: "grace@example.com"})
	require.NoError(t, err)

	w := h.do(t, http.MethodPost, "/api/auto-sends", api.AutoSendRequest{PersonID: person.ID, Subject: "Weekly", Interval: "fortnightly"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[settings.AutoSend](t, w)
	require.Equal(t, settings.Timeframe15Min, created.Interval)
	require.True(t, created.Enabled)

	w = h.do(t, http.MethodPost, "/api/auto-sends", api.AutoSendRequest{PersonID: 999, Subject: "Nope"})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodGet, fmt.Sprintf("/api/auto-sends?person_id=%d", person.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[api.AutoSendsResponse](t, w).AutoSends, 1)

	w = h.do(t, http.MethodGet, "/api/auto-sends?person_id=x", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	disabled := false
	path := fmt.Sprintf("/api/auto-sends/%d", created.ID)
	w = h.do(t, http.MethodPut, path, api.AutoSendRequest{PersonID: person.ID, Subject: "Monthly", Interval: "4 hours", Enabled: &disabled})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[settings.AutoSend](t, w)
	require.False(t, updated.Enabled)
	require.Equal(t, settings.Timeframe4Hours, updated.Interval)

	w = h.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = h.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncNow(t *testing.T) {
	h := newAPIHarness(t, api.Options{})

	h.backend.syncErr = settings.ErrNotConfigured
	w := h.do(t, http.MethodPost, "/services/sync-now", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"success":false,"error":"please configure services"}`, w.Body.String())

	h.backend.syncErr = nil
	h.backend.libs = []jellyfin.Library{{ID: "1", Name: "Movies", CollectionType: "movies"}}
	w = h.do(t, http.MethodPost, "/services/sync-now", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[api.SyncNowResponse](t, w)
	require.True(t, got.Success)
	require.Empty(t, got.Error)
	require.Len(t, got.Libraries, 1)
}

func TestLibraries(t *testing.T) {
	h := newAPIHarness(t, api.Options{})

	w := h.do(t, http.MethodGet, "/dashboard/libraries", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[]`, w.Body.String())

	h.backend.libErr = jellyfin.ErrNoUsers
	w = h.do(t, http.MethodGet, "/dashboard/libraries", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.NotEmpty(t, errorMessage(t, w))
}

func TestDashboard(t *testing.T) {
	h := newAPIHarness(t, api.Options{})

	h.backend.dashErr = settings.ErrNotConfigured
	w := h.do(t, http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.JSONEq(t, `{"error":"please configure services"}`, w.Body.String())

	h.backend.dashErr = services.Wrap(services.ErrExternal, "jellyfin", "get", "status 500", errors.New("boom"))
	w = h.do(t, http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusBadGateway, w.Code)

	h.backend.dashErr = nil
	h.backend.dash = monitor.Dashboard{
		ServerURL: "http://jellyfin.local",
		Counts:    jellyfin.ItemCounts{MovieCount: 3},
	}
	w = h.do(t, http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[monitor.Dashboard](t, w)
	require.Equal(t, 3, got.Counts.MovieCount)
	require.NotNil(t, got.Users)
}

func TestJobs(t *testing.T) {
	h := newAPIHarness(t, api.Options{})

	w := h.do(t, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"running":false,"jobs":[]}`, w.Body.String())

	h.backend.jobs = api.JobsResponse{Running: true, Jobs: []api.JobView{{ID: "sync_libraries", IntervalMinutes: 60}}}
	w = h.do(t, http.MethodGet, "/api/jobs", nil)
	got := decode[api.JobsResponse](t, w)
	require.True(t, got.Running)
	require.Equal(t, "sync_libraries", got.Jobs[0].ID)
}

func TestMutationsAreRateLimited(t *testing.T) {
	h := newAPIHarness(t, api.Options{MutationLimit: 2})

	for i := 0; i < 2; i++ {
		w := h.do(t, http.MethodPost, "/services/sync-now", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := h.do(t, http.MethodPost, "/services/sync-now", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// Reads are not limited.
	w = h.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequestMetricsUseRoutePattern(t *testing.T) {
	h := newAPIHarness(t, api.Options{})

	h.do(t, http.MethodGet, "/api/people/7", nil)
	h.do(t, http.MethodGet, "/api/people/8", nil)
	h.do(t, http.MethodGet, "/nope", nil)

	require.Equal(t, 2.0, testutil.ToFloat64(h.metrics.HTTPRequests.WithLabelValues(http.MethodGet, "/api/people/{id}", "404")))
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.HTTPRequests.WithLabelValues(http.MethodGet, "unmatched", "404")))
}

func TestUnknownRouteReturnsJSON(t *testing.T) {
	h := newAPIHarness(t, api.Options{})
	w := h.do(t, http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "not found", errorMessage(t, w))
}

func TestDatabaseHealth(t *testing.T) {
	h := newAPIHarness(t, api.Options{})

	w := h.do(t, http.MethodGet, "/api/health/database", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	health := decode[settings.DatabaseHealth](t, w)
	require.True(t, health.DatabaseReadable)
	require.True(t, health.IntegrityCheck)
	require.False(t, health.Configured)
	require.Equal(t, health.ExpectedVersion, health.SchemaVersion)

	require.NoError(t, h.store.Close())
	w = h.do(t, http.MethodGet, "/api/health/database", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	failed := decode[settings.DatabaseHealth](t, w)
	require.False(t, failed.DatabaseReadable)
	require.NotEmpty(t, failed.Error)
}
