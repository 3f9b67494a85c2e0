package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"jellywatch/internal/api"
	"jellywatch/internal/services/jellyfin"
)

func TestClientRoundTrip(t *testing.T) {
	h := newAPIHarness(t, api.Options{Token: "secret"})
	h.backend.libs = []jellyfin.Library{{ID: "l1", Name: "Movies"}}
	srv := httptest.NewServer(h.handler)
	t.Cleanup(srv.Close)
	ctx := context.Background()

	client := api.NewClient(srv.URL+"/", "secret")
	require.Equal(t, srv.URL, client.BaseURL())

	status, err := client.Status(ctx)
	require.NoError(t, err)
	require.True(t, status.Running)

	svc, err := client.Service(ctx)
	require.NoError(t, err)
	require.False(t, svc.Configured)

	saved, err := client.SaveService(ctx, api.ServiceRequest{
		JellyfinURL:    "http://jellyfin.local",
		JellyfinAPIKey: "abcdef",
		Monitors:       []api.MonitorSettingRequest{{Name: "transcoding", Enabled: true, Timeframe: "1 hour"}},
	})
	require.NoError(t, err)
	require.True(t, saved.Configured)
	require.Equal(t, 1, h.backend.saves)

	sync, err := client.SyncNow(ctx)
	require.NoError(t, err)
	require.True(t, sync.Success)

	libs, err := client.Libraries(ctx)
	require.NoError(t, err)
	require.Len(t, libs, 1)
	require.Equal(t, "Movies", libs[0].Name)

	jobs, err := client.Jobs(ctx)
	require.NoError(t, err)
	require.Empty(t, jobs.Jobs)
}

func TestClientReportsStatusErrors(t *testing.T) {
	h := newAPIHarness(t, api.Options{Token: "secret"})
	srv := httptest.NewServer(h.handler)
	t.Cleanup(srv.Close)

	_, err := api.NewClient(srv.URL, "wrong").Status(context.Background())
	require.Error(t, err)
	require.True(t, api.IsUnauthorized(err))

	_, err = api.NewClient(srv.URL, "secret").SaveService(context.Background(), api.ServiceRequest{JellyfinURL: "not a url"})
	var statusErr *api.StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	require.Contains(t, statusErr.Message, "jellyfin_url")
}
