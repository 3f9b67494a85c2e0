package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"jellywatch/internal/metrics"
	"jellywatch/internal/scheduler"
	"jellywatch/internal/settings"
)

type recordingRunner struct {
	mu    sync.Mutex
	calls []string
	panic map[string]bool
}

func (r *recordingRunner) Job(id string) func() {
	return func() {
		r.mu.Lock()
		r.calls = append(r.calls, id)
		shouldPanic := r.panic[id]
		r.mu.Unlock()
		if shouldPanic {
			panic("boom")
		}
	}
}

func (r *recordingRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func intervals(jobs []scheduler.Job) map[string]int {
	out := make(map[string]int, len(jobs))
	for _, j := range jobs {
		out[j.ID] = j.IntervalMinutes()
	}
	return out
}

func allEnabled() settings.Service {
	return settings.Service{
		JellyfinURL:            "http://jellyfin.local",
		JellyfinAPIKey:         "k",
		MonitorMediaAdded:      true,
		MonitorMediaRemoved:    true,
		MonitorStreamStarted:   true,
		MonitorTranscoding:     true,
		MediaAddedTimeframe:    settings.Timeframe15Min,
		MediaRemovedTimeframe:  settings.Timeframe30Min,
		StreamStartedTimeframe: settings.Timeframe4Hours,
		TranscodingTimeframe:   "every tuesday",
	}
}

func TestRebuildAllDisabledSchedulesOnlySync(t *testing.T) {
	s := scheduler.New(&recordingRunner{}, time.Hour)
	s.Rebuild(settings.Service{JellyfinURL: "http://x", JellyfinAPIKey: "k"})

	got := intervals(s.Jobs())
	require.Equal(t, map[string]int{scheduler.SyncLibrariesID: 60}, got)
	for _, m := range settings.AllMonitors() {
		_, ok := s.Job(string(m))
		require.Falsef(t, ok, "monitor %s must not be scheduled", m)
	}
}

func TestRebuildAllEnabledMapsTimeframes(t *testing.T) {
	s := scheduler.New(&recordingRunner{}, 90*time.Minute)
	s.Rebuild(allEnabled())

	require.Equal(t, map[string]int{
		"media_added":              15,
		"media_removed":            30,
		"stream_started":           240,
		"transcoding":              15,
		scheduler.SyncLibrariesID: 90,
	}, intervals(s.Jobs()))
}

func TestRebuildIsIdempotent(t *testing.T) {
	s := scheduler.New(&recordingRunner{}, time.Hour)
	s.Rebuild(allEnabled())
	first := s.Jobs()
	s.Rebuild(allEnabled())
	second := s.Jobs()

	require.Len(t, second, 5)
	require.Equal(t, intervals(first), intervals(second))
}

func TestRebuildRemovesDisabledMonitors(t *testing.T) {
	s := scheduler.New(&recordingRunner{}, time.Hour)

	svc := settings.Service{MonitorMediaAdded: true, MediaAddedTimeframe: settings.Timeframe1Hour}
	s.Rebuild(svc)
	job, ok := s.Job("media_added")
	require.True(t, ok)
	require.Equal(t, 60, job.IntervalMinutes())

	svc.MonitorMediaAdded = false
	s.Rebuild(svc)
	_, ok = s.Job("media_added")
	require.False(t, ok)
	require.Len(t, s.Jobs(), 1)
}

func TestClearEmptiesTable(t *testing.T) {
	m := metrics.New()
	s := scheduler.New(&recordingRunner{}, time.Hour, scheduler.WithMetrics(m))
	s.Rebuild(allEnabled())
	require.Equal(t, float64(5), testutil.ToFloat64(m.ScheduledJobs))

	s.Clear()
	require.Empty(t, s.Jobs())
	require.Equal(t, float64(0), testutil.ToFloat64(m.ScheduledJobs))
}

func TestStartIsIdempotent(t *testing.T) {
	s := scheduler.New(&recordingRunner{}, time.Hour)
	s.Rebuild(allEnabled())

	s.Start()
	s.Start()
	require.True(t, s.Running())

	jobs := s.Jobs()
	require.Len(t, jobs, 5)
	for _, j := range jobs {
		require.Falsef(t, j.Next.IsZero(), "job %s should have a next run once started", j.ID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.False(t, s.Running())
	require.NoError(t, s.Stop(ctx))
}

func TestRebuildWhileRunning(t *testing.T) {
	s := scheduler.New(&recordingRunner{}, time.Hour)
	s.Start()
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	s.Rebuild(allEnabled())
	s.Rebuild(settings.Service{MonitorTranscoding: true, TranscodingTimeframe: settings.Timeframe30Min})

	require.Equal(t, map[string]int{
		"transcoding":              30,
		scheduler.SyncLibrariesID: 60,
	}, intervals(s.Jobs()))
}

func TestRunNowInvokesRunner(t *testing.T) {
	runner := &recordingRunner{}
	s := scheduler.New(runner, time.Hour)
	s.Rebuild(allEnabled())

	require.NoError(t, s.RunNow("stream_started"))
	require.NoError(t, s.RunNow(scheduler.SyncLibrariesID))
	require.Equal(t, []string{"stream_started", scheduler.SyncLibrariesID}, runner.Calls())

	require.ErrorIs(t, s.RunNow("nope"), scheduler.ErrUnknownJob)
}

func TestPanickingJobIsIsolated(t *testing.T) {
	m := metrics.New()
	runner := &recordingRunner{panic: map[string]bool{"media_added": true}}
	s := scheduler.New(runner, time.Hour, scheduler.WithMetrics(m))
	s.Rebuild(allEnabled())

	require.NotPanics(t, func() {
		require.NoError(t, s.RunNow("media_added"))
	})
	require.NoError(t, s.RunNow("media_removed"))
	require.Equal(t, []string{"media_added", "media_removed"}, runner.Calls())
	require.Equal(t, float64(1), testutil.ToFloat64(m.JobRuns.WithLabelValues("media_added", metrics.OutcomePanic)))
}

func TestNewDefaultsSyncInterval(t *testing.T) {
	s := scheduler.New(nil, 0)
	require.Equal(t, scheduler.DefaultSyncInterval, s.SyncInterval())
	s.Rebuild(settings.Service{})
	require.NoError(t, s.RunNow(scheduler.SyncLibrariesID))
}
