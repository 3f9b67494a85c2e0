package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"jellywatch/internal/api"
	"jellywatch/internal/settings"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDaemonStatusLines(t *testing.T) {
	lines := daemonStatusLines(api.DaemonStatus{
		Running:          true,
		PID:              7,
		Configured:       true,
		JellyfinURL:      "http://jellyfin.local",
		SchedulerRunning: true,
		JobCount:         3,
		BreakerState:     "open",
		LibraryCount:     2,
		LastSync:         "2026-01-02T03:04:05Z",
	}, false)
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(lines))
	}
	checks := []string{
		"[OK] Running (pid 7)",
		"[OK] http://jellyfin.local",
		"[OK] 3 job(s) scheduled",
		"[ERROR] open",
		"[INFO] 2 (synced 2026-01-02T03:04:05Z)",
	}
	for i, want := range checks {
		if !strings.Contains(lines[i], want) {
			t.Fatalf("line %d: expected %q in %q", i, want, lines[i])
		}
	}
}

func TestJobRowsAndIntervals(t *testing.T) {
	rows := jobRows([]api.JobView{
		{ID: "transcoding", IntervalMinutes: 240},
		{ID: "media_added", IntervalMinutes: 15, Next: "not-a-time"},
	})
	if rows[0][1] != "4h" || rows[1][1] != "15m" {
		t.Fatalf("unexpected intervals %v", rows)
	}
	if rows[0][2] != "-" || rows[1][2] != "not-a-time" {
		t.Fatalf("unexpected next column %v", rows)
	}
	if rows[0][4] != "-" {
		t.Fatalf("expected empty outcome, got %q", rows[0][4])
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, []columnAlignment{alignLeft, alignRight})
	if !strings.Contains(out, "only") || !strings.HasSuffix(out, "\n") {
		t.Fatalf("unexpected table %q", out)
	}
}

func TestDatabaseHealthLine(t *testing.T) {
	healthy := settings.DatabaseHealth{DBPath: "/data/jellywatch.db", SchemaVersion: "001", ExpectedVersion: "001", IntegrityCheck: true}
	if got := databaseHealthLine(healthy, nil, false); !strings.Contains(got, "[OK] /data/jellywatch.db (schema 001)") {
		t.Fatalf("unexpected healthy line %q", got)
	}

	stale := healthy
	stale.SchemaVersion = "000"
	if got := databaseHealthLine(stale, nil, false); !strings.Contains(got, "[WARN] schema 000, expected 001") {
		t.Fatalf("unexpected stale line %q", got)
	}

	failed := settings.DatabaseHealth{Error: "disk I/O error"}
	if got := databaseHealthLine(failed, errors.New("daemon returned 503"), false); !strings.Contains(got, "[ERROR] disk I/O error") {
		t.Fatalf("unexpected failure line %q", got)
	}
}
