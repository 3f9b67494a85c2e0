package settings

import "testing"

func TestTimeframeMinutes(t *testing.T) {
	cases := map[Timeframe]int{
		"15 min":  15,
		"30 min":  30,
		"1 hour":  60,
		"4 hours": 240,
		"":        15,
		"2 days":  15,
		"1 Hour":  15,
	}
	for tf, want := range cases {
		if got := tf.Minutes(); got != want {
			t.Fatalf("Timeframe(%q).Minutes() = %d, want %d", tf, got, want)
		}
	}
}

func TestNormalizeTimeframe(t *testing.T) {
	if got := NormalizeTimeframe(" 4 hours "); got != Timeframe4Hours {
		t.Fatalf("expected trimmed 4 hours, got %q", got)
	}
	if got := NormalizeTimeframe("weekly"); got != DefaultTimeframe {
		t.Fatalf("expected default for unknown label, got %q", got)
	}
}

func TestServiceMonitorAccessors(t *testing.T) {
	var svc Service
	svc.SetMonitor(MonitorStreamStarted, true, Timeframe30Min)
	for _, m := range AllMonitors() {
		want := m == MonitorStreamStarted
		if svc.Enabled(m) != want {
			t.Fatalf("Enabled(%s) = %v, want %v", m, svc.Enabled(m), want)
		}
	}
	if svc.Timeframe(MonitorStreamStarted) != Timeframe30Min {
		t.Fatalf("unexpected timeframe: %q", svc.Timeframe(MonitorStreamStarted))
	}
	if svc.Enabled(Monitor("bogus")) {
		t.Fatal("unknown monitor should never be enabled")
	}
}

func TestParseMonitor(t *testing.T) {
	if m, ok := ParseMonitor("transcoding"); !ok || m != MonitorTranscoding {
		t.Fatalf("ParseMonitor(transcoding) = %q, %v", m, ok)
	}
	if _, ok := ParseMonitor("sync_libraries"); ok {
		t.Fatal("sync_libraries is a job, not a monitor")
	}
}

func TestMaskedAPIKey(t *testing.T) {
	if got := (Service{JellyfinAPIKey: "abcdef123456"}).MaskedAPIKey(); got != "********3456" {
		t.Fatalf("unexpected mask %q", got)
	}
	if got := (Service{JellyfinAPIKey: "abc"}).MaskedAPIKey(); got != "***" {
		t.Fatalf("unexpected short mask %q", got)
	}
}
