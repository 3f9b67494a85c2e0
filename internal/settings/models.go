package settings

import (
	"strings"
	"time"
)

// Timeframe selects a polling interval from a fixed set of labels.
type Timeframe string

const (
	Timeframe15Min  Timeframe = "15 min"
	Timeframe30Min  Timeframe = "30 min"
	Timeframe1Hour  Timeframe = "1 hour"
	Timeframe4Hours Timeframe = "4 hours"

	DefaultTimeframe = Timeframe15Min
)

var timeframeMinutes = map[Timeframe]int{
	Timeframe15Min:  15,
	Timeframe30Min:  30,
	Timeframe1Hour:  60,
	Timeframe4Hours: 240,
}

// Timeframes returns the recognized labels from shortest to longest.
func Timeframes() []Timeframe {
	return []Timeframe{Timeframe15Min, Timeframe30Min, Timeframe1Hour, Timeframe4Hours}
}

// Minutes maps the label to its interval. Unrecognized labels use 15.
func (t Timeframe) Minutes() int {
	if minutes, ok := timeframeMinutes[t]; ok {
		return minutes
	}
	return timeframeMinutes[DefaultTimeframe]
}

// Interval is Minutes as a duration.
func (t Timeframe) Interval() time.Duration {
	return time.Duration(t.Minutes()) * time.Minute
}

// Valid reports whether the label is one of the recognized timeframes.
func (t Timeframe) Valid() bool {
	_, ok := timeframeMinutes[t]
	return ok
}

// NormalizeTimeframe trims the label and falls back to the default when unrecognized.
func NormalizeTimeframe(value string) Timeframe {
	tf := Timeframe(strings.TrimSpace(value))
	if tf.Valid() {
		return tf
	}
	return DefaultTimeframe
}

// Monitor identifies a polled Jellyfin event type. The value doubles as the
// scheduler job id.
type Monitor string

const (
	MonitorMediaAdded    Monitor = "media_added"
	MonitorMediaRemoved  Monitor = "media_removed"
	MonitorStreamStarted Monitor = "stream_started"
	MonitorTranscoding   Monitor = "transcoding"
)

// AllMonitors returns every monitor in display order.
func AllMonitors() []Monitor {
	return []Monitor{MonitorMediaAdded, MonitorMediaRemoved, MonitorStreamStarted, MonitorTranscoding}
}

// ParseMonitor resolves a monitor id, reporting false when unknown.
func ParseMonitor(value string) (Monitor, bool) {
	m := Monitor(strings.TrimSpace(value))
	for _, known := range AllMonitors() {
		if m == known {
			return m, true
		}
	}
	return "", false
}

// Service is the single Jellyfin connection and monitoring row.
type Service struct {
	JellyfinURL    string `json:"jellyfin_url"`
	JellyfinAPIKey string `json:"jellyfin_api_key"`

	MonitorMediaAdded    bool `json:"monitor_media_added"`
	MonitorMediaRemoved  bool `json:"monitor_media_removed"`
	MonitorStreamStarted bool `json:"monitor_stream_started"`
	MonitorTranscoding   bool `json:"monitor_transcoding"`

	MediaAddedTimeframe    Timeframe `json:"media_added_timeframe"`
	MediaRemovedTimeframe  Timeframe `json:"media_removed_timeframe"`
	StreamStartedTimeframe Timeframe `json:"stream_started_timeframe"`
	TranscodingTimeframe   Timeframe `json:"transcoding_timeframe"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Enabled reports the flag for the given monitor.
func (s Service) Enabled(m Monitor) bool {
	switch m {
	case MonitorMediaAdded:
		return s.MonitorMediaAdded
	case MonitorMediaRemoved:
		return s.MonitorMediaRemoved
	case MonitorStreamStarted:
		return s.MonitorStreamStarted
	case MonitorTranscoding:
		return s.MonitorTranscoding
	default:
		return false
	}
}

// Timeframe reports the polling timeframe for the given monitor.
func (s Service) Timeframe(m Monitor) Timeframe {
	switch m {
	case MonitorMediaAdded:
		return s.MediaAddedTimeframe
	case MonitorMediaRemoved:
		return s.MediaRemovedTimeframe
	case MonitorStreamStarted:
		return s.StreamStartedTimeframe
	case MonitorTranscoding:
		return s.TranscodingTimeframe
	default:
		return DefaultTimeframe
	}
}

// SetMonitor updates the flag and timeframe for one monitor.
func (s *Service) SetMonitor(m Monitor, enabled bool, tf Timeframe) {
	switch m {
	case MonitorMediaAdded:
		s.MonitorMediaAdded, s.MediaAddedTimeframe = enabled, tf
	case MonitorMediaRemoved:
		s.MonitorMediaRemoved, s.MediaRemovedTimeframe = enabled, tf
	case MonitorStreamStarted:
		s.MonitorStreamStarted, s.StreamStartedTimeframe = enabled, tf
	case MonitorTranscoding:
		s.MonitorTranscoding, s.TranscodingTimeframe = enabled, tf
	}
}

// MaskedAPIKey hides all but the last four characters of the key.
func (s Service) MaskedAPIKey() string {
	key := s.JellyfinAPIKey
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

// SMTP holds outbound mail credentials. Delivery is handled elsewhere.
type SMTP struct {
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Username  string    `json:"username"`
	Password  string    `json:"password,omitempty"`
	Sender    string    `json:"sender"`
	UseTLS    bool      `json:"use_tls"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Person is a contact that auto-sends are addressed to.
type Person struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// AutoSend is a recurring message scheduled for a person.
type AutoSend struct {
	ID         int64      `json:"id"`
	PersonID   int64      `json:"person_id"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body"`
	Interval   Timeframe  `json:"interval"`
	Enabled    bool       `json:"enabled"`
	LastSentAt *time.Time `json:"last_sent_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// DatabaseHealth describes the state of the settings database.
type DatabaseHealth struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    string   `json:"schema_version"`
	ExpectedVersion  string   `json:"expected_version"`
	TablesPresent    []string `json:"tables_present"`
	MissingTables    []string `json:"missing_tables,omitempty"`
	IntegrityCheck   bool     `json:"integrity_check"`
	Configured       bool     `json:"configured"`
	PeopleCount      int      `json:"people_count"`
	Error            string   `json:"error,omitempty"`
}
