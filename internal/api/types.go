package api

import (
	"sort"
	"strings"
	"time"

	"jellywatch/internal/monitor"
	"jellywatch/internal/scheduler"
	"jellywatch/internal/services/jellyfin"
	"jellywatch/internal/settings"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running          bool   `json:"running"`
	PID              int    `json:"pid"`
	DatabasePath     string `json:"database_path"`
	LockFilePath     string `json:"lock_file_path"`
	Configured       bool   `json:"configured"`
	JellyfinURL      string `json:"jellyfin_url,omitempty"`
	SchedulerRunning bool   `json:"scheduler_running"`
	JobCount         int    `json:"job_count"`
	BreakerState     string `json:"breaker_state,omitempty"`
	LibraryCount     int    `json:"library_count"`
	LastSync         string `json:"last_sync,omitempty"`
}

// MonitorSetting is one monitor flag and its polling timeframe.
type MonitorSetting struct {
	Name            string `json:"name"`
	Enabled         bool   `json:"enabled"`
	Timeframe       string `json:"timeframe"`
	IntervalMinutes int    `json:"interval_minutes"`
}

// ServiceSettings is the read view of the service row. The API key is masked.
type ServiceSettings struct {
	Configured     bool             `json:"configured"`
	JellyfinURL    string           `json:"jellyfin_url"`
	JellyfinAPIKey string           `json:"jellyfin_api_key"`
	Monitors       []MonitorSetting `json:"monitors"`
	UpdatedAt      string           `json:"updated_at,omitempty"`
}

// MonitorSettingRequest toggles one monitor.
type MonitorSettingRequest struct {
	Name      string `json:"name" validate:"required,oneof=media_added media_removed stream_started transcoding"`
	Enabled   bool   `json:"enabled"`
	Timeframe string `json:"timeframe" validate:"max=32"`
}

// ServiceRequest replaces the service row. An empty API key keeps the stored key.
type ServiceRequest struct {
	JellyfinURL    string                  `json:"jellyfin_url" validate:"required,url"`
	JellyfinAPIKey string                  `json:"jellyfin_api_key" validate:"max=256"`
	Monitors       []MonitorSettingRequest `json:"monitors" validate:"dive"`
}

// SMTPSettings is the read view of the SMTP row. The password is never returned.
type SMTPSettings struct {
	Configured  bool   `json:"configured"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Sender      string `json:"sender"`
	UseTLS      bool   `json:"use_tls"`
	HasPassword bool   `json:"has_password"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// SMTPRequest replaces the SMTP row. An empty password keeps the stored one.
type SMTPRequest struct {
	Host     string `json:"host" validate:"required,max=253"`
	Port     int    `json:"port" validate:"required,min=1,max=65535"`
	Username string `json:"username" validate:"max=256"`
	Password string `json:"password" validate:"max=256"`
	Sender   string `json:"sender" validate:"required,email"`
	UseTLS   bool   `json:"use_tls"`
}

// PersonRequest creates or replaces a person.
type PersonRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
}

// AutoSendRequest creates or replaces an auto-send entry.
type AutoSendRequest struct {
	PersonID int64  `json:"person_id" validate:"required,gt=0"`
	Subject  string `json:"subject" validate:"required,max=200"`
	Body     string `json:"body" validate:"max=10000"`
	Interval string `json:"interval" validate:"max=32"`
	Enabled  *bool  `json:"enabled"`
}

// JobView is one row of the scheduler table with its latest run.
type JobView struct {
	ID              string             `json:"id"`
	IntervalMinutes int                `json:"interval_minutes"`
	Next            string             `json:"next,omitempty"`
	Prev            string             `json:"prev,omitempty"`
	LastRun         *monitor.RunRecord `json:"last_run,omitempty"`
}

// JobsResponse wraps the job table.
type JobsResponse struct {
	Running bool      `json:"running"`
	Jobs    []JobView `json:"jobs"`
}

// SyncNowResponse reports a manual library sync.
type SyncNowResponse struct {
	Success   bool               `json:"success"`
	Error     string             `json:"error,omitempty"`
	Libraries []jellyfin.Library `json:"libraries,omitempty"`
}

// PeopleResponse wraps the people list.
type PeopleResponse struct {
	People []settings.Person `json:"people"`
}

// AutoSendsResponse wraps the auto-send list.
type AutoSendsResponse struct {
	AutoSends []settings.AutoSend `json:"auto_sends"`
}

// FromService converts a stored service row. A zero row reports unconfigured
// with every monitor disabled at the default timeframe.
func FromService(svc settings.Service, configured bool) ServiceSettings {
	if !configured {
		svc = settings.NormalizeService(settings.Service{})
	}
	out := ServiceSettings{
		Configured:     configured,
		JellyfinURL:    svc.JellyfinURL,
		JellyfinAPIKey: svc.MaskedAPIKey(),
		Monitors:       make([]MonitorSetting, 0, len(settings.AllMonitors())),
		UpdatedAt:      formatTime(svc.UpdatedAt),
	}
	for _, m := range settings.AllMonitors() {
		tf := svc.Timeframe(m)
		out.Monitors = append(out.Monitors, MonitorSetting{
			Name:            string(m),
			Enabled:         svc.Enabled(m),
			Timeframe:       string(tf),
			IntervalMinutes: tf.Minutes(),
		})
	}
	return out
}

// ToService applies the request on top of current. Monitors missing from the
// request are disabled.
func (r ServiceRequest) ToService(current settings.Service) settings.Service {
	svc := settings.Service{
		JellyfinURL:    r.JellyfinURL,
		JellyfinAPIKey: strings.TrimSpace(r.JellyfinAPIKey),
	}
	if svc.JellyfinAPIKey == "" {
		svc.JellyfinAPIKey = current.JellyfinAPIKey
	}
	for _, m := range settings.AllMonitors() {
		svc.SetMonitor(m, false, current.Timeframe(m))
	}
	for _, req := range r.Monitors {
		m, ok := settings.ParseMonitor(req.Name)
		if !ok {
			continue
		}
		svc.SetMonitor(m, req.Enabled, settings.NormalizeTimeframe(req.Timeframe))
	}
	return svc
}

// FromSMTP converts a stored SMTP row.
func FromSMTP(cfg settings.SMTP, configured bool) SMTPSettings {
	return SMTPSettings{
		Configured:  configured,
		Host:        cfg.Host,
		Port:        cfg.Port,
		Username:    cfg.Username,
		Sender:      cfg.Sender,
		UseTLS:      cfg.UseTLS,
		HasPassword: cfg.Password != "",
		UpdatedAt:   formatTime(cfg.UpdatedAt),
	}
}

// ToSMTP applies the request on top of current.
func (r SMTPRequest) ToSMTP(current settings.SMTP) settings.SMTP {
	out := settings.SMTP{
		Host:     r.Host,
		Port:     r.Port,
		Username: r.Username,
		Password: r.Password,
		Sender:   r.Sender,
		UseTLS:   r.UseTLS,
	}
	if out.Password == "" {
		out.Password = current.Password
	}
	return out
}

// ToAutoSend builds the stored entry. Enabled defaults to true.
func (r AutoSendRequest) ToAutoSend(id int64) settings.AutoSend {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return settings.AutoSend{
		ID:       id,
		PersonID: r.PersonID,
		Subject:  r.Subject,
		Body:     r.Body,
		Interval: settings.NormalizeTimeframe(r.Interval),
		Enabled:  enabled,
	}
}

// JobViews joins the scheduler table with the latest run of each job,
// ordered by id.
func JobViews(jobs []scheduler.Job, runs map[string]monitor.RunRecord) []JobView {
	out := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		view := JobView{
			ID:              job.ID,
			IntervalMinutes: job.IntervalMinutes(),
			Next:            formatTime(job.Next),
			Prev:            formatTime(job.Prev),
		}
		if rec, ok := runs[job.ID]; ok {
			view.LastRun = &rec
		}
		out = append(out, view)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(dateTimeFormat)
}
