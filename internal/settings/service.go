package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

type serviceRow struct {
	JellyfinURL            string `db:"jellyfin_url"`
	JellyfinAPIKey         string `db:"jellyfin_api_key"`
	MonitorMediaAdded      bool   `db:"monitor_media_added"`
	MonitorMediaRemoved    bool   `db:"monitor_media_removed"`
	MonitorStreamStarted   bool   `db:"monitor_stream_started"`
	MonitorTranscoding     bool   `db:"monitor_transcoding"`
	MediaAddedTimeframe    string `db:"media_added_timeframe"`
	MediaRemovedTimeframe  string `db:"media_removed_timeframe"`
	StreamStartedTimeframe string `db:"stream_started_timeframe"`
	TranscodingTimeframe   string `db:"transcoding_timeframe"`
	UpdatedAt              string `db:"updated_at"`
}

func (r serviceRow) toService() Service {
	return Service{
		JellyfinURL:            r.JellyfinURL,
		JellyfinAPIKey:         r.JellyfinAPIKey,
		MonitorMediaAdded:      r.MonitorMediaAdded,
		MonitorMediaRemoved:    r.MonitorMediaRemoved,
		MonitorStreamStarted:   r.MonitorStreamStarted,
		MonitorTranscoding:     r.MonitorTranscoding,
		MediaAddedTimeframe:    NormalizeTimeframe(r.MediaAddedTimeframe),
		MediaRemovedTimeframe:  NormalizeTimeframe(r.MediaRemovedTimeframe),
		StreamStartedTimeframe: NormalizeTimeframe(r.StreamStartedTimeframe),
		TranscodingTimeframe:   NormalizeTimeframe(r.TranscodingTimeframe),
		UpdatedAt:              parseTimestamp(r.UpdatedAt),
	}
}

// Service loads the Jellyfin service row. ErrNotConfigured is returned when no
// row has been saved.
func (s *Store) Service(ctx context.Context) (Service, error) {
	ctx = ensureContext(ctx)
	var row serviceRow
	err := s.db.GetContext(ctx, &row, `SELECT
            jellyfin_url, jellyfin_api_key,
            monitor_media_added, monitor_media_removed, monitor_stream_started, monitor_transcoding,
            media_added_timeframe, media_removed_timeframe, stream_started_timeframe, transcoding_timeframe,
            updated_at
        FROM service_settings WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return Service{}, ErrNotConfigured
	}
	if err != nil {
		return Service{}, fmt.Errorf("load service settings: %w", err)
	}
	return row.toService(), nil
}

// NormalizeService trims the connection fields and replaces unknown timeframes
// with the default.
func NormalizeService(svc Service) Service {
	svc.JellyfinURL = strings.TrimRight(strings.TrimSpace(svc.JellyfinURL), "/")
	svc.JellyfinAPIKey = strings.TrimSpace(svc.JellyfinAPIKey)
	for _, m := range AllMonitors() {
		svc.SetMonitor(m, svc.Enabled(m), NormalizeTimeframe(string(svc.Timeframe(m))))
	}
	return svc
}

// ValidateService checks the connection fields of a normalized service row.
func ValidateService(svc Service) error {
	if svc.JellyfinURL == "" {
		return validationError("validate service", "jellyfin url is required")
	}
	parsed, err := url.Parse(svc.JellyfinURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return validationError("validate service", fmt.Sprintf("jellyfin url %q must be an absolute http(s) URL", svc.JellyfinURL))
	}
	if svc.JellyfinAPIKey == "" {
		return validationError("validate service", "jellyfin api key is required")
	}
	return nil
}

// SaveService normalizes, validates and upserts the single service row. The
// stored row is returned.
func (s *Store) SaveService(ctx context.Context, svc Service) (Service, error) {
	svc = NormalizeService(svc)
	if err := ValidateService(svc); err != nil {
		return Service{}, err
	}
	stamp := s.timestamp()
	_, err := s.execWithRetry(ctx, `INSERT INTO service_settings (
            id, jellyfin_url, jellyfin_api_key,
            monitor_media_added, monitor_media_removed, monitor_stream_started, monitor_transcoding,
            media_added_timeframe, media_removed_timeframe, stream_started_timeframe, transcoding_timeframe,
            updated_at
        ) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            jellyfin_url = excluded.jellyfin_url,
            jellyfin_api_key = excluded.jellyfin_api_key,
            monitor_media_added = excluded.monitor_media_added,
            monitor_media_removed = excluded.monitor_media_removed,
            monitor_stream_started = excluded.monitor_stream_started,
            monitor_transcoding = excluded.monitor_transcoding,
            media_added_timeframe = excluded.media_added_timeframe,
            media_removed_timeframe = excluded.media_removed_timeframe,
            stream_started_timeframe = excluded.stream_started_timeframe,
            transcoding_timeframe = excluded.transcoding_timeframe,
            updated_at = excluded.updated_at`,
		svc.JellyfinURL,
		svc.JellyfinAPIKey,
		svc.MonitorMediaAdded,
		svc.MonitorMediaRemoved,
		svc.MonitorStreamStarted,
		svc.MonitorTranscoding,
		string(svc.MediaAddedTimeframe),
		string(svc.MediaRemovedTimeframe),
		string(svc.StreamStartedTimeframe),
		string(svc.TranscodingTimeframe),
		stamp,
	)
	if err != nil {
		return Service{}, fmt.Errorf("save service settings: %w", err)
	}
	svc.UpdatedAt = parseTimestamp(stamp)
	return svc, nil
}

// SeedService stores svc only when no service row exists yet. It reports
// whether a row was written.
func (s *Store) SeedService(ctx context.Context, svc Service) (bool, error) {
	if _, err := s.Service(ctx); err == nil {
		return false, nil
	} else if !IsNotConfigured(err) {
		return false, err
	}
	if _, err := s.SaveService(ctx, svc); err != nil {
		return false, err
	}
	return true, nil
}

type smtpRow struct {
	Host      string `db:"host"`
	Port      int    `db:"port"`
	Username  string `db:"username"`
	Password  string `db:"password"`
	Sender    string `db:"sender"`
	UseTLS    bool   `db:"use_tls"`
	UpdatedAt string `db:"updated_at"`
}

// SMTP loads the mail credentials row. ErrNotConfigured is returned when absent.
func (s *Store) SMTP(ctx context.Context) (SMTP, error) {
	ctx = ensureContext(ctx)
	var row smtpRow
	err := s.db.GetContext(ctx, &row,
		`SELECT host, port, username, password, sender, use_tls, updated_at FROM smtp_settings WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return SMTP{}, ErrNotConfigured
	}
	if err != nil {
		return SMTP{}, fmt.Errorf("load smtp settings: %w", err)
	}
	return SMTP{
		Host:      row.Host,
		Port:      row.Port,
		Username:  row.Username,
		Password:  row.Password,
		Sender:    row.Sender,
		UseTLS:    row.UseTLS,
		UpdatedAt: parseTimestamp(row.UpdatedAt),
	}, nil
}

// SaveSMTP upserts the single SMTP row.
func (s *Store) SaveSMTP(ctx context.Context, cfg SMTP) (SMTP, error) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.Sender = strings.TrimSpace(cfg.Sender)
	cfg.Username = strings.TrimSpace(cfg.Username)
	if cfg.Host == "" {
		return SMTP{}, validationError("save smtp", "host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return SMTP{}, validationError("save smtp", fmt.Sprintf("port %d out of range", cfg.Port))
	}
	if cfg.Sender == "" {
		return SMTP{}, validationError("save smtp", "sender is required")
	}
	stamp := s.timestamp()
	_, err := s.execWithRetry(ctx, `INSERT INTO smtp_settings (id, host, port, username, password, sender, use_tls, updated_at)
        VALUES (1, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            host = excluded.host,
            port = excluded.port,
            username = excluded.username,
            password = excluded.password,
            sender = excluded.sender,
            use_tls = excluded.use_tls,
            updated_at = excluded.updated_at`,
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Sender, cfg.UseTLS, stamp,
	)
	if err != nil {
		return SMTP{}, fmt.Errorf("save smtp settings: %w", err)
	}
	cfg.UpdatedAt = parseTimestamp(stamp)
	return cfg, nil
}
