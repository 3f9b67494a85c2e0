package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateJellyfin(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validateJellyfin() error {
	if c.Jellyfin.URL != "" {
		parsed, err := url.Parse(c.Jellyfin.URL)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return fmt.Errorf("jellyfin.url %q must be an absolute http(s) URL", c.Jellyfin.URL)
		}
	}
	if c.Jellyfin.RateLimitPerSecond < 0 {
		return errors.New("jellyfin.rate_limit_per_second must be >= 0")
	}
	if c.Jellyfin.BreakerFailureThreshold < 0 {
		return errors.New("jellyfin.breaker_failure_threshold must be >= 0")
	}
	return ensurePositiveMap(map[string]int{
		"jellyfin.request_timeout": c.Jellyfin.RequestTimeout,
		"jellyfin.breaker_timeout": c.Jellyfin.BreakerTimeout,
	})
}

func (c *Config) validateScheduler() error {
	return ensurePositiveMap(map[string]int{
		"scheduler.sync_interval": c.Scheduler.SyncInterval,
		"scheduler.job_timeout":   c.Scheduler.JobTimeout,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
