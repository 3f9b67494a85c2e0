package config

const (
	defaultDataDir                 = "~/.local/share/jellywatch"
	defaultLogDir                  = "~/.local/share/jellywatch/logs"
	defaultAPIBind                 = "127.0.0.1:7580"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultRequestTimeout          = 30
	defaultRateLimitPerSecond      = 5.0
	defaultRateBurst               = 5
	defaultBreakerFailureThreshold = 5
	defaultBreakerTimeout          = 120
	defaultSyncInterval            = 60
	defaultJobTimeout              = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Jellyfin: Jellyfin{
			RequestTimeout:          defaultRequestTimeout,
			RateLimitPerSecond:      defaultRateLimitPerSecond,
			RateBurst:               defaultRateBurst,
			BreakerFailureThreshold: defaultBreakerFailureThreshold,
			BreakerTimeout:          defaultBreakerTimeout,
		},
		Scheduler: Scheduler{
			SyncInterval: defaultSyncInterval,
			JobTimeout:   defaultJobTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
