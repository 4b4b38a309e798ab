package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided. A missing default file is not an error.
	DefaultConfigPath = "config.yml"

	defaultPort             = 8080
	defaultProxyPort        = 8787
	defaultEnv              = "production"
	defaultAnalyticsTimeout = 10 * time.Second
	defaultAITimeout        = 30 * time.Second
	defaultProxyTimeout     = 15 * time.Second
	defaultCacheTTL         = 300 * time.Second
	defaultRateLimitRPS     = 2
	defaultRateLimitBurst   = 5
)

// EnvFiles are loaded, in order, before the config file. Existing variables win.
var EnvFiles = []string{".env", ".dev.vars"}
