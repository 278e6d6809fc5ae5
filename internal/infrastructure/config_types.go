package infrastructure

import "time"

// Matrix holds the homeserver connection and shared secrets
type Matrix struct {
	Token        string `mapstructure:"token"`         // registration token handed out to users
	Server       string `mapstructure:"server"`        // homeserver base URL, no trailing slash
	SharedSecret string `mapstructure:"shared_secret"` // registration_shared_secret of the homeserver
}

// Server holds the listener settings of the bridge
type Server struct {
	BindAddr           string `mapstructure:"bind_addr"`
	TrustedProxyHeader string `mapstructure:"trusted_proxy_header"`
}

// RateLimiter defines the structure for rate limiter configuration
type RateLimiter struct {
	Type       string        `mapstructure:"type"`        // "attempt_window" or "none"
	Limit      int           `mapstructure:"limit"`       // attempts allowed per window
	Window     time.Duration `mapstructure:"window"`      // rolling window, reset lazily
	MaxEntries int           `mapstructure:"max_entries"` // soft bound on tracked client IPs
}

// Upstream tunes outbound calls to the homeserver
type Upstream struct {
	RequestsPerSecond float64 `mapstructure:"rps"` // 0 means unlimited
}

// Log holds the logger settings
type Log struct {
	Level string `mapstructure:"level"`
}

// Config holds the overall configuration
type Config struct {
	Matrix      Matrix      `mapstructure:"matrix"`
	Server      Server      `mapstructure:"server"`
	RateLimiter RateLimiter `mapstructure:"ratelimiter"`
	Upstream    Upstream    `mapstructure:"upstream"`
	Log         Log         `mapstructure:"log"`
}
