package infrastructure

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	RateLimiterAttemptWindow = "attempt_window"
	RateLimiterNone          = "none"
)

// envBindings maps config keys to the environment variables they are read from.
var envBindings = map[string]string{
	"matrix.token":                "MATRIX_TOKEN",
	"matrix.server":               "MATRIX_SERVER",
	"matrix.shared_secret":        "MATRIX_SHARED_SECRET",
	"server.bind_addr":            "BIND_ADDR",
	"server.trusted_proxy_header": "TRUSTED_PROXY_HEADER",
	"ratelimiter.type":            "RATE_LIMITER_TYPE",
	"ratelimiter.limit":           "RATE_LIMIT_ATTEMPTS",
	"ratelimiter.window":          "RATE_LIMIT_WINDOW",
	"ratelimiter.max_entries":     "RATE_LIMIT_MAX_ENTRIES",
	"upstream.rps":                "UPSTREAM_RPS",
	"log.level":                   "LOG_LEVEL",
}

var required = []string{"matrix.token", "matrix.server", "matrix.shared_secret"}

// MissingEnvError reports a required environment variable that was not set.
type MissingEnvError struct {
	Name string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("missing required env var %s", e.Name)
}

var ErrInvalidBindAddr = errors.New("invalid BIND_ADDR; expected host:port")

// LoadConfig reads the configuration from the environment. A .env file in the
// working directory is loaded first if present; real environment variables win.
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	return loadFromViper(viper.New())
}

// loadDotEnv loads path into the environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func loadFromViper(v *viper.Viper) (*Config, error) {
	v.SetDefault("server.bind_addr", "0.0.0.0:8080")
	v.SetDefault("server.trusted_proxy_header", "X-Forwarded-For")
	v.SetDefault("ratelimiter.type", RateLimiterAttemptWindow)
	v.SetDefault("ratelimiter.limit", 3)
	v.SetDefault("ratelimiter.window", "24h")
	v.SetDefault("ratelimiter.max_entries", 100000)
	v.SetDefault("upstream.rps", 0)
	v.SetDefault("log.level", "info")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	for _, key := range required {
		if !v.IsSet(key) {
			return nil, &MissingEnvError{Name: envBindings[key]}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Matrix.Server = strings.TrimRight(config.Matrix.Server, "/")

	if _, err := netip.ParseAddrPort(config.Server.BindAddr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBindAddr, err)
	}
	switch config.RateLimiter.Type {
	case RateLimiterAttemptWindow:
		if config.RateLimiter.Limit <= 0 || config.RateLimiter.Window <= 0 {
			return nil, fmt.Errorf("invalid rate limiter settings: limit %d, window %v", config.RateLimiter.Limit, config.RateLimiter.Window)
		}
	case RateLimiterNone:
	default:
		return nil, fmt.Errorf("invalid rate limiter type: %s", config.RateLimiter.Type)
	}
	if config.Upstream.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("invalid UPSTREAM_RPS: %v", config.Upstream.RequestsPerSecond)
	}
	return &config, nil
}
