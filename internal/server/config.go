// Package server provides configuration helpers that define runtime defaults,
// validation, and environment parsing for the relay service.
package server

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig defines the parameters for per-connection chat rate limiting.
// A zero Burst disables the limiter.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the relay configuration settings.
type Config struct {
	// Addr is the TCP address the framed relay listens on.
	Addr string
	// HTTPAddr serves health, stats and the WebSocket gateway. Empty disables it.
	HTTPAddr       string
	PoolSize       int
	WriteTimeout   time.Duration
	AllowedOrigins []string
	RateLimit      RateLimitConfig
	NATSURL        string
	NATSSubject    string
}

const (
	defaultAddr         = "127.0.0.1:6000"
	defaultHTTPAddr     = "127.0.0.1:8080"
	defaultPoolSize     = 10
	defaultWriteTimeout = 10 * time.Second
	defaultNATSSubject  = "relay.announcements"
)

var errPoolSize = errors.New("config: pool size must be at least 1")

func defaultConfig() Config {
	return Config{
		Addr:         defaultAddr,
		HTTPAddr:     defaultHTTPAddr,
		PoolSize:     defaultPoolSize,
		WriteTimeout: defaultWriteTimeout,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		RateLimit: RateLimitConfig{
			RefillInterval: time.Second,
		},
		NATSSubject: defaultNATSSubject,
	}
}

// sanitize fills in defaults for optional settings. PoolSize is left alone so
// that Validate can report it.
func sanitize(cfg Config) Config {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	if cfg.RateLimit.Burst < 0 {
		cfg.RateLimit.Burst = 0
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}

	if cfg.NATSSubject == "" {
		cfg.NATSSubject = defaultNATSSubject
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// Validate reports settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.PoolSize < 1 {
		return errPoolSize
	}
	return nil
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	// Load RELAY_ADDR
	if addr := os.Getenv("RELAY_ADDR"); addr != "" {
		cfg.Addr = addr
	}

	// Load HTTP_ADDR; "off" disables the HTTP surface
	if httpAddr, ok := os.LookupEnv("HTTP_ADDR"); ok {
		if strings.EqualFold(httpAddr, "off") {
			httpAddr = ""
		}
		cfg.HTTPAddr = httpAddr
	}

	// Load POOL_SIZE
	if size := os.Getenv("POOL_SIZE"); size != "" {
		cfg.PoolSize = parseIntValue(size, cfg.PoolSize)
	}

	// Load WRITE_TIMEOUT (seconds)
	if timeout := os.Getenv("WRITE_TIMEOUT"); timeout != "" {
		cfg.WriteTimeout = parseSeconds(timeout, cfg.WriteTimeout)
	}

	// Load ALLOWED_ORIGINS
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	// Load RATE_LIMIT_BURST; 0 leaves rate limiting off
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseNonNegative(burst, cfg.RateLimit.Burst)
	}

	// Load RATE_LIMIT_REFILL_INTERVAL (seconds)
	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSeconds(interval, cfg.RateLimit.RefillInterval)
	}

	// Load NATS_URL and NATS_SUBJECT
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.NATSURL = url
	}
	if subject := os.Getenv("NATS_SUBJECT"); subject != "" {
		cfg.NATSSubject = subject
	}

	return &cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseNonNegative(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
