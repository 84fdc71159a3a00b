package entities

import (
	"time"
)

// Config holds the limits and ambient settings of a host Context.
type Config struct {
	// LogLevel is the logging verbosity ("debug", "info", "warn", "error").
	LogLevel string `json:"log_level" env:"TEE_LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	// LogFormat selects the slog handler ("text" or "json").
	LogFormat string `json:"log_format" env:"TEE_LOG_FORMAT" envDefault:"text" validate:"oneof=text json"`

	// MaxSessions bounds the number of sessions open at once on a Context.
	MaxSessions int `json:"max_sessions" env:"TEE_MAX_SESSIONS" envDefault:"16" validate:"min=1,max=4096"`

	// MaxRegions bounds the number of live shared regions.
	MaxRegions int `json:"max_regions" env:"TEE_MAX_REGIONS" envDefault:"64" validate:"min=1"`

	// MaxRegionSize is the largest single shared region in bytes.
	MaxRegionSize uint32 `json:"max_region_size" env:"TEE_MAX_REGION_SIZE" envDefault:"1048576" validate:"min=1"`

	// MaxSharedTotal bounds the bytes held by all live shared regions.
	MaxSharedTotal uint64 `json:"max_shared_total" env:"TEE_MAX_SHARED_TOTAL" envDefault:"16777216" validate:"min=1"`

	// ArenaPages bounds the task memory of one session, in 64 KiB pages.
	ArenaPages uint32 `json:"arena_pages" env:"TEE_ARENA_PAGES" envDefault:"64" validate:"min=1,max=65536"`

	// InvokeTimeout bounds the wait for a session that is busy with another
	// invocation.
	InvokeTimeout time.Duration `json:"invoke_timeout" env:"TEE_INVOKE_TIMEOUT" envDefault:"5s" validate:"gt=0"`
}

// DefaultConfig returns the default Context configuration.
func DefaultConfig() Config {
	return Config{
		LogLevel:       "info",
		LogFormat:      "text",
		MaxSessions:    16,
		MaxRegions:     64,
		MaxRegionSize:  1 << 20,
		MaxSharedTotal: 16 << 20,
		ArenaPages:     64,
		InvokeTimeout:  5 * time.Second,
	}
}

// ConfigOption is a functional option for configuring a Context.
type ConfigOption func(*Config)

// WithMaxSessions sets the session limit.
func WithMaxSessions(n int) ConfigOption {
	return func(c *Config) {
		if n > 0 {
			c.MaxSessions = n
		}
	}
}

// WithRegionLimits sets the shared region count and size limits.
// Non-positive values keep the current setting.
func WithRegionLimits(count int, size uint32, total uint64) ConfigOption {
	return func(c *Config) {
		if count > 0 {
			c.MaxRegions = count
		}
		if size > 0 {
			c.MaxRegionSize = size
		}
		if total > 0 {
			c.MaxSharedTotal = total
		}
	}
}

// WithArenaPages sets the per-session task memory limit.
func WithArenaPages(pages uint32) ConfigOption {
	return func(c *Config) {
		if pages > 0 {
			c.ArenaPages = pages
		}
	}
}

// WithInvokeTimeout sets the bounded wait for a busy session.
func WithInvokeTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		if d > 0 {
			c.InvokeTimeout = d
		}
	}
}

// WithLogLevel sets the logging verbosity level.
func WithLogLevel(level string) ConfigOption {
	return func(c *Config) {
		c.LogLevel = level
	}
}

// NewConfig creates a new Config with the given options.
func NewConfig(opts ...ConfigOption) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
