// Package config provides configuration management for the debug
// session server.
//
// Configuration controls the ambient limits around the core engine:
// how many concurrent sessions are tolerated, how long an idle session
// is kept before being reaped, and the skip-redundant-pauses
// knob. It carries no language-runtime-specific settings — the
// runtime's address and (optionally) its launch command arrive
// per-session over DAP launch arguments, not from a static file.
//
// Configuration can be loaded from a JSON file or use sensible
// defaults, exactly as the teacher's config package does.
package config

import (
	"encoding/json"
	"os"
	"time"
)

// Config holds the server configuration.
type Config struct {
	// MaxSessions caps the number of concurrent debug sessions.
	MaxSessions int `json:"maxSessions"`

	// SessionTimeout is how long an idle session (no requests
	// received) is kept before the registry reaps it.
	SessionTimeout time.Duration `json:"sessionTimeout"`

	// SkipRedundantPauses wires the redundancy-skip configuration knob:
	// when true, a breakpoint pre-check is skipped on the step the
	// engine is already paused on.
	SkipRedundantPauses bool `json:"skipRedundantPauses"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxSessions:         32,
		SessionTimeout:      30 * time.Minute,
		SkipRedundantPauses: true,
	}
}

// LoadConfig loads configuration from a JSON file, falling back to
// defaults for any field the file omits. An empty path returns the
// defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
