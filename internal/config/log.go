package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const (
	EnvLogLevel  = "HARBOR_LOG_LEVEL"
	EnvLogFormat = "HARBOR_LOG_FORMAT"
)

// LogConfig selects the slog handler and minimum level.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// SlogLevel returns Level as a slog.Level.
func (c *LogConfig) SlogLevel() slog.Level {
	var l slog.Level
	_ = l.UnmarshalText([]byte(c.Level))
	return l
}

// JSON reports whether records are emitted as JSON rather than text.
func (c *LogConfig) JSON() bool {
	return c.Format == "json"
}

func (c *LogConfig) Finalize() error {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Format = v
	}

	c.Level = strings.ToLower(c.Level)
	c.Format = strings.ToLower(c.Format)

	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return fmt.Errorf("invalid level %q", c.Level)
	}
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("invalid format %q", c.Format)
	}
	return nil
}

func (c *LogConfig) Merge(overlay *LogConfig) {
	if overlay.Level != "" {
		c.Level = overlay.Level
	}
	if overlay.Format != "" {
		c.Format = overlay.Format
	}
}
