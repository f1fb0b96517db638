package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Format selects the slog handler.
type Format int

const (
	// FormatText uses slog.TextHandler (default).
	FormatText Format = iota
	// FormatJSON uses slog.JSONHandler.
	FormatJSON
)

// Config is the logging configuration read from the environment.
type Config struct {
	DefaultLevel    slog.Level
	SubsystemLevels map[string]slog.Level
	Format          Format
}

// LevelFor returns the level configured for subsystem.
func (c *Config) LevelFor(subsystem string) slog.Level {
	if level, ok := c.SubsystemLevels[subsystem]; ok {
		return level
	}
	return c.DefaultLevel
}

var (
	envConfig     *Config
	envConfigOnce sync.Once
)

// ConfigFromEnv parses SVCINFO_LOG_LEVEL and SVCINFO_LOG_FORMAT once.
//
//	SVCINFO_LOG_LEVEL=engine=debug,transport=warn,info
//	SVCINFO_LOG_FORMAT=json
func ConfigFromEnv() *Config {
	envConfigOnce.Do(func() {
		envConfig = ParseConfig(os.Getenv("SVCINFO_LOG_LEVEL"), os.Getenv("SVCINFO_LOG_FORMAT"))
	})
	return envConfig
}

// ParseConfig builds a Config from level and format strings in the
// environment variable syntax. Unknown levels are ignored.
func ParseConfig(levels, format string) *Config {
	cfg := &Config{
		DefaultLevel:    slog.LevelInfo,
		SubsystemLevels: make(map[string]slog.Level),
	}

	for _, part := range strings.Split(levels, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if subsystem, name, ok := strings.Cut(part, "="); ok {
			if level, ok := ParseLevel(name); ok {
				cfg.SubsystemLevels[strings.TrimSpace(subsystem)] = level
			}
			continue
		}
		if level, ok := ParseLevel(part); ok {
			cfg.DefaultLevel = level
		}
	}

	if strings.EqualFold(strings.TrimSpace(format), "json") {
		cfg.Format = FormatJSON
	}
	return cfg
}

// ParseLevel maps debug, info, warn/warning and error to slog levels.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
