// Package logging builds the process slog.Logger: console plus an optional
// append-mode file, with timestamps rendered in a fixed zone.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rickgao/itick-stream/internal/config"
)

// Environment overrides, applied on top of the config file.
const (
	EnvLogLevel  = "ITICK_LOG_LEVEL"
	EnvLogFormat = "ITICK_LOG_FORMAT"
)

// TimeLayout is the timestamp format of every record.
const TimeLayout = "2006-01-02 15:04:05.000"

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a logger from cfg. Records go to stdout and, when cfg.File is
// set, are appended to that file as well. The returned Closer releases the
// file and must be called on shutdown.
func New(cfg config.LoggingConfig, stdout io.Writer) (*slog.Logger, io.Closer, error) {
	applyEnvOverrides(&cfg)

	level, ok := ParseLevel(cfg.Level)
	if !ok {
		return nil, nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	if stdout == nil {
		stdout = os.Stdout
	}
	out := stdout
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(stdout, f)
		closer = f
	}

	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: timeInZone(LoadLocation(cfg.Timezone)),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		handler = slog.NewTextHandler(out, opts)
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	default:
		closer.Close()
		return nil, nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return slog.New(handler), closer, nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(raw string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, true
	case "debug", "trace":
		return slog.LevelDebug, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// LoadLocation resolves an IANA zone name, falling back to UTC+8 when the
// name is empty or unknown.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = config.DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

func applyEnvOverrides(cfg *config.LoggingConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		if _, ok := ParseLevel(v); ok {
			cfg.Level = v
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Format = v
	}
}

func timeInZone(loc *time.Location) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
			return slog.String(slog.TimeKey, a.Value.Time().In(loc).Format(TimeLayout))
		}
		return a
	}
}
