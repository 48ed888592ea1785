// Package logging is the slog setup shared by every agent-tasks component.
//
// Logs go to stderr by default so command output on stdout stays
// machine-readable. Attributes that carry credentials are masked before
// they reach any handler.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	mu      sync.RWMutex
	current = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       slog.LevelWarn,
		ReplaceAttr: maskSecrets,
	}))
	// logFile is the file opened by the last Init, closed on the next one.
	logFile io.Closer
)

// Config holds logging configuration.
type Config struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json, text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns warn-level text logs on stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:  "warn",
		Format: "text",
		Output: "stderr",
	}
}

// Init replaces the global logger. A nil cfg means DefaultConfig.
func Init(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}

	w, closer, err := openOutput(cfg.Output)
	if err != nil {
		return err
	}

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   level == slog.LevelDebug,
		ReplaceAttr: maskSecrets,
	}
	var h slog.Handler
	switch cfg.Format {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "text", "":
		h = slog.NewTextHandler(w, opts)
	default:
		if closer != nil {
			_ = closer.Close()
		}
		return fmt.Errorf("unknown log format %q (want text or json)", cfg.Format)
	}

	mu.Lock()
	prev := logFile
	current, logFile = slog.New(h), closer
	mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// SetLogger replaces the global logger. Tests use it to capture output.
func SetLogger(l *slog.Logger) {
	mu.Lock()
	current = l
	mu.Unlock()
}

// Suppress discards all logging.
func Suppress() {
	SetLogger(slog.New(slog.DiscardHandler))
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", level)
	}
}

func openOutput(output string) (io.Writer, io.Closer, error) {
	switch output {
	case "stderr", "":
		return os.Stderr, nil, nil
	case "stdout":
		return os.Stdout, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, f, nil
}

// secretKeys are attribute names whose values never reach a log line.
var secretKeys = map[string]bool{
	"api_key":  true,
	"apikey":   true,
	"token":    true,
	"password": true,
	"secret":   true,
}

func maskSecrets(_ []string, a slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(a.Key)] && a.Value.Kind() == slog.KindString && a.Value.String() != "" {
		return slog.String(a.Key, Mask(a.Value.String()))
	}
	return a
}

// Mask keeps the last four characters of a credential.
func Mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// Logger returns the global logger.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// WithComponent tags log lines with the emitting component.
func WithComponent(component string) *slog.Logger {
	return Logger().With(slog.String("component", component))
}

func WithTeam(teamID string) *slog.Logger {
	return Logger().With(slog.String("team_id", teamID))
}

func WithTask(taskID string) *slog.Logger {
	return Logger().With(slog.String("task_id", taskID))
}
