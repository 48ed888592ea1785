package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/skipshean/linear-agent-tasks/internal/logging"
)

// Matching modes for team key resolution and automation lookup.
const (
	MatchingBestEffort = "best-effort"
	MatchingStrict     = "strict"
)

// EnvPrefix prefixes environment overrides, e.g. AGENT_TASKS_DONE_STATE.
const EnvPrefix = "AGENT_TASKS"

// Config represents the application configuration
type Config struct {
	TeamsFile   string          `yaml:"teams_file" mapstructure:"teams_file"`
	QueueDir    string          `yaml:"queue_dir" mapstructure:"queue_dir"`
	PackagesDir string          `yaml:"packages_dir" mapstructure:"packages_dir"`
	HistoryDB   string          `yaml:"history_db" mapstructure:"history_db"`
	DoneState   string          `yaml:"done_state" mapstructure:"done_state"`
	Matching    string          `yaml:"matching" mapstructure:"matching"`
	RateLimit   int             `yaml:"rate_limit" mapstructure:"rate_limit"`
	Logging     *logging.Config `yaml:"logging" mapstructure:"logging"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		TeamsFile:   filepath.Join("config", "teams.json"),
		QueueDir:    ".cloud-queue",
		PackagesDir: ".cloud-packages",
		HistoryDB:   filepath.Join(homeDir, ".agent-tasks", "history.db"),
		DoneState:   "Done",
		Matching:    MatchingBestEffort,
		RateLimit:   1500,
		Logging:     logging.DefaultConfig(),
	}
}

// Load loads configuration from a file. Values are layered: defaults, then
// the YAML file (with ${VAR} expansion), then AGENT_TASKS_* environment
// variables. A missing file yields defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("teams_file", cfg.TeamsFile)
	v.SetDefault("queue_dir", cfg.QueueDir)
	v.SetDefault("packages_dir", cfg.PackagesDir)
	v.SetDefault("history_db", cfg.HistoryDB)
	v.SetDefault("done_state", cfg.DoneState)
	v.SetDefault("matching", cfg.Matching)
	v.SetDefault("rate_limit", cfg.RateLimit)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		expanded := os.ExpandEnv(string(data))
		if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.TeamsFile = expandPath(cfg.TeamsFile)
	cfg.QueueDir = expandPath(cfg.QueueDir)
	cfg.PackagesDir = expandPath(cfg.PackagesDir)
	cfg.HistoryDB = expandPath(cfg.HistoryDB)
	if cfg.Logging != nil && cfg.Logging.Output != "stdout" && cfg.Logging.Output != "stderr" {
		cfg.Logging.Output = expandPath(cfg.Logging.Output)
	}

	return cfg, nil
}

// Save saves configuration to a file
func Save(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default configuration path
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".agent-tasks", "config.yaml")
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Strict reports whether name matching must be exact.
func (c *Config) Strict() bool {
	return c.Matching == MatchingStrict
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.TeamsFile == "" {
		return fmt.Errorf("teams_file is required")
	}
	if c.QueueDir == "" {
		return fmt.Errorf("queue_dir is required")
	}
	switch c.Matching {
	case MatchingBestEffort, MatchingStrict:
	default:
		return fmt.Errorf("invalid matching mode %q (want %s or %s)", c.Matching, MatchingBestEffort, MatchingStrict)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("invalid rate_limit: %d", c.RateLimit)
	}
	if strings.TrimSpace(c.DoneState) == "" {
		return fmt.Errorf("done_state is required")
	}
	return nil
}
