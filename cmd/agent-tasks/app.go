package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/skipshean/linear-agent-tasks/internal/adapters/linear"
	"github.com/skipshean/linear-agent-tasks/internal/analyzer"
	"github.com/skipshean/linear-agent-tasks/internal/config"
	"github.com/skipshean/linear-agent-tasks/internal/history"
	"github.com/skipshean/linear-agent-tasks/internal/logging"
	"github.com/skipshean/linear-agent-tasks/internal/queue"
	"github.com/skipshean/linear-agent-tasks/internal/teams"
	"github.com/skipshean/linear-agent-tasks/internal/workflow"
)

// app holds the global flags and what they resolve to.
type app struct {
	cfgFile   string
	teamsFile string
	logLevel  string
	logFormat string

	cfg *config.Config
}

func (a *app) init() error {
	path := a.cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.teamsFile != "" {
		cfg.TeamsFile = a.teamsFile
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := logging.Init(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	a.cfg = cfg
	return nil
}

func (a *app) configPath() string {
	if a.cfgFile != "" {
		return a.cfgFile
	}
	return config.DefaultConfigPath()
}

func (a *app) loadTeams() (*teams.Registry, error) {
	return teams.Load(a.cfg.TeamsFile)
}

func (a *app) newTracker(apiKey string) *linear.Client {
	return linear.NewClient(apiKey, linear.WithRequestBudget(a.cfg.RateLimit))
}

func (a *app) newAnalyzer(reg *teams.Registry) *analyzer.Analyzer {
	return analyzer.New(reg, analyzer.Options{
		Strict:     a.cfg.Strict(),
		NewTracker: func(key string) analyzer.Tracker { return a.newTracker(key) },
	})
}

func (a *app) newQueue(reg *teams.Registry) (*queue.Queue, error) {
	return queue.New(a.cfg.QueueDir, reg, queue.Options{
		PackagesDir: a.cfg.PackagesDir,
		Commenter:   func(key string) linear.Commenter { return a.newTracker(key) },
	})
}

// orchestrator wires the workflow with every optional part it can get.
// History is skipped with a warning when its database cannot be opened.
func (a *app) orchestrator(reg *teams.Registry) (*workflow.Orchestrator, func(), error) {
	q, err := a.newQueue(reg)
	if err != nil {
		return nil, nil, err
	}

	opts := workflow.Options{
		Analyzer: a.newAnalyzer(reg),
		Queue:    q,
		NewDeps: workflow.Clients{
			DoneState:     a.cfg.DoneState,
			Strict:        a.cfg.Strict(),
			RequestBudget: a.cfg.RateLimit,
		}.Deps,
	}

	cleanup := func() {}
	if a.cfg.HistoryDB != "" {
		store, err := history.Open(a.cfg.HistoryDB)
		if err != nil {
			logging.WithComponent("cli").Warn("Run history disabled", slog.Any("error", err))
		} else {
			opts.History = store
			cleanup = func() { _ = store.Close() }
		}
	}

	return workflow.New(reg, opts), cleanup, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
