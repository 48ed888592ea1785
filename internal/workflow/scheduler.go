package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/skipshean/linear-agent-tasks/internal/logging"
	"github.com/skipshean/linear-agent-tasks/internal/remedy"
)

// ErrInvalidSchedule is returned for cron expressions that do not parse.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Worker runs the workflow for one team. *Orchestrator satisfies it.
type Worker interface {
	WorkOnTeam(ctx context.Context, teamID string, opts WorkOptions) (*WorkReport, error)
}

// ScheduleConfig describes a recurring WorkOnTeam sweep.
type ScheduleConfig struct {
	// Spec is a standard five-field cron expression or a descriptor such
	// as "@hourly" or "@every 30m".
	Spec string
	// Timezone is an IANA name; empty or unknown means UTC.
	Timezone string
	Teams    []string
	Work     WorkOptions
	// OnReport receives every finished report, in team order.
	OnReport func(*WorkReport)
}

// ScheduleStatus is a point-in-time view of a Scheduler.
type ScheduleStatus struct {
	Running  bool      `json:"running"`
	Spec     string    `json:"spec"`
	Timezone string    `json:"timezone"`
	Teams    []string  `json:"teams"`
	NextRun  time.Time `json:"next_run,omitzero"`
	LastRun  time.Time `json:"last_run,omitzero"`
	Sweeps   int       `json:"sweeps"`
}

// Scheduler runs WorkOnTeam for a fixed set of teams on a cron schedule.
// A sweep still in progress when the next one is due is skipped, not queued.
type Scheduler struct {
	worker Worker
	cfg    ScheduleConfig
	loc    *time.Location
	cron   *cron.Cron
	log    *slog.Logger

	mu      sync.Mutex
	running bool
	entryID cron.EntryID
	sweeps  int
}

// NewScheduler validates cfg and returns a stopped Scheduler.
func NewScheduler(w Worker, cfg ScheduleConfig) (*Scheduler, error) {
	log := logging.WithComponent("scheduler")
	if len(cfg.Teams) == 0 {
		return nil, remedy.Wrap(errors.New("no teams to schedule"), "Pass at least one --team")
	}
	if _, err := cron.ParseStandard(cfg.Spec); err != nil {
		return nil, remedy.Wrapf(ErrInvalidSchedule,
			[]string{`Use five cron fields ("0 9 * * 1-5") or a descriptor ("@hourly", "@every 30m")`},
			"%q: %v", cfg.Spec, err)
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Warn("Invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		} else {
			loc = l
		}
	}

	cl := cronLogger{log}
	return &Scheduler{
		worker: w,
		cfg:    cfg,
		loc:    loc,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log: log,
	}, nil
}

// Start schedules the sweep. Calling it on a running Scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	id, err := s.cron.AddFunc(s.cfg.Spec, func() { s.RunNow(ctx) })
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidSchedule, s.cfg.Spec, err)
	}
	s.entryID = id
	s.cron.Start()
	s.running = true

	s.log.Info("Scheduler started",
		slog.String("spec", s.cfg.Spec),
		slog.String("timezone", s.loc.String()),
		slog.Time("next_run", s.cron.Entry(id).Next))
	return nil
}

// Stop waits for a sweep in progress to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
}

// RunNow sweeps every team once and returns the reports. A team whose run
// fails outright gets a report carrying the error.
func (s *Scheduler) RunNow(ctx context.Context) []*WorkReport {
	reports := make([]*WorkReport, 0, len(s.cfg.Teams))
	for _, teamID := range s.cfg.Teams {
		if ctx.Err() != nil {
			break
		}
		report, err := s.worker.WorkOnTeam(ctx, teamID, s.cfg.Work)
		if err != nil {
			report = &WorkReport{
				TeamID:    teamID,
				Mode:      s.cfg.Work.Mode,
				Error:     err.Error(),
				NextSteps: remedy.Steps(err),
			}
		}

		log := logging.WithTeam(teamID).With(slog.String("component", "scheduler"))
		if report.OK() {
			log.Info("Sweep finished", slog.String("run_id", report.RunID), slog.String("message", report.Message))
		} else {
			log.Error("Sweep failed", slog.String("error", report.Error))
		}
		if s.cfg.OnReport != nil {
			s.cfg.OnReport(report)
		}
		reports = append(reports, report)
	}

	s.mu.Lock()
	s.sweeps++
	s.mu.Unlock()
	return reports
}

// Status reports the schedule and, while running, the next and last fire times.
func (s *Scheduler) Status() ScheduleStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := ScheduleStatus{
		Running:  s.running,
		Spec:     s.cfg.Spec,
		Timezone: s.loc.String(),
		Teams:    append([]string(nil), s.cfg.Teams...),
		Sweeps:   s.sweeps,
	}
	if s.running {
		e := s.cron.Entry(s.entryID)
		st.NextRun, st.LastRun = e.Next, e.Prev
	}
	return st
}

// cronLogger routes cron's own messages into slog.
type cronLogger struct{ log *slog.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug(msg, kv...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error(msg, append(kv, slog.Any("error", err))...)
}
