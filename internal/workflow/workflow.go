// Package workflow ties the pieces together: it analyzes a team's open
// issues, then either runs the suitable ones locally through the dispatch
// table or hands them to the job queue for cloud execution.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/skipshean/linear-agent-tasks/internal/adapters/linear"
	"github.com/skipshean/linear-agent-tasks/internal/analyzer"
	"github.com/skipshean/linear-agent-tasks/internal/dispatch"
	"github.com/skipshean/linear-agent-tasks/internal/history"
	"github.com/skipshean/linear-agent-tasks/internal/logging"
	"github.com/skipshean/linear-agent-tasks/internal/queue"
	"github.com/skipshean/linear-agent-tasks/internal/remedy"
	"github.com/skipshean/linear-agent-tasks/internal/teams"
)

// Execution modes.
const (
	ModeLocal = "local"
	ModeCloud = queue.ModeCloud
)

// ErrUnknownMode is returned for execution modes other than local and cloud.
var ErrUnknownMode = errors.New("unknown execution mode")

// TeamSource resolves team ids to configuration. *teams.Registry satisfies it.
type TeamSource interface {
	Get(id string) (*teams.Team, bool)
	IDs() []string
}

// Analyzer classifies a team's issues. *analyzer.Analyzer satisfies it.
type Analyzer interface {
	AnalyzeTeam(ctx context.Context, teamID, projectID string) *analyzer.TeamAnalysis
}

// Submitter queues tasks for cloud execution. *queue.Queue satisfies it.
type Submitter interface {
	Submit(ctx context.Context, teamID, taskID string, data queue.TaskData, mode string) (*queue.SubmissionResult, error)
	CreatePackage(teamID string, taskIDs []string) (string, error)
}

// Recorder stores run results. *history.Store satisfies it.
type Recorder interface {
	RecordResults(ctx context.Context, runID, teamID, mode string, results []dispatch.Result) error
}

// Options wires an Orchestrator. Queue and History may be nil.
type Options struct {
	Analyzer Analyzer
	Queue    Submitter
	History  Recorder
	NewDeps  DepsFactory
}

// Orchestrator runs the analyze-then-dispatch workflow.
type Orchestrator struct {
	teams TeamSource
	opts  Options
	log   *slog.Logger
}

// New creates an Orchestrator.
func New(src TeamSource, opts Options) *Orchestrator {
	if opts.NewDeps == nil {
		opts.NewDeps = Clients{}.Deps
	}
	return &Orchestrator{teams: src, opts: opts, log: logging.WithComponent("workflow")}
}

// WorkOptions selects what WorkOnTeam does.
type WorkOptions struct {
	ProjectID string
	// Limit caps how many agent-suitable tasks are taken; 0 means all.
	Limit int
	// Mode is ModeLocal (default) or ModeCloud.
	Mode string
}

// Submission is the queue outcome for one task.
type Submission struct {
	TaskID string                  `json:"task_id"`
	Result *queue.SubmissionResult `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// WorkReport is the outcome of WorkOnTeam.
type WorkReport struct {
	TeamID      string                 `json:"team_id"`
	Mode        string                 `json:"mode"`
	RunID       string                 `json:"run_id"`
	Analysis    *analyzer.TeamAnalysis `json:"-"`
	Selected    []string               `json:"selected,omitempty"`
	Results     []dispatch.Result      `json:"results,omitempty"`
	Submissions []Submission           `json:"submissions,omitempty"`
	PackageDir  string                 `json:"package_dir,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Warnings    []string               `json:"warnings,omitempty"`
	Error       string                 `json:"error,omitempty"`
	NextSteps   []string               `json:"next_steps,omitempty"`
}

// OK reports whether the run got past analysis.
func (r *WorkReport) OK() bool { return r.Error == "" }

// WorkOnTeam analyzes a team and processes its agent-suitable tasks in
// tracker order. Per-team and per-task problems land on the report; the
// returned error is reserved for bad arguments.
func (o *Orchestrator) WorkOnTeam(ctx context.Context, teamID string, wo WorkOptions) (*WorkReport, error) {
	mode := wo.Mode
	if mode == "" {
		mode = ModeLocal
	}
	if mode != ModeLocal && mode != ModeCloud {
		return nil, remedy.Wrapf(ErrUnknownMode, []string{"Use --mode local or --mode cloud"}, "%q", wo.Mode)
	}

	log := logging.WithTeam(teamID).With(slog.String("mode", mode))
	report := &WorkReport{TeamID: teamID, Mode: mode, RunID: history.NewRunID()}

	analysis := o.opts.Analyzer.AnalyzeTeam(ctx, teamID, wo.ProjectID)
	report.Analysis = analysis
	if !analysis.OK() {
		report.Error = analysis.Error
		report.NextSteps = analysis.NextSteps
		return report, nil
	}

	suitable := analysis.AgentSuitable()
	if len(suitable) == 0 {
		report.Message = "No agent-suitable tasks found"
		report.NextSteps = []string{
			"Review the analysis: agent-tasks analyze --team " + teamID,
			"Add detailed descriptions (at least 50 characters) with clear action words",
			"Include acceptance criteria or steps in the description",
		}
		return report, nil
	}
	if wo.Limit > 0 && len(suitable) > wo.Limit {
		suitable = suitable[:wo.Limit]
	}
	for _, is := range suitable {
		report.Selected = append(report.Selected, is.Identifier)
	}
	log.Info("Processing tasks", slog.Int("count", len(suitable)))

	if mode == ModeCloud {
		o.submit(ctx, report, suitable)
	} else {
		o.runLocal(ctx, report, suitable)
	}
	return report, nil
}

func (o *Orchestrator) runLocal(ctx context.Context, report *WorkReport, issues []*linear.Issue) {
	team, ok := o.teams.Get(report.TeamID)
	if !ok {
		report.Error = fmt.Sprintf("team %q not found", report.TeamID)
		return
	}
	deps, warnings := o.opts.NewDeps(ctx, team)
	report.Warnings = append(report.Warnings, warnings...)
	reg := dispatch.NewDefaultRegistry(deps)

	for _, is := range issues {
		if err := ctx.Err(); err != nil {
			report.Warnings = append(report.Warnings, "Stopped early: "+err.Error())
			break
		}
		var res dispatch.Result
		if reg.Has(is.Identifier) {
			res = reg.Run(ctx, is.Identifier)
		} else {
			res = dispatch.NewReviewHandler(deps, is).Execute(ctx)
		}
		report.Results = append(report.Results, res)
	}
	report.Message = summarize(report.Results)
	o.record(ctx, report.RunID, report.TeamID, ModeLocal, report.Results, &report.Warnings)
}

func (o *Orchestrator) submit(ctx context.Context, report *WorkReport, issues []*linear.Issue) {
	if o.opts.Queue == nil {
		report.Error = "cloud mode needs a job queue"
		report.NextSteps = []string{"Set queue_dir in the configuration"}
		return
	}

	var queued []string
	var results []dispatch.Result
	for _, is := range issues {
		sub := Submission{TaskID: is.Identifier}
		res, err := o.opts.Queue.Submit(ctx, report.TeamID, is.Identifier, queue.TaskData{
			Title:       is.Title,
			Description: is.Description,
			State:       is.State.Name,
			Priority:    is.Priority,
		}, ModeCloud)
		if err != nil {
			sub.Error = err.Error()
			results = append(results, dispatch.Result{TaskID: is.Identifier, TaskTitle: is.Title, Error: err.Error()})
		} else {
			sub.Result = res
			queued = append(queued, is.Identifier)
			results = append(results, dispatch.Result{TaskID: is.Identifier, TaskTitle: is.Title, Success: true, Message: res.Message})
		}
		report.Submissions = append(report.Submissions, sub)
	}

	if len(queued) > 0 {
		dir, err := o.opts.Queue.CreatePackage(report.TeamID, queued)
		if err != nil {
			o.log.Warn("Could not create package", slog.String("team_id", report.TeamID), slog.Any("error", err))
			report.Warnings = append(report.Warnings, "Could not create cloud package: "+err.Error())
		} else {
			report.PackageDir = dir
		}
	}
	report.Message = fmt.Sprintf("%d of %d tasks submitted", len(queued), len(issues))
	o.record(ctx, report.RunID, report.TeamID, ModeCloud, results, &report.Warnings)
}

func (o *Orchestrator) record(ctx context.Context, runID, teamID, mode string, results []dispatch.Result, warnings *[]string) {
	if o.opts.History == nil || len(results) == 0 {
		return
	}
	// recorded even when ctx was cancelled mid-run
	if err := o.opts.History.RecordResults(context.WithoutCancel(ctx), runID, teamID, mode, results); err != nil {
		o.log.Warn("Could not record history", slog.Any("error", err))
		*warnings = append(*warnings, "History not recorded: "+err.Error())
	}
}

// RunReport is the outcome of RunTasks, RunPhase and RunAll.
type RunReport struct {
	TeamID   string            `json:"team_id"`
	RunID    string            `json:"run_id"`
	Results  []dispatch.Result `json:"results"`
	Warnings []string          `json:"warnings,omitempty"`
}

// Succeeded counts successful results.
func (r *RunReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Success {
			n++
		}
	}
	return n
}

func (o *Orchestrator) registry(ctx context.Context, teamID string) (*dispatch.Registry, *RunReport, error) {
	team, ok := o.teams.Get(teamID)
	if !ok {
		return nil, nil, remedy.Wrapf(teams.ErrTeamNotFound, []string{"List teams: agent-tasks teams list"}, "team %q", teamID)
	}
	deps, warnings := o.opts.NewDeps(ctx, team)
	return dispatch.NewDefaultRegistry(deps), &RunReport{TeamID: teamID, RunID: history.NewRunID(), Warnings: warnings}, nil
}

// RunTasks runs the given task ids for a team, in order.
func (o *Orchestrator) RunTasks(ctx context.Context, teamID string, ids []string) (*RunReport, error) {
	reg, report, err := o.registry(ctx, teamID)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			o.record(ctx, report.RunID, teamID, ModeLocal, report.Results, &report.Warnings)
			return report, err
		}
		report.Results = append(report.Results, reg.Run(ctx, id))
	}
	o.record(ctx, report.RunID, teamID, ModeLocal, report.Results, &report.Warnings)
	return report, nil
}

// RunPhase runs one named phase for a team.
func (o *Orchestrator) RunPhase(ctx context.Context, teamID, phase string) (*RunReport, error) {
	reg, report, err := o.registry(ctx, teamID)
	if err != nil {
		return nil, err
	}
	report.Results, err = reg.RunPhase(ctx, phase)
	o.record(ctx, report.RunID, teamID, ModeLocal, report.Results, &report.Warnings)
	return report, err
}

// RunAll runs every phase for a team.
func (o *Orchestrator) RunAll(ctx context.Context, teamID string) (*RunReport, error) {
	reg, report, err := o.registry(ctx, teamID)
	if err != nil {
		return nil, err
	}
	report.Results, err = reg.RunAll(ctx)
	o.record(ctx, report.RunID, teamID, ModeLocal, report.Results, &report.Warnings)
	return report, err
}

func summarize(results []dispatch.Result) string {
	ok, manual := 0, 0
	for _, r := range results {
		if r.Success {
			ok++
			if r.ManualRequired {
				manual++
			}
		}
	}
	return fmt.Sprintf("%d of %d tasks succeeded (%d need manual follow-up)", ok, len(results), manual)
}
