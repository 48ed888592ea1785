package dispatch

import (
	"context"
	"log/slog"
	"strings"

	"github.com/skipshean/linear-agent-tasks/internal/logging"
	"github.com/skipshean/linear-agent-tasks/internal/remedy"
)

// Handler runs one task.
type Handler interface {
	Execute(ctx context.Context) Result
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context) Result

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context) Result { return f(ctx) }

// needs is the set of gateways a task requires.
type needs uint8

const (
	needTracker needs = 1 << iota
	needCRM
	needDocs
	needSheets
)

// outcome is what a task body reports back to the wrapper.
type outcome struct {
	Message string
	Details map[string]any
	// Comment is posted on the issue, on success and on failure alike.
	Comment string
	// Manual marks work that a person has to finish; no transition follows.
	Manual bool
}

type body func(ctx context.Context, d *Deps) (*outcome, error)

// task wraps a body with the shared boundary: client checks, error capture,
// the best-effort comment and the done transition.
type task struct {
	id    string
	title string
	needs needs
	deps  *Deps
	run   body
}

func (t *task) Execute(ctx context.Context) Result {
	log := logging.WithTask(t.id)
	res := Result{TaskID: t.id, TaskTitle: t.title}

	if missing := t.missing(); len(missing) > 0 {
		res.Error = "API clients not initialized"
		res.NextSteps = []string{
			"Missing credentials for: " + strings.Join(missing, ", "),
			"Add them: agent-tasks teams set-credential <team> <service> key=value",
		}
		log.Warn("Skipping task, clients missing", slog.Any("missing", missing))
		return res
	}

	out, err := t.run(ctx, t.deps)
	if out == nil {
		out = &outcome{}
	}
	res.Message = out.Message
	res.Details = out.Details
	res.ManualRequired = out.Manual

	if err != nil {
		res.Error = err.Error()
		res.NextSteps = remedy.Steps(err)
		log.Error("Task failed", slog.Any("error", err))
	} else {
		res.Success = true
	}

	if out.Comment != "" {
		res.Comment.record(t.deps.Tracker.PostComment(ctx, t.id, out.Comment))
		if !res.Comment.OK {
			log.Warn("Could not add comment", slog.String("error", res.Comment.Error))
		}
	}

	if res.Success && !res.ManualRequired && (!res.Comment.Attempted || res.Comment.OK) {
		res.Transition.record(t.deps.Tracker.TransitionIssue(ctx, t.id, t.deps.doneState()))
		if !res.Transition.OK {
			log.Warn("Could not transition issue", slog.String("error", res.Transition.Error))
		}
	}

	log.Info("Task finished",
		slog.Bool("success", res.Success),
		slog.Bool("manual", res.ManualRequired),
		slog.Bool("transitioned", res.Transition.OK))
	return res
}

func (t *task) missing() []string {
	var m []string
	d := t.deps
	if d == nil {
		return []string{"linear"}
	}
	if t.needs&needTracker != 0 && d.Tracker == nil {
		m = append(m, "linear")
	}
	if t.needs&needCRM != 0 && d.CRM == nil {
		m = append(m, "activecampaign")
	}
	if t.needs&(needDocs|needSheets) != 0 {
		if (t.needs&needDocs != 0 && d.Docs == nil) || (t.needs&needSheets != 0 && d.Sheets == nil) {
			m = append(m, "google")
		}
	}
	return m
}
