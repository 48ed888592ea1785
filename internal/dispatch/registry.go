package dispatch

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/skipshean/linear-agent-tasks/internal/logging"
	"github.com/skipshean/linear-agent-tasks/internal/remedy"
)

// ErrUnknownPhase is returned by RunPhase for a phase name not in Phases.
var ErrUnknownPhase = errors.New("unknown phase")

// Phase is a named, ordered group of task ids.
type Phase struct {
	Name  string
	Tasks []string
}

var phases = []Phase{
	{"quick-wins", []string{"TRA-56", "TRA-65", "TRA-109", "TRA-54"}},
	{"foundation", []string{"TRA-41", "TRA-59", "TRA-60"}},
	{"dashboards", []string{"TRA-42", "TRA-43", "TRA-44", "TRA-45", "TRA-46", "TRA-47", "TRA-48"}},
	{"forecast", []string{"TRA-49", "TRA-106", "TRA-107", "TRA-108"}},
	{"configuration", []string{"TRA-63", "TRA-64", "TRA-40", "TRA-51", "TRA-52", "TRA-53"}},
}

// Phases returns the execution phases in run order.
func Phases() []Phase {
	out := make([]Phase, len(phases))
	for i, p := range phases {
		out[i] = Phase{Name: p.Name, Tasks: append([]string(nil), p.Tasks...)}
	}
	return out
}

// PhaseNames returns the phase names in run order.
func PhaseNames() []string {
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = p.Name
	}
	return names
}

// Registry maps task ids to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	titles   map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: map[string]Handler{},
		titles:   map[string]string{},
	}
}

// Register adds or replaces the handler for id.
func (r *Registry) Register(id string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[id] = h
}

// Has reports whether id has a handler.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[id]
	return ok
}

// Title returns the task title registered for id, if any.
func (r *Registry) Title(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.titles[id]
}

// IDs returns the registered task ids, sorted by number within each prefix.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
	return ids
}

// Run executes the handler for id. Unknown ids fail without any gateway call.
func (r *Registry) Run(ctx context.Context, id string) Result {
	r.mu.RLock()
	h, ok := r.handlers[id]
	r.mu.RUnlock()
	if !ok {
		logging.WithTask(id).Warn("Unknown task ID")
		return Result{
			TaskID: id,
			Error:  "Unknown task ID: " + id,
			NextSteps: []string{
				"List known tasks: agent-tasks run --list",
			},
		}
	}
	return h.Execute(ctx)
}

// RunPhase runs every task of the named phase in order. It stops early when
// ctx is done and returns the results gathered so far.
func (r *Registry) RunPhase(ctx context.Context, phase string) ([]Result, error) {
	for _, p := range phases {
		if p.Name != phase {
			continue
		}
		results := make([]Result, 0, len(p.Tasks))
		for _, id := range p.Tasks {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			results = append(results, r.Run(ctx, id))
		}
		return results, nil
	}
	return nil, remedy.Wrapf(ErrUnknownPhase,
		[]string{"Valid phases: " + strings.Join(PhaseNames(), ", ")}, "%q", phase)
}

// RunAll runs every phase in order.
func (r *Registry) RunAll(ctx context.Context) ([]Result, error) {
	var all []Result
	for _, p := range phases {
		results, err := r.RunPhase(ctx, p.Name)
		all = append(all, results...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

// Titles of every task the agent knows about.
var titles = map[string]string{
	"TRA-56":  "Document all lifecycle states in Google Doc",
	"TRA-54":  "Create AC Operations SOP Manual",
	"TRA-109": "Paste structure from SOP section",
	"TRA-41":  "Build Base Data Tabs",
	"TRA-42":  "Build Engagement Dashboard",
	"TRA-43":  "Build Revenue Dashboard",
	"TRA-44":  "Build Cohort & Funnel Dashboard",
	"TRA-45":  "Build Intent Radar Dashboard",
	"TRA-46":  "Build Automation Performance Dashboard",
	"TRA-47":  "Build Suppression & Hygiene Monitor Dashboard",
	"TRA-48":  "Build Weekly Executive Summary Dashboard",
	"TRA-49":  "Implement Intent-Based MRR Forecast Sheet",
	"TRA-106": "Add counts by intent segment",
	"TRA-107": "Apply probability weights from Drop 8",
	"TRA-108": "Calculate 30-day forecasted MRR",
	"TRA-59":  "Create all tags from master list",
	"TRA-60":  "Group tags using bracket naming convention",
	"TRA-63":  "Add 6 emails to automation",
	"TRA-64":  "Add Upgrade Intent tagging on key links",
	"TRA-65":  "Add goal 'Became Customer During Onboard'",
	"TRA-40":  "Connect AC & Stripe Data to Sheets",
	"TRA-51":  "Implement Global Naming Conventions in AC",
	"TRA-52":  "Validate SPF/DKIM/DMARC & Domain Health",
	"TRA-53":  "Confirm AC Site Tracking & Key Events",
}

type taskFunc func(ctx context.Context, d *Deps, id string) (*outcome, error)

// automated lists the tasks with real handlers and the gateways they call.
var automated = map[string]struct {
	needs needs
	run   taskFunc
}{
	"TRA-56": {needTracker | needDocs, lifecycleDoc},
	"TRA-41": {needTracker | needSheets, baseDataTabs},
	"TRA-59": {needTracker | needCRM, bulkTags},
	"TRA-60": {needTracker | needCRM, namingCheck},
	"TRA-65": {needTracker | needCRM, onboardingGoal},
}

// NewDefaultRegistry registers every known task against d.
func NewDefaultRegistry(d *Deps) *Registry {
	r := NewRegistry()
	for id, title := range titles {
		t := &task{id: id, title: title, needs: needTracker, deps: d}
		run := acknowledge(title)
		if a, ok := automated[id]; ok {
			t.needs = a.needs
			run = a.run
		}
		t.run = bind(run, id)
		r.Register(id, t)
		r.titles[id] = title
	}
	return r
}

func bind(f taskFunc, id string) body {
	return func(ctx context.Context, d *Deps) (*outcome, error) { return f(ctx, d, id) }
}

// lessID orders "TRA-9" before "TRA-10".
func lessID(a, b string) bool {
	pa, na := splitID(a)
	pb, nb := splitID(b)
	if pa != pb {
		return pa < pb
	}
	if na != nb {
		return na < nb
	}
	return a < b
}

func splitID(id string) (string, int) {
	i := strings.LastIndexByte(id, '-')
	if i < 0 {
		return id, -1
	}
	n := 0
	for _, c := range id[i+1:] {
		if c < '0' || c > '9' {
			return id, -1
		}
		n = n*10 + int(c-'0')
	}
	return id[:i], n
}
