package analyzer

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/skipshean/linear-agent-tasks/internal/adapters/linear"
	"github.com/skipshean/linear-agent-tasks/internal/logging"
	"github.com/skipshean/linear-agent-tasks/internal/remedy"
	"github.com/skipshean/linear-agent-tasks/internal/teams"
)

var (
	// ErrNoCredential means the team has no tracker key.
	ErrNoCredential = errors.New("no Linear API key configured")
	// ErrTeamNotResolved means no tracker team could be matched.
	ErrTeamNotResolved = errors.New("could not find team in Linear workspace")
)

// Tracker is the slice of the tracker client the analyzer needs.
type Tracker interface {
	ListTeams(ctx context.Context) ([]linear.Team, error)
	ListTeamIssues(ctx context.Context, teamKey string, opts linear.ListOptions) ([]*linear.Issue, error)
}

// TeamSource resolves team ids to configuration.
type TeamSource interface {
	Get(id string) (*teams.Team, bool)
	IDs() []string
	LinearAPIKey(teamID string) string
}

// TrackerFactory builds a tracker client for an API key.
type TrackerFactory func(apiKey string) Tracker

// Options configures an Analyzer.
type Options struct {
	// Strict disables the first-team fallback when no tracker team name matches.
	Strict bool
	// NewTracker defaults to linear.NewClient.
	NewTracker TrackerFactory
}

// TeamAnalysis is the outcome for one team. A non-empty Error means the other
// fields past TeamID may be empty.
type TeamAnalysis struct {
	TeamID          string
	TeamName        string
	TeamKey         string
	TeamKeyFallback bool
	ProjectID       string
	ProjectName     string
	Total           int
	Issues          []*linear.Issue
	Categorized     map[Category][]*linear.Issue

	Error     string
	NextSteps []string
}

// OK reports whether the analysis succeeded.
func (a *TeamAnalysis) OK() bool { return a.Error == "" }

// AgentSuitable returns the agent-suitable issues in tracker order.
func (a *TeamAnalysis) AgentSuitable() []*linear.Issue {
	if a.Categorized == nil {
		return nil
	}
	return a.Categorized[AgentSuitable]
}

// Analyzer classifies open issues per team. Tracker clients are cached per
// team for the analyzer's lifetime.
type Analyzer struct {
	teams   TeamSource
	opts    Options
	clients map[string]Tracker
}

// New creates an Analyzer.
func New(src TeamSource, opts Options) *Analyzer {
	if opts.NewTracker == nil {
		opts.NewTracker = func(apiKey string) Tracker { return linear.NewClient(apiKey) }
	}
	return &Analyzer{teams: src, opts: opts, clients: make(map[string]Tracker)}
}

func (a *Analyzer) tracker(teamID string) Tracker {
	if c, ok := a.clients[teamID]; ok {
		return c
	}
	key := a.teams.LinearAPIKey(teamID)
	if key == "" {
		return nil
	}
	c := a.opts.NewTracker(key)
	a.clients[teamID] = c
	return c
}

// AnalyzeTeam analyzes one team's open issues, optionally restricted to a
// project. Problems are reported on the result, never returned.
func (a *Analyzer) AnalyzeTeam(ctx context.Context, teamID, projectID string) *TeamAnalysis {
	log := logging.WithTeam(teamID).With(slog.String("component", "analyzer"))
	result := &TeamAnalysis{TeamID: teamID, ProjectID: projectID}

	client := a.tracker(teamID)
	if client == nil {
		fail(result, remedy.Wrap(ErrNoCredential,
			"Add a key: agent-tasks teams set-credential "+teamID+" linear api_key=<key>",
			"Get an API key from: https://linear.app/settings/api"))
		return result
	}

	result.TeamName = teamID
	if t, ok := a.teams.Get(teamID); ok {
		result.TeamName = t.DisplayName()
	}

	trackerTeams, err := client.ListTeams(ctx)
	if err != nil {
		fail(result, err)
		return result
	}

	key, fallback := resolveTeamKey(trackerTeams, result.TeamName, a.opts.Strict)
	if key == "" {
		fail(result, remedy.Wrap(ErrTeamNotResolved,
			"Verify the team name matches the Linear workspace",
			"Check the team exists in your Linear account",
			"List teams: agent-tasks teams list"))
		return result
	}
	result.TeamKey = key
	result.TeamKeyFallback = fallback
	if fallback {
		log.Warn("No Linear team matched by name, using first team",
			slog.String("team_name", result.TeamName), slog.String("team_key", key))
	}

	issues, err := client.ListTeamIssues(ctx, key, linear.ListOptions{OpenOnly: true, First: linear.MaxPageSize})
	if err != nil {
		fail(result, err)
		return result
	}

	if projectID != "" {
		result.ProjectName = projectID
		named := false
		filtered := issues[:0:0]
		for _, issue := range issues {
			if issue.Project == nil || issue.Project.ID != projectID {
				continue
			}
			if !named {
				result.ProjectName = issue.Project.Name
				named = true
			}
			filtered = append(filtered, issue)
		}
		issues = filtered
	}

	result.Issues = issues
	result.Total = len(issues)
	result.Categorized = Partition(issues)
	log.Info("Analyzed team",
		slog.Int("total", result.Total),
		slog.Int("agent_suitable", len(result.Categorized[AgentSuitable])))
	return result
}

// AnalyzeAll analyzes every enabled team in registry order. One failing team
// never stops the rest.
func (a *Analyzer) AnalyzeAll(ctx context.Context) map[string]*TeamAnalysis {
	out := make(map[string]*TeamAnalysis)
	for _, id := range a.teams.IDs() {
		if ctx.Err() != nil {
			out[id] = &TeamAnalysis{TeamID: id, Error: ctx.Err().Error()}
			continue
		}
		out[id] = a.AnalyzeTeam(ctx, id, "")
	}
	return out
}

// resolveTeamKey matches name case-insensitively. Without a match it falls
// back to the first team unless strict.
func resolveTeamKey(trackerTeams []linear.Team, name string, strict bool) (key string, fallback bool) {
	for _, t := range trackerTeams {
		if strings.EqualFold(t.Name, name) {
			return t.Key, false
		}
	}
	if strict || len(trackerTeams) == 0 {
		return "", false
	}
	return trackerTeams[0].Key, true
}

func fail(a *TeamAnalysis, err error) {
	a.Error = err.Error()
	a.NextSteps = remedy.Steps(err)
}
