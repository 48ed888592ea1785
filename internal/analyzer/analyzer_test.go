package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"

	"github.com/skipshean/linear-agent-tasks/internal/adapters/linear"
	"github.com/skipshean/linear-agent-tasks/internal/teams"
	"github.com/skipshean/linear-agent-tasks/internal/testutil"
)

type fakeTracker struct {
	teams      []linear.Team
	issues     []*linear.Issue
	teamsErr   error
	gotKey     string
	gotOpts    linear.ListOptions
	teamsCalls int
}

func (f *fakeTracker) ListTeams(context.Context) ([]linear.Team, error) {
	f.teamsCalls++
	return f.teams, f.teamsErr
}

func (f *fakeTracker) ListTeamIssues(_ context.Context, key string, opts linear.ListOptions) ([]*linear.Issue, error) {
	f.gotKey = key
	f.gotOpts = opts
	return f.issues, nil
}

func loadTeams(t *testing.T) *teams.Registry {
	t.Helper()
	r, err := teams.Load(testutil.WriteTeamsFile(t, t.TempDir(), testutil.TeamsJSON))
	if err != nil {
		t.Fatalf("teams.Load: %v", err)
	}
	return r
}

func newAnalyzer(t *testing.T, tr *fakeTracker, strict bool) (*Analyzer, *[]string) {
	var keys []string
	a := New(loadTeams(t), Options{
		Strict: strict,
		NewTracker: func(apiKey string) Tracker {
			keys = append(keys, apiKey)
			return tr
		},
	})
	return a, &keys
}

const longDesc = "Build the onboarding report. Acceptance criteria: must include churn cohort."

func TestCategorize(t *testing.T) {
	tests := []struct {
		name  string
		issue linear.Issue
		want  Category
	}{
		{
			name:  "suitable: long description with keyword and criteria",
			issue: linear.Issue{Description: longDesc, Priority: linear.PriorityHigh, State: linear.State{Name: "Todo", Type: "unstarted"}},
			want:  AgentSuitable,
		},
		{
			name:  "low priority precedes suitability",
			issue: linear.Issue{Description: strings.Repeat("create ", 12), Priority: linear.PriorityMedium, State: linear.State{Name: "Todo"}},
			want:  LowPriority,
		},
		{
			name:  "canceled is blocked",
			issue: linear.Issue{Description: longDesc, Priority: linear.PriorityLow, State: linear.State{Name: "Canceled", Type: "canceled"}},
			want:  Blocked,
		},
		{
			name:  "state named Blocked is blocked",
			issue: linear.Issue{Description: longDesc, State: linear.State{Name: "BLOCKED", Type: "started"}},
			want:  Blocked,
		},
		{
			name:  "empty description needs review",
			issue: linear.Issue{State: linear.State{Name: "Todo"}},
			want:  NeedsReview,
		},
		{
			name:  "assigned, unsuitable needs review",
			issue: linear.Issue{Description: "short", Assignee: &linear.User{Name: "Sam"}},
			want:  NeedsReview,
		},
		{
			name:  "plain description is other",
			issue: linear.Issue{Description: "Discuss the marketing budget with the wider group next quarter."},
			want:  Other,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Categorize(&tt.issue); got != tt.want {
				t.Errorf("Categorize() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsAgentSuitable(t *testing.T) {
	if n := len([]rune(longDesc)); n < MinDescriptionLength {
		t.Fatalf("fixture too short: %d", n)
	}
	if !IsAgentSuitable(&linear.Issue{Description: longDesc}) {
		t.Error("description with build + acceptance should be suitable")
	}
	// Keyword only in title still counts.
	desc := strings.Repeat("lorem ipsum ", 5)
	if !IsAgentSuitable(&linear.Issue{Title: "Sync contacts", Description: desc}) {
		t.Error("keyword in title should count")
	}
	// Criteria markers only count in the description.
	if IsAgentSuitable(&linear.Issue{Title: "Steps", Description: desc}) {
		t.Error("criteria marker in title should not count")
	}
	// 49 characters of multi-byte text is still too short.
	if IsAgentSuitable(&linear.Issue{Description: strings.Repeat("é", 40) + " create"}) {
		t.Error("length is counted in characters, not bytes")
	}
}

func TestProperty_ShortDescriptionsNeverSuitable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		desc := rapid.StringN(0, MinDescriptionLength-1, -1).Draw(rt, "description")
		title := rapid.String().Draw(rt, "title")
		issue := &linear.Issue{Title: title, Description: desc}
		if IsAgentSuitable(issue) {
			rt.Fatalf("description of %d runes judged suitable", len([]rune(desc)))
		}
	})
}

func TestProperty_BlockedPrecedence(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		canceled := rapid.Bool().Draw(rt, "canceled")
		state := linear.State{Name: rapid.SampledFrom([]string{"blocked", "Blocked", "BLOCKED"}).Draw(rt, "name"), Type: "started"}
		if canceled {
			state = linear.State{Name: rapid.String().Draw(rt, "name"), Type: "canceled"}
		}
		issue := &linear.Issue{
			Description: rapid.String().Draw(rt, "description"),
			Priority:    rapid.IntRange(0, 4).Draw(rt, "priority"),
			State:       state,
		}
		if rapid.Bool().Draw(rt, "assigned") {
			issue.Assignee = &linear.User{Name: "x"}
		}
		if got := Categorize(issue); got != Blocked {
			rt.Fatalf("Categorize() = %s, want blocked", got)
		}
	})
}

func TestPartition(t *testing.T) {
	a := &linear.Issue{Identifier: "A-1", Description: longDesc}
	b := &linear.Issue{Identifier: "A-2", Priority: 4}
	c := &linear.Issue{Identifier: "A-3", Description: longDesc}

	got := Partition([]*linear.Issue{a, b, c})
	for _, cat := range Categories {
		if _, ok := got[cat]; !ok {
			t.Errorf("missing category %s", cat)
		}
	}
	if diff := cmp.Diff([]*linear.Issue{a, c}, got[AgentSuitable]); diff != "" {
		t.Errorf("agent_suitable mismatch (-want +got):\n%s", diff)
	}
	if len(got[LowPriority]) != 1 {
		t.Errorf("low_priority = %d, want 1", len(got[LowPriority]))
	}
}

func TestAnalyzeTeam(t *testing.T) {
	tr := &fakeTracker{
		teams: []linear.Team{{Name: "Ops", Key: "OPS"}, {Name: "trade ideas", Key: "TRA"}},
		issues: []*linear.Issue{
			{Identifier: "TRA-56", Description: longDesc, Project: &linear.Project{ID: "p1", Name: "Lifecycle"}},
			{Identifier: "TRA-57", Priority: 4, Project: &linear.Project{ID: "p2", Name: "Other"}},
			{Identifier: "TRA-58", Description: longDesc},
		},
	}
	a, keys := newAnalyzer(t, tr, false)

	res := a.AnalyzeTeam(context.Background(), "trade-ideas", "")
	if !res.OK() {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if res.TeamKey != "TRA" || res.TeamKeyFallback {
		t.Errorf("TeamKey = %s fallback=%v, want TRA by name", res.TeamKey, res.TeamKeyFallback)
	}
	if tr.gotKey != "TRA" || !tr.gotOpts.OpenOnly || tr.gotOpts.First != linear.MaxPageSize {
		t.Errorf("list call key=%s opts=%+v", tr.gotKey, tr.gotOpts)
	}
	if res.Total != 3 || len(res.AgentSuitable()) != 2 {
		t.Errorf("Total=%d suitable=%d", res.Total, len(res.AgentSuitable()))
	}

	// Cached client: a second call does not build a new tracker.
	a.AnalyzeTeam(context.Background(), "trade-ideas", "p1")
	if diff := cmp.Diff([]string{testutil.FakeLinearAPIKey}, *keys); diff != "" {
		t.Errorf("tracker constructions (-want +got):\n%s", diff)
	}
}

func TestAnalyzeTeam_ProjectFilter(t *testing.T) {
	tr := &fakeTracker{
		teams: []linear.Team{{Name: "Trade Ideas", Key: "TRA"}},
		issues: []*linear.Issue{
			{Identifier: "TRA-1", Project: &linear.Project{ID: "p1", Name: "Lifecycle"}},
			{Identifier: "TRA-2"},
			{Identifier: "TRA-3", Project: &linear.Project{ID: "p1", Name: "Lifecycle"}},
		},
	}
	a, _ := newAnalyzer(t, tr, false)

	res := a.AnalyzeTeam(context.Background(), "trade-ideas", "p1")
	if res.Total != 2 || res.ProjectName != "Lifecycle" {
		t.Errorf("Total=%d ProjectName=%q", res.Total, res.ProjectName)
	}

	res = a.AnalyzeTeam(context.Background(), "trade-ideas", "p-missing")
	if res.Total != 0 || res.ProjectName != "p-missing" {
		t.Errorf("unmatched project: Total=%d ProjectName=%q, want 0 and the id", res.Total, res.ProjectName)
	}
	if len(tr.issues) != 3 {
		t.Error("filtering must not modify the tracker's slice")
	}
}

func TestAnalyzeTeam_Matching(t *testing.T) {
	tr := &fakeTracker{teams: []linear.Team{{Name: "Ops", Key: "OPS"}}}

	t.Run("best effort falls back to first team", func(t *testing.T) {
		a, _ := newAnalyzer(t, tr, false)
		res := a.AnalyzeTeam(context.Background(), "trade-ideas", "")
		if !res.OK() || res.TeamKey != "OPS" || !res.TeamKeyFallback {
			t.Errorf("res = %+v", res)
		}
	})

	t.Run("strict fails", func(t *testing.T) {
		a, _ := newAnalyzer(t, tr, true)
		res := a.AnalyzeTeam(context.Background(), "trade-ideas", "")
		if res.OK() || !strings.Contains(res.Error, ErrTeamNotResolved.Error()) {
			t.Errorf("Error = %q", res.Error)
		}
		if len(res.NextSteps) == 0 {
			t.Error("expected next steps")
		}
	})

	t.Run("empty workspace fails", func(t *testing.T) {
		a, _ := newAnalyzer(t, &fakeTracker{}, false)
		res := a.AnalyzeTeam(context.Background(), "trade-ideas", "")
		if res.OK() {
			t.Error("expected error with no tracker teams")
		}
	})
}

func TestAnalyzeTeam_NoCredential(t *testing.T) {
	tr := &fakeTracker{}
	a, keys := newAnalyzer(t, tr, false)

	res := a.AnalyzeTeam(context.Background(), "beta", "")
	if res.OK() || !strings.Contains(res.Error, ErrNoCredential.Error()) {
		t.Errorf("Error = %q", res.Error)
	}
	if len(res.NextSteps) == 0 || !strings.Contains(res.NextSteps[0], "set-credential beta") {
		t.Errorf("NextSteps = %v", res.NextSteps)
	}
	if len(*keys) != 0 || tr.teamsCalls != 0 {
		t.Error("no tracker should be built or called without a key")
	}
}

func TestAnalyzeAll_IsolatesFailures(t *testing.T) {
	tr := &fakeTracker{teamsErr: errors.New("boom")}
	a, _ := newAnalyzer(t, tr, false)

	results := a.AnalyzeAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("results = %d, want one per enabled team", len(results))
	}
	if !strings.Contains(results["trade-ideas"].Error, "boom") {
		t.Errorf("trade-ideas error = %q", results["trade-ideas"].Error)
	}
	if !strings.Contains(results["beta"].Error, ErrNoCredential.Error()) {
		t.Errorf("beta error = %q", results["beta"].Error)
	}
}

func TestSummary(t *testing.T) {
	var suitable []*linear.Issue
	for i := 0; i < 12; i++ {
		suitable = append(suitable, &linear.Issue{Identifier: fmt.Sprintf("TRA-%d", i), Title: "Task", Description: longDesc})
	}
	res := &TeamAnalysis{TeamName: "Trade Ideas", ProjectName: "Lifecycle", Total: 12, Categorized: Partition(suitable)}

	out := Summary(res)
	for _, want := range []string{"Team: Trade Ideas", "Project: Lifecycle", "Total Open Tasks: 12", "Agent-Suitable: 12", "TRA-9: Task", "... and 2 more"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "TRA-10:") {
		t.Error("summary should list at most 10 tasks")
	}

	if got := Summary(&TeamAnalysis{Error: "nope"}); got != "❌ Error: nope" {
		t.Errorf("error summary = %q", got)
	}
}

func TestMultiSummary(t *testing.T) {
	results := map[string]*TeamAnalysis{
		"a": {TeamName: "Alpha", Total: 3, Categorized: Partition([]*linear.Issue{{Description: longDesc}})},
		"b": {TeamID: "b", Error: "no key"},
	}
	out := MultiSummary([]string{"a", "b"}, results)
	if !strings.Contains(out, "📁 Alpha:") || !strings.Contains(out, "Agent-Suitable: 1") || !strings.Contains(out, "❌ b: no key") {
		t.Errorf("unexpected multi summary:\n%s", out)
	}
	if strings.Index(out, "Alpha") > strings.Index(out, "❌ b") {
		t.Error("teams should follow the given order")
	}
}
