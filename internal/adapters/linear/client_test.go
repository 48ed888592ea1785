package linear

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/skipshean/linear-agent-tasks/internal/remedy"
	"github.com/skipshean/linear-agent-tasks/internal/testutil"
)

// graphqlServer answers each request with the first response whose key is a
// substring of the query. Requests are recorded in order.
type graphqlServer struct {
	t         *testing.T
	responses map[string]string
	requests  []GraphQLRequest
}

func newGraphQLServer(t *testing.T, responses map[string]string) (*graphqlServer, *httptest.Server) {
	gs := &graphqlServer{t: t, responses: responses}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GraphQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gs.requests = append(gs.requests, req)
		for key, data := range gs.responses {
			if strings.Contains(req.Query, key) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"data": ` + data + `}`))
				return
			}
		}
		t.Errorf("unexpected query: %s", req.Query)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return gs, srv
}

func TestNewClient(t *testing.T) {
	client := NewClient(testutil.FakeLinearAPIKey)
	if client.apiKey != testutil.FakeLinearAPIKey {
		t.Errorf("client.apiKey = %s, want %s", client.apiKey, testutil.FakeLinearAPIKey)
	}
	if client.baseURL != linearAPIURL {
		t.Errorf("client.baseURL = %s, want %s", client.baseURL, linearAPIURL)
	}
	if client.httpClient.Timeout != 30*time.Second {
		t.Errorf("client.httpClient.Timeout = %v, want 30s", client.httpClient.Timeout)
	}
	if client.Remaining() != DefaultRequestBudget {
		t.Errorf("Remaining() = %d, want %d", client.Remaining(), DefaultRequestBudget)
	}

	if got := NewClient("k", WithRequestBudget(0)).Remaining(); got != DefaultRequestBudget {
		t.Errorf("WithRequestBudget(0) should keep default, got %d", got)
	}
}

func TestExecute_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Authorization") != testutil.FakeLinearAPIKey {
			t.Errorf("Authorization = %s, want %s", r.Header.Get("Authorization"), testutil.FakeLinearAPIKey)
		}
		_, _ = w.Write([]byte(`{"data": {"viewer": {"id": "user-123"}}}`))
	}))
	defer server.Close()

	client := NewClient(testutil.FakeLinearAPIKey, WithBaseURL(server.URL))

	var result struct {
		Viewer struct {
			ID string `json:"id"`
		} `json:"viewer"`
	}
	if err := client.Execute(context.Background(), "query { viewer { id } }", nil, &result); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Viewer.ID != "user-123" {
		t.Errorf("Viewer.ID = %s, want user-123", result.Viewer.ID)
	}
	if client.Remaining() != DefaultRequestBudget-1 {
		t.Errorf("Remaining() = %d, want %d", client.Remaining(), DefaultRequestBudget-1)
	}
}

func TestExecute_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   string
		wantSteps bool
	}{
		{"graphql error", http.StatusOK, `{"errors": [{"message": "Entity not found"}]}`, "GraphQL error: Entity not found", false},
		{"server error", http.StatusInternalServerError, `boom`, "API error (500): boom", false},
		{"unauthorized", http.StatusUnauthorized, `bad key`, "API error (401)", true},
		{"invalid json", http.StatusOK, `not json`, "failed to parse response", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(testutil.FakeLinearAPIKey, WithBaseURL(server.URL))
			err := client.Execute(context.Background(), "query { x }", nil, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
			if got := len(remedy.Steps(err)) > 0; got != tt.wantSteps {
				t.Errorf("has steps = %v, want %v", got, tt.wantSteps)
			}
		})
	}
}

func TestExecute_RateLimitBudget(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"data": {}}`))
	}))
	defer server.Close()

	client := NewClient(testutil.FakeLinearAPIKey, WithBaseURL(server.URL), WithRequestBudget(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := client.Execute(ctx, "query { x }", nil, nil); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	err := client.Execute(ctx, "query { x }", nil, nil)
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("third call error = %v, want ErrRateLimitExceeded", err)
	}
	if len(remedy.Steps(err)) == 0 {
		t.Error("rate limit error should carry next steps")
	}
	if calls != 2 {
		t.Errorf("server saw %d calls, want 2 (exhausted budget must not hit the network)", calls)
	}
}

func TestFetchIssue(t *testing.T) {
	gs, srv := newGraphQLServer(t, map[string]string{
		"GetIssue": `{"issue": {
			"id": "uuid-59", "identifier": "TRA-59", "title": "Create all tags from master list",
			"description": "see parent", "priority": 2,
			"state": {"id": "s1", "name": "Todo", "type": "unstarted"},
			"labels": {"nodes": [{"id": "l1", "name": "crm"}]},
			"assignee": null, "project": {"id": "p1", "name": "Lifecycle"},
			"team": {"id": "t1", "name": "Trade Ideas", "key": "TRA"},
			"parent": {"id": "uuid-58", "identifier": "TRA-58", "title": "Tags", "description": "- [Lifecycle] Trial Started"},
			"createdAt": "2025-01-02T03:04:05Z", "updatedAt": "2025-01-02T03:04:05Z"
		}}`,
	})

	client := NewClient(testutil.FakeLinearAPIKey, WithBaseURL(srv.URL))
	issue, err := client.FetchIssue(context.Background(), "TRA-59")
	if err != nil {
		t.Fatalf("FetchIssue() error = %v", err)
	}

	if gs.requests[0].Variables["id"] != "TRA-59" {
		t.Errorf("variables[id] = %v, want TRA-59", gs.requests[0].Variables["id"])
	}
	if issue.ID != "uuid-59" || issue.Team.Key != "TRA" {
		t.Errorf("issue = %+v", issue)
	}
	if len(issue.Labels) != 1 || issue.Labels[0].Name != "crm" {
		t.Errorf("Labels = %+v", issue.Labels)
	}
	if issue.Parent == nil || issue.Parent.Identifier != "TRA-58" {
		t.Errorf("Parent = %+v", issue.Parent)
	}
	if issue.Project == nil || issue.Project.Name != "Lifecycle" {
		t.Errorf("Project = %+v", issue.Project)
	}
}

func TestFetchIssue_NotFound(t *testing.T) {
	_, srv := newGraphQLServer(t, map[string]string{"GetIssue": `{"issue": null}`})
	client := NewClient(testutil.FakeLinearAPIKey, WithBaseURL(srv.URL))

	_, err := client.FetchIssue(context.Background(), "TRA-404")
	if !errors.Is(err, ErrIssueNotFound) {
		t.Errorf("error = %v, want ErrIssueNotFound", err)
	}
}

func TestListTeams(t *testing.T) {
	_, srv := newGraphQLServer(t, map[string]string{
		"teams": `{"teams": {"nodes": [{"id": "t1", "name": "Trade Ideas", "key": "TRA"}, {"id": "t2", "name": "Ops", "key": "OPS"}]}}`,
	})
	client := NewClient(testutil.FakeLinearAPIKey, WithBaseURL(srv.URL))

	teams, err := client.ListTeams(context.Background())
	if err != nil {
		t.Fatalf("ListTeams() error = %v", err)
	}
	if len(teams) != 2 || teams[1].Key != "OPS" {
		t.Errorf("teams = %+v", teams)
	}
}

func TestListTeamIssues(t *testing.T) {
	tests := []struct {
		name      string
		opts      ListOptions
		wantFirst float64
		wantOpen  bool
	}{
		{"defaults to max page", ListOptions{OpenOnly: true}, MaxPageSize, true},
		{"caps oversized page", ListOptions{First: 1000}, MaxPageSize, false},
		{"small page", ListOptions{First: 10, OpenOnly: true}, 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs, srv := newGraphQLServer(t, map[string]string{
				"GetTeamIssues": `{"issues": {"nodes": [
					{"id": "i1", "identifier": "TRA-1", "title": "A", "state": {"name": "Todo", "type": "unstarted"}, "labels": {"nodes": []}, "team": {"key": "TRA"}}
				]}}`,
			})
			client := NewClient(testutil.FakeLinearAPIKey, WithBaseURL(srv.URL))

			issues, err := client.ListTeamIssues(context.Background(), "TRA", tt.opts)
			if err != nil {
				t.Fatalf("ListTeamIssues() error = %v", err)
			}
			if len(issues) != 1 || issues[0].Identifier != "TRA-1" {
				t.Errorf("issues = %+v", issues)
			}

			req := gs.requests[0]
			if req.Variables["teamKey"] != "TRA" {
				t.Errorf("teamKey = %v", req.Variables["teamKey"])
			}
			if req.Variables["first"] != tt.wantFirst {
				t.Errorf("first = %v, want %v", req.Variables["first"], tt.wantFirst)
			}
			if got := strings.Contains(req.Query, `neq: "completed"`); got != tt.wantOpen {
				t.Errorf("open filter present = %v, want %v", got, tt.wantOpen)
			}
		})
	}
}

func TestTransitionIssue(t *testing.T) {
	gs, srv := newGraphQLServer(t, map[string]string{
		"GetIssue":       `{"issue": {"id": "uuid-56", "identifier": "TRA-56", "team": {"id": "t1", "key": "TRA"}, "labels": {"nodes": []}}}`,
		"workflowStates": `{"workflowStates": {"nodes": [{"id": "s-todo", "name": "Todo", "type": "unstarted"}, {"id": "s-done", "name": "Done", "type": "completed"}]}}`,
		"issueUpdate":    `{"issueUpdate": {"success": true}}`,
	})
	client := NewClient(testutil.FakeLinearAPIKey, WithBaseURL(srv.URL))

	if err := client.TransitionIssue(context.Background(), "TRA-56", "done"); err != nil {
		t.Fatalf("TransitionIssue() error = %v", err)
	}

	if len(gs.requests) != 3 {
		t.Fatalf("requests = %d, want 3", len(gs.requests))
	}
	if gs.requests[1].Variables["teamId"] != "t1" {
		t.Errorf("states lookup should be scoped to the issue's team, got %v", gs.requests[1].Variables)
	}
	update := gs.requests[2].Variables
	if update["id"] != "uuid-56" || update["stateId"] != "s-done" {
		t.Errorf("issueUpdate variables = %v", update)
	}
}

func TestTransitionIssue_StateNotFound(t *testing.T) {
	gs, srv := newGraphQLServer(t, map[string]string{
		"GetIssue":       `{"issue": {"id": "uuid-56", "identifier": "TRA-56", "team": {"id": "t1"}, "labels": {"nodes": []}}}`,
		"workflowStates": `{"workflowStates": {"nodes": [{"id": "s-todo", "name": "Todo"}, {"id": "s-rev", "name": "In Review"}]}}`,
	})
	client := NewClient(testutil.FakeLinearAPIKey, WithBaseURL(srv.URL))

	err := client.TransitionIssue(context.Background(), "TRA-56", "Done")
	if !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("error = %v, want ErrStateNotFound", err)
	}
	steps := remedy.Steps(err)
	if len(steps) == 0 || !strings.Contains(steps[0], "Todo, In Review") {
		t.Errorf("steps = %v, want available state names", steps)
	}
	for _, r := range gs.requests {
		if strings.Contains(r.Query, "issueUpdate") {
			t.Error("no update should be sent when the state is missing")
		}
	}
}

func TestPostComment(t *testing.T) {
	gs, srv := newGraphQLServer(t, map[string]string{
		"GetIssue":      `{"issue": {"id": "uuid-65", "identifier": "TRA-65", "labels": {"nodes": []}}}`,
		"commentCreate": `{"commentCreate": {"success": true}}`,
	})
	client := NewClient(testutil.FakeLinearAPIKey, WithBaseURL(srv.URL))

	if err := client.PostComment(context.Background(), "TRA-65", "hello"); err != nil {
		t.Fatalf("PostComment() error = %v", err)
	}
	vars := gs.requests[1].Variables
	if vars["issueId"] != "uuid-65" || vars["body"] != "hello" {
		t.Errorf("commentCreate variables = %v", vars)
	}
}

func TestPriorityName(t *testing.T) {
	tests := map[int]string{
		PriorityNone:   "No Priority",
		PriorityUrgent: "Urgent",
		PriorityHigh:   "High",
		PriorityMedium: "Medium",
		PriorityLow:    "Low",
		99:             "No Priority",
	}
	for p, want := range tests {
		if got := PriorityName(p); got != want {
			t.Errorf("PriorityName(%d) = %q, want %q", p, got, want)
		}
	}
}
