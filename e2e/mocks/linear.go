package mocks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/skipshean/linear-agent-tasks/internal/adapters/linear"
)

// LinearMock is a fake Linear GraphQL endpoint. It answers the operations
// the linear client issues and keeps issue state and comments across calls.
type LinearMock struct {
	server *httptest.Server
	apiKey string

	mu       sync.RWMutex
	teams    []linear.Team
	states   []linear.WorkflowState
	issues   []*linear.Issue // tracker order
	comments map[string][]string
	requests int
}

// NewLinearMock starts a server that accepts only apiKey.
func NewLinearMock(apiKey string) *LinearMock {
	m := &LinearMock{apiKey: apiKey, comments: make(map[string][]string)}
	m.server = httptest.NewServer(http.HandlerFunc(m.handleRequest))
	return m
}

// URL returns the GraphQL endpoint.
func (m *LinearMock) URL() string { return m.server.URL }

// Close shuts down the server.
func (m *LinearMock) Close() { m.server.Close() }

func (m *LinearMock) AddTeam(id, name, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams = append(m.teams, linear.Team{ID: id, Name: name, Key: key})
}

func (m *LinearMock) AddState(teamID, id, name, stateType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.team(teamID)
	m.states = append(m.states, linear.WorkflowState{ID: id, Name: name, Type: stateType, Team: &t})
}

// AddIssue stores a copy of issue. ID defaults to "id-<identifier>".
func (m *LinearMock) AddIssue(issue linear.Issue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if issue.ID == "" {
		issue.ID = "id-" + issue.Identifier
	}
	m.issues = append(m.issues, &issue)
}

// Issue returns the current state of an issue.
func (m *LinearMock) Issue(identifier string) (linear.Issue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if is := m.find(identifier); is != nil {
		return *is, true
	}
	return linear.Issue{}, false
}

// Comments returns the comment bodies posted on an issue, oldest first.
func (m *LinearMock) Comments(identifier string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.comments[identifier]...)
}

// Requests counts accepted GraphQL calls.
func (m *LinearMock) Requests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests
}

func (m *LinearMock) team(id string) linear.Team {
	for _, t := range m.teams {
		if t.ID == id {
			return t
		}
	}
	return linear.Team{ID: id}
}

// find matches an internal id or a human identifier.
func (m *LinearMock) find(ref string) *linear.Issue {
	for _, is := range m.issues {
		if is.ID == ref || strings.EqualFold(is.Identifier, ref) {
			return is
		}
	}
	return nil
}

func (m *LinearMock) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get("Authorization") != m.apiKey {
		http.Error(w, `{"errors":[{"message":"Authentication required"}]}`, http.StatusUnauthorized)
		return
	}

	var req linear.GraphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++

	str := func(k string) string { s, _ := req.Variables[k].(string); return s }
	q := req.Query

	var data any
	switch {
	case strings.Contains(q, "commentCreate"):
		is := m.find(str("issueId"))
		if is == nil {
			writeGraphQLError(w, "Entity not found: Issue")
			return
		}
		m.comments[is.Identifier] = append(m.comments[is.Identifier], str("body"))
		data = map[string]any{"commentCreate": map[string]any{"success": true}}

	case strings.Contains(q, "issueUpdate"):
		is := m.find(str("id"))
		if is == nil {
			writeGraphQLError(w, "Entity not found: Issue")
			return
		}
		for _, s := range m.states {
			if s.ID == str("stateId") {
				is.State = linear.State{ID: s.ID, Name: s.Name, Type: s.Type}
			}
		}
		data = map[string]any{"issueUpdate": map[string]any{"success": true}}

	case strings.Contains(q, "workflowStates"):
		teamID := str("teamId")
		nodes := []linear.WorkflowState{}
		for _, s := range m.states {
			if teamID == "" || (s.Team != nil && s.Team.ID == teamID) {
				nodes = append(nodes, s)
			}
		}
		data = map[string]any{"workflowStates": map[string]any{"nodes": nodes}}

	case strings.Contains(q, "GetTeamIssues"):
		openOnly := strings.Contains(q, `neq: "completed"`)
		first, _ := req.Variables["first"].(float64)
		nodes := []any{}
		for _, is := range m.issues {
			if is.Team.Key != str("teamKey") || (openOnly && is.State.Type == string(linear.StateTypeCompleted)) {
				continue
			}
			if first > 0 && len(nodes) >= int(first) {
				break
			}
			nodes = append(nodes, issueNode(is, false))
		}
		data = map[string]any{"issues": map[string]any{"nodes": nodes}}

	case strings.Contains(q, "GetIssue"):
		var node any
		if is := m.find(str("id")); is != nil {
			node = issueNode(is, true)
		}
		data = map[string]any{"issue": node}

	case strings.Contains(q, "teams"):
		data = map[string]any{"teams": map[string]any{"nodes": m.teams}}

	default:
		writeGraphQLError(w, "unsupported operation")
		return
	}

	writeJSON(w, map[string]any{"data": data})
}

// issueNode renders an issue the way the GraphQL API nests it.
func issueNode(is *linear.Issue, withParent bool) map[string]any {
	labels := is.Labels
	if labels == nil {
		labels = []linear.Label{}
	}
	n := map[string]any{
		"id":          is.ID,
		"identifier":  is.Identifier,
		"title":       is.Title,
		"description": is.Description,
		"priority":    is.Priority,
		"state":       is.State,
		"labels":      map[string]any{"nodes": labels},
		"assignee":    is.Assignee,
		"project":     is.Project,
		"team":        is.Team,
		"createdAt":   is.CreatedAt,
		"updatedAt":   is.UpdatedAt,
	}
	if withParent {
		n["parent"] = is.Parent
	}
	return n
}

func writeGraphQLError(w http.ResponseWriter, msg string) {
	writeJSON(w, map[string]any{"data": nil, "errors": []map[string]string{{"message": msg}}})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
