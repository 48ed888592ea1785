package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/skipshean/linear-agent-tasks/internal/logging"
	"github.com/skipshean/linear-agent-tasks/internal/remedy"
)

const (
	linearAPIURL = "https://api.linear.app/graphql"
)

var (
	// ErrRateLimitExceeded means the client's request budget is spent.
	ErrRateLimitExceeded = errors.New("linear rate limit exceeded")
	// ErrStateNotFound means no workflow state has the requested name.
	ErrStateNotFound = errors.New("workflow state not found")
	// ErrIssueNotFound means the tracker returned no issue for an identifier.
	ErrIssueNotFound = errors.New("issue not found")
)

// Client is a Linear API client. It is not safe to share one budget across
// processes; each Client counts only its own requests.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	mu        sync.Mutex
	remaining int
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different GraphQL endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient replaces the default 30s-timeout HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRequestBudget sets how many requests the client may issue. Values <= 0
// keep the default.
func WithRequestBudget(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.remaining = n
		}
	}
}

// NewClient creates a new Linear client
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: linearAPIURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		remaining: DefaultRequestBudget,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Remaining returns the unspent request budget.
func (c *Client) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Client) spend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining <= 0 {
		return remedy.Wrap(ErrRateLimitExceeded,
			"Wait before making more requests (Linear allows 1500 requests/hour)",
			"Run fewer tasks per invocation, or raise rate_limit in the config if your key allows more")
	}
	c.remaining--
	return nil
}

// GraphQLRequest represents a GraphQL request
type GraphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// GraphQLResponse represents a GraphQL response
type GraphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// GraphQLError represents a GraphQL error
type GraphQLError struct {
	Message string `json:"message"`
}

// Execute executes a GraphQL query
func (c *Client) Execute(ctx context.Context, query string, variables map[string]interface{}, result interface{}) error {
	if err := c.spend(); err != nil {
		return err
	}

	reqBody := GraphQLRequest{
		Query:     query,
		Variables: variables,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		if resp.StatusCode == http.StatusUnauthorized {
			return remedy.Wrap(err,
				"Check the team's linear.api_key in the team configuration",
				"Create a new key at https://linear.app/settings/api")
		}
		return err
	}

	var gqlResp GraphQLResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		return fmt.Errorf("GraphQL error: %s", gqlResp.Errors[0].Message)
	}

	if result != nil {
		if err := json.Unmarshal(gqlResp.Data, result); err != nil {
			return fmt.Errorf("failed to parse data: %w", err)
		}
	}

	return nil
}

const issueFields = `
	id
	identifier
	title
	description
	priority
	state { id name type }
	labels { nodes { id name } }
	assignee { id name email }
	project { id name }
	team { id name key }
	createdAt
	updatedAt
`

// FetchIssue fetches an issue by ID or human identifier (e.g. "TRA-56"),
// including its parent.
func (c *Client) FetchIssue(ctx context.Context, identifier string) (*Issue, error) {
	query := `
		query GetIssue($id: String!) {
			issue(id: $id) {` + issueFields + `
				parent { id identifier title description }
			}
		}
	`

	var result struct {
		Issue *issueNode `json:"issue"`
	}

	if err := c.Execute(ctx, query, map[string]interface{}{"id": identifier}, &result); err != nil {
		return nil, err
	}
	if result.Issue == nil {
		return nil, fmt.Errorf("%s: %w", identifier, ErrIssueNotFound)
	}

	return result.Issue.toIssue(), nil
}

// ListTeams returns every team visible to the API key.
func (c *Client) ListTeams(ctx context.Context) ([]Team, error) {
	query := `
		query {
			teams {
				nodes { id name key }
			}
		}
	`
	var result struct {
		Teams struct {
			Nodes []Team `json:"nodes"`
		} `json:"teams"`
	}
	if err := c.Execute(ctx, query, nil, &result); err != nil {
		return nil, err
	}
	return result.Teams.Nodes, nil
}

// ListTeamIssues returns one page of a team's issues, newest first.
func (c *Client) ListTeamIssues(ctx context.Context, teamKey string, opts ListOptions) ([]*Issue, error) {
	first := opts.First
	if first <= 0 || first > MaxPageSize {
		first = MaxPageSize
	}

	filter := `team: { key: { eq: $teamKey } }`
	if opts.OpenOnly {
		filter += `, state: { type: { neq: "completed" } }`
	}

	query := `
		query GetTeamIssues($teamKey: String!, $first: Int!) {
			issues(
				filter: { ` + filter + ` }
				first: $first
				orderBy: createdAt
			) {
				nodes {` + issueFields + `}
			}
		}
	`

	var result struct {
		Issues struct {
			Nodes []*issueNode `json:"nodes"`
		} `json:"issues"`
	}

	if err := c.Execute(ctx, query, map[string]interface{}{
		"teamKey": teamKey,
		"first":   first,
	}, &result); err != nil {
		return nil, err
	}

	issues := make([]*Issue, 0, len(result.Issues.Nodes))
	for _, n := range result.Issues.Nodes {
		issues = append(issues, n.toIssue())
	}
	return issues, nil
}

// ListWorkflowStates returns the workflow states of a team, or of every team
// when teamID is empty.
func (c *Client) ListWorkflowStates(ctx context.Context, teamID string) ([]WorkflowState, error) {
	query := `
		query {
			workflowStates {
				nodes { id name type team { id name key } }
			}
		}
	`
	vars := map[string]interface{}(nil)
	if teamID != "" {
		query = `
			query States($teamId: ID!) {
				workflowStates(filter: { team: { id: { eq: $teamId } } }) {
					nodes { id name type team { id name key } }
				}
			}
		`
		vars = map[string]interface{}{"teamId": teamID}
	}

	var result struct {
		WorkflowStates struct {
			Nodes []WorkflowState `json:"nodes"`
		} `json:"workflowStates"`
	}
	if err := c.Execute(ctx, query, vars, &result); err != nil {
		return nil, err
	}
	return result.WorkflowStates.Nodes, nil
}

// TransitionIssue moves an issue to the workflow state whose name matches
// stateName case-insensitively, looking only at the issue's own team.
func (c *Client) TransitionIssue(ctx context.Context, identifier, stateName string) error {
	issue, err := c.FetchIssue(ctx, identifier)
	if err != nil {
		return err
	}

	states, err := c.ListWorkflowStates(ctx, issue.Team.ID)
	if err != nil {
		return err
	}

	var target *WorkflowState
	names := make([]string, 0, len(states))
	for i := range states {
		names = append(names, states[i].Name)
		if target == nil && strings.EqualFold(states[i].Name, stateName) {
			target = &states[i]
		}
	}
	if target == nil {
		return remedy.Wrapf(ErrStateNotFound, []string{
			"Available states: " + strings.Join(names, ", "),
			"Set done_state in the config to one of them",
		}, "status %q", stateName)
	}

	if err := c.UpdateIssueState(ctx, issue.ID, target.ID); err != nil {
		return err
	}
	logging.WithTask(identifier).Info("Transitioned issue", slog.String("state", target.Name))
	return nil
}

// PostComment resolves identifier to the internal issue id and adds a comment.
func (c *Client) PostComment(ctx context.Context, identifier, body string) error {
	issue, err := c.FetchIssue(ctx, identifier)
	if err != nil {
		return err
	}
	return c.AddComment(ctx, issue.ID, body)
}

// UpdateIssueState updates an issue's state
func (c *Client) UpdateIssueState(ctx context.Context, issueID, stateID string) error {
	mutation := `
		mutation UpdateIssue($id: String!, $stateId: String!) {
			issueUpdate(id: $id, input: { stateId: $stateId }) {
				success
			}
		}
	`

	return c.Execute(ctx, mutation, map[string]interface{}{
		"id":      issueID,
		"stateId": stateID,
	}, nil)
}

// AddComment adds a comment to an issue
func (c *Client) AddComment(ctx context.Context, issueID, body string) error {
	mutation := `
		mutation CreateComment($issueId: String!, $body: String!) {
			commentCreate(input: { issueId: $issueId, body: $body }) {
				success
			}
		}
	`

	return c.Execute(ctx, mutation, map[string]interface{}{
		"issueId": issueID,
		"body":    body,
	}, nil)
}
