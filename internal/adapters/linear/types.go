package linear

import "time"

// DefaultRequestBudget is the per-client request allowance, matching Linear's
// hourly limit for API keys.
const DefaultRequestBudget = 1500

// MaxPageSize is the largest page ListTeamIssues will request.
const MaxPageSize = 250

// Priority levels
const (
	PriorityNone   = 0
	PriorityUrgent = 1
	PriorityHigh   = 2
	PriorityMedium = 3
	PriorityLow    = 4
)

// PriorityName returns the human-readable priority name
func PriorityName(priority int) string {
	switch priority {
	case PriorityUrgent:
		return "Urgent"
	case PriorityHigh:
		return "High"
	case PriorityMedium:
		return "Medium"
	case PriorityLow:
		return "Low"
	default:
		return "No Priority"
	}
}

// StateType represents issue state types
type StateType string

const (
	StateTypeBacklog   StateType = "backlog"
	StateTypeUnstarted StateType = "unstarted"
	StateTypeStarted   StateType = "started"
	StateTypeCompleted StateType = "completed"
	StateTypeCanceled  StateType = "canceled"
)

// Issue represents a Linear issue
type Issue struct {
	ID          string     `json:"id"`
	Identifier  string     `json:"identifier"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    int        `json:"priority"`
	State       State      `json:"state"`
	Labels      []Label    `json:"labels"`
	Assignee    *User      `json:"assignee"`
	Project     *Project   `json:"project"`
	Team        Team       `json:"team"`
	Parent      *ParentRef `json:"parent,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ParentRef is the slice of a parent issue that handlers read.
type ParentRef struct {
	ID          string `json:"id"`
	Identifier  string `json:"identifier"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// State represents an issue state
type State struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Label represents a Linear label
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User represents a Linear user
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Project represents a Linear project
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Team represents a Linear team
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// WorkflowState is one state of a team's workflow.
type WorkflowState struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Team *Team  `json:"team,omitempty"`
}

// ListOptions configures ListTeamIssues.
type ListOptions struct {
	// OpenOnly excludes issues whose state type is completed.
	OpenOnly bool
	// First caps the page size; 0 or anything above MaxPageSize means MaxPageSize.
	First int
}

// issueNode is the raw GraphQL shape of an issue (labels have nested nodes)
type issueNode struct {
	ID          string `json:"id"`
	Identifier  string `json:"identifier"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	State       State  `json:"state"`
	Labels      struct {
		Nodes []Label `json:"nodes"`
	} `json:"labels"`
	Assignee  *User      `json:"assignee"`
	Project   *Project   `json:"project"`
	Team      Team       `json:"team"`
	Parent    *ParentRef `json:"parent"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (r *issueNode) toIssue() *Issue {
	return &Issue{
		ID:          r.ID,
		Identifier:  r.Identifier,
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		State:       r.State,
		Labels:      r.Labels.Nodes,
		Assignee:    r.Assignee,
		Project:     r.Project,
		Team:        r.Team,
		Parent:      r.Parent,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
