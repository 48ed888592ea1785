// Package dispatch maps tracker task ids to handlers that do the work through
// the tracker, document and CRM gateways, then report back on the issue.
package dispatch

import (
	"context"

	"github.com/skipshean/linear-agent-tasks/internal/adapters/activecampaign"
	"github.com/skipshean/linear-agent-tasks/internal/adapters/google"
	"github.com/skipshean/linear-agent-tasks/internal/adapters/linear"
)

// Tracker is the issue tracker gateway. *linear.Client satisfies it.
type Tracker interface {
	FetchIssue(ctx context.Context, identifier string) (*linear.Issue, error)
	PostComment(ctx context.Context, identifier, body string) error
	TransitionIssue(ctx context.Context, identifier, stateName string) error
}

// CRM is the tag and automation gateway. *activecampaign.Client satisfies it.
type CRM interface {
	ListTags(ctx context.Context, limit, offset int) ([]activecampaign.Tag, error)
	CreateTag(ctx context.Context, name, tagType, description string) (*activecampaign.Tag, bool, error)
	ListAutomations(ctx context.Context) ([]activecampaign.Automation, error)
	PlanGoal(ctx context.Context, automationID, goalName string) (*activecampaign.GoalPlan, error)
}

// Documents creates text documents. *google.Docs satisfies it.
type Documents interface {
	CreateDocument(ctx context.Context, title string) (string, error)
	InsertOutline(ctx context.Context, documentID string, sections []google.Section) error
}

// Spreadsheets creates and fills spreadsheets. *google.Sheets satisfies it.
type Spreadsheets interface {
	CreateSpreadsheet(ctx context.Context, title string, tabs []string) (string, error)
	WriteRange(ctx context.Context, spreadsheetID, a1Range string, rows [][]interface{}) error
}

// Deps are the gateways and settings handed to every handler. A nil gateway
// means the team has no credentials for that service.
type Deps struct {
	Tracker Tracker
	CRM     CRM
	Docs    Documents
	Sheets  Spreadsheets

	// DoneState is the workflow state set after a fully successful run.
	DoneState string
	// Strict disables name-match fallbacks (e.g. first automation).
	Strict bool
	// DriveFolderID is quoted in setup instructions when Google refuses access.
	DriveFolderID string
}

func (d *Deps) doneState() string {
	if d.DoneState == "" {
		return "Done"
	}
	return d.DoneState
}
