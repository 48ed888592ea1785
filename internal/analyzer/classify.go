// Package analyzer pulls open issues per team and sorts them into categories,
// flagging the ones an agent could plausibly handle.
package analyzer

import (
	"strings"
	"unicode/utf8"

	"github.com/skipshean/linear-agent-tasks/internal/adapters/linear"
)

// Category is the derived bucket of an issue.
type Category string

const (
	AgentSuitable Category = "agent_suitable"
	NeedsReview   Category = "needs_review"
	Blocked       Category = "blocked"
	LowPriority   Category = "low_priority"
	Other         Category = "other"
)

// Categories in display order.
var Categories = []Category{AgentSuitable, NeedsReview, Blocked, LowPriority, Other}

// MinDescriptionLength is the shortest description (in characters) that can
// be agent-suitable.
const MinDescriptionLength = 50

var automationKeywords = []string{
	"create", "document", "build", "set up", "configure",
	"add", "implement", "generate", "export", "import",
	"format", "organize", "update", "sync",
}

var criteriaMarkers = []string{"acceptance", "criteria", "requirements", "steps"}

// Categorize assigns exactly one category. Precedence: blocked, low priority,
// agent-suitable, needs review, other.
func Categorize(issue *linear.Issue) Category {
	switch {
	case strings.EqualFold(issue.State.Type, string(linear.StateTypeCanceled)) ||
		strings.EqualFold(issue.State.Name, "blocked"):
		return Blocked
	case issue.Priority >= linear.PriorityMedium:
		return LowPriority
	case IsAgentSuitable(issue):
		return AgentSuitable
	case issue.Assignee != nil || issue.Description == "":
		return NeedsReview
	default:
		return Other
	}
}

// IsAgentSuitable reports whether the description is long enough and the text
// reads like concrete, automatable work.
func IsAgentSuitable(issue *linear.Issue) bool {
	if utf8.RuneCountInString(issue.Description) < MinDescriptionLength {
		return false
	}

	desc := strings.ToLower(issue.Description)
	text := strings.ToLower(issue.Title) + " " + desc
	for _, k := range automationKeywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	for _, m := range criteriaMarkers {
		if strings.Contains(desc, m) {
			return true
		}
	}
	return false
}

// Partition groups issues by category, keeping input order within each group.
// Every category key is present.
func Partition(issues []*linear.Issue) map[Category][]*linear.Issue {
	out := make(map[Category][]*linear.Issue, len(Categories))
	for _, c := range Categories {
		out[c] = []*linear.Issue{}
	}
	for _, issue := range issues {
		c := Categorize(issue)
		out[c] = append(out[c], issue)
	}
	return out
}
