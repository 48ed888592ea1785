package analyzer

import (
	"fmt"
	"strings"
)

// summaryLimit caps the agent-suitable list in Summary.
const summaryLimit = 10

var rule = strings.Repeat("=", 60)

// Summary renders one team's analysis for the terminal.
func Summary(a *TeamAnalysis) string {
	if !a.OK() {
		return "❌ Error: " + a.Error
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nTeam: %s\n", rule, a.TeamName)
	if a.ProjectName != "" {
		fmt.Fprintf(&b, "Project: %s\n", a.ProjectName)
	}
	fmt.Fprintf(&b, "%s\n\n", rule)
	fmt.Fprintf(&b, "Total Open Tasks: %d\n\n", a.Total)

	b.WriteString("📊 Task Breakdown:\n")
	fmt.Fprintf(&b, "  🤖 Agent-Suitable: %d\n", len(a.Categorized[AgentSuitable]))
	fmt.Fprintf(&b, "  👤 Needs Review: %d\n", len(a.Categorized[NeedsReview]))
	fmt.Fprintf(&b, "  🚫 Blocked: %d\n", len(a.Categorized[Blocked]))
	fmt.Fprintf(&b, "  ⬇️  Low Priority: %d\n", len(a.Categorized[LowPriority]))
	fmt.Fprintf(&b, "  📋 Other: %d\n\n", len(a.Categorized[Other]))

	if suitable := a.Categorized[AgentSuitable]; len(suitable) > 0 {
		b.WriteString("🤖 Agent-Suitable Tasks:\n")
		for i, issue := range suitable {
			if i == summaryLimit {
				fmt.Fprintf(&b, "  ... and %d more\n", len(suitable)-summaryLimit)
				break
			}
			fmt.Fprintf(&b, "  - %s: %s\n", issue.Identifier, issue.Title)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// MultiSummary renders analyses for several teams in the given order.
func MultiSummary(order []string, results map[string]*TeamAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nMulti-Team Analysis Summary\n%s\n\n", rule, rule)
	for _, id := range order {
		a, ok := results[id]
		if !ok {
			continue
		}
		if !a.OK() {
			fmt.Fprintf(&b, "❌ %s: %s\n\n", id, a.Error)
			continue
		}
		name := a.TeamName
		if name == "" {
			name = id
		}
		fmt.Fprintf(&b, "📁 %s:\n", name)
		fmt.Fprintf(&b, "   Total Tasks: %d\n", a.Total)
		fmt.Fprintf(&b, "   Agent-Suitable: %d\n", len(a.Categorized[AgentSuitable]))
		fmt.Fprintf(&b, "   Needs Review: %d\n\n", len(a.Categorized[NeedsReview]))
	}
	return b.String()
}
