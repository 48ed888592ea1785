package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/skipshean/linear-agent-tasks/internal/dispatch"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	menuStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

func resultIcon(r dispatch.Result) string {
	switch {
	case !r.Success:
		return errStyle.Render("❌")
	case r.ManualRequired:
		return warnStyle.Render("📝")
	default:
		return okStyle.Render("✅")
	}
}

func printResult(w io.Writer, r dispatch.Result) {
	title := r.TaskTitle
	if title == "" {
		title = r.TaskID
	}
	fmt.Fprintf(w, "%s %s: %s\n", resultIcon(r), r.TaskID, title)
	if r.Message != "" {
		fmt.Fprintf(w, "   %s\n", r.Message)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "   %s\n", errStyle.Render("Error: "+r.Error))
	}
	for i, s := range r.NextSteps {
		fmt.Fprintf(w, "   %d. %s\n", i+1, s)
	}
	if r.Comment.Attempted && !r.Comment.OK {
		fmt.Fprintf(w, "   %s\n", warnStyle.Render("Comment not posted: "+r.Comment.Error))
	}
	if r.Transition.Attempted && !r.Transition.OK {
		fmt.Fprintf(w, "   %s\n", warnStyle.Render("Not moved to done: "+r.Transition.Error))
	}
}

func printResults(w io.Writer, results []dispatch.Result) {
	ok, manual := 0, 0
	for _, r := range results {
		printResult(w, r)
		if r.Success {
			ok++
			if r.ManualRequired {
				manual++
			}
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Completed: %d/%d", ok, len(results))
	if manual > 0 {
		fmt.Fprintf(w, " (%d need manual follow-up)", manual)
	}
	fmt.Fprintln(w)
}

func printWarnings(w io.Writer, warnings []string) {
	for _, s := range warnings {
		fmt.Fprintf(w, "%s %s\n", warnStyle.Render("⚠️"), s)
	}
}

func printSteps(w io.Writer, steps []string) {
	if len(steps) == 0 {
		return
	}
	fmt.Fprintln(w, "\nNext steps:")
	for i, s := range steps {
		fmt.Fprintf(w, "  %d. %s\n", i+1, s)
	}
}
