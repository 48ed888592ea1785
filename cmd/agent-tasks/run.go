package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/skipshean/linear-agent-tasks/internal/dispatch"
	"github.com/skipshean/linear-agent-tasks/internal/remedy"
	"github.com/skipshean/linear-agent-tasks/internal/workflow"
)

var errNothingToRun = errors.New("nothing to run")

func newRunCmd(a *app) *cobra.Command {
	var (
		teamID string
		tasks  []string
		phase  string
		all    bool
		list   bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run task handlers by id, by phase, or all of them",
		Example: `  agent-tasks run --list
  agent-tasks run --team trade-ideas --task TRA-56 --task TRA-59
  agent-tasks run --team trade-ideas --phase quick-wins
  agent-tasks run --team trade-ideas --all --output results.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if list {
				return listTasks(out)
			}

			selected := 0
			for _, b := range []bool{len(tasks) > 0, phase != "", all} {
				if b {
					selected++
				}
			}
			if selected != 1 {
				return remedy.Wrap(errNothingToRun,
					"Pass exactly one of --task, --phase or --all",
					"See the task list: agent-tasks run --list")
			}
			if teamID == "" {
				return remedy.Wrap(errors.New("--team is required"), "List teams: agent-tasks teams list")
			}

			reg, err := a.loadTeams()
			if err != nil {
				return err
			}
			o, cleanup, err := a.orchestrator(reg)
			if err != nil {
				return err
			}
			defer cleanup()

			var report *workflow.RunReport
			switch {
			case len(tasks) > 0:
				report, err = o.RunTasks(cmd.Context(), teamID, normalizeIDs(tasks))
			case phase != "":
				report, err = o.RunPhase(cmd.Context(), teamID, phase)
			default:
				report, err = o.RunAll(cmd.Context(), teamID)
			}
			if report == nil {
				return err
			}

			printResults(out, report.Results)
			printWarnings(out, report.Warnings)
			if output != "" {
				if werr := writeResultsFile(output, report); werr != nil {
					return werr
				}
				fmt.Fprintf(out, "\nResults saved to: %s\n", output)
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&teamID, "team", "", "Team id whose credentials are used")
	f.StringSliceVar(&tasks, "task", nil, "Task id to run (repeatable, or comma-separated)")
	f.StringVar(&phase, "phase", "", "Run one phase: "+strings.Join(dispatch.PhaseNames(), ", "))
	f.BoolVar(&all, "all", false, "Run every phase in order")
	f.BoolVar(&list, "list", false, "List known tasks and phases")
	f.StringVar(&output, "output", "", "Also write results as JSON to this file")
	return cmd
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.ToUpper(strings.TrimSpace(id)); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func listTasks(w io.Writer) error {
	reg := dispatch.NewDefaultRegistry(&dispatch.Deps{})
	inPhase := map[string]string{}
	for _, p := range dispatch.Phases() {
		for _, id := range p.Tasks {
			inPhase[id] = p.Name
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TASK\tPHASE\tTITLE")
	for _, id := range reg.IDs() {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", id, inPhase[id], reg.Title(id))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Phases (run order):")
	for i, p := range dispatch.Phases() {
		fmt.Fprintf(w, "  %d. %s: %s\n", i+1, p.Name, strings.Join(p.Tasks, ", "))
	}
	return nil
}

func writeResultsFile(path string, report *workflow.RunReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	if err := writeJSON(f, report); err != nil {
		f.Close()
		return fmt.Errorf("failed to write results: %w", err)
	}
	return f.Close()
}
