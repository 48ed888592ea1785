package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skipshean/linear-agent-tasks/internal/analyzer"
	"github.com/skipshean/linear-agent-tasks/internal/workflow"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		teamID    string
		projectID string
		jsonOut   bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Classify open Linear issues for one team or all teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadTeams()
			if err != nil {
				return err
			}
			an := a.newAnalyzer(reg)
			out := cmd.OutOrStdout()

			if teamID != "" {
				res := an.AnalyzeTeam(cmd.Context(), teamID, projectID)
				if jsonOut {
					return writeJSON(out, analysisJSON(res))
				}
				fmt.Fprintln(out, analyzer.Summary(res))
				printSteps(out, res.NextSteps)
				return nil
			}

			results := an.AnalyzeAll(cmd.Context())
			if jsonOut {
				m := make(map[string]any, len(results))
				for id, res := range results {
					m[id] = analysisJSON(res)
				}
				return writeJSON(out, m)
			}
			fmt.Fprintln(out, analyzer.MultiSummary(reg.IDs(), results))
			return nil
		},
	}

	cmd.Flags().StringVar(&teamID, "team", "", "Team id (default: all enabled teams)")
	cmd.Flags().StringVar(&projectID, "project", "", "Only issues in this Linear project")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// analysisJSON flattens an analysis to identifiers per category.
func analysisJSON(a *analyzer.TeamAnalysis) map[string]any {
	if !a.OK() {
		return map[string]any{"team_id": a.TeamID, "error": a.Error, "next_steps": a.NextSteps}
	}
	cats := make(map[string][]string, len(analyzer.Categories))
	for _, c := range analyzer.Categories {
		ids := []string{}
		for _, is := range a.Categorized[c] {
			ids = append(ids, is.Identifier)
		}
		cats[string(c)] = ids
	}
	return map[string]any{
		"team_id":           a.TeamID,
		"team_name":         a.TeamName,
		"team_key":          a.TeamKey,
		"team_key_fallback": a.TeamKeyFallback,
		"project_id":        a.ProjectID,
		"project_name":      a.ProjectName,
		"total_tasks":       a.Total,
		"categorized":       cats,
	}
}

func newWorkCmd(a *app) *cobra.Command {
	var (
		opts    workflow.WorkOptions
		teamID  string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "work",
		Short: "Analyze a team and process its agent-suitable tasks",
		Example: `  agent-tasks work --team trade-ideas
  agent-tasks work --team trade-ideas --limit 3 --mode cloud`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadTeams()
			if err != nil {
				return err
			}
			o, cleanup, err := a.orchestrator(reg)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := o.WorkOnTeam(cmd.Context(), teamID, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, report)
			}

			fmt.Fprintln(out, titleStyle.Render("Agent workflow: "+teamID))
			fmt.Fprintln(out, dimStyle.Render("mode "+report.Mode+", run "+report.RunID))
			fmt.Fprintln(out)
			if !report.OK() {
				fmt.Fprintln(out, errStyle.Render("❌ "+report.Error))
				printSteps(out, report.NextSteps)
				return nil
			}
			if len(report.Selected) == 0 {
				fmt.Fprintln(out, report.Message)
				printSteps(out, report.NextSteps)
				return nil
			}

			if report.Mode == workflow.ModeCloud {
				for _, s := range report.Submissions {
					if s.Error != "" {
						fmt.Fprintf(out, "%s %s: %s\n", errStyle.Render("❌"), s.TaskID, s.Error)
						continue
					}
					fmt.Fprintf(out, "%s %s queued as %s\n", okStyle.Render("☁️"), s.TaskID, s.Result.File)
				}
				if report.PackageDir != "" {
					fmt.Fprintf(out, "\n📦 Package: %s\n", report.PackageDir)
				}
				fmt.Fprintln(out, report.Message)
			} else {
				printResults(out, report.Results)
			}
			printWarnings(out, report.Warnings)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&teamID, "team", "", "Team id (required)")
	f.StringVar(&opts.ProjectID, "project", "", "Only issues in this Linear project")
	f.IntVar(&opts.Limit, "limit", 0, "Process at most this many tasks (0 = all)")
	f.StringVar(&opts.Mode, "mode", workflow.ModeLocal, "Execution mode: local or cloud")
	f.BoolVar(&jsonOut, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("team")
	return cmd
}
