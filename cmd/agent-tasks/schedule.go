package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/skipshean/linear-agent-tasks/internal/workflow"
)

func newScheduleCmd(a *app) *cobra.Command {
	var (
		cfg    workflow.ScheduleConfig
		runNow bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the team workflow on a cron schedule until interrupted",
		Example: `  agent-tasks schedule --team trade-ideas --cron "@every 1h"
  agent-tasks schedule --team trade-ideas --team beta --cron "0 9 * * 1-5" --timezone Europe/Berlin --mode cloud`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadTeams()
			if err != nil {
				return err
			}
			if len(cfg.Teams) == 0 {
				cfg.Teams = reg.IDs()
			}
			o, cleanup, err := a.orchestrator(reg)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			cfg.OnReport = func(r *workflow.WorkReport) {
				stamp := dimStyle.Render(time.Now().Format(time.DateTime))
				if !r.OK() {
					fmt.Fprintf(out, "%s %s %s: %s\n", stamp, errStyle.Render("❌"), r.TeamID, r.Error)
					return
				}
				fmt.Fprintf(out, "%s %s %s: %s\n", stamp, okStyle.Render("✅"), r.TeamID, r.Message)
				printWarnings(out, r.Warnings)
			}

			s, err := workflow.NewScheduler(o, cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if runNow {
				s.RunNow(ctx)
			}
			if err := s.Start(ctx); err != nil {
				return err
			}
			defer s.Stop()

			st := s.Status()
			fmt.Fprintf(out, "⏰ Scheduled %s (%s), next run %s. Ctrl+C to stop.\n",
				st.Spec, st.Timezone, st.NextRun.Format(time.DateTime))
			<-ctx.Done()
			fmt.Fprintln(out, "\nStopping scheduler...")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&cfg.Teams, "team", nil, "Team id to sweep (repeatable; default all enabled teams)")
	f.StringVar(&cfg.Spec, "cron", "@hourly", `Cron expression or descriptor ("@every 30m")`)
	f.StringVar(&cfg.Timezone, "timezone", "", "IANA timezone for the cron expression (default UTC)")
	f.StringVar(&cfg.Work.ProjectID, "project", "", "Only issues in this Linear project")
	f.IntVar(&cfg.Work.Limit, "limit", 0, "Tasks per team per sweep (0 = all)")
	f.StringVar(&cfg.Work.Mode, "mode", workflow.ModeLocal, "Execution mode: local or cloud")
	f.BoolVar(&runNow, "run-now", false, "Sweep once immediately before waiting for the schedule")
	return cmd
}
