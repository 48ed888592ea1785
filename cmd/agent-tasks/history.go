package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/skipshean/linear-agent-tasks/internal/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		filter  history.Filter
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent task runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(a.cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "WHEN\tTEAM\tTASK\tMODE\tRESULT\tDETAIL")
			for _, e := range entries {
				result, detail := "ok", e.Message
				switch {
				case !e.Success:
					result, detail = "failed", e.Error
				case e.ManualRequired:
					result = "manual"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.RecordedAt.Local().Format(time.DateTime), e.TeamID, e.TaskID, e.Mode, result, detail)
			}
			return w.Flush()
		},
	}

	f := cmd.Flags()
	f.StringVar(&filter.TeamID, "team", "", "Only this team")
	f.StringVar(&filter.TaskID, "task", "", "Only this task")
	f.StringVar(&filter.RunID, "run", "", "Only this run")
	f.IntVar(&filter.Limit, "limit", 20, "Maximum rows")
	f.BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
