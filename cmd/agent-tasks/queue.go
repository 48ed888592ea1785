package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/skipshean/linear-agent-tasks/internal/remedy"
	"github.com/skipshean/linear-agent-tasks/internal/teams"
)

func newQueueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the cloud execution queue",
	}
	cmd.AddCommand(
		newQueueListCmd(a),
		newQueueStatusCmd(a),
		newQueuePackageCmd(a),
	)
	return cmd
}

func newQueueListCmd(a *app) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending submissions, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadTeams()
			if err != nil {
				return err
			}
			q, err := a.newQueue(reg)
			if err != nil {
				return err
			}
			records, err := q.ListPending()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, records)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No pending tasks.")
				return nil
			}

			fmt.Fprintf(out, "%d pending task(s):\n\n", len(records))
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "TASK\tTEAM\tSUBMITTED\tTITLE")
			for _, r := range records {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.TaskID, r.TeamID, r.SubmittedAt, r.TaskData.Title)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newQueueStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show where a submitted task is in the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadTeams()
			if err != nil {
				return err
			}
			q, err := a.newQueue(reg)
			if err != nil {
				return err
			}
			rec, err := q.Status(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if rec == nil {
				fmt.Fprintf(out, "Task %s is not in the queue.\n", args[0])
				return nil
			}

			fmt.Fprintf(out, "Task:      %s\n", rec.TaskID)
			fmt.Fprintf(out, "Team:      %s\n", rec.TeamID)
			fmt.Fprintf(out, "Status:    %s\n", rec.QueueStatus)
			fmt.Fprintf(out, "Submitted: %s\n", rec.SubmittedAt)
			if rec.CompletedAt != "" {
				fmt.Fprintf(out, "Completed: %s\n", rec.CompletedAt)
			}
			if rec.Error != "" {
				fmt.Fprintf(out, "Error:     %s\n", errStyle.Render(rec.Error))
			}
			fmt.Fprintf(out, "File:      %s\n", rec.QueueFile)
			return nil
		},
	}
}

func newQueuePackageCmd(a *app) *cobra.Command {
	var tasks []string

	cmd := &cobra.Command{
		Use:   "package <team>",
		Short: "Build a self-contained package that runs tasks elsewhere",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(tasks) == 0 {
				return remedy.Wrap(errNothingToRun, "Pass the tasks to include: --task TRA-56 --task TRA-59")
			}
			reg, err := a.loadTeams()
			if err != nil {
				return err
			}
			if _, ok := reg.Get(args[0]); !ok {
				return remedy.Wrapf(teams.ErrTeamNotFound, []string{"List teams: agent-tasks teams list"}, "team %q", args[0])
			}
			q, err := a.newQueue(reg)
			if err != nil {
				return err
			}
			dir, err := q.CreatePackage(args[0], normalizeIDs(tasks))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "📦 Package created: %s\n", dir)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&tasks, "task", nil, "Task id to include (repeatable)")
	return cmd
}
