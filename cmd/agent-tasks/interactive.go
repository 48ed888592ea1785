package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skipshean/linear-agent-tasks/internal/analyzer"
	"github.com/skipshean/linear-agent-tasks/internal/workflow"
)

func newInteractiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"menu"},
		Short:   "Menu-driven session over teams, analysis and tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := &session{
				app: a,
				cmd: cmd,
				in:  bufio.NewReader(cmd.InOrStdin()),
				out: cmd.OutOrStdout(),
			}
			return s.run()
		},
	}
}

type session struct {
	app *app
	cmd *cobra.Command
	in  *bufio.Reader
	out io.Writer
}

// prompt reads one trimmed line. ok is false once input is exhausted.
func (s *session) prompt(label string) (string, bool) {
	fmt.Fprint(s.out, label)
	line, err := s.in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && line == "" {
		return "", false
	}
	return line, true
}

func (s *session) run() error {
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, titleStyle.Render("  Agent Tasks Interactive Mode"))
	fmt.Fprintln(s.out, dimStyle.Render("  Linear tasks, handled per team"))
	fmt.Fprintln(s.out)

	for {
		option, ok := s.menu()
		if !ok {
			fmt.Fprintln(s.out, "\nGoodbye!")
			return nil
		}

		var err error
		switch option {
		case "teams":
			err = s.listTeams()
		case "analyze":
			err = s.analyze()
		case "work":
			err = s.work()
		case "run":
			err = s.runTask()
		case "queue":
			err = s.queueStatus()
		case "quit":
			fmt.Fprintln(s.out, "\nGoodbye!")
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.out, "%s %v\n", errStyle.Render("Error:"), err)
		}
		if s.cmd.Context().Err() != nil {
			return s.cmd.Context().Err()
		}
	}
}

func (s *session) menu() (string, bool) {
	fmt.Fprintln(s.out, menuStyle.Render("  ─────────────────────────────────────"))
	fmt.Fprintln(s.out)
	fmt.Fprintf(s.out, "  %s List teams\n", selectedStyle.Render("[1]"))
	fmt.Fprintf(s.out, "  %s Analyze a team\n", selectedStyle.Render("[2]"))
	fmt.Fprintf(s.out, "  %s Work on a team\n", selectedStyle.Render("[3]"))
	fmt.Fprintf(s.out, "  %s Run a task\n", selectedStyle.Render("[4]"))
	fmt.Fprintf(s.out, "  %s Queue status\n", selectedStyle.Render("[5]"))
	fmt.Fprintf(s.out, "  %s Quit\n", selectedStyle.Render("[q]"))
	fmt.Fprintln(s.out)

	input, ok := s.prompt("  Select option: ")
	if !ok {
		return "", false
	}
	switch input {
	case "1":
		return "teams", true
	case "2":
		return "analyze", true
	case "3":
		return "work", true
	case "4":
		return "run", true
	case "5":
		return "queue", true
	case "q", "Q", "quit", "exit":
		return "quit", true
	default:
		return "", true
	}
}

func (s *session) listTeams() error {
	reg, err := s.app.loadTeams()
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out)
	list := reg.List()
	if len(list) == 0 {
		fmt.Fprintln(s.out, "  No enabled teams.")
		return nil
	}
	for _, t := range list {
		fmt.Fprintf(s.out, "  %s %s\n", selectedStyle.Render(t.ID), dimStyle.Render(t.DisplayName()))
	}
	fmt.Fprintln(s.out)
	return nil
}

func (s *session) askTeam() (string, bool) {
	team, ok := s.prompt("  Team id: ")
	if !ok || team == "" {
		fmt.Fprintln(s.out, "  Cancelled.")
		return "", false
	}
	return team, true
}

func (s *session) analyze() error {
	team, ok := s.askTeam()
	if !ok {
		return nil
	}
	reg, err := s.app.loadTeams()
	if err != nil {
		return err
	}
	res := s.app.newAnalyzer(reg).AnalyzeTeam(s.cmd.Context(), team, "")
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, analyzer.Summary(res))
	printSteps(s.out, res.NextSteps)
	return nil
}

func (s *session) work() error {
	team, ok := s.askTeam()
	if !ok {
		return nil
	}
	mode, _ := s.prompt("  Mode [local/cloud] (local): ")
	if mode == "" {
		mode = workflow.ModeLocal
	}

	reg, err := s.app.loadTeams()
	if err != nil {
		return err
	}
	o, cleanup, err := s.app.orchestrator(reg)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := o.WorkOnTeam(s.cmd.Context(), team, workflow.WorkOptions{Mode: mode})
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out)
	if !report.OK() {
		fmt.Fprintln(s.out, errStyle.Render("❌ "+report.Error))
		printSteps(s.out, report.NextSteps)
		return nil
	}
	if report.Mode == workflow.ModeLocal && len(report.Results) > 0 {
		printResults(s.out, report.Results)
	} else {
		fmt.Fprintln(s.out, report.Message)
	}
	printWarnings(s.out, report.Warnings)
	return nil
}

func (s *session) runTask() error {
	team, ok := s.askTeam()
	if !ok {
		return nil
	}
	ids, _ := s.prompt("  Task ids, comma-separated: ")
	tasks := normalizeIDs(strings.Split(ids, ","))
	if len(tasks) == 0 {
		fmt.Fprintln(s.out, "  Cancelled.")
		return nil
	}

	reg, err := s.app.loadTeams()
	if err != nil {
		return err
	}
	o, cleanup, err := s.app.orchestrator(reg)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := o.RunTasks(s.cmd.Context(), team, tasks)
	if report == nil {
		return err
	}
	fmt.Fprintln(s.out)
	printResults(s.out, report.Results)
	printWarnings(s.out, report.Warnings)
	return err
}

func (s *session) queueStatus() error {
	id, ok := s.prompt("  Task id: ")
	if !ok || id == "" {
		fmt.Fprintln(s.out, "  Cancelled.")
		return nil
	}
	reg, err := s.app.loadTeams()
	if err != nil {
		return err
	}
	q, err := s.app.newQueue(reg)
	if err != nil {
		return err
	}
	rec, err := q.Status(strings.ToUpper(id))
	if err != nil {
		return err
	}
	if rec == nil {
		fmt.Fprintf(s.out, "  %s is not in the queue.\n", id)
		return nil
	}
	fmt.Fprintf(s.out, "  %s %s (submitted %s)\n", selectedStyle.Render(rec.TaskID), rec.QueueStatus, rec.SubmittedAt)
	return nil
}
