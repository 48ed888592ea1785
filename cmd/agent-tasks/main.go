package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skipshean/linear-agent-tasks/internal/remedy"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprint(os.Stderr, remedy.Format(err))
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "agent-tasks",
		Short: "Work through Linear tasks with ActiveCampaign and Google automation",
		Long: `agent-tasks analyzes open Linear issues per team, picks the ones an agent
can handle, and runs the matching handlers against ActiveCampaign and Google
Docs/Sheets, locally or through the cloud execution queue.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default ~/.agent-tasks/config.yaml)")
	flags.StringVar(&a.teamsFile, "teams-file", "", "team configuration file (overrides teams_file)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: text, json")

	rootCmd.AddCommand(
		newTeamsCmd(a),
		newAnalyzeCmd(a),
		newWorkCmd(a),
		newRunCmd(a),
		newQueueCmd(a),
		newHistoryCmd(a),
		newScheduleCmd(a),
		newConfigCmd(a),
		newInteractiveCmd(a),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show agent-tasks version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agent-tasks v%s\n", version)
		},
	}
}
