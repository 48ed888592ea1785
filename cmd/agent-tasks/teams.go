package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/skipshean/linear-agent-tasks/internal/remedy"
	"github.com/skipshean/linear-agent-tasks/internal/teams"
)

var errBadField = errors.New("credential fields must be key=value")

func newTeamsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teams",
		Short: "Manage teams and their credentials",
		Long: `Manage the team configuration file.

Each team can carry three credential bundles:
  - linear:         api_key
  - google:         credentials_path, drive_folder_id, cloud_project_id, use_shared_project
  - activecampaign: api_url, api_key`,
	}

	cmd.AddCommand(
		newTeamsListCmd(a),
		newTeamsAddCmd(a),
		newTeamsSetCredentialCmd(a),
		newTeamsValidateCmd(a),
	)
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

func newTeamsListCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadTeams()
			if err != nil {
				return err
			}
			list := reg.List()
			if all {
				list = reg.All()
			}
			out := cmd.OutOrStdout()

			if len(list) == 0 {
				fmt.Fprintln(out, "No teams found.")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Add one with:")
				fmt.Fprintln(out, "   agent-tasks teams add --id my-team --name \"My Team\"")
				return nil
			}

			fmt.Fprintf(out, "Found %d team(s):\n\n", len(list))
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tNAME\tENABLED\tLINEAR\tGOOGLE\tACTIVECAMPAIGN")
			for _, t := range list {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					t.ID, t.DisplayName(), yesNo(t.IsEnabled()),
					yesNo(t.HasLinear()), yesNo(t.HasGoogle()), yesNo(t.HasActiveCampaign()))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include disabled teams")
	return cmd
}

func newTeamsAddCmd(a *app) *cobra.Command {
	var (
		team      teams.Team
		disabled  bool
		linearKey string
		acURL     string
		acKey     string
		google    teams.GoogleConfig
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a team or replace one with the same id",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := teams.Create(a.cfg.TeamsFile)
			if err != nil {
				return err
			}

			if disabled {
				f := false
				team.Enabled = &f
			}
			if linearKey != "" {
				team.Linear = &teams.LinearConfig{APIKey: linearKey}
			}
			if acURL != "" || acKey != "" {
				team.ActiveCampaign = &teams.ActiveCampaignConfig{APIURL: acURL, APIKey: acKey}
			}
			if google != (teams.GoogleConfig{}) {
				g := google
				team.Google = &g
			}

			if err := reg.Upsert(&team); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✅ Team %s saved to %s\n", team.ID, reg.Path())
			if !team.HasLinear() {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "💡 Add a Linear key with:")
				fmt.Fprintf(out, "   agent-tasks teams set-credential %s linear api_key=<key>\n", team.ID)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&team.ID, "id", "", "Team id (required)")
	f.StringVar(&team.Name, "name", "", "Display name")
	f.StringVar(&team.Notes, "notes", "", "Free-form notes")
	f.BoolVar(&disabled, "disabled", false, "Add the team disabled")
	f.StringVar(&linearKey, "linear-key", "", "Linear API key")
	f.StringVar(&acURL, "ac-url", "", "ActiveCampaign account URL")
	f.StringVar(&acKey, "ac-key", "", "ActiveCampaign API key")
	f.StringVar(&google.CredentialsPath, "google-credentials", "", "Google credentials JSON path")
	f.StringVar(&google.DriveFolderID, "drive-folder", "", "Google Drive folder id for created files")
	f.StringVar(&google.CloudProjectID, "cloud-project", "", "Google Cloud project billed for API usage")
	f.BoolVar(&google.UseSharedProject, "shared-project", false, "The Cloud project is shared across teams")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

// parseFields turns key=value arguments into a bundle patch. "true" and
// "false" become booleans.
func parseFields(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, remedy.Wrapf(errBadField,
				[]string{"Example: agent-tasks teams set-credential my-team linear api_key=lin_api_xxx"},
				"%q", arg)
		}
		switch v {
		case "true", "false":
			fields[k] = v == "true"
		default:
			fields[k] = v
		}
	}
	return fields, nil
}

func newTeamsSetCredentialCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-credential <team> <service> key=value...",
		Short: "Merge credential fields into a team's bundle",
		Example: `  agent-tasks teams set-credential trade-ideas linear api_key=lin_api_xxx
  agent-tasks teams set-credential trade-ideas activecampaign api_url=https://acct.api-us1.com api_key=xxx
  agent-tasks teams set-credential trade-ideas google credentials_path=~/creds.json drive_folder_id=abc`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFields(args[2:])
			if err != nil {
				return err
			}
			reg, err := a.loadTeams()
			if err != nil {
				return err
			}
			if err := reg.UpdateCredentials(args[0], args[1], fields); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Updated %s credentials for %s\n", args[1], args[0])
			return nil
		},
	}
}

func newTeamsValidateCmd(a *app) *cobra.Command {
	var online bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every team's credential bundles",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadTeams()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			problems := 0

			for _, t := range reg.All() {
				fmt.Fprintf(out, "\n%s (%s)\n", titleStyle.Render(t.DisplayName()), t.ID)
				if !t.IsEnabled() {
					fmt.Fprintln(out, dimStyle.Render("  disabled, skipped"))
					continue
				}

				switch {
				case !t.HasLinear():
					problems++
					fmt.Fprintln(out, errStyle.Render("  ❌ linear: no api_key"))
				case online:
					if _, err := a.newTracker(t.Linear.APIKey).ListTeams(cmd.Context()); err != nil {
						problems++
						fmt.Fprintf(out, "  %s\n", errStyle.Render("❌ linear: "+err.Error()))
					} else {
						fmt.Fprintln(out, okStyle.Render("  ✅ linear: key accepted"))
					}
				default:
					fmt.Fprintln(out, okStyle.Render("  ✅ linear: key present"))
				}

				switch {
				case t.Google == nil:
					fmt.Fprintln(out, dimStyle.Render("  -  google: not configured"))
				case !t.HasGoogle():
					problems++
					fmt.Fprintln(out, errStyle.Render("  ❌ google: no credentials_path"))
				default:
					if _, err := os.Stat(t.Google.CredentialsPath); err != nil {
						problems++
						fmt.Fprintf(out, "  %s\n", errStyle.Render("❌ google: "+err.Error()))
					} else {
						fmt.Fprintln(out, okStyle.Render("  ✅ google: credentials file found"))
					}
				}

				switch {
				case t.ActiveCampaign == nil:
					fmt.Fprintln(out, dimStyle.Render("  -  activecampaign: not configured"))
				case !t.HasActiveCampaign():
					problems++
					fmt.Fprintln(out, errStyle.Render("  ❌ activecampaign: api_url and api_key are both required"))
				default:
					fmt.Fprintln(out, okStyle.Render("  ✅ activecampaign: url and key present"))
				}
			}

			fmt.Fprintln(out)
			if problems > 0 {
				return remedy.Wrap(fmt.Errorf("%d credential problem(s) found", problems),
					"Fix them with: agent-tasks teams set-credential <team> <service> key=value")
			}
			fmt.Fprintln(out, okStyle.Render("All teams look good."))
			return nil
		},
	}

	cmd.Flags().BoolVar(&online, "online", false, "Also call Linear to verify each key")
	return cmd
}
