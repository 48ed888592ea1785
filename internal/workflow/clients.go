package workflow

import (
	"context"
	"log/slog"

	"google.golang.org/api/option"

	"github.com/skipshean/linear-agent-tasks/internal/adapters/activecampaign"
	"github.com/skipshean/linear-agent-tasks/internal/adapters/google"
	"github.com/skipshean/linear-agent-tasks/internal/adapters/linear"
	"github.com/skipshean/linear-agent-tasks/internal/dispatch"
	"github.com/skipshean/linear-agent-tasks/internal/logging"
	"github.com/skipshean/linear-agent-tasks/internal/teams"
)

// DepsFactory builds the handler dependencies for a team. Warnings describe
// gateways that could not be built.
type DepsFactory func(ctx context.Context, team *teams.Team) (*dispatch.Deps, []string)

// Clients builds real gateways from a team's credential bundles. Only bundles
// that are present produce a gateway.
type Clients struct {
	DoneState     string
	Strict        bool
	RequestBudget int

	LinearOptions         []linear.Option
	ActiveCampaignOptions []activecampaign.Option
	GoogleOptions         []option.ClientOption
}

// Deps implements DepsFactory.
func (c Clients) Deps(ctx context.Context, team *teams.Team) (*dispatch.Deps, []string) {
	log := logging.WithTeam(team.ID)
	d := &dispatch.Deps{DoneState: c.DoneState, Strict: c.Strict}
	var warnings []string

	if team.HasLinear() {
		opts := append([]linear.Option{linear.WithRequestBudget(c.RequestBudget)}, c.LinearOptions...)
		d.Tracker = linear.NewClient(team.Linear.APIKey, opts...)
	}

	if team.HasActiveCampaign() {
		ac := team.ActiveCampaign
		d.CRM = activecampaign.NewClient(ac.APIURL, ac.APIKey, c.ActiveCampaignOptions...)
	}

	if team.HasGoogle() {
		g := team.Google
		cfg := google.Config{
			CredentialsPath: g.CredentialsPath,
			DriveFolderID:   g.DriveFolderID,
			QuotaProject:    g.CloudProjectID,
		}
		d.DriveFolderID = g.DriveFolderID

		if docs, err := google.NewDocs(ctx, cfg, c.GoogleOptions...); err != nil {
			log.Warn("Google Docs client unavailable", slog.Any("error", err))
			warnings = append(warnings, "Google Docs unavailable: "+err.Error())
		} else {
			d.Docs = docs
		}
		if sheets, err := google.NewSheets(ctx, cfg, c.GoogleOptions...); err != nil {
			log.Warn("Google Sheets client unavailable", slog.Any("error", err))
			warnings = append(warnings, "Google Sheets unavailable: "+err.Error())
		} else {
			d.Sheets = sheets
		}
	}

	return d, warnings
}
