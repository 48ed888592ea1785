package teams

import "strings"

// Service names accepted by UpdateCredentials.
const (
	ServiceLinear         = "linear"
	ServiceGoogle         = "google"
	ServiceActiveCampaign = "activecampaign"
)

// Team is one entry of the team configuration file.
type Team struct {
	ID             string                `json:"id"`
	Name           string                `json:"name,omitempty"`
	Enabled        *bool                 `json:"enabled,omitempty"`
	Notes          string                `json:"notes,omitempty"`
	Linear         *LinearConfig         `json:"linear,omitempty"`
	Google         *GoogleConfig         `json:"google,omitempty"`
	ActiveCampaign *ActiveCampaignConfig `json:"activecampaign,omitempty"`
}

// LinearConfig holds the tracker credential bundle.
type LinearConfig struct {
	APIKey string `json:"api_key,omitempty"`
}

// GoogleConfig holds the document backend credential bundle.
type GoogleConfig struct {
	CredentialsPath  string `json:"credentials_path,omitempty"`
	DriveFolderID    string `json:"drive_folder_id,omitempty"`
	CloudProjectID   string `json:"cloud_project_id,omitempty"`
	UseSharedProject bool   `json:"use_shared_project,omitempty"`
}

// ActiveCampaignConfig holds the CRM credential bundle.
type ActiveCampaignConfig struct {
	APIURL string `json:"api_url,omitempty"`
	APIKey string `json:"api_key,omitempty"`
}

// IsEnabled reports whether the team takes part in workflow runs.
// A missing "enabled" field means enabled.
func (t *Team) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// DisplayName returns the team name, falling back to its ID.
func (t *Team) DisplayName() string {
	if strings.TrimSpace(t.Name) == "" {
		return t.ID
	}
	return t.Name
}

// HasLinear reports whether a tracker key is configured.
func (t *Team) HasLinear() bool {
	return t.Linear != nil && t.Linear.APIKey != ""
}

// HasGoogle reports whether Google credentials are configured.
func (t *Team) HasGoogle() bool {
	return t.Google != nil && t.Google.CredentialsPath != ""
}

// HasActiveCampaign reports whether both CRM URL and key are configured.
func (t *Team) HasActiveCampaign() bool {
	return t.ActiveCampaign != nil && t.ActiveCampaign.APIURL != "" && t.ActiveCampaign.APIKey != ""
}
