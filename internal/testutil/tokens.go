// Package testutil provides testing utilities shared across packages.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Safe test credentials that won't trigger secret scanning.
// These are intentionally simple and obviously fake.
const (
	// FakeLinearAPIKey is a safe test API key for Linear.
	FakeLinearAPIKey = "test-linear-api-key"

	// FakeActiveCampaignKey is a safe test API token for ActiveCampaign.
	FakeActiveCampaignKey = "test-activecampaign-api-key"

	// FakeActiveCampaignURL is a safe test account URL for ActiveCampaign.
	FakeActiveCampaignURL = "https://example.api-us1.test"

	// FakeDriveFolderID is a safe test Google Drive folder ID.
	FakeDriveFolderID = "test-drive-folder"
)

// TeamsJSON is a team configuration used by registry-backed tests.
// "beta" has no tracker key so credential failures can be exercised and
// "archived" is disabled.
const TeamsJSON = `{
  // comments are allowed in the team file
  "teams": [
    {
      "id": "trade-ideas",
      "name": "Trade Ideas",
      "enabled": true,
      "linear": {"api_key": "` + FakeLinearAPIKey + `"},
      "activecampaign": {"api_url": "` + FakeActiveCampaignURL + `", "api_key": "` + FakeActiveCampaignKey + `"}
    },
    {
      "id": "beta",
      "name": "Beta Team"
    },
    {
      "id": "archived",
      "name": "Archived",
      "enabled": false,
      "linear": {"api_key": "` + FakeLinearAPIKey + `"}
    },
  ]
}`

// WriteTeamsFile writes content to config/teams.json under dir and returns its path.
func WriteTeamsFile(t testing.TB, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config", "teams.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write teams file: %v", err)
	}
	return path
}
