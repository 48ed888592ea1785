package teams

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/skipshean/linear-agent-tasks/internal/remedy"
	"github.com/skipshean/linear-agent-tasks/internal/testutil"
)

func loadFixture(t *testing.T) *Registry {
	t.Helper()
	path := testutil.WriteTeamsFile(t, t.TempDir(), testutil.TeamsJSON)
	r, err := Load(path)
	require.NoError(t, err)
	return r
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "teams.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigNotFound))
	assert.NotEmpty(t, remedy.Steps(err), "missing config should carry next steps")
}

func TestLoad_Malformed(t *testing.T) {
	path := testutil.WriteTeamsFile(t, t.TempDir(), `{"teams": [`)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigInvalid))
}

func TestLoad_TeamsNotArray(t *testing.T) {
	path := testutil.WriteTeamsFile(t, t.TempDir(), `{"teams": {"id": "x"}}`)
	_, err := Load(path)
	assert.True(t, errors.Is(err, ErrConfigInvalid))
}

func TestLoad_JSONCAndEnabledFilter(t *testing.T) {
	r := loadFixture(t)

	assert.Equal(t, []string{"trade-ideas", "beta"}, r.IDs())
	assert.Len(t, r.All(), 3)

	_, ok := r.Get("archived")
	assert.False(t, ok, "disabled team must not be returned")

	team, ok := r.Get("trade-ideas")
	require.True(t, ok)
	assert.Equal(t, "Trade Ideas", team.DisplayName())
	assert.True(t, team.HasLinear())
	assert.True(t, team.HasActiveCampaign())
	assert.False(t, team.HasGoogle())

	assert.Equal(t, testutil.FakeLinearAPIKey, r.LinearAPIKey("trade-ideas"))
	assert.Empty(t, r.LinearAPIKey("beta"))
	assert.Nil(t, r.GoogleConfig("beta"))
	assert.NotNil(t, r.ActiveCampaignConfig("trade-ideas"))
}

func TestUpsert_ReplaceInPlace(t *testing.T) {
	r := loadFixture(t)

	require.NoError(t, r.Upsert(&Team{ID: "beta", Name: "Beta Renamed", Linear: &LinearConfig{APIKey: "k"}}))

	assert.Equal(t, []string{"trade-ideas", "beta"}, r.IDs(), "order must be preserved")
	team, _ := r.Get("beta")
	assert.Equal(t, "Beta Renamed", team.Name)
	assert.Equal(t, "k", r.LinearAPIKey("beta"))

	// Persisted: a fresh load sees the same.
	fresh, err := Load(r.Path())
	require.NoError(t, err)
	assert.Equal(t, "k", fresh.LinearAPIKey("beta"))
}

func TestUpsert_Append(t *testing.T) {
	r := loadFixture(t)
	require.NoError(t, r.Upsert(&Team{ID: "gamma", Name: "Gamma"}))
	assert.Equal(t, []string{"trade-ideas", "beta", "gamma"}, r.IDs())
}

func TestUpsert_MissingIdentifier(t *testing.T) {
	r := loadFixture(t)
	err := r.Upsert(&Team{Name: "No ID"})
	assert.True(t, errors.Is(err, ErrMissingIdentifier))
	assert.NotEmpty(t, remedy.Steps(err))
}

func TestUpsert_PreservesTopLevelFields(t *testing.T) {
	path := testutil.WriteTeamsFile(t, t.TempDir(), `{"version": 2, "teams": []}`)
	r, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, r.Upsert(&Team{ID: "a"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.EqualValues(t, 2, doc["version"])
}

func TestUpdateCredentials(t *testing.T) {
	r := loadFixture(t)

	require.NoError(t, r.UpdateCredentials("beta", ServiceGoogle, map[string]any{
		"credentials_path": "/tmp/creds.json",
		"drive_folder_id":  testutil.FakeDriveFolderID,
	}))
	require.NoError(t, r.UpdateCredentials("beta", ServiceGoogle, map[string]any{
		"cloud_project_id": "proj",
	}))

	g := r.GoogleConfig("beta")
	require.NotNil(t, g)
	assert.Equal(t, "/tmp/creds.json", g.CredentialsPath, "merge must keep earlier fields")
	assert.Equal(t, testutil.FakeDriveFolderID, g.DriveFolderID)
	assert.Equal(t, "proj", g.CloudProjectID)
}

func TestUpdateCredentials_Errors(t *testing.T) {
	r := loadFixture(t)

	err := r.UpdateCredentials("nope", ServiceLinear, map[string]any{"api_key": "x"})
	assert.True(t, errors.Is(err, ErrTeamNotFound))
	assert.Contains(t, remedy.Steps(err)[0], "trade-ideas, beta, archived")

	err = r.UpdateCredentials("beta", "slack", map[string]any{})
	assert.True(t, errors.Is(err, ErrUnknownService))
}

func TestCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "teams.json")
	r, err := Create(path)
	require.NoError(t, err)
	assert.Empty(t, r.List())

	require.NoError(t, r.Upsert(&Team{ID: "a"}))
	again, err := Create(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, again.IDs(), "Create must not truncate an existing file")
}

// Upserting the same team twice leaves exactly one entry with the final values.
func TestUpsertIdempotentProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		path := testutil.WriteTeamsFile(t, t.TempDir(), `{"teams": []}`)
		r, err := Load(path)
		if err != nil {
			rt.Fatalf("Load: %v", err)
		}

		id := rapid.StringMatching(`[a-z][a-z0-9-]{0,12}`).Draw(rt, "id")
		name := rapid.StringMatching(`[A-Za-z0-9 ]{0,24}`).Draw(rt, "name")
		key := rapid.StringMatching(`[A-Za-z0-9_]{0,20}`).Draw(rt, "key")
		team := &Team{ID: id, Name: name}
		if key != "" {
			team.Linear = &LinearConfig{APIKey: key}
		}

		for i := 0; i < 2; i++ {
			if err := r.Upsert(team); err != nil {
				rt.Fatalf("Upsert #%d: %v", i+1, err)
			}
		}

		count := 0
		for _, tm := range r.All() {
			if tm.ID == id {
				count++
			}
		}
		if count != 1 {
			rt.Fatalf("found %d entries for %q, want 1", count, id)
		}
		got, _ := r.Get(id)
		if got.Name != name || r.LinearAPIKey(id) != key {
			rt.Fatalf("got name=%q key=%q, want name=%q key=%q", got.Name, r.LinearAPIKey(id), name, key)
		}
	})
}

func TestExport(t *testing.T) {
	r := loadFixture(t)
	dest := filepath.Join(t.TempDir(), "pkg", "config", "teams.json")

	require.NoError(t, r.Export("trade-ideas", dest))
	out, err := Load(dest)
	require.NoError(t, err)
	assert.Equal(t, []string{"trade-ideas"}, out.IDs())
	assert.Equal(t, r.LinearAPIKey("trade-ideas"), out.LinearAPIKey("trade-ideas"))

	err = r.Export("missing", dest)
	assert.ErrorIs(t, err, ErrTeamNotFound)
}
