// Package teams manages the per-team credential bundles stored in the team
// configuration file ({"teams": [...]}).
//
// Mutations are whole-file read-modify-write with no locking: two operators
// writing at the same time can drop one update (last writer wins). Writes go
// through an atomic rename so a crash never leaves a half-written file.
package teams

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"

	"github.com/skipshean/linear-agent-tasks/internal/logging"
	"github.com/skipshean/linear-agent-tasks/internal/remedy"
)

var (
	// ErrConfigNotFound means the team configuration file does not exist.
	ErrConfigNotFound = errors.New("team configuration file not found")
	// ErrConfigInvalid means the team configuration file could not be parsed.
	ErrConfigInvalid = errors.New("invalid team configuration")
	// ErrMissingIdentifier means a team config was given without an id.
	ErrMissingIdentifier = errors.New("team config must have an 'id' field")
	// ErrTeamNotFound means no team with the given id exists.
	ErrTeamNotFound = errors.New("team not found")
	// ErrUnknownService means a credential update named an unsupported service.
	ErrUnknownService = errors.New("unknown service")
)

// Registry is the in-memory view of the team configuration file.
type Registry struct {
	path  string
	teams []*Team // every entry in file order, disabled ones included
}

// Load reads the team configuration at path.
func Load(path string) (*Registry, error) {
	r := &Registry{path: path}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Create writes an empty team configuration at path if none exists, then loads it.
func Create(path string) (*Registry, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := writeDoc(path, map[string]any{"teams": []any{}}); err != nil {
			return nil, err
		}
		logging.WithComponent("teams").Info("Created team configuration", slog.String("path", path))
	}
	return Load(path)
}

// Path returns the backing file path.
func (r *Registry) Path() string { return r.path }

// Get returns the enabled team with the given id.
func (r *Registry) Get(id string) (*Team, bool) {
	for _, t := range r.teams {
		if t.ID == id && t.IsEnabled() {
			return t, true
		}
	}
	return nil, false
}

// List returns enabled teams in file order.
func (r *Registry) List() []*Team {
	out := make([]*Team, 0, len(r.teams))
	for _, t := range r.teams {
		if t.IsEnabled() {
			out = append(out, t)
		}
	}
	return out
}

// All returns every team in file order, including disabled ones.
func (r *Registry) All() []*Team {
	out := make([]*Team, len(r.teams))
	copy(out, r.teams)
	return out
}

// IDs returns the ids of enabled teams in file order.
func (r *Registry) IDs() []string {
	var ids []string
	for _, t := range r.List() {
		ids = append(ids, t.ID)
	}
	return ids
}

// LinearAPIKey returns the team's tracker key, or "" when absent.
func (r *Registry) LinearAPIKey(teamID string) string {
	if t, ok := r.Get(teamID); ok && t.Linear != nil {
		return t.Linear.APIKey
	}
	return ""
}

// GoogleConfig returns the team's Google bundle, or nil when absent.
func (r *Registry) GoogleConfig(teamID string) *GoogleConfig {
	if t, ok := r.Get(teamID); ok {
		return t.Google
	}
	return nil
}

// ActiveCampaignConfig returns the team's CRM bundle, or nil when absent.
func (r *Registry) ActiveCampaignConfig(teamID string) *ActiveCampaignConfig {
	if t, ok := r.Get(teamID); ok {
		return t.ActiveCampaign
	}
	return nil
}

// Upsert replaces the entry with the same id in place, or appends a new one,
// then persists the whole collection.
func (r *Registry) Upsert(team *Team) error {
	if team == nil || strings.TrimSpace(team.ID) == "" {
		return remedy.Wrap(ErrMissingIdentifier,
			`Add an "id" field to the team configuration`,
			`Example: {"id": "my-team", "name": "My Team", ...}`,
			"Or use: agent-tasks teams add --id my-team --name \"My Team\"")
	}

	doc, entries, err := readDoc(r.path)
	if err != nil {
		return err
	}

	encoded, err := toMap(team)
	if err != nil {
		return err
	}

	replaced := false
	for i, e := range entries {
		if m, ok := e.(map[string]any); ok && m["id"] == team.ID {
			entries[i] = encoded
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, encoded)
	}
	doc["teams"] = entries

	if err := writeDoc(r.path, doc); err != nil {
		return err
	}
	logging.WithTeam(team.ID).Info("Saved team configuration", slog.Bool("replaced", replaced))
	return r.reload()
}

// UpdateCredentials merges fields into the named bundle of a team, creating
// the bundle when absent.
func (r *Registry) UpdateCredentials(teamID, service string, fields map[string]any) error {
	switch service {
	case ServiceLinear, ServiceGoogle, ServiceActiveCampaign:
	default:
		return remedy.Wrapf(ErrUnknownService,
			[]string{"Use one of: linear, google, activecampaign"},
			"service %q", service)
	}

	doc, entries, err := readDoc(r.path)
	if err != nil {
		return err
	}

	var target map[string]any
	var available []string
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		available = append(available, id)
		if id == teamID {
			target = m
		}
	}
	if target == nil {
		list := "None"
		if len(available) > 0 {
			list = strings.Join(available, ", ")
		}
		return remedy.Wrapf(ErrTeamNotFound, []string{
			"Available teams: " + list,
			"List teams: agent-tasks teams list",
			"Add team: agent-tasks teams add --id <id> --name <name>",
			"Check team ID spelling (case-sensitive)",
		}, "team %q", teamID)
	}

	bundle, ok := target[service].(map[string]any)
	if !ok {
		bundle = map[string]any{}
	}
	for k, v := range fields {
		bundle[k] = v
	}
	target[service] = bundle
	doc["teams"] = entries

	if err := writeDoc(r.path, doc); err != nil {
		return err
	}
	logging.WithTeam(teamID).Info("Updated team credentials", slog.String("service", service))
	return r.reload()
}

// Export writes a new team file at dest holding only the named team, with
// every field of its entry as stored.
func (r *Registry) Export(teamID, dest string) error {
	_, entries, err := readDoc(r.path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if m, ok := e.(map[string]any); ok && m["id"] == teamID {
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}
			return writeDoc(dest, map[string]any{"teams": []any{m}})
		}
	}
	return remedy.Wrapf(ErrTeamNotFound, []string{"List teams: agent-tasks teams list"}, "team %q", teamID)
}

func (r *Registry) reload() error {
	_, entries, err := readDoc(r.path)
	if err != nil {
		return err
	}

	teams := make([]*Team, 0, len(entries))
	for i, e := range entries {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("%w: team #%d: %w", ErrConfigInvalid, i, err)
		}
		var t Team
		if err := json.Unmarshal(raw, &t); err != nil {
			return remedy.Wrap(fmt.Errorf("%w: team #%d: %w", ErrConfigInvalid, i, err),
				"Check the field types of team #"+fmt.Sprint(i)+" in "+r.path)
		}
		if t.ID == "" {
			logging.WithComponent("teams").Warn("Skipping team without id", slog.Int("index", i))
			continue
		}
		teams = append(teams, &t)
	}
	r.teams = teams
	return nil
}

// readDoc parses the file (JSON with comments and trailing commas allowed)
// into a generic document so unknown fields survive a rewrite.
func readDoc(path string) (map[string]any, []any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, remedy.Wrapf(ErrConfigNotFound, []string{
				"Create it: agent-tasks teams add --id <id> --name <name>",
				"Or copy config/teams.json.template to " + path,
				"Then add credentials: agent-tasks teams set-credential <id> linear api_key=<key>",
			}, "%s", path)
		}
		return nil, nil, fmt.Errorf("failed to read team configuration: %w", err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, nil, remedy.Wrap(fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err),
			"Fix the JSON syntax in "+path)
	}

	doc := map[string]any{}
	if err := json.Unmarshal(standardized, &doc); err != nil {
		return nil, nil, remedy.Wrap(fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err),
			`The file must be an object of the form {"teams": [...]}`)
	}

	var entries []any
	switch v := doc["teams"].(type) {
	case nil:
	case []any:
		entries = v
	default:
		return nil, nil, remedy.Wrap(fmt.Errorf("%w %s: \"teams\" must be an array", ErrConfigInvalid, path),
			`The file must be an object of the form {"teams": [...]}`)
	}
	return doc, entries, nil
}

func writeDoc(path string, doc map[string]any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode team configuration: %w", err)
	}
	data = append(data, '\n')
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write team configuration: %w", err)
	}
	return nil
}

func toMap(team *Team) (map[string]any, error) {
	raw, err := json.Marshal(team)
	if err != nil {
		return nil, fmt.Errorf("failed to encode team: %w", err)
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to encode team: %w", err)
	}
	return m, nil
}
