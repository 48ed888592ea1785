package queue

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/skipshean/linear-agent-tasks/internal/remedy"
	"github.com/skipshean/linear-agent-tasks/internal/teams"
)

// BinaryName is the executable name inside a package.
const BinaryName = "agent-tasks"

var funcs = template.FuncMap{
	"quote": shellQuote,
	"join":  strings.Join,
}

var runScript = template.Must(template.New("run.sh").Funcs(funcs).Parse(`#!/bin/sh
# Runs the packaged tasks for {{.TeamName}}.
set -e
cd "$(dirname "$0")"
exec ./{{.Binary}} --teams-file config/teams.json run --team {{quote .TeamID}}{{range .Tasks}} --task {{quote .}}{{end}} --output "results_$(date +%s).json" "$@"
`))

var readme = template.Must(template.New("README.md").Funcs(funcs).Parse(`# Cloud Execution Package

Team: {{.TeamName}}
Tasks: {{join .Tasks ", "}}
Created: {{.Created}}

## Usage

1. Upload this directory to the execution host
2. Run: ` + "`./run.sh`" + `
3. Results are written to ` + "`results_<unix>.json`" + ` next to the script

## Contents

- ` + "`{{.Binary}}`" + `: the agent binary
- ` + "`run.sh`" + `: runner for the tasks above
- ` + "`config/teams.json`" + `: credentials for this team only
`))

type packageData struct {
	TeamID   string
	TeamName string
	Tasks    []string
	Binary   string
	Created  string
}

// CreatePackage writes a self-contained directory that runs taskIDs for
// teamID elsewhere: the current binary, a run.sh runner, a team file holding
// only this team, and a README. It returns the package directory.
func (q *Queue) CreatePackage(teamID string, taskIDs []string) (string, error) {
	team, ok := q.teams.Get(teamID)
	if !ok {
		return "", remedy.Wrapf(teams.ErrTeamNotFound,
			[]string{"List teams: agent-tasks teams list"}, "team %q", teamID)
	}

	now := q.opts.Now().UTC()
	dir := filepath.Join(q.opts.PackagesDir, fmt.Sprintf("%s_%d", teamID, now.Unix()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create package directory: %w", err)
	}

	exe, err := q.opts.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	if err := copyFile(exe, filepath.Join(dir, BinaryName), 0o755); err != nil {
		return "", err
	}

	if err := q.teams.Export(teamID, filepath.Join(dir, "config", "teams.json")); err != nil {
		return "", err
	}

	data := packageData{
		TeamID:   teamID,
		TeamName: team.DisplayName(),
		Tasks:    taskIDs,
		Binary:   BinaryName,
		Created:  now.Format(time.RFC3339),
	}
	if err := render(runScript, filepath.Join(dir, "run.sh"), 0o755, data); err != nil {
		return "", err
	}
	if err := render(readme, filepath.Join(dir, "README.md"), 0o644, data); err != nil {
		return "", err
	}

	q.log.Info("Package created", slog.String("team_id", teamID), slog.String("dir", dir), slog.Int("tasks", len(taskIDs)))
	return dir, nil
}

func render(t *template.Template, path string, mode os.FileMode, data packageData) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	if err := t.Execute(f, data); err != nil {
		f.Close()
		return fmt.Errorf("failed to render %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	// umask may have stripped bits
	return os.Chmod(path, mode)
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy executable: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, mode)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
