// Package queue is the file-backed job queue for deferred ("cloud")
// execution. Each submission is one JSON file under
// <root>/{pending,running,completed,failed}/<task_id>_<unix_seconds>.json.
//
// This package only creates and reads records. Whatever executes them owns
// moving files between the status directories.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/skipshean/linear-agent-tasks/internal/adapters/linear"
	"github.com/skipshean/linear-agent-tasks/internal/dispatch"
	"github.com/skipshean/linear-agent-tasks/internal/logging"
	"github.com/skipshean/linear-agent-tasks/internal/remedy"
	"github.com/skipshean/linear-agent-tasks/internal/teams"
)

// ModeCloud is the only execution mode the queue accepts.
const ModeCloud = "cloud"

// Status is a queue directory name.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Statuses lists the queue directories in lookup order.
var Statuses = []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed}

var (
	// ErrUnsupportedMode is returned by Submit for modes other than "cloud".
	ErrUnsupportedMode = errors.New("execution mode not supported for cloud submission")
	// ErrDuplicateSubmission means a record for the same task and second exists.
	ErrDuplicateSubmission = errors.New("submission already exists")
	// ErrInvalidTaskID means the task id cannot be used as a file name prefix.
	ErrInvalidTaskID = errors.New("invalid task id")
)

// TaskData is the issue snapshot stored with a submission.
type TaskData struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	State       string `json:"state"`
	Priority    int    `json:"priority"`
}

// Record is one queued submission.
type Record struct {
	TaskID        string   `json:"task_id"`
	TeamID        string   `json:"team_id"`
	SubmittedAt   string   `json:"submitted_at"`
	Status        Status   `json:"status"`
	TaskData      TaskData `json:"task_data"`
	ExecutionMode string   `json:"execution_mode"`

	// Written by the executor.
	CompletedAt string `json:"completed_at,omitempty"`
	Error       string `json:"error,omitempty"`

	// Set on read, never stored.
	QueueFile   string `json:"queue_file,omitempty"`
	QueueStatus Status `json:"queue_status,omitempty"`
}

// SubmissionResult describes a successful Submit.
type SubmissionResult struct {
	TaskID  string              `json:"task_id"`
	File    string              `json:"submission_file"`
	Status  Status              `json:"status"`
	Message string              `json:"message"`
	Comment dispatch.SideEffect `json:"comment"`
}

// TeamSource is the part of the team registry the queue needs.
// *teams.Registry satisfies it.
type TeamSource interface {
	Get(id string) (*teams.Team, bool)
	LinearAPIKey(teamID string) string
	Export(teamID, dest string) error
}

// Options tunes a Queue. Zero values pick the defaults.
type Options struct {
	// PackagesDir is where CreatePackage writes; default "<root>/../.cloud-packages".
	PackagesDir string
	// Now is the clock; default time.Now.
	Now func() time.Time
	// Commenter builds the tracker client for a team key; default linear.NewClient.
	Commenter func(apiKey string) linear.Commenter
	// Executable returns the binary copied into packages; default os.Executable.
	Executable func() (string, error)
}

// Queue is a file-backed submission queue.
type Queue struct {
	root  string
	teams TeamSource
	opts  Options
	log   *slog.Logger
}

// New creates the queue root and its status directories.
func New(root string, src TeamSource, opts Options) (*Queue, error) {
	for _, s := range Statuses {
		if err := os.MkdirAll(filepath.Join(root, string(s)), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create queue directory: %w", err)
		}
	}
	if opts.PackagesDir == "" {
		opts.PackagesDir = filepath.Join(filepath.Dir(filepath.Clean(root)), ".cloud-packages")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Commenter == nil {
		opts.Commenter = func(key string) linear.Commenter { return linear.NewClient(key) }
	}
	if opts.Executable == nil {
		opts.Executable = os.Executable
	}
	return &Queue{root: root, teams: src, opts: opts, log: logging.WithComponent("queue")}, nil
}

// Root returns the queue directory.
func (q *Queue) Root() string { return q.root }

// Submit writes a pending record for the task and leaves a best-effort
// comment on the issue.
func (q *Queue) Submit(ctx context.Context, teamID, taskID string, data TaskData, mode string) (*SubmissionResult, error) {
	if mode != ModeCloud {
		return nil, remedy.Wrapf(ErrUnsupportedMode,
			[]string{"Run it locally: agent-tasks work --team " + teamID + " --mode local"},
			"%q", mode)
	}
	if taskID == "" || strings.ContainsAny(taskID, `/\`) || taskID == "." || taskID == ".." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTaskID, taskID)
	}

	now := q.opts.Now().UTC()
	rec := Record{
		TaskID:        taskID,
		TeamID:        teamID,
		SubmittedAt:   now.Format(time.RFC3339),
		Status:        StatusPending,
		TaskData:      data,
		ExecutionMode: mode,
	}
	name := fmt.Sprintf("%s_%d.json", taskID, now.Unix())
	path := filepath.Join(q.root, string(StatusPending), name)

	if err := writeExclusive(path, rec); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, remedy.Wrapf(ErrDuplicateSubmission,
				[]string{"Wait a second and submit again", "Check it: agent-tasks queue status " + taskID},
				"%s", name)
		}
		return nil, err
	}

	res := &SubmissionResult{
		TaskID:  taskID,
		File:    path,
		Status:  StatusPending,
		Message: fmt.Sprintf("Task %s submitted for cloud execution", taskID),
	}

	if key := q.teams.LinearAPIKey(teamID); key != "" {
		err := linear.NewNotifier(q.opts.Commenter(key)).NotifySubmitted(ctx, taskID, rec.SubmittedAt, name)
		res.Comment.Attempted = true
		res.Comment.OK = err == nil
		if err != nil {
			res.Comment.Error = err.Error()
			q.log.Warn("Could not add submission comment", slog.String("task_id", taskID), slog.Any("error", err))
		}
	}

	q.log.Info("Task submitted", slog.String("task_id", taskID), slog.String("team_id", teamID), slog.String("file", name))
	return res, nil
}

func writeExclusive(path string, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode submission: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("failed to write submission: %w", err)
	}
	return f.Close()
}

// ListPending returns pending records, oldest submission first. Files that
// cannot be read are logged and skipped.
func (q *Queue) ListPending() ([]*Record, error) {
	dir := filepath.Join(q.root, string(StatusPending))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending queue: %w", err)
	}

	var records []*Record
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		rec, err := q.read(filepath.Join(dir, e.Name()), StatusPending)
		if err != nil {
			q.log.Warn("Skipping unreadable queue file", slog.String("file", e.Name()), slog.Any("error", err))
			continue
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		ti, tj := submittedAt(records[i]), submittedAt(records[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return filepath.Base(records[i].QueueFile) < filepath.Base(records[j].QueueFile)
	})
	return records, nil
}

func submittedAt(r *Record) time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.SubmittedAt)
	if err != nil {
		// records written by older tooling carry no zone
		t, _ = time.Parse("2006-01-02T15:04:05.999999", r.SubmittedAt)
	}
	return t
}

// Status finds the record for taskID, scanning pending, running, completed
// then failed. Within a directory the newest submission wins. It returns
// nil, nil when the task was never queued.
func (q *Queue) Status(taskID string) (*Record, error) {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(taskID) + `_(\d+)\.json$`)

	for _, s := range Statuses {
		dir := filepath.Join(q.root, string(s))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s queue: %w", s, err)
		}

		best, bestTS := "", int64(-1)
		for _, e := range entries {
			m := pattern.FindStringSubmatch(e.Name())
			if m == nil || e.IsDir() {
				continue
			}
			ts, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				continue
			}
			if ts > bestTS || (ts == bestTS && e.Name() > best) {
				best, bestTS = e.Name(), ts
			}
		}
		if best == "" {
			continue
		}
		return q.read(filepath.Join(dir, best), s)
	}
	return nil, nil
}

func (q *Queue) read(path string, s Status) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	rec.QueueFile = path
	rec.QueueStatus = s
	return &rec, nil
}
