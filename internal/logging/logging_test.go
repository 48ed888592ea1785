package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Cleanup(func() { _ = Init(nil) })

	if err := Init(nil); err != nil {
		t.Fatalf("Init(nil) failed: %v", err)
	}
	if err := Init(&Config{Level: "debug", Format: "json", Output: "stdout"}); err != nil {
		t.Fatalf("Init json failed: %v", err)
	}
	if err := Init(&Config{Level: "info", Format: "xml"}); err == nil {
		t.Error("expected an error for an unknown format")
	}
	if err := Init(&Config{Level: "loud"}); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: maskSecrets,
	})))
	t.Cleanup(func() { SetLogger(prev) })
	return &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}
	return result
}

func TestScopedLoggers(t *testing.T) {
	buf := capture(t)

	tests := []struct {
		log  *slog.Logger
		key  string
		want string
	}{
		{WithComponent("queue"), "component", "queue"},
		{WithTeam("trade-ideas"), "team_id", "trade-ideas"},
		{WithTask("TRA-56"), "task_id", "TRA-56"},
	}
	for _, tt := range tests {
		buf.Reset()
		tt.log.Info("submitted")
		if got := decode(t, buf)[tt.key]; got != tt.want {
			t.Errorf("%s = %v, want %s", tt.key, got, tt.want)
		}
	}
}

func TestSecretsAreMasked(t *testing.T) {
	buf := capture(t)
	WithTeam("trade-ideas").Warn("request failed",
		slog.String("api_key", "lin_api_abcdef1234"),
		slog.String("url", "https://api.linear.app/graphql"))

	out := decode(t, buf)
	if got := out["api_key"]; got != "****1234" {
		t.Errorf("api_key = %v, want ****1234", got)
	}
	if got := out["url"]; got != "https://api.linear.app/graphql" {
		t.Errorf("url should pass through, got %v", got)
	}
	if strings.Contains(buf.String(), "abcdef") {
		t.Error("raw key leaked into the log line")
	}
}

func TestMask(t *testing.T) {
	for in, want := range map[string]string{
		"abc":          "****",
		"abcd":         "****",
		"lin_api_xyz9": "****xyz9",
	} {
		if got := Mask(in); got != want {
			t.Errorf("Mask(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSuppress(t *testing.T) {
	prev := Logger()
	t.Cleanup(func() { SetLogger(prev) })

	Suppress()
	if Logger().Enabled(t.Context(), slog.LevelError) {
		t.Error("suppressed logger should be disabled")
	}
}

func TestFileOutput(t *testing.T) {
	t.Cleanup(func() { _ = Init(nil) })
	logFile := filepath.Join(t.TempDir(), "logs", "agent-tasks.log")

	if err := Init(&Config{Level: "info", Format: "text", Output: logFile}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	WithComponent("test").Info("test file output")

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "test file output") {
		t.Errorf("log file does not contain expected message")
	}
}
