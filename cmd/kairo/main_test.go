package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/jimmy24599/kairo-sub000/internal/config"
	"github.com/jimmy24599/kairo-sub000/internal/orchestrator"
	"github.com/jimmy24599/kairo-sub000/internal/progress"
	"github.com/jimmy24599/kairo-sub000/internal/state"
	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

func init() {
	color.NoColor = true
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := config.Default()
	c.Workspace.Root = t.TempDir()
	return c
}

func TestFormatEvent(t *testing.T) {
	tasks := []models.OverviewTask{
		{Ordinal: 1, Description: "Create the form", Status: models.TaskStatusActive},
		{Ordinal: 2, Description: "Wire the route", Status: models.TaskStatusPending},
	}

	tests := []struct {
		name     string
		ev       progress.Event
		contains []string
		empty    bool
	}{
		{
			name:     "tasks planned lists every task",
			ev:       progress.Event{Type: progress.EventTasksPlanned, Tasks: tasks},
			contains: []string{"  0% planned 2 tasks", "1. Create the form", "2. Wire the route"},
		},
		{
			name:     "subtask finished shows thought",
			ev:       progress.Event{Type: progress.EventSubtaskFinished, Percent: 50, Thought: "write_file done"},
			contains: []string{" 50% write_file done"},
		},
		{
			name:     "stopped",
			ev:       progress.Event{Type: progress.EventRunStopped, Percent: 50, Thought: "Stopped by user"},
			contains: []string{"Stopped by user"},
		},
		{
			name:  "run started is silent",
			ev:    progress.Event{Type: progress.EventRunStarted},
			empty: true,
		},
		{
			name:  "run completed is silent",
			ev:    progress.Event{Type: progress.EventRunCompleted, Percent: 100},
			empty: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatEvent(tt.ev)
			if tt.empty {
				if got != "" {
					t.Errorf("formatEvent() = %q, want empty", got)
				}
				return
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("formatEvent() = %q, want it to contain %q", got, want)
				}
			}
		})
	}
}

func TestEventPrinter_Finish(t *testing.T) {
	var buf bytes.Buffer
	p := &eventPrinter{out: &buf}
	p.finish(&models.RunResult{Success: false, Stopped: true, Summary: "Stopped by user.", SuccessfulTasks: 1, TotalTasks: 3})

	got := buf.String()
	if !strings.Contains(got, "■ Stopped by user. (1/3 tasks)") {
		t.Errorf("finish output = %q", got)
	}
}

func TestChatIDOrNew(t *testing.T) {
	if got := chatIDOrNew("chat-1"); got != "chat-1" {
		t.Errorf("chatIDOrNew(chat-1) = %q", got)
	}
	a, b := chatIDOrNew(""), chatIDOrNew("")
	if a == "" || a == b {
		t.Errorf("expected distinct generated ids, got %q and %q", a, b)
	}
}

func TestConfigValues(t *testing.T) {
	c := config.Default()

	tests := []struct {
		key   string
		value string
		check func(*config.Config) bool
	}{
		{"planner.provider", "gemini", func(c *config.Config) bool { return c.Planner.Provider == "gemini" }},
		{"executor.max_attempts", "5", func(c *config.Config) bool { return c.Executor.MaxAttempts == 5 }},
		{"executor.initial_backoff", "250ms", func(c *config.Config) bool { return c.Executor.InitialBackoff == 250*time.Millisecond }},
		{"tracing.enabled", "true", func(c *config.Config) bool { return c.Tracing.Enabled }},
		{"tracing.sample_rate", "0.25", func(c *config.Config) bool { return c.Tracing.SampleRate == 0.25 }},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if err := setConfigValue(c, tt.key, tt.value); err != nil {
				t.Fatalf("setConfigValue(%s) failed: %v", tt.key, err)
			}
			if !tt.check(c) {
				t.Errorf("%s not applied", tt.key)
			}
			got, err := getConfigValue(c, tt.key)
			if err != nil {
				t.Fatalf("getConfigValue(%s) failed: %v", tt.key, err)
			}
			if got != tt.value {
				t.Errorf("getConfigValue(%s) = %q, want %q", tt.key, got, tt.value)
			}
		})
	}

	if err := setConfigValue(c, "executor.max_attempts", "many"); err == nil {
		t.Error("expected error for non-numeric value")
	}
	if err := setConfigValue(c, "planner.api_key", "sk-ant-secret"); err == nil {
		t.Error("expected api_key to be rejected")
	}
	if _, err := getConfigValue(c, "nope"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestDisplayAllConfig_MasksKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-REDACTED")
	var buf bytes.Buffer
	displayAllConfig(&buf, config.Default())

	got := buf.String()
	if strings.Contains(got, "abcdefghijklmnop") {
		t.Errorf("api key leaked in output: %s", got)
	}
	if !strings.Contains(got, "planner.api_key: sk-ant-...mnop (environment)") {
		t.Errorf("masked key missing: %s", got)
	}
	if len(strings.Split(strings.TrimSpace(got), "\n")) != len(configKeys) {
		t.Errorf("expected one line per key")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{90 * time.Minute, "1h30m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestOpenStore_ProjectPath(t *testing.T) {
	c := testConfig(t)
	db, err := openStore(c)
	if err != nil {
		t.Fatalf("openStore failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(state.ProjectDBPath(c.Workspace.Root)); err != nil {
		t.Errorf("expected database under the workspace: %v", err)
	}
}

func TestShowChats(t *testing.T) {
	c := testConfig(t)
	db, err := openStore(c)
	if err != nil {
		t.Fatalf("openStore failed: %v", err)
	}
	defer db.Close()

	var buf bytes.Buffer
	if err := showChats(&buf, db); err != nil {
		t.Fatalf("showChats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No chats yet") {
		t.Errorf("unexpected empty output: %q", buf.String())
	}

	if _, err := db.EnsureChat("chat-1", "Add a contact form"); err != nil {
		t.Fatalf("EnsureChat failed: %v", err)
	}
	if err := db.BeginRun(&models.Run{ID: "run-1", ChatID: "chat-1", Request: "add", PID: os.Getpid()}); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if err := db.FinishRun("run-1", models.RunStateCompleted, "done"); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	buf.Reset()
	if err := showChats(&buf, db); err != nil {
		t.Fatalf("showChats failed: %v", err)
	}
	got := buf.String()
	if !strings.Contains(got, "chat-1  Add a contact form  completed") {
		t.Errorf("showChats output = %q", got)
	}
}

func TestShowChatSnapshot_NoRuns(t *testing.T) {
	c := testConfig(t)
	db, err := openStore(c)
	if err != nil {
		t.Fatalf("openStore failed: %v", err)
	}
	defer db.Close()

	var buf bytes.Buffer
	if err := showChatSnapshot(&buf, db, "missing"); err != nil {
		t.Fatalf("showChatSnapshot failed: %v", err)
	}
	if !strings.Contains(buf.String(), "has no runs") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestShowTranscript_UnknownChat(t *testing.T) {
	c := testConfig(t)
	db, err := openStore(c)
	if err != nil {
		t.Fatalf("openStore failed: %v", err)
	}
	defer db.Close()

	var buf bytes.Buffer
	if err := showTranscript(&buf, db, "missing"); err == nil {
		t.Error("expected error for unknown chat")
	}
}

func TestStopCommand_WritesSignal(t *testing.T) {
	cfg = testConfig(t)

	var buf bytes.Buffer
	stopCmd.SetOut(&buf)
	if err := stopCmd.RunE(stopCmd, []string{"chat-1"}); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	path := orchestrator.StopSignalPath(filepath.Join(cfg.Workspace.Root, ".kairo"), "chat-1")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected stop signal at %s: %v", path, err)
	}
	if !strings.Contains(buf.String(), "Stop requested for chat chat-1") {
		t.Errorf("output = %q", buf.String())
	}
}
