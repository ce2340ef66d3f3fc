package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eachlabs/steer/internal/config"
	"github.com/eachlabs/steer/internal/protocol"
	"github.com/eachlabs/steer/internal/session"
	"github.com/eachlabs/steer/internal/store"
)

// run executes the root command with args and returns what it printed.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("STEER_STATE_DIR", dir)
	t.Setenv("STEER_CONFIG", filepath.Join(dir, "config.toml"))

	cfgFile, verbose, jsonOut, logLevel = "", false, false, ""
	validateLenient = false
	configInitForce = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		args    []string
		want    string
		wantErr string
	}{
		{
			name:  "batch",
			stdin: `{"message":"hi","actions":[{"type":"navigate","to":"tasks"}]}`,
			args:  []string{"validate"},
			want:  "actions[0]: navigate",
		},
		{
			name:  "single envelope",
			stdin: `{"type":"change-color","color":"red"}`,
			args:  []string{"validate", "-"},
			want:  `{"color":"red","type":"change-color"}`,
		},
		{
			name:    "bad field",
			stdin:   `{"actions":[{"type":"add-task","taskTitle":3}]}`,
			args:    []string{"validate"},
			wantErr: "actions[0].taskTitle",
		},
		{
			name:    "missing actions",
			stdin:   `{"message":"hi"}`,
			args:    []string{"validate"},
			wantErr: "actions",
		},
		{
			name:  "missing actions lenient",
			stdin: `{"message":"hi"}`,
			args:  []string{"validate", "--lenient"},
			want:  `message: "hi"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.stdin, tt.args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, protocol.ErrValidation)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestValidate_JSONReport(t *testing.T) {
	out, err := run(t, `{"actions":[{"type":"teleport"}]}`, "validate", "--json")
	require.Error(t, err)

	var report map[string]any
	line, _, _ := strings.Cut(out, "\n")
	require.NoError(t, json.Unmarshal([]byte(line), &report))
	assert.Equal(t, false, report["valid"])
	assert.Equal(t, "actions[0].type", report["path"])
}

func TestValidate_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"actions":[]}`), 0644))

	out, err := run(t, "", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, `{"actions":[]}`)
}

func TestConfig_SetAndGet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "steer.toml")

	_, err := run(t, "", "--config", path, "config", "set", "bot.palette.teal", "#14B8A6")
	require.NoError(t, err)
	_, err = run(t, "", "--config", path, "config", "set", "bot.outbound", "text")
	require.NoError(t, err)

	out, err := run(t, "", "--config", path, "config", "get", "bot.palette.teal")
	require.NoError(t, err)
	assert.Equal(t, "#14B8A6\n", out)

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, protocol.OutboundText, cfg.OutboundMode())
	assert.Equal(t, "#22C55E", cfg.Bot.Palette["green"], "defaults survive a set")
}

func TestConfig_SetRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steer.toml")

	_, err := run(t, "", "--config", path, "config", "set", "bot.outbound", "smoke-signals")
	assert.Error(t, err)
	_, err = run(t, "", "--config", path, "config", "set", "nope.key", "x")
	assert.EqualError(t, err, "unknown section: nope")
	_, err = run(t, "", "--config", path, "config", "set", "sessions.persist", "maybe")
	assert.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing is written on failure")
}

func TestConfig_GetUnknownKey(t *testing.T) {
	_, err := run(t, "", "config", "get", "bot.palette.magenta")
	assert.EqualError(t, err, "key not found: bot.palette.magenta")
}

func TestConfig_Init(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steer.toml")

	out, err := run(t, "", "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = run(t, "", "--config", path, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "", "--config", path, "config", "init", "--force")
	assert.NoError(t, err)
}

func TestSessions(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STEER_STATE_DIR", dir)

	m := session.NewManager(filepath.Join(dir, "sessions"))
	rec := m.New("ws://bot/ws", "/")
	email := "me@example.com"
	m.Update(store.State{
		CurrentRoute: "/tasks",
		Email:        &email,
		Tasks:        []store.Task{{ID: 1, Title: "ship it", Completed: true}},
		Messages:     []store.Entry{{Role: store.RoleBot, Text: "Added a task."}},
	})
	require.NoError(t, m.ForceSave())

	// run would swap in a fresh state dir; keep the one holding the record.
	runHere := func(args ...string) (string, error) {
		t.Helper()
		var out bytes.Buffer
		cfgFile, jsonOut = "", false
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&out)
		rootCmd.SetArgs(args)
		err := rootCmd.Execute()
		return out.String(), err
	}

	out, err := runHere("sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, rec.ID)
	assert.Contains(t, out, "/tasks")

	out, err = runHere("sessions", "show", rec.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Email:    me@example.com")
	assert.Contains(t, out, "[x] 1. ship it")
	assert.Contains(t, out, "bot    Added a task.")

	_, err = runHere("sessions", "delete", rec.ID)
	require.NoError(t, err)
	_, err = runHere("sessions", "show", rec.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestVersion(t *testing.T) {
	version = "1.2.3"
	defer func() { version = "" }()

	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "steer 1.2.3\n", out)
}
