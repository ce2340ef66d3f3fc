package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eachlabs/steer/internal/protocol"
)

func TestLoadFile_Defaults(t *testing.T) {
	t.Setenv("STEER_STATE_DIR", t.TempDir())

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:8000/ws", cfg.Bot.Endpoint)
	assert.Equal(t, protocol.OutboundStructured, cfg.OutboundMode())
	assert.Equal(t, "/settings", cfg.Bot.Routes["settings"])
	assert.Equal(t, "#22C55E", cfg.Bot.Palette["green"])
	assert.Empty(t, cfg.Bot.Location, "no pinned location means the current route is sent")
}

func TestLoadFile_EmptyLocationStaysEmpty(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STEER_STATE_DIR", dir)

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[bot]\nlocation = \"\"\n"), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Bot.Location)
}

func TestLoadFile_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STEER_STATE_DIR", dir)

	path := filepath.Join(dir, "config.toml")
	content := `
[bot]
endpoint = "ws://bot.internal:9000/ws"
outbound = "text"

[bot.palette]
teal = "#14B8A6"

[server]
listen = "0.0.0.0:9000"

[logging]
level = "debug"
outputs = ["stderr"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("STEER_LOCATION", "/tasks")
	t.Setenv("STEER_LOG_LEVEL", "warn")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://bot.internal:9000/ws", cfg.Bot.Endpoint)
	assert.Equal(t, protocol.OutboundText, cfg.OutboundMode())
	assert.Equal(t, "#14B8A6", cfg.Bot.Palette["teal"])
	assert.Equal(t, "/tasks", cfg.Bot.Location)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Listen)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, []string{"stderr"}, cfg.Logging.Outputs)
	assert.NotEmpty(t, cfg.Bot.Routes)
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STEER_STATE_DIR", dir)

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[bot]\noutbound = \"fax\"\n"), 0644))

	_, err := LoadFile(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("[bot\n"), 0644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STEER_STATE_DIR", dir)

	cfg := Default()
	cfg.Bot.Endpoint = "ws://saved:1/ws"
	path := filepath.Join(dir, "nested", "config.toml")
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://saved:1/ws", loaded.Bot.Endpoint)
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STEER_STATE_DIR", dir)

	require.NoError(t, EnsureDirs())
	for _, d := range []string{SessionsDir(), LogsDir()} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
