package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eachlabs/steer/internal/store"
)

func TestManager_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	rec := m.New("ws://localhost:8000/ws", "/")
	assert.Regexp(t, `^\d{8}-\d{6}-[0-9a-f]{4}$`, rec.ID)

	email := "a@b.c"
	m.Update(store.State{
		Color:        "green",
		ColorValue:   "#22C55E",
		Email:        &email,
		CurrentRoute: "/tasks",
		Tasks:        []store.Task{{ID: 1, Title: "one"}},
		Messages:     []store.Entry{},
	})
	require.NoError(t, m.ForceSave())

	loaded, err := NewManager(dir).Load(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, loaded.ID)
	assert.Equal(t, "green", loaded.State.Color)
	require.NotNil(t, loaded.State.Email)
	assert.Equal(t, "a@b.c", *loaded.State.Email)
	assert.Equal(t, []store.Task{{ID: 1, Title: "one"}}, loaded.State.Tasks)
}

func TestManager_SaveIsDebounced(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	m.debounceMin = time.Hour

	rec := m.New("ws://x", "")
	require.NoError(t, m.Save())

	m.Update(store.State{Color: "blue"})
	require.NoError(t, m.Save())

	loaded, err := NewManager(dir).Load(rec.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.State.Color, "second save should be debounced")

	require.NoError(t, m.ForceSave())
	loaded, err = NewManager(dir).Load(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "blue", loaded.State.Color)
}

func TestManager_ListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	first := m.New("ws://a", "")
	require.NoError(t, m.ForceSave())
	time.Sleep(10 * time.Millisecond)
	second := m.New("ws://b", "")
	require.NoError(t, m.ForceSave())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("{"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	records, err := m.List()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, second.ID, records[0].ID)
	assert.Equal(t, first.ID, records[1].ID)
}

func TestManager_ListMissingDir(t *testing.T) {
	records, err := NewManager(filepath.Join(t.TempDir(), "nope")).List()
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestManager_DeleteAndNotFound(t *testing.T) {
	m := NewManager(t.TempDir())
	rec := m.New("ws://a", "")
	require.NoError(t, m.ForceSave())

	require.NoError(t, m.Delete(rec.ID))
	assert.ErrorIs(t, m.Delete(rec.ID), ErrNotFound)

	_, err := m.Load(rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	for _, id := range []string{"", "..", "../etc/passwd", `a\b`} {
		_, err := m.Load(id)
		assert.ErrorIs(t, err, ErrNotFound, id)
	}
}
