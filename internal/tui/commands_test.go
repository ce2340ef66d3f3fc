package tui

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eachlabs/steer/internal/channel"
	"github.com/eachlabs/steer/internal/config"
	"github.com/eachlabs/steer/internal/session"
)

func newConversation(t *testing.T) (*session.Scope, *channel.Memory) {
	t.Helper()
	ch := channel.NewMemory()
	s := session.New(ch, session.Options{Endpoint: "mem://bot"})
	require.NoError(t, s.Mount(context.Background()))
	t.Cleanup(func() { _ = s.Unmount() })
	return s, ch
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		want  command
		ok    bool
	}{
		{"/toggle 3", command{name: "toggle", arg: "3"}, true},
		{"  /EMAIL  me@example.com ", command{name: "email", arg: "me@example.com"}, true},
		{"/quit", command{name: "quit"}, true},
		{"/", command{}, false},
		{"hello /toggle", command{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseCommand(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecute_Tasks(t *testing.T) {
	s, ch := newConversation(t)
	routes := config.DefaultRoutes()
	ch.Deliver(`{"actions":[{"type":"add-task","taskTitle":"one"},{"type":"add-task","taskTitle":"two"}]}`)

	status, _, err := execute(s, routes, command{name: "toggle", arg: "#1"})
	require.NoError(t, err)
	assert.Equal(t, "Task 1 done", status)

	status, _, err = execute(s, routes, command{name: "tasks"})
	require.NoError(t, err)
	assert.Equal(t, "[x] 1. one\n[ ] 2. two", status)

	_, _, err = execute(s, routes, command{name: "remove", arg: "2"})
	require.NoError(t, err)
	_, _, err = execute(s, routes, command{name: "remove", arg: "2"})
	assert.EqualError(t, err, "no task 2")

	_, _, err = execute(s, routes, command{name: "toggle", arg: "abc"})
	assert.Error(t, err)
}

func TestExecute_EmailGoAndState(t *testing.T) {
	s, _ := newConversation(t)
	routes := config.DefaultRoutes()

	_, _, err := execute(s, routes, command{name: "email", arg: "me@example.com"})
	require.NoError(t, err)
	require.NotNil(t, s.Store().Snapshot().Email)

	_, _, err = execute(s, routes, command{name: "go", arg: "Settings"})
	require.NoError(t, err)
	assert.Equal(t, "/settings", s.Store().Snapshot().CurrentRoute)

	_, _, err = execute(s, routes, command{name: "go", arg: "mars"})
	assert.ErrorContains(t, err, "settings, tasks, welcome")

	status, _, err := execute(s, routes, command{name: "state"})
	require.NoError(t, err)
	assert.Equal(t, "page /settings · color (default) · email me@example.com · tasks 0/0 done", status)

	_, _, err = execute(s, routes, command{name: "email"})
	require.NoError(t, err)
	assert.Nil(t, s.Store().Snapshot().Email)
}

func TestExecute_QuitAndUnknown(t *testing.T) {
	s, _ := newConversation(t)

	_, quit, err := execute(s, nil, command{name: "exit"})
	assert.NoError(t, err)
	assert.True(t, quit)

	_, quit, err = execute(s, nil, command{name: "dance"})
	assert.ErrorIs(t, err, errUnknownCommand)
	assert.False(t, quit)
}

func TestExecute_AfterUnmount(t *testing.T) {
	s, _ := newConversation(t)
	require.NoError(t, s.Unmount())

	_, _, err := execute(s, nil, command{name: "state"})
	assert.Error(t, err)
}
