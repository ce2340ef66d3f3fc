package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return New("red", "#EF4444", "/")
}

func TestAddTask_IDsStrictlyIncrease(t *testing.T) {
	s := newTestStore()

	const n = 25
	seen := make(map[int]bool, n)
	last := 0
	for i := 0; i < n; i++ {
		task := s.AddTask("task")
		assert.False(t, task.Completed)
		assert.Greater(t, task.ID, last)
		assert.False(t, seen[task.ID])
		seen[task.ID] = true
		last = task.ID
	}
	assert.Len(t, s.Snapshot().Tasks, n)
}

func TestRemoveTask_IdempotentAndStable(t *testing.T) {
	s := newTestStore()
	a := s.AddTask("a")
	b := s.AddTask("b")
	c := s.AddTask("c")

	assert.True(t, s.RemoveTask(b.ID))
	assert.False(t, s.RemoveTask(b.ID), "second removal is a no-op")

	tasks := s.Snapshot().Tasks
	require.Len(t, tasks, 2)
	assert.Equal(t, a, tasks[0])
	assert.Equal(t, c, tasks[1])

	// ids are never reused
	d := s.AddTask("d")
	assert.Greater(t, d.ID, c.ID)
}

func TestToggleTask(t *testing.T) {
	s := newTestStore()
	task := s.AddTask("write tests")

	assert.True(t, s.ToggleTask(task.ID))
	got, ok := s.Snapshot().Task(task.ID)
	require.True(t, ok)
	assert.True(t, got.Completed)

	assert.True(t, s.ToggleTask(task.ID))
	got, _ = s.Snapshot().Task(task.ID)
	assert.False(t, got.Completed)

	assert.False(t, s.ToggleTask(999))
}

func TestEmail(t *testing.T) {
	s := newTestStore()
	assert.Nil(t, s.Snapshot().Email)

	s.SetEmail("not-an-email")
	require.NotNil(t, s.Snapshot().Email)
	assert.Equal(t, "not-an-email", *s.Snapshot().Email)

	s.ClearEmail()
	assert.Nil(t, s.Snapshot().Email)
}

func TestSnapshotIsolation(t *testing.T) {
	s := newTestStore()
	s.AddTask("original")
	s.SetEmail("a@b.c")

	snap := s.Snapshot()
	snap.Tasks[0].Title = "mutated"
	*snap.Email = "x@y.z"

	fresh := s.Snapshot()
	assert.Equal(t, "original", fresh.Tasks[0].Title)
	assert.Equal(t, "a@b.c", *fresh.Email)
}

func TestSubscribe_NotifiesInOrder(t *testing.T) {
	s := newTestStore()

	var calls []string
	unsubA := s.Subscribe(func(st State) { calls = append(calls, "a:"+st.CurrentRoute) })
	s.Subscribe(func(st State) { calls = append(calls, "b:"+st.CurrentRoute) })

	s.Navigate("/settings")
	unsubA()
	unsubA()
	s.Navigate("/tasks")

	assert.Equal(t, []string{"a:/settings", "b:/settings", "b:/tasks"}, calls)
}

func TestSubscribe_NoNotificationWithoutChange(t *testing.T) {
	s := newTestStore()
	count := 0
	s.Subscribe(func(State) { count++ })

	s.RemoveTask(42)
	s.ToggleTask(42)
	s.ClearEmail()
	s.SetDraft("")
	assert.Zero(t, count)

	s.SetDraft("typing")
	assert.Equal(t, 1, count)
}

func TestAppendMessage(t *testing.T) {
	s := newTestStore()
	s.AppendMessage(RoleUser, "hello")
	e := s.AppendMessage(RoleBot, "hi")

	last, ok := s.Snapshot().LastMessage()
	require.True(t, ok)
	assert.Equal(t, e, last)
	assert.NotEmpty(t, last.ID)
	assert.Equal(t, RoleBot, last.Role)
}

func TestRestore_ContinuesSequence(t *testing.T) {
	s := newTestStore()
	s.Restore(State{
		Color:        "blue",
		CurrentRoute: "/tasks",
		Tasks:        []Task{{ID: 4, Title: "old"}, {ID: 9, Title: "older"}},
	})

	next := s.AddTask("new")
	assert.Equal(t, 10, next.ID)
	assert.Equal(t, "blue", s.Snapshot().Color)
	assert.NotNil(t, s.Snapshot().Messages)
}

func TestRestore_KeepsCounterPastRemovedTasks(t *testing.T) {
	src := newTestStore()
	src.AddTask("a")
	src.AddTask("b")
	require.True(t, src.RemoveTask(2))

	s := newTestStore()
	s.Restore(src.Snapshot())
	assert.Equal(t, 3, s.AddTask("c").ID)

	// Snapshots written before the counter existed fall back to the ids.
	legacy := newTestStore()
	legacy.Restore(State{Tasks: []Task{{ID: 7, Title: "old"}}})
	assert.Equal(t, 8, legacy.AddTask("new").ID)
}
