// Package store holds the UI-side application state that bot actions and
// direct user interaction mutate.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a log entry.
type Role string

const (
	RoleUser   Role = "user"
	RoleBot    Role = "bot"
	RoleSystem Role = "system"
)

// Task is a single item of the task list.
type Task struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Entry is one line of the displayed message log.
type Entry struct {
	ID   string    `json:"id"`
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// State is an immutable snapshot of the store.
type State struct {
	// Color is the palette name last applied; ColorValue its display value.
	Color        string  `json:"color"`
	ColorValue   string  `json:"color_value"`
	Email        *string `json:"email,omitempty"`
	CurrentRoute string  `json:"current_route"`
	Tasks        []Task  `json:"tasks"`
	Messages     []Entry `json:"messages"`
	Draft        string  `json:"draft,omitempty"`
	// NextTaskID is the id the next added task receives. It only grows, so
	// ids are never reused after removal, including across a restore.
	NextTaskID   int     `json:"next_task_id"`
}

// LastMessage returns the most recent log entry.
func (s State) LastMessage() (Entry, bool) {
	if len(s.Messages) == 0 {
		return Entry{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Task returns the task with the given id.
func (s State) Task(id int) (Task, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// Listener is notified with the new snapshot after every mutation.
type Listener func(State)

type listenerEntry struct {
	id uint64
	fn Listener
}

// Store is the mutable state owned by one UI scope.
type Store struct {
	mu    sync.Mutex
	state State

	lmu       sync.Mutex
	listeners []listenerEntry
	lseq      uint64
}

// New creates a store with the given initial color and route.
func New(color, colorValue, route string) *Store {
	return &Store{
		state: State{
			Color:        color,
			ColorValue:   colorValue,
			CurrentRoute: route,
			Tasks:        []Task{},
			Messages:     []Entry{},
			NextTaskID:   1,
		},
	}
}

// Restore replaces the whole state, e.g. from a persisted snapshot. The task
// sequence continues from the restored counter, and never below the highest
// restored id.
func (s *Store) Restore(st State) {
	s.update(func(cur *State) bool {
		*cur = cloneState(st)
		if cur.Tasks == nil {
			cur.Tasks = []Task{}
		}
		if cur.Messages == nil {
			cur.Messages = []Entry{}
		}
		cur.NextTaskID = max(cur.NextTaskID, 1)
		for _, t := range cur.Tasks {
			cur.NextTaskID = max(cur.NextTaskID, t.ID+1)
		}
		return true
	})
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneState(s.state)
}

// Subscribe registers a change listener. The returned function removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.lmu.Lock()
	s.lseq++
	id := s.lseq
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	s.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			defer s.lmu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// SetColor records a palette name and its display value.
func (s *Store) SetColor(name, value string) {
	s.update(func(st *State) bool {
		st.Color = name
		st.ColorValue = value
		return true
	})
}

// SetEmail replaces the stored e-mail unconditionally.
func (s *Store) SetEmail(email string) {
	s.update(func(st *State) bool {
		st.Email = &email
		return true
	})
}

// ClearEmail forgets the stored e-mail.
func (s *Store) ClearEmail() {
	s.update(func(st *State) bool {
		if st.Email == nil {
			return false
		}
		st.Email = nil
		return true
	})
}

// Navigate sets the current route path.
func (s *Store) Navigate(path string) {
	s.update(func(st *State) bool {
		st.CurrentRoute = path
		return true
	})
}

// AddTask appends a new task and returns it.
func (s *Store) AddTask(title string) Task {
	var task Task
	s.update(func(st *State) bool {
		task = Task{ID: st.NextTaskID, Title: title}
		st.NextTaskID++
		st.Tasks = append(st.Tasks, task)
		return true
	})
	return task
}

// ToggleTask flips the completed flag. It reports whether the task exists.
func (s *Store) ToggleTask(id int) bool {
	found := false
	s.update(func(st *State) bool {
		for i := range st.Tasks {
			if st.Tasks[i].ID == id {
				st.Tasks[i].Completed = !st.Tasks[i].Completed
				found = true
				return true
			}
		}
		return false
	})
	return found
}

// RemoveTask deletes a task. Removing an absent id is a no-op and reports
// false.
func (s *Store) RemoveTask(id int) bool {
	found := false
	s.update(func(st *State) bool {
		for i := range st.Tasks {
			if st.Tasks[i].ID == id {
				st.Tasks = append(st.Tasks[:i:i], st.Tasks[i+1:]...)
				found = true
				return true
			}
		}
		return false
	})
	return found
}

// AppendMessage adds an entry to the message log.
func (s *Store) AppendMessage(role Role, text string) Entry {
	entry := Entry{
		ID:   uuid.New().String(),
		Role: role,
		Text: text,
		At:   time.Now(),
	}
	s.update(func(st *State) bool {
		st.Messages = append(st.Messages, entry)
		return true
	})
	return entry
}

// SetDraft records the message being typed.
func (s *Store) SetDraft(draft string) {
	s.update(func(st *State) bool {
		if st.Draft == draft {
			return false
		}
		st.Draft = draft
		return true
	})
}

// update applies fn under the lock and notifies listeners outside it when fn
// reports a change.
func (s *Store) update(fn func(*State) bool) {
	s.mu.Lock()
	changed := fn(&s.state)
	var snap State
	if changed {
		snap = cloneState(s.state)
	}
	s.mu.Unlock()

	if changed {
		s.notify(snap)
	}
}

func (s *Store) notify(st State) {
	s.lmu.Lock()
	listeners := make([]listenerEntry, len(s.listeners))
	copy(listeners, s.listeners)
	s.lmu.Unlock()

	for _, l := range listeners {
		l.fn(st)
	}
}

func cloneState(st State) State {
	out := st
	if st.Email != nil {
		email := *st.Email
		out.Email = &email
	}
	if st.Tasks != nil {
		out.Tasks = make([]Task, len(st.Tasks))
		copy(out.Tasks, st.Tasks)
	}
	if st.Messages != nil {
		out.Messages = make([]Entry, len(st.Messages))
		copy(out.Messages, st.Messages)
	}
	return out
}
