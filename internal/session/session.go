// Package session owns the lifetime of one bot conversation and persists its
// state between runs.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eachlabs/steer/internal/config"
	"github.com/eachlabs/steer/internal/store"
)

// ErrNotFound is returned when no session exists for an id.
var ErrNotFound = errors.New("session not found")

// Record is a persisted conversation.
type Record struct {
	ID        string      `json:"id"`
	Endpoint  string      `json:"endpoint"`
	Location  string      `json:"location,omitempty"`
	State     store.State `json:"state"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Manager handles record persistence with debounced saving.
type Manager struct {
	record      *Record
	dir         string
	mu          sync.Mutex
	dirty       bool
	lastSave    time.Time
	debounceMin time.Duration
}

// NewManager creates a manager storing records in dir. An empty dir uses the
// configured sessions directory.
func NewManager(dir string) *Manager {
	if dir == "" {
		dir = config.SessionsDir()
	}
	return &Manager{
		dir:         dir,
		debounceMin: 2 * time.Second,
	}
}

// generateID creates an id in format: YYYYMMDD-HHMMSS-<4 hex chars>
func generateID() string {
	return fmt.Sprintf("%s-%s", time.Now().Format("20060102-150405"), uuid.NewString()[:4])
}

func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}

func (m *Manager) path(id string) string {
	return filepath.Join(m.dir, id+".json")
}

// New starts a fresh record and makes it current.
func (m *Manager) New(endpoint, location string) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.record = &Record{
		ID:        generateID(),
		Endpoint:  endpoint,
		Location:  location,
		State:     store.State{Tasks: []store.Task{}, Messages: []store.Entry{}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.dirty = true
	return m.record
}

// Load reads a record by id and makes it current.
func (m *Manager) Load(id string) (*Record, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}

	m.record = &rec
	m.dirty = false
	return m.record, nil
}

// Current returns the current record, or nil.
func (m *Manager) Current() *Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record
}

// Update replaces the current record's state.
func (m *Manager) Update(st store.State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record != nil {
		m.record.State = st
		m.record.UpdatedAt = time.Now()
		m.dirty = true
	}
}

// Save saves the record to disk with debouncing.
// It will skip saving if less than debounceMin has passed since last save.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record == nil || !m.dirty {
		return nil
	}
	if time.Since(m.lastSave) < m.debounceMin {
		return nil
	}
	return m.saveInternal()
}

// ForceSave saves the record immediately, ignoring debounce.
func (m *Manager) ForceSave() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record == nil {
		return nil
	}
	return m.saveInternal()
}

// saveInternal writes the current record. Caller must hold the lock.
func (m *Manager) saveInternal() error {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("failed to create sessions dir: %w", err)
	}

	data, err := json.MarshalIndent(m.record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// Write then rename so a crash never leaves a truncated record.
	path := m.path(m.record.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}

	m.dirty = false
	m.lastSave = time.Now()
	return nil
}

// List returns all records sorted by updated time (newest first).
// Unreadable files are skipped.
func (m *Manager) List() ([]*Record, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var records []*Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(m.dir, e.Name()))
		if err != nil {
			continue
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	return records, nil
}

// Delete removes a record by id.
func (m *Manager) Delete(id string) error {
	if !validID(id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := os.Remove(m.path(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
