package channel

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Channel. Sent frames are recorded and inbound
// frames are injected with Deliver. It backs tests and offline sessions.
type Memory struct {
	mu       sync.Mutex
	endpoint string
	sent     []string
	handler  FrameHandler
	onError  ErrorHandler

	// ConnectErr, when set, is returned by the next Connect.
	ConnectErr error
}

// NewMemory returns a disconnected in-memory channel.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Name() string {
	return "memory"
}

func (m *Memory) Connect(_ context.Context, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ConnectErr; err != nil {
		m.ConnectErr = nil
		return fmt.Errorf("channel: connect %s: %w", endpoint, err)
	}
	if m.endpoint != "" {
		if m.endpoint == endpoint {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrConnectedElsewhere, m.endpoint)
	}
	m.endpoint = endpoint
	return nil
}

func (m *Memory) Send(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.endpoint == "" {
		return ErrNotConnected
	}
	m.sent = append(m.sent, text)
	return nil
}

func (m *Memory) OnMessage(h FrameHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

func (m *Memory) OnError(h ErrorHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = h
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endpoint = ""
	return nil
}

func (m *Memory) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endpoint != ""
}

// Sent returns a copy of every frame sent so far.
func (m *Memory) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	copy(out, m.sent)
	return out
}

// Deliver hands frame to the installed handler as if it had arrived from the
// peer. It reports whether the frame was delivered; frames are dropped while
// disconnected.
func (m *Memory) Deliver(frame string) bool {
	m.mu.Lock()
	handler := m.handler
	connected := m.endpoint != ""
	m.mu.Unlock()

	if !connected || handler == nil {
		return false
	}
	handler([]byte(frame))
	return true
}

// Fail reports err through the installed error handler and disconnects.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	onError := m.onError
	m.endpoint = ""
	m.mu.Unlock()

	if onError != nil {
		onError(err)
	}
}

var _ Channel = (*Memory)(nil)
