// Package channel owns the bidirectional text connection to the bot backend.
package channel

import (
	"context"
	"errors"
)

var (
	// ErrNotConnected is returned by Send when no connection is open.
	ErrNotConnected = errors.New("channel: not connected")
	// ErrConnectedElsewhere is returned by Connect when a connection to a
	// different endpoint is already open. Close first to reconnect.
	ErrConnectedElsewhere = errors.New("channel: already connected to another endpoint")
	// ErrClosedWhileConnecting is returned by Connect when Close ran before
	// the dial finished. The new connection is discarded.
	ErrClosedWhileConnecting = errors.New("channel: closed while connecting")
)

// FrameHandler receives one raw inbound frame. Frames are delivered one at a
// time, in receipt order. The frame is untrusted and must go through the
// protocol parser before it is acted on.
type FrameHandler func(frame []byte)

// ErrorHandler receives transport errors that happen outside a caller's own
// call, such as a dropped connection.
type ErrorHandler func(err error)

// Channel is a single bidirectional text connection.
type Channel interface {
	// Connect opens the connection. Connecting again to the same endpoint
	// is a no-op.
	Connect(ctx context.Context, endpoint string) error

	// Send transmits one text frame immediately.
	Send(text string) error

	// OnMessage installs the inbound frame handler, replacing any previous
	// one.
	OnMessage(h FrameHandler)

	// OnError installs the transport error handler.
	OnError(h ErrorHandler)

	// Close releases the connection. Closing a closed channel is a no-op.
	Close() error

	// Connected reports whether a connection is open.
	Connected() bool

	// Name returns the channel identifier.
	Name() string
}
