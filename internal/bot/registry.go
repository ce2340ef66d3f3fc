// Package bot provides the per-scope subscription registry pages use to talk
// to the backend-driven bot: broadcast events, plus 1:1 read and write
// channels keyed by name.
package bot

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ChannelKey names an event, read or write channel.
type ChannelKey string

func (k ChannelKey) String() string { return string(k) }

// Callback receives an emitted event payload.
type Callback func(payload any)

// Producer answers a read with the current value.
type Producer func() any

// Consumer accepts a written value.
type Consumer func(value any)

// Unsubscribe removes the registration it was returned for. Calling it more
// than once is a no-op.
type Unsubscribe func()

var (
	// ErrNoProducer is returned by Read when no producer is registered.
	ErrNoProducer = errors.New("bot: no producer registered")
	// ErrNoConsumer is returned by Write when no consumer is registered.
	ErrNoConsumer = errors.New("bot: no consumer registered")
)

type subscription struct {
	id uint64
	cb Callback
}

type producerEntry struct {
	id uint64
	fn Producer
}

type consumerEntry struct {
	id uint64
	fn Consumer
}

// Registry is a process-local event bus scoped to one UI scope.
type Registry struct {
	mu        sync.RWMutex
	seq       uint64
	events    map[ChannelKey][]subscription
	producers map[ChannelKey]producerEntry
	consumers map[ChannelKey]consumerEntry
	logger    *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		events:    make(map[ChannelKey][]subscription),
		producers: make(map[ChannelKey]producerEntry),
		consumers: make(map[ChannelKey]consumerEntry),
		logger:    logger,
	}
}

func (r *Registry) nextID() uint64 {
	r.seq++
	return r.seq
}

// Subscribe registers cb for key. Many callbacks may share a key.
func (r *Registry) Subscribe(key ChannelKey, cb Callback) Unsubscribe {
	r.mu.Lock()
	id := r.nextID()
	r.events[key] = append(r.events[key], subscription{id: id, cb: cb})
	r.mu.Unlock()

	return r.once(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		subs := r.events[key]
		for i, s := range subs {
			if s.id == id {
				// Copy on write: an in-flight Emit keeps iterating its own slice.
				next := make([]subscription, 0, len(subs)-1)
				next = append(next, subs[:i]...)
				next = append(next, subs[i+1:]...)
				if len(next) == 0 {
					delete(r.events, key)
				} else {
					r.events[key] = next
				}
				return
			}
		}
	})
}

// Emit calls every callback registered for key at the moment of the call,
// in registration order. Callbacks added or removed during the pass do not
// affect it. Emitting with no subscribers is a no-op.
func (r *Registry) Emit(key ChannelKey, payload any) {
	r.mu.RLock()
	subs := r.events[key]
	r.mu.RUnlock()

	for _, s := range subs {
		s.cb(payload)
	}
}

// SubscriberCount returns the number of callbacks registered for key.
func (r *Registry) SubscriberCount(key ChannelKey) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events[key])
}

// Provide registers the single producer for key, replacing any previous one.
func (r *Registry) Provide(key ChannelKey, fn Producer) Unsubscribe {
	r.mu.Lock()
	id := r.nextID()
	r.producers[key] = producerEntry{id: id, fn: fn}
	r.mu.Unlock()

	return r.once(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		// A replaced registration must not remove its replacement.
		if cur, ok := r.producers[key]; ok && cur.id == id {
			delete(r.producers, key)
		}
	})
}

// Consume registers the single consumer for key, replacing any previous one.
func (r *Registry) Consume(key ChannelKey, fn Consumer) Unsubscribe {
	r.mu.Lock()
	id := r.nextID()
	r.consumers[key] = consumerEntry{id: id, fn: fn}
	r.mu.Unlock()

	return r.once(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if cur, ok := r.consumers[key]; ok && cur.id == id {
			delete(r.consumers, key)
		}
	})
}

// Read calls the producer registered for key and returns its value.
func (r *Registry) Read(key ChannelKey) (any, error) {
	r.mu.RLock()
	entry, ok := r.producers[key]
	r.mu.RUnlock()

	if !ok {
		r.logger.Error("read on unregistered channel", zap.String("key", string(key)))
		return nil, fmt.Errorf("%w: %q", ErrNoProducer, key)
	}
	return entry.fn(), nil
}

// Write hands value to the consumer registered for key.
func (r *Registry) Write(key ChannelKey, value any) error {
	r.mu.RLock()
	entry, ok := r.consumers[key]
	r.mu.RUnlock()

	if !ok {
		r.logger.Error("write on unregistered channel", zap.String("key", string(key)))
		return fmt.Errorf("%w: %q", ErrNoConsumer, key)
	}
	entry.fn(value)
	return nil
}

// Reset drops every registration. Used on scope teardown so nothing tied to
// an old connection survives into the next one.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = make(map[ChannelKey][]subscription)
	r.producers = make(map[ChannelKey]producerEntry)
	r.consumers = make(map[ChannelKey]consumerEntry)
}

func (r *Registry) once(fn func()) Unsubscribe {
	var o sync.Once
	return func() { o.Do(fn) }
}
