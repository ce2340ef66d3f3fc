package bot

import (
	"errors"
	"fmt"
)

// ErrPayloadType is returned when a value read from or written to a typed
// channel is not of the channel's type.
var ErrPayloadType = errors.New("bot: payload type mismatch")

// Topic is an event key whose payloads are of type T.
type Topic[T any] ChannelKey

// Source is a read key producing values of type T.
type Source[T any] ChannelKey

// Sink is a write key accepting values of type T.
type Sink[T any] ChannelKey

// On subscribes fn to t. Payloads of another type are skipped with a log
// line rather than delivered.
func On[T any](r *Registry, t Topic[T], fn func(T)) Unsubscribe {
	key := ChannelKey(t)
	return r.Subscribe(key, func(payload any) {
		v, ok := payload.(T)
		if !ok {
			r.logger.Warn("dropping event with unexpected payload type")
			return
		}
		fn(v)
	})
}

// Publish emits v on t.
func Publish[T any](r *Registry, t Topic[T], v T) {
	r.Emit(ChannelKey(t), v)
}

// ProvideAs registers a typed producer for s.
func ProvideAs[T any](r *Registry, s Source[T], fn func() T) Unsubscribe {
	return r.Provide(ChannelKey(s), func() any { return fn() })
}

// ReadAs reads s and asserts the result to T.
func ReadAs[T any](r *Registry, s Source[T]) (T, error) {
	var zero T
	v, err := r.Read(ChannelKey(s))
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: read %q returned %T", ErrPayloadType, ChannelKey(s), v)
	}
	return typed, nil
}

// ConsumeAs registers a typed consumer for s.
func ConsumeAs[T any](r *Registry, s Sink[T], fn func(T)) Unsubscribe {
	return r.Consume(ChannelKey(s), func(v any) {
		typed, ok := v.(T)
		if !ok {
			r.logger.Warn("dropping write with unexpected payload type")
			return
		}
		fn(typed)
	})
}

// WriteTo writes v to s.
func WriteTo[T any](r *Registry, s Sink[T], v T) error {
	return r.Write(ChannelKey(s), v)
}
