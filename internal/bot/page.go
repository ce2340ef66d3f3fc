package bot

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrMissingHandler is returned by Bind when a declared read or write
	// key has no handler.
	ErrMissingHandler = errors.New("bot: missing handler")
	// ErrUndeclaredKey is returned by Bind when a handler is supplied for a
	// key the page did not declare.
	ErrUndeclaredKey = errors.New("bot: undeclared channel key")
)

// Page declares the channels a page talks to the bot through.
type Page struct {
	Name   string
	Events []ChannelKey
	Reads  []ChannelKey
	Writes []ChannelKey
}

// Callbacks are the handlers a page binds. Each read and write key maps to
// exactly one handler; events are optional.
type Callbacks struct {
	Events map[ChannelKey]Callback
	Reads  map[ChannelKey]Producer
	Writes map[ChannelKey]Consumer
}

// Check verifies cb against the page declaration without registering
// anything.
func (p Page) Check(cb Callbacks) error {
	var problems []string
	missing := false

	declared := func(keys []ChannelKey) map[ChannelKey]bool {
		set := make(map[ChannelKey]bool, len(keys))
		for _, k := range keys {
			set[k] = true
		}
		return set
	}
	events, reads, writes := declared(p.Events), declared(p.Reads), declared(p.Writes)

	for _, k := range p.Reads {
		if _, ok := cb.Reads[k]; !ok {
			problems = append(problems, fmt.Sprintf("no handler for read %q", k))
			missing = true
		}
	}
	for _, k := range p.Writes {
		if _, ok := cb.Writes[k]; !ok {
			problems = append(problems, fmt.Sprintf("no handler for write %q", k))
			missing = true
		}
	}
	for k := range cb.Reads {
		if !reads[k] {
			problems = append(problems, fmt.Sprintf("read %q not declared", k))
		}
	}
	for k := range cb.Writes {
		if !writes[k] {
			problems = append(problems, fmt.Sprintf("write %q not declared", k))
		}
	}
	for k := range cb.Events {
		if !events[k] {
			problems = append(problems, fmt.Sprintf("event %q not declared", k))
		}
	}

	if len(problems) == 0 {
		return nil
	}

	sort.Strings(problems)
	err := ErrUndeclaredKey
	if missing {
		err = ErrMissingHandler
	}
	return fmt.Errorf("page %q: %w (%s)", p.Name, err, strings.Join(problems, "; "))
}

// Bind checks cb against the page and registers every handler. The returned
// Unsubscribe removes all of them. Nothing is registered when the check fails.
func (r *Registry) Bind(p Page, cb Callbacks) (Unsubscribe, error) {
	if err := p.Check(cb); err != nil {
		return nil, err
	}

	var unsubs []Unsubscribe
	for _, k := range p.Events {
		if fn, ok := cb.Events[k]; ok {
			unsubs = append(unsubs, r.Subscribe(k, fn))
		}
	}
	for _, k := range p.Reads {
		unsubs = append(unsubs, r.Provide(k, cb.Reads[k]))
	}
	for _, k := range p.Writes {
		unsubs = append(unsubs, r.Consume(k, cb.Writes[k]))
	}

	return r.once(func() {
		for _, u := range unsubs {
			u()
		}
	}), nil
}
