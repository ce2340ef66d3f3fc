package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Feedback is the unit the backend sends per turn: optional conversational
// text plus an ordered list of actions to apply left to right.
type Feedback struct {
	Message *string
	Actions []Action

	// Presence bookkeeping so Marshal reproduces what Parse saw.
	messageNull bool
	single      bool
}

// Options tunes Parse.
type Options struct {
	// DefaultActions treats a missing "actions" member as an empty list
	// instead of a validation failure.
	DefaultActions bool
}

// Parse validates an inbound frame and returns the Feedback it carries.
// A top-level object with a "type" member and no "actions" is accepted as
// the single-action envelope and yields a one-action Feedback.
// On failure the returned Feedback is nil and the error is a
// *ValidationError.
func Parse(raw []byte) (*Feedback, error) {
	return ParseWith(raw, Options{})
}

// ParseWith is Parse with explicit options.
func ParseWith(raw []byte, opts Options) (*Feedback, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, invalid("$", "malformed JSON: %v", err)
	}
	if dec.More() {
		return nil, invalid("$", "trailing data after document")
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, invalid("$", "expected object, got %s", jsonType(doc))
	}

	fb := &Feedback{}

	rawActions, hasActions := obj["actions"]
	if _, hasType := obj["type"]; hasType && !hasActions {
		action, err := parseAction(obj, "$")
		if err != nil {
			return nil, err
		}
		fb.Actions = []Action{action}
		fb.single = true
		return fb, nil
	}

	if msg, present := obj["message"]; present {
		switch m := msg.(type) {
		case nil:
			fb.messageNull = true
		case string:
			fb.Message = &m
		default:
			return nil, invalid("message", "expected string or null, got %s", jsonType(msg))
		}
	}

	if !hasActions {
		if !opts.DefaultActions {
			return nil, invalid("actions", "required")
		}
		fb.Actions = []Action{}
		return fb, nil
	}

	list, ok := rawActions.([]any)
	if !ok {
		return nil, invalid("actions", "expected array, got %s", jsonType(rawActions))
	}

	fb.Actions = make([]Action, 0, len(list))
	for i, item := range list {
		path := fmt.Sprintf("actions[%d]", i)
		itemObj, ok := item.(map[string]any)
		if !ok {
			return nil, invalid(path, "expected object, got %s", jsonType(item))
		}
		action, err := parseAction(itemObj, path)
		if err != nil {
			return nil, err
		}
		fb.Actions = append(fb.Actions, action)
	}

	return fb, nil
}

func parseAction(obj map[string]any, path string) (Action, error) {
	typePath := joinPath(path, "type")

	rawType, ok := obj["type"]
	if !ok {
		return nil, invalid(typePath, "required")
	}
	name, ok := rawType.(string)
	if !ok {
		return nil, invalid(typePath, "expected string, got %s", jsonType(rawType))
	}

	v, ok := variants[ActionType(name)]
	if !ok {
		return nil, invalid(typePath, "unknown action type %q", name)
	}

	for _, f := range v.fields {
		val, present := obj[f.name]
		if !present {
			return nil, invalid(joinPath(path, f.name), "required")
		}
		if !f.kind.matches(val) {
			return nil, invalid(joinPath(path, f.name), "expected %s, got %s", f.kind, jsonType(val))
		}
	}

	return v.build(obj), nil
}

func (k fieldKind) matches(v any) bool {
	switch k {
	case kindString:
		_, ok := v.(string)
		return ok
	case kindNumber:
		_, ok := v.(json.Number)
		return ok
	case kindBool:
		_, ok := v.(bool)
		return ok
	}
	return false
}

func joinPath(path, field string) string {
	if path == "$" {
		return field
	}
	return path + "." + field
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// Text returns the conversational message, if one was sent.
func (f *Feedback) Text() (string, bool) {
	if f == nil || f.Message == nil {
		return "", false
	}
	return *f.Message, true
}

// MarshalJSON encodes the feedback in the shape it was received in.
func (f *Feedback) MarshalJSON() ([]byte, error) {
	if f.single && len(f.Actions) == 1 && f.Message == nil && !f.messageNull {
		return json.Marshal(actionObject(f.Actions[0]))
	}

	actions := make([]map[string]any, 0, len(f.Actions))
	for _, a := range f.Actions {
		actions = append(actions, actionObject(a))
	}

	out := map[string]any{"actions": actions}
	switch {
	case f.Message != nil:
		out["message"] = *f.Message
	case f.messageNull:
		out["message"] = nil
	}
	return json.Marshal(out)
}

// Marshal encodes f as a single wire frame.
func Marshal(f *Feedback) ([]byte, error) {
	return f.MarshalJSON()
}

// NewFeedback builds an envelope for the backend side. An empty message is
// omitted.
func NewFeedback(message string, actions ...Action) *Feedback {
	fb := &Feedback{Actions: actions}
	if fb.Actions == nil {
		fb.Actions = []Action{}
	}
	if message != "" {
		fb.Message = &message
	}
	return fb
}
