// Package protocol defines the wire vocabulary exchanged with the bot backend:
// the closed set of actions it may push, the Feedback envelope carrying them,
// and the outbound message shapes sent back upstream.
package protocol

import (
	"encoding/json"
)

// ActionType is the discriminant carried in the "type" field of an action.
type ActionType string

const (
	ActionPrintText   ActionType = "print-text"
	ActionChangeColor ActionType = "change-color"
	ActionNavigate    ActionType = "navigate"
	ActionUpdateEmail ActionType = "update-email"
	ActionAddTask     ActionType = "add-task"
)

// KnownActionTypes returns every action type the schema accepts.
func KnownActionTypes() []ActionType {
	return []ActionType{
		ActionPrintText, ActionChangeColor, ActionNavigate,
		ActionUpdateEmail, ActionAddTask,
	}
}

// String implements fmt.Stringer.
func (t ActionType) String() string { return string(t) }

// Valid returns true if the action type is recognized.
func (t ActionType) Valid() bool {
	_, ok := variants[t]
	return ok
}

// Action is a single command pushed by the backend. The set of
// implementations is closed; see KnownActionTypes.
type Action interface {
	Type() ActionType
	fields() map[string]any
}

// PrintText appends text to the displayed message log.
type PrintText struct {
	Text string `json:"text"`
}

// ChangeColor switches the UI accent to a palette entry.
type ChangeColor struct {
	Color string `json:"color"`
}

// Navigate moves the UI to a logical route name.
type Navigate struct {
	To string `json:"to"`
}

// UpdateEmail replaces the stored e-mail address.
type UpdateEmail struct {
	Email string `json:"email"`
}

// AddTask appends a new, not yet completed task.
type AddTask struct {
	TaskTitle string `json:"taskTitle"`
}

func (PrintText) Type() ActionType   { return ActionPrintText }
func (ChangeColor) Type() ActionType { return ActionChangeColor }
func (Navigate) Type() ActionType    { return ActionNavigate }
func (UpdateEmail) Type() ActionType { return ActionUpdateEmail }
func (AddTask) Type() ActionType     { return ActionAddTask }

func (a PrintText) fields() map[string]any   { return map[string]any{"text": a.Text} }
func (a ChangeColor) fields() map[string]any { return map[string]any{"color": a.Color} }
func (a Navigate) fields() map[string]any    { return map[string]any{"to": a.To} }
func (a UpdateEmail) fields() map[string]any { return map[string]any{"email": a.Email} }
func (a AddTask) fields() map[string]any     { return map[string]any{"taskTitle": a.TaskTitle} }

// fieldKind is the primitive JSON type a payload field must have.
type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
	kindBool
)

func (k fieldKind) String() string {
	switch k {
	case kindString:
		return "string"
	case kindNumber:
		return "number"
	case kindBool:
		return "boolean"
	}
	return "unknown"
}

type fieldSpec struct {
	name string
	kind fieldKind
}

// variant describes the payload shape of one action type. build is only
// called after every field has been checked against its fieldSpec.
type variant struct {
	fields []fieldSpec
	build  func(v map[string]any) Action
}

var variants = map[ActionType]variant{
	ActionPrintText: {
		fields: []fieldSpec{{"text", kindString}},
		build:  func(v map[string]any) Action { return PrintText{Text: v["text"].(string)} },
	},
	ActionChangeColor: {
		fields: []fieldSpec{{"color", kindString}},
		build:  func(v map[string]any) Action { return ChangeColor{Color: v["color"].(string)} },
	},
	ActionNavigate: {
		fields: []fieldSpec{{"to", kindString}},
		build:  func(v map[string]any) Action { return Navigate{To: v["to"].(string)} },
	},
	ActionUpdateEmail: {
		fields: []fieldSpec{{"email", kindString}},
		build:  func(v map[string]any) Action { return UpdateEmail{Email: v["email"].(string)} },
	},
	ActionAddTask: {
		fields: []fieldSpec{{"taskTitle", kindString}},
		build:  func(v map[string]any) Action { return AddTask{TaskTitle: v["taskTitle"].(string)} },
	},
}

// MarshalAction encodes an action with its "type" discriminant.
func MarshalAction(a Action) ([]byte, error) {
	return json.Marshal(actionObject(a))
}

func actionObject(a Action) map[string]any {
	obj := a.fields()
	obj["type"] = string(a.Type())
	return obj
}
