// Package backend is a small rule-driven bot server speaking the feedback
// protocol. It stands in for a real assistant during development.
package backend

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/eachlabs/steer/internal/protocol"
)

// Rule maps a user message pattern to a reply. Message and action field
// values may reference capture groups as $1 or ${name}.
type Rule struct {
	Name  string `yaml:"name"`
	Match string `yaml:"match"`
	// Location, when set, limits the rule to messages sent from that route.
	Location string              `yaml:"location,omitempty"`
	Message  string              `yaml:"message,omitempty"`
	Actions  []map[string]string `yaml:"actions,omitempty"`

	re *regexp.Regexp
}

// RuleSet is the on-disk rules file.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

func (r *Rule) compile() error {
	if r.Match == "" {
		return fmt.Errorf("rule %q: empty match", r.Name)
	}
	re, err := regexp.Compile("(?i)" + r.Match)
	if err != nil {
		return fmt.Errorf("rule %q: %w", r.Name, err)
	}
	for i, a := range r.Actions {
		if !protocol.ActionType(a["type"]).Valid() {
			return fmt.Errorf("rule %q: action %d: unknown type %q", r.Name, i, a["type"])
		}
	}
	r.re = re
	return nil
}

// render builds the reply for a matched message. The result goes through
// the protocol parser so a bad template can never reach the wire.
func (r *Rule) render(msg string, match []int) (*protocol.Feedback, error) {
	expand := func(tmpl string) string {
		return string(r.re.ExpandString(nil, tmpl, msg, match))
	}

	doc := map[string]any{}
	if r.Message != "" {
		doc["message"] = strings.TrimSpace(expand(r.Message))
	}
	actions := make([]map[string]string, 0, len(r.Actions))
	for _, a := range r.Actions {
		out := make(map[string]string, len(a))
		for k, v := range a {
			if k == "type" {
				out[k] = v
				continue
			}
			out[k] = strings.TrimSpace(expand(v))
		}
		actions = append(actions, out)
	}
	doc["actions"] = actions

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	fb, err := protocol.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", r.Name, err)
	}
	return fb, nil
}

// DefaultRules understands the handful of requests the demo UI can act on.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "add-task",
			Match:   `\b(?:add|create|new)\s+(?:a\s+)?task:?\s+(.+)$`,
			Message: "Added a task.",
			Actions: []map[string]string{{"type": "add-task", "taskTitle": "$1"}},
		},
		{
			Name:    "email",
			Match:   `\bemail\b.*?([^\s@]+@[^\s@]+)`,
			Message: "Your email is now $1.",
			Actions: []map[string]string{{"type": "update-email", "email": "$1"}},
		},
		{
			Name:    "navigate",
			Match:   `\b(?:go|take me|navigate)\s+(?:to\s+)?(?:the\s+)?(welcome|settings|tasks)\b`,
			Actions: []map[string]string{{"type": "navigate", "to": "$1"}},
		},
		{
			Name:    "color",
			Match:   `\b(red|green|blue|yellow|purple|orange)\b`,
			Message: "Switching to $1.",
			Actions: []map[string]string{{"type": "change-color", "color": "$1"}},
		},
	}
}

// LoadRules reads a YAML rules file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}

	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	return set.Rules, nil
}

// Router picks a reply for each user message.
type Router struct {
	mu    sync.RWMutex
	rules []*Rule
}

// NewRouter compiles rules in order. The first matching rule wins.
func NewRouter(rules []Rule) (*Router, error) {
	r := &Router{}
	for _, rule := range rules {
		if err := r.AddRule(rule); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// AddRule appends a rule.
func (r *Router) AddRule(rule Rule) error {
	if err := rule.compile(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, &rule)
	return nil
}

// Rules returns the rule names in match order.
func (r *Router) Rules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.rules))
	for _, rule := range r.rules {
		names = append(names, rule.Name)
	}
	return names
}

// Reply returns the feedback for msg and the name of the rule that produced
// it. Unmatched messages are echoed back as printed text.
func (r *Router) Reply(msg protocol.Outbound) (*protocol.Feedback, string, error) {
	text := strings.TrimSpace(msg.Message)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rule := range r.rules {
		if rule.Location != "" && rule.Location != msg.Location {
			continue
		}
		match := rule.re.FindStringSubmatchIndex(text)
		if match == nil {
			continue
		}
		fb, err := rule.render(text, match)
		if err != nil {
			return nil, rule.Name, err
		}
		return fb, rule.Name, nil
	}

	return protocol.NewFeedback("", protocol.PrintText{Text: "You said: " + text}), "", nil
}
