// Package dispatch applies validated bot actions to the state store.
package dispatch

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/eachlabs/steer/internal/bot"
	"github.com/eachlabs/steer/internal/config"
	"github.com/eachlabs/steer/internal/protocol"
	"github.com/eachlabs/steer/internal/store"
)

// Topics on which applied actions are re-emitted. Pages subscribe to these to
// react to actions beyond the store update.
var (
	TextPrinted  = bot.Topic[protocol.PrintText](protocol.ActionPrintText)
	ColorChanged = bot.Topic[protocol.ChangeColor](protocol.ActionChangeColor)
	Navigated    = bot.Topic[protocol.Navigate](protocol.ActionNavigate)
	EmailUpdated = bot.Topic[protocol.UpdateEmail](protocol.ActionUpdateEmail)
	TaskAdded    = bot.Topic[protocol.AddTask](protocol.ActionAddTask)
)

// Options configures a Dispatcher.
type Options struct {
	// Palette maps color names to display values. Nil uses the default.
	Palette map[string]string
	// Routes maps logical route names to paths. Nil uses the default.
	Routes map[string]string
	// Registry, when set, receives every applied action.
	Registry *bot.Registry
	Logger   *zap.Logger
}

// Dispatcher maps actions to store effects.
type Dispatcher struct {
	store    *store.Store
	palette  map[string]string
	routes   map[string]string
	registry *bot.Registry
	logger   *zap.Logger
}

// New creates a Dispatcher that mutates s.
func New(s *store.Store, opts Options) *Dispatcher {
	d := &Dispatcher{
		store:    s,
		palette:  opts.Palette,
		routes:   opts.Routes,
		registry: opts.Registry,
		logger:   opts.Logger,
	}
	if d.palette == nil {
		d.palette = config.DefaultPalette()
	}
	if d.routes == nil {
		d.routes = config.DefaultRoutes()
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	return d
}

// Apply performs the effect of a single action and reports whether the store
// was touched. Unknown palette keys, route names and variants are logged and
// ignored.
func (d *Dispatcher) Apply(a protocol.Action) bool {
	switch a := a.(type) {
	case protocol.PrintText:
		d.store.AppendMessage(store.RoleBot, a.Text)

	case protocol.ChangeColor:
		name, value, ok := lookup(d.palette, a.Color)
		if !ok {
			d.logger.Warn("unknown color, ignoring", zap.String("color", a.Color))
			return false
		}
		d.store.SetColor(name, value)

	case protocol.Navigate:
		_, path, ok := lookup(d.routes, a.To)
		if !ok {
			d.logger.Warn("unknown route, ignoring", zap.String("to", a.To))
			return false
		}
		d.store.Navigate(path)

	case protocol.UpdateEmail:
		d.store.SetEmail(a.Email)

	case protocol.AddTask:
		task := d.store.AddTask(a.TaskTitle)
		d.logger.Debug("task added", zap.Int("id", task.ID), zap.String("title", task.Title))

	default:
		d.logger.Warn("unhandled action", zap.String("type", fmt.Sprintf("%T", a)))
		return false
	}

	if d.registry != nil {
		d.registry.Emit(bot.ChannelKey(a.Type()), a)
	}
	return true
}

// lookup finds key in m, falling back to its trimmed lower-case form.
func lookup(m map[string]string, key string) (string, string, bool) {
	if v, ok := m[key]; ok {
		return key, v, true
	}
	key = strings.ToLower(strings.TrimSpace(key))
	v, ok := m[key]
	return key, v, ok
}

// ApplyFeedback appends the envelope message, if any, to the message log and
// then applies every action in array order.
func (d *Dispatcher) ApplyFeedback(f *protocol.Feedback) {
	if f == nil {
		return
	}
	if text, ok := f.Text(); ok && text != "" {
		d.store.AppendMessage(store.RoleBot, text)
	}
	for _, a := range f.Actions {
		d.Apply(a)
	}
}

// HandleFrame parses one raw inbound frame and applies it. Invalid frames are
// logged and dropped; the error is returned for the caller's accounting.
func (d *Dispatcher) HandleFrame(raw []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while applying frame", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("dispatch: panic: %v", r)
		}
	}()

	f, err := protocol.Parse(raw)
	if err != nil {
		d.logger.Warn("dropping invalid frame", zap.Error(err), zap.Int("bytes", len(raw)))
		return err
	}

	d.logger.Debug("applying feedback", zap.Int("actions", len(f.Actions)))
	d.ApplyFeedback(f)
	return nil
}
