package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eachlabs/steer/internal/bot"
	"github.com/eachlabs/steer/internal/channel"
	"github.com/eachlabs/steer/internal/dispatch"
	"github.com/eachlabs/steer/internal/protocol"
	"github.com/eachlabs/steer/internal/store"
)

var (
	// ErrTornDown is returned by operations on an unmounted scope.
	ErrTornDown = errors.New("session: scope torn down")
	// ErrEmptyMessage is returned by Say for blank input.
	ErrEmptyMessage = errors.New("session: empty message")
)

// Channels of the layout page.
var (
	StateSource = bot.Source[store.State]("state")
	EmailSink   = bot.Sink[string]("email")
	DraftSink   = bot.Sink[string]("draft")
)

// LayoutPage is the page every scope binds. It exposes the store to pages
// through the registry and hears about every applied action.
var LayoutPage = bot.Page{
	Name: "layout",
	Events: []bot.ChannelKey{
		bot.ChannelKey(protocol.ActionPrintText),
		bot.ChannelKey(protocol.ActionChangeColor),
		bot.ChannelKey(protocol.ActionNavigate),
		bot.ChannelKey(protocol.ActionUpdateEmail),
		bot.ChannelKey(protocol.ActionAddTask),
	},
	Reads:  []bot.ChannelKey{bot.ChannelKey(StateSource)},
	Writes: []bot.ChannelKey{bot.ChannelKey(EmailSink), bot.ChannelKey(DraftSink)},
}

// Options configures a Scope.
type Options struct {
	Endpoint string
	// Location is sent with structured outbound frames. Empty sends the
	// current route.
	Location string
	Mode     protocol.OutboundMode
	Palette  map[string]string
	Routes   map[string]string

	// Sessions, when set, persists the store. A record already current in
	// the manager is resumed; otherwise a new one is started.
	Sessions *Manager

	// OnAction is called after each applied bot action.
	OnAction func(protocol.Action)

	Logger *zap.Logger
}

// Scope is one mounted conversation. It owns a channel, a store, a
// dispatcher and a registry, and drops every frame that arrives after
// Unmount.
type Scope struct {
	id         string
	opts       Options
	ch         channel.Channel
	store      *store.Store
	registry   *bot.Registry
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger

	mu      sync.Mutex
	mounted bool
	unbind  bot.Unsubscribe
	unwatch func()

	// dispatchMu serialises frame handling. Unmount acquires it once after
	// setting torndown to wait for an in-flight frame.
	dispatchMu sync.Mutex
	torndown   atomic.Bool
}

// New creates an unmounted scope over ch.
func New(ch channel.Channel, opts Options) *Scope {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Mode == "" {
		opts.Mode = protocol.OutboundStructured
	}

	st := store.New("", "", "/")
	id := uuid.NewString()
	if opts.Sessions != nil {
		if rec := opts.Sessions.Current(); rec != nil {
			st.Restore(rec.State)
			id = rec.ID
		} else {
			id = opts.Sessions.New(opts.Endpoint, opts.Location).ID
		}
	}

	logger = logger.With(zap.String("scope", id))
	registry := bot.NewRegistry(logger.Named("bot"))

	return &Scope{
		id:       id,
		opts:     opts,
		ch:       ch,
		store:    st,
		registry: registry,
		dispatcher: dispatch.New(st, dispatch.Options{
			Palette:  opts.Palette,
			Routes:   opts.Routes,
			Registry: registry,
			Logger:   logger.Named("dispatch"),
		}),
		logger: logger,
	}
}

func (s *Scope) ID() string                       { return s.id }
func (s *Scope) Store() *store.Store              { return s.store }
func (s *Scope) Registry() *bot.Registry          { return s.registry }
func (s *Scope) Channel() channel.Channel         { return s.ch }
func (s *Scope) Dispatcher() *dispatch.Dispatcher { return s.dispatcher }

// Mount binds the layout page, installs the frame handler and connects.
// Mounting a mounted scope is a no-op.
func (s *Scope) Mount(ctx context.Context) error {
	if s.torndown.Load() {
		return ErrTornDown
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mounted {
		return nil
	}

	unbind, err := s.registry.Bind(LayoutPage, s.layoutCallbacks())
	if err != nil {
		return fmt.Errorf("session: bind layout: %w", err)
	}

	s.ch.OnMessage(s.handleFrame)
	s.ch.OnError(s.handleError)

	if err := s.ch.Connect(ctx, s.opts.Endpoint); err != nil {
		unbind()
		return err
	}

	if s.opts.Sessions != nil {
		s.unwatch = s.store.Subscribe(s.persist)
	}

	s.unbind = unbind
	s.mounted = true
	s.logger.Info("scope mounted", zap.String("endpoint", s.opts.Endpoint))
	return nil
}

// Say records text as a user message and sends it to the bot. The draft is
// cleared on success.
func (s *Scope) Say(text string) error {
	if s.torndown.Load() {
		return ErrTornDown
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	location := s.opts.Location
	if location == "" {
		location = s.store.Snapshot().CurrentRoute
	}

	frame, err := protocol.EncodeOutbound(s.opts.Mode, location, text)
	if err != nil {
		return err
	}
	if err := s.ch.Send(frame); err != nil {
		return err
	}

	s.store.AppendMessage(store.RoleUser, text)
	s.store.SetDraft("")
	return nil
}

// Unmount tears the scope down: the connection is closed, every registry
// entry is dropped and later frames are ignored. A frame being applied when
// Unmount is called finishes first, so Unmount must not be called from a
// frame or action handler. It is safe to call more than once.
func (s *Scope) Unmount() error {
	if !s.torndown.CompareAndSwap(false, true) {
		return nil
	}

	// Wait out an in-flight dispatch; frames after this see torndown.
	s.dispatchMu.Lock()
	s.mu.Lock()
	unbind, unwatch := s.unbind, s.unwatch
	s.unbind, s.unwatch = nil, nil
	s.mounted = false
	s.mu.Unlock()

	if unbind != nil {
		unbind()
	}
	if unwatch != nil {
		unwatch()
	}
	s.registry.Reset()
	s.dispatchMu.Unlock()

	var errs []error
	if err := s.ch.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.opts.Sessions != nil {
		s.opts.Sessions.Update(s.store.Snapshot())
		if err := s.opts.Sessions.ForceSave(); err != nil {
			errs = append(errs, err)
		}
	}

	s.logger.Info("scope unmounted")
	return errors.Join(errs...)
}

func (s *Scope) handleFrame(frame []byte) {
	if s.torndown.Load() {
		s.logger.Debug("dropping frame after teardown")
		return
	}

	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	// Re-check under the lock: Unmount may have started while we waited.
	if s.torndown.Load() {
		s.logger.Debug("dropping frame after teardown")
		return
	}
	_ = s.dispatcher.HandleFrame(frame)
}

func (s *Scope) handleError(err error) {
	if s.torndown.Load() {
		return
	}
	s.logger.Warn("channel error", zap.Error(err))
	s.store.AppendMessage(store.RoleSystem, "connection lost: "+err.Error())
}

func (s *Scope) persist(st store.State) {
	s.opts.Sessions.Update(st)
	if err := s.opts.Sessions.Save(); err != nil {
		s.logger.Warn("failed to save session", zap.Error(err))
	}
}

func (s *Scope) layoutCallbacks() bot.Callbacks {
	cb := bot.Callbacks{
		Reads: map[bot.ChannelKey]bot.Producer{
			bot.ChannelKey(StateSource): func() any { return s.store.Snapshot() },
		},
		Writes: map[bot.ChannelKey]bot.Consumer{
			bot.ChannelKey(EmailSink): func(v any) {
				email, ok := v.(string)
				if !ok {
					s.logger.Warn("ignoring non-string email write")
					return
				}
				if email == "" {
					s.store.ClearEmail()
					return
				}
				s.store.SetEmail(email)
			},
			bot.ChannelKey(DraftSink): func(v any) {
				if draft, ok := v.(string); ok {
					s.store.SetDraft(draft)
				}
			},
		},
	}

	if s.opts.OnAction != nil {
		cb.Events = make(map[bot.ChannelKey]bot.Callback, len(LayoutPage.Events))
		for _, k := range LayoutPage.Events {
			cb.Events[k] = func(p any) {
				if a, ok := p.(protocol.Action); ok {
					s.opts.OnAction(a)
				}
			}
		}
	}
	return cb
}
