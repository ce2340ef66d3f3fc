package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/eachlabs/steer/internal/store"
)

// Line is a plain line-oriented frontend for terminals without full-screen
// support and for piping.
type Line struct {
	conv Conversation
	opts Options
	in   io.Reader
	out  io.Writer

	mu      sync.Mutex
	printed int
	last    store.State
}

// NewLine creates a line frontend reading in and writing out.
func NewLine(conv Conversation, opts Options, in io.Reader, out io.Writer) *Line {
	if opts.Title == "" {
		opts.Title = "steer"
	}
	st := conv.Store().Snapshot()
	return &Line{
		conv:    conv,
		opts:    opts,
		in:      in,
		out:     out,
		printed: len(st.Messages),
		last:    st,
	}
}

// Run reads lines until EOF, /quit or ctx is done.
func (l *Line) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.printHeader()

	unwatch := l.conv.Store().Subscribe(l.render)
	defer unwatch()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(l.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case input := <-lines:
			if quit := l.handle(input); quit {
				return nil
			}
		}
	}
}

func (l *Line) handle(input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}

	if c, ok := parseCommand(input); ok {
		status, quit, err := execute(l.conv, l.opts.Routes, c)
		if quit {
			return true
		}
		if err != nil {
			l.println("  " + errorStyle.Render("Error:") + " " + err.Error())
			return false
		}
		for _, line := range strings.Split(status, "\n") {
			l.println("  " + mutedStyle.Render(line))
		}
		return false
	}

	if err := l.conv.Say(input); err != nil {
		l.println("  " + errorStyle.Render("Error:") + " " + err.Error())
	}
	return false
}

func (l *Line) printHeader() {
	l.println("")
	l.println("  " + titleStyle.Foreground(purple).Render(l.opts.Title) + "  " + mutedStyle.Render(l.opts.Endpoint))
	l.println(mutedStyle.Render("  /help for commands • Ctrl+D to exit"))
	l.println(mutedStyle.Render("  ─────────────────────────────────────"))
}

// render prints what changed since the previous snapshot. User messages are
// not echoed.
func (l *Line) render(st store.State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range st.Messages[min(l.printed, len(st.Messages)):] {
		switch e.Role {
		case store.RoleBot:
			l.printlnLocked("  " + botLabelStyle.Render(l.opts.Title+" ›") + " " + e.Text)
		case store.RoleSystem:
			l.printlnLocked("  " + systemMsgStyle.Render("• "+e.Text))
		}
	}
	l.printed = len(st.Messages)

	prev := l.last
	if st.Color != prev.Color && st.Color != "" {
		l.printlnLocked("  " + mutedStyle.Render("color → "+st.Color))
	}
	if st.CurrentRoute != prev.CurrentRoute {
		l.printlnLocked("  " + mutedStyle.Render("page → "+st.CurrentRoute))
	}
	if st.Email != nil && (prev.Email == nil || *st.Email != *prev.Email) {
		l.printlnLocked("  " + mutedStyle.Render("email → "+*st.Email))
	}
	newest := 0
	for _, t := range prev.Tasks {
		newest = max(newest, t.ID)
	}
	for _, t := range st.Tasks {
		if t.ID > newest {
			l.printlnLocked("  " + mutedStyle.Render(fmt.Sprintf("task %d → %s", t.ID, t.Title)))
		}
	}
	l.last = st
}

func (l *Line) println(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.printlnLocked(s)
}

func (l *Line) printlnLocked(s string) {
	_, _ = fmt.Fprintln(l.out, s)
}
