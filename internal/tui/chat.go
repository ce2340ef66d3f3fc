package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/eachlabs/steer/internal/bot"
	"github.com/eachlabs/steer/internal/dispatch"
	"github.com/eachlabs/steer/internal/protocol"
	"github.com/eachlabs/steer/internal/session"
	"github.com/eachlabs/steer/internal/store"
)

// Options configures the chat UI.
type Options struct {
	Title    string
	Endpoint string
	Routes   map[string]string
}

// ChatModel is the bubbletea model for the bot-driven UI. It re-renders from
// store snapshots; the store is the only source of truth.
type ChatModel struct {
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model

	conv    Conversation
	opts    Options
	state   store.State
	status  string
	failed  bool
	waiting bool
	width   int
	height  int
	ready   bool

	changed <-chan struct{}
	flashes <-chan string
	ctx     context.Context
	cancel  context.CancelFunc
	release func()
}

type stateMsg store.State
type flashMsg string
type chatDoneMsg struct{}

// NewChatModel creates a chat model over conv.
func NewChatModel(conv Conversation, opts Options) ChatModel {
	if opts.Title == "" {
		opts.Title = "steer"
	}

	ta := textarea.New()
	ta.Placeholder = "Ask the bot, or /help"
	ta.Focus()
	ta.CharLimit = 4000
	ta.SetWidth(80)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(purple)

	changed := make(chan struct{}, 1)
	flashes := make(chan string, 16)
	ctx, cancel := context.WithCancel(context.Background())

	unwatch := conv.Store().Subscribe(func(store.State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	flash := func(s string) {
		select {
		case flashes <- s:
		default:
		}
	}
	reg := conv.Registry()
	unsubs := []bot.Unsubscribe{
		bot.On(reg, dispatch.Navigated, func(a protocol.Navigate) { flash("Bot opened " + a.To) }),
		bot.On(reg, dispatch.TaskAdded, func(a protocol.AddTask) { flash("Bot added task: " + a.TaskTitle) }),
		bot.On(reg, dispatch.EmailUpdated, func(protocol.UpdateEmail) { flash("Bot updated your email") }),
		bot.On(reg, dispatch.ColorChanged, func(a protocol.ChangeColor) { flash("Bot switched color to " + a.Color) }),
	}

	return ChatModel{
		textarea: ta,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		conv:     conv,
		opts:     opts,
		state:    conv.Store().Snapshot(),
		changed:  changed,
		flashes:  flashes,
		ctx:      ctx,
		cancel:   cancel,
		release: sync.OnceFunc(func() {
			unwatch()
			for _, u := range unsubs {
				u()
			}
		}),
	}
}

func (m ChatModel) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.waitForUpdate(),
	)
}

func (m ChatModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return chatDoneMsg{}
		case <-m.changed:
			return stateMsg(m.conv.Store().Snapshot())
		case s := <-m.flashes:
			return flashMsg(s)
		}
	}
}

func (m ChatModel) quit() (tea.Model, tea.Cmd) {
	m.cancel()
	m.release()
	return m, tea.Quit
}

func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m.quit()

		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()

			if c, ok := parseCommand(input); ok {
				status, quit, err := execute(m.conv, m.opts.Routes, c)
				if quit {
					return m.quit()
				}
				m.setStatus(status, err)
				m.state = m.conv.Store().Snapshot()
				m.updateViewport()
				return m, nil
			}

			if err := m.conv.Say(input); err != nil {
				m.setStatus("", err)
				return m, nil
			}
			m.waiting = true
			m.status = ""
			m.state = m.conv.Store().Snapshot()
			m.updateViewport()
			return m, m.spinner.Tick
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2
		pageHeight := lipgloss.Height(m.renderPage())
		inputHeight := 3
		statusHeight := 2
		viewportHeight := max(m.height-headerHeight-pageHeight-inputHeight-statusHeight-1, 3)

		if !m.ready {
			m.viewport = viewport.New(m.width-2, viewportHeight)
			m.viewport.YPosition = headerHeight + pageHeight
			m.ready = true
		} else {
			m.viewport.Width = m.width - 2
			m.viewport.Height = viewportHeight
		}

		m.textarea.SetWidth(m.width - 4)
		m.updateViewport()

	case stateMsg:
		st := store.State(msg)
		if m.waiting {
			if last, ok := st.LastMessage(); ok && last.Role != store.RoleUser {
				m.waiting = false
			}
		}
		m.state = st
		m.updateViewport()
		cmds = append(cmds, m.waitForUpdate())

	case flashMsg:
		m.setStatus(string(msg), nil)
		cmds = append(cmds, m.waitForUpdate())

	case chatDoneMsg:
		m.waiting = false

	case spinner.TickMsg:
		if m.waiting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	before := m.textarea.Value()
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	if after := m.textarea.Value(); after != before {
		// Errors only mean the layout page is gone; the draft is cosmetic.
		_ = bot.WriteTo(m.conv.Registry(), session.DraftSink, after)
	}

	return m, tea.Batch(cmds...)
}

func (m *ChatModel) setStatus(status string, err error) {
	m.failed = err != nil
	if err != nil {
		m.status = err.Error()
		return
	}
	m.status = status
}

func (m *ChatModel) updateViewport() {
	m.viewport.SetContent(renderMessages(m.state.Messages, m.opts.Title))
	m.viewport.GotoBottom()
}

func renderMessages(entries []store.Entry, botName string) string {
	var content strings.Builder
	for _, e := range entries {
		switch e.Role {
		case store.RoleUser:
			content.WriteString(userLabelStyle.Render("You") + "\n")
			content.WriteString(userMsgStyle.Render(e.Text) + "\n\n")
		case store.RoleBot:
			content.WriteString(botLabelStyle.Render(botName) + "\n")
			content.WriteString(botMsgStyle.Render(e.Text) + "\n\n")
		default:
			content.WriteString(systemMsgStyle.Render("• "+e.Text) + "\n\n")
		}
	}
	return content.String()
}

// renderPage draws the page the bot navigated to.
func (m ChatModel) renderPage() string {
	st := m.state
	var body string

	switch routeName(m.opts.Routes, st.CurrentRoute) {
	case "settings":
		email := mutedStyle.Render("not set")
		if st.Email != nil {
			email = *st.Email
		}
		color := mutedStyle.Render("default")
		if st.Color != "" {
			color = lipgloss.NewStyle().Foreground(accent(st.ColorValue)).Render("● " + st.Color)
		}
		body = fmt.Sprintf("Email  %s\nColor  %s", email, color)

	case "tasks":
		if len(st.Tasks) == 0 {
			body = mutedStyle.Render("No tasks yet. Ask the bot to add one.")
			break
		}
		lines := make([]string, 0, len(st.Tasks))
		for _, t := range st.Tasks {
			mark := "○"
			title := t.Title
			if t.Completed {
				mark = lipgloss.NewStyle().Foreground(green).Render("●")
				title = mutedStyle.Strikethrough(true).Render(title)
			}
			lines = append(lines, fmt.Sprintf("%s %d. %s", mark, t.ID, title))
		}
		body = strings.Join(lines, "\n")

	default:
		body = "Talk to the bot: it can change the color, open pages,\nupdate your email and add tasks."
	}

	return panelStyle.BorderForeground(accent(st.ColorValue)).Render(body)
}

func (m ChatModel) renderTabs() string {
	var tabs []string
	for _, name := range routeNames(m.opts.Routes) {
		style := tabStyle
		if m.opts.Routes[name] == m.state.CurrentRoute {
			style = style.Foreground(accent(m.state.ColorValue)).Bold(true).Underline(true)
		}
		tabs = append(tabs, style.Render(name))
	}
	return strings.Join(tabs, "")
}

func (m ChatModel) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	color := accent(m.state.ColorValue)

	header := titleStyle.Foreground(color).Render(m.opts.Title) + "  " + m.renderTabs()
	if m.opts.Endpoint != "" {
		header += "  " + mutedStyle.Render(m.opts.Endpoint)
	}
	b.WriteString(header + "\n")
	b.WriteString(m.renderPage() + "\n")
	b.WriteString(m.viewport.View() + "\n")

	switch {
	case m.waiting:
		b.WriteString(m.spinner.View() + " " + mutedStyle.Render("Waiting for the bot...") + "\n")
	case m.failed:
		b.WriteString(errorStyle.Render(m.status) + "\n")
	case m.status != "":
		b.WriteString(mutedStyle.Render(m.status) + "\n")
	default:
		b.WriteString("\n")
	}

	b.WriteString(inputBoxStyle.BorderForeground(color).Render(m.textarea.View()) + "\n")
	b.WriteString(mutedStyle.Render("Enter to send • /help for commands • Esc to quit"))

	return b.String()
}

// RunChat starts the chat TUI and blocks until the user quits.
func RunChat(conv Conversation, opts Options) error {
	model := NewChatModel(conv, opts)
	defer model.release()
	defer model.cancel()

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
