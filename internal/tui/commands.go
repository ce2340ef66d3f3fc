package tui

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/eachlabs/steer/internal/bot"
	"github.com/eachlabs/steer/internal/session"
	"github.com/eachlabs/steer/internal/store"
)

// Conversation is what a frontend drives. *session.Scope implements it.
type Conversation interface {
	Say(text string) error
	Store() *store.Store
	Registry() *bot.Registry
}

var errUnknownCommand = errors.New("unknown command")

const helpText = `/tasks          list tasks
/toggle N       mark task N done or not done
/remove N       delete task N
/email ADDRESS  set your email (empty clears it)
/go PAGE        open a page
/state          show the current state
/quit           leave`

type command struct {
	name string
	arg  string
}

// parseCommand recognises "/name arg" input.
func parseCommand(input string) (command, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") || len(input) == 1 {
		return command{}, false
	}
	name, arg, _ := strings.Cut(input[1:], " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}, true
}

// execute runs a slash command against conv and returns a status line.
func execute(conv Conversation, routes map[string]string, c command) (status string, quit bool, err error) {
	st := conv.Store()

	switch c.name {
	case "quit", "exit", "q":
		return "", true, nil

	case "help", "?":
		return helpText, false, nil

	case "tasks":
		return formatTasks(st.Snapshot().Tasks), false, nil

	case "toggle", "done":
		id, err := taskID(c.arg)
		if err != nil {
			return "", false, err
		}
		if !st.ToggleTask(id) {
			return "", false, fmt.Errorf("no task %d", id)
		}
		task, _ := st.Snapshot().Task(id)
		if task.Completed {
			return fmt.Sprintf("Task %d done", id), false, nil
		}
		return fmt.Sprintf("Task %d reopened", id), false, nil

	case "remove", "rm":
		id, err := taskID(c.arg)
		if err != nil {
			return "", false, err
		}
		if !st.RemoveTask(id) {
			return "", false, fmt.Errorf("no task %d", id)
		}
		return fmt.Sprintf("Task %d removed", id), false, nil

	case "email":
		if err := bot.WriteTo(conv.Registry(), session.EmailSink, c.arg); err != nil {
			return "", false, err
		}
		if c.arg == "" {
			return "Email cleared", false, nil
		}
		return "Email set to " + c.arg, false, nil

	case "go":
		path, ok := routes[strings.ToLower(c.arg)]
		if !ok {
			return "", false, fmt.Errorf("unknown page %q (try %s)", c.arg, strings.Join(routeNames(routes), ", "))
		}
		st.Navigate(path)
		return "Opened " + path, false, nil

	case "state":
		snap, err := bot.ReadAs(conv.Registry(), session.StateSource)
		if err != nil {
			return "", false, err
		}
		return formatState(snap), false, nil
	}

	return "", false, fmt.Errorf("%w: /%s", errUnknownCommand, c.name)
}

func taskID(arg string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(arg, "#"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("expected a task number, got %q", arg)
	}
	return id, nil
}

func routeNames(routes map[string]string) []string {
	names := make([]string, 0, len(routes))
	for name := range routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// routeName maps a path back to its logical name.
func routeName(routes map[string]string, path string) string {
	for _, name := range routeNames(routes) {
		if routes[name] == path {
			return name
		}
	}
	return path
}

func formatTasks(tasks []store.Task) string {
	if len(tasks) == 0 {
		return "No tasks yet"
	}
	var b strings.Builder
	for i, t := range tasks {
		if i > 0 {
			b.WriteString("\n")
		}
		mark := " "
		if t.Completed {
			mark = "x"
		}
		fmt.Fprintf(&b, "[%s] %d. %s", mark, t.ID, t.Title)
	}
	return b.String()
}

func formatState(st store.State) string {
	email := "(none)"
	if st.Email != nil {
		email = *st.Email
	}
	color := st.Color
	if color == "" {
		color = "(default)"
	}
	done := 0
	for _, t := range st.Tasks {
		if t.Completed {
			done++
		}
	}
	return fmt.Sprintf("page %s · color %s · email %s · tasks %d/%d done",
		st.CurrentRoute, color, email, done, len(st.Tasks))
}
