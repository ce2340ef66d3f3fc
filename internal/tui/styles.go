package tui

import "github.com/charmbracelet/lipgloss"

var (
	purple    = lipgloss.Color("#A855F7")
	green     = lipgloss.Color("#22C55E")
	yellow    = lipgloss.Color("#FBBF24")
	red       = lipgloss.Color("#EF4444")
	gray      = lipgloss.Color("#6B7280")
	darkGray  = lipgloss.Color("#374151")
	lightGray = lipgloss.Color("#9CA3AF")
	white     = lipgloss.Color("#F9FAFB")

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	userLabelStyle = lipgloss.NewStyle().
			Foreground(purple).
			Bold(true)

	userMsgStyle = lipgloss.NewStyle().
			Foreground(white).
			Background(purple).
			Padding(0, 1)

	botLabelStyle = lipgloss.NewStyle().
			Foreground(green).
			Bold(true)

	botMsgStyle = lipgloss.NewStyle().
			Foreground(white)

	systemMsgStyle = lipgloss.NewStyle().
			Foreground(yellow)

	errorStyle = lipgloss.NewStyle().
			Foreground(red).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(gray)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(darkGray).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Foreground(lightGray).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

// accent returns the color the bot last picked, or the brand purple.
func accent(value string) lipgloss.Color {
	if value == "" {
		return purple
	}
	return lipgloss.Color(value)
}
