package tui

import "github.com/charmbracelet/lipgloss"

// Theme is the review screen palette (Catppuccin Mocha).
type Theme struct {
	Mauve   lipgloss.Color
	Blue    lipgloss.Color
	Green   lipgloss.Color
	Yellow  lipgloss.Color
	Red     lipgloss.Color
	Text    lipgloss.Color
	Subtext lipgloss.Color
	Surface lipgloss.Color
}

// Mocha returns the dark theme.
func Mocha() Theme {
	return Theme{
		Mauve:   lipgloss.Color("#cba6f7"),
		Blue:    lipgloss.Color("#89b4fa"),
		Green:   lipgloss.Color("#a6e3a1"),
		Yellow:  lipgloss.Color("#f9e2af"),
		Red:     lipgloss.Color("#f38ba8"),
		Text:    lipgloss.Color("#cdd6f4"),
		Subtext: lipgloss.Color("#a6adc8"),
		Surface: lipgloss.Color("#313244"),
	}
}

// StatusColor returns the color for a ledger status.
func (t Theme) StatusColor(status string) lipgloss.Color {
	switch status {
	case "pending":
		return t.Blue
	case "approved":
		return t.Green
	case "denied":
		return t.Red
	default:
		return t.Text
	}
}

// StatusIcon returns the icon for a ledger status.
func StatusIcon(status string) string {
	switch status {
	case "pending":
		return "⏳"
	case "approved":
		return "✓"
	case "denied":
		return "✗"
	case "consumed":
		return "•"
	default:
		return "?"
	}
}

type styles struct {
	title    lipgloss.Style
	selected lipgloss.Style
	normal   lipgloss.Style
	subtle   lipgloss.Style
	ok       lipgloss.Style
	fail     lipgloss.Style
	help     lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(t.Mauve).Padding(0, 1),
		selected: lipgloss.NewStyle().Bold(true).Foreground(t.Text).Background(t.Surface),
		normal:   lipgloss.NewStyle().Foreground(t.Text),
		subtle:   lipgloss.NewStyle().Foreground(t.Subtext),
		ok:       lipgloss.NewStyle().Foreground(t.Green),
		fail:     lipgloss.NewStyle().Foreground(t.Red),
		help:     lipgloss.NewStyle().Foreground(t.Subtext).Italic(true),
	}
}
