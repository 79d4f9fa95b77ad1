package output

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Styles holds the lipgloss styles used for text output. With color disabled
// every style renders its input unchanged.
type Styles struct {
	Color   bool
	OK      lipgloss.Style
	Fail    lipgloss.Style
	Pending lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
}

// NewStyles builds the text styles.
func NewStyles(color bool) Styles {
	if !color {
		plain := lipgloss.NewStyle()
		return Styles{OK: plain, Fail: plain, Pending: plain, Muted: plain, Bold: plain}
	}
	return Styles{
		Color:   true,
		OK:      lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		Fail:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		Pending: lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Bold:    lipgloss.NewStyle().Bold(true),
	}
}

// Badge renders a status label such as "success" or "pending" as an upper-case tag.
func (s Styles) Badge(status string) string {
	label := "[" + strings.ToUpper(status) + "]"
	switch status {
	case "success", "approved":
		return s.OK.Render(label)
	case "failure", "denied":
		return s.Fail.Render(label)
	case "human_approval_pending", "pending":
		return s.Pending.Render(label)
	default:
		return s.Muted.Render(label)
	}
}

// RiskStyle renders a risk level label.
func (s Styles) RiskStyle(level string) string {
	switch level {
	case "high":
		return s.Fail.Render(level)
	case "medium":
		return s.Pending.Render(level)
	case "low":
		return s.OK.Render(level)
	default:
		return level
	}
}

// IsTerminal reports whether w is a terminal file.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
