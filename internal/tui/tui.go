// Package tui implements the Bubble Tea approval review screen for gatekeeper.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	"github.com/Dicklesworthstone/gatekeeper/internal/ledger"
	"github.com/Dicklesworthstone/gatekeeper/internal/utils"
)

// ErrNotInteractive is returned by Run when stdin or stdout is not a terminal.
var ErrNotInteractive = errors.New("review requires an interactive terminal")

// Ledger is the part of the approval ledger the review screen uses.
type Ledger interface {
	List(filter ledger.Filter) []ledger.Record
	Approve(ctx context.Context, key string) (bool, error)
	Deny(ctx context.Context, key string) (bool, error)
	Reload(ctx context.Context) error
}

// decisionMsg reports the outcome of an approve or deny.
type decisionMsg struct {
	key    string
	action string
	ok     bool
	err    error
}

// reloadedMsg reports the outcome of a reload.
type reloadedMsg struct {
	err error
}

// Model is the review screen: a list of pending approvals.
type Model struct {
	ctx     context.Context
	ledger  Ledger
	records []ledger.Record
	cursor  int
	status  string
	failed  bool
	width   int
	height  int
	theme   Theme
	styles  styles
}

// New creates a review model over l.
func New(ctx context.Context, l Ledger) Model {
	t := Mocha()
	m := Model{ctx: ctx, ledger: l, theme: t, styles: newStyles(t)}
	m.refresh()
	return m
}

func (m *Model) refresh() {
	m.records = m.ledger.List(ledger.Filter{Status: ledger.StatusPending})
	if m.cursor >= len(m.records) {
		m.cursor = max(len(m.records)-1, 0)
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		return m.handleKey(msg)
	case decisionMsg:
		switch {
		case msg.err != nil:
			m.status, m.failed = fmt.Sprintf("%s %s failed: %v", msg.action, msg.key, msg.err), true
		case !msg.ok:
			m.status, m.failed = fmt.Sprintf("%s is no longer pending", msg.key), true
		default:
			m.status, m.failed = fmt.Sprintf("%s %s", msg.action, msg.key), false
		}
		m.refresh()
	case reloadedMsg:
		if msg.err != nil {
			m.status, m.failed = fmt.Sprintf("reload failed: %v", msg.err), true
		} else {
			m.status, m.failed = "reloaded", false
		}
		m.refresh()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "j", "down":
		if m.cursor < len(m.records)-1 {
			m.cursor++
		}
	case "a":
		if key, ok := m.selectedKey(); ok {
			return m, m.decide(key, "approved", m.ledger.Approve)
		}
	case "d":
		if key, ok := m.selectedKey(); ok {
			return m, m.decide(key, "denied", m.ledger.Deny)
		}
	case "r":
		ctx, l := m.ctx, m.ledger
		return m, func() tea.Msg {
			return reloadedMsg{err: l.Reload(ctx)}
		}
	}
	return m, nil
}

func (m Model) selectedKey() (string, bool) {
	if len(m.records) == 0 {
		return "", false
	}
	return m.records[m.cursor].Key, true
}

func (m Model) decide(key, action string, fn func(context.Context, string) (bool, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		ok, err := fn(ctx, key)
		return decisionMsg{key: key, action: action, ok: ok, err: err}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("gatekeeper approvals"))
	b.WriteString("\n\n")

	if len(m.records) == 0 {
		b.WriteString(m.styles.subtle.Render("  no pending approvals"))
		b.WriteString("\n")
	}
	for i, r := range m.records {
		line := fmt.Sprintf("%s %-24s %s", StatusIcon(string(r.Status)), r.Key, utils.SanitizeInput(r.Description))
		if m.width > 4 {
			line = ansi.Truncate(line, m.width-2, "")
		}
		if i == m.cursor {
			b.WriteString("> " + m.styles.selected.Render(line))
		} else {
			b.WriteString("  " + m.styles.normal.Render(line))
		}
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n")
		if m.failed {
			b.WriteString(m.styles.fail.Render(m.status))
		} else {
			b.WriteString(m.styles.ok.Render(m.status))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.styles.help.Render("↑/↓ move • a approve • d deny • r reload • q quit"))
	b.WriteString("\n")
	return b.String()
}

// Run starts the review screen.
func Run(ctx context.Context, l Ledger) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return ErrNotInteractive
	}
	p := tea.NewProgram(New(ctx, l), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
