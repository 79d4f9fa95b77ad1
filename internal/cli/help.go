package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Catppuccin Mocha palette
var (
	colorMauve   = lipgloss.Color("#cba6f7")
	colorBlue    = lipgloss.Color("#89b4fa")
	colorGreen   = lipgloss.Color("#a6e3a1")
	colorYellow  = lipgloss.Color("#f9e2af")
	colorRed     = lipgloss.Color("#f38ba8")
	colorOverlay = lipgloss.Color("#6c7086")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorMauve).MarginBottom(1)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue).MarginTop(1)
	commandStyle = lipgloss.NewStyle().Foreground(colorGreen)
	flagStyle    = lipgloss.NewStyle().Foreground(colorYellow)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorOverlay)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBlue).Padding(1, 2)

	riskLegendStyles = map[string]lipgloss.Style{
		"low":    lipgloss.NewStyle().Foreground(colorGreen),
		"medium": lipgloss.NewStyle().Foreground(colorYellow),
		"high":   lipgloss.NewStyle().Bold(true).Foreground(colorRed),
	}
)

// showQuickReference prints the boxed command summary shown when gatekeeper runs without a subcommand.
func showQuickReference(w io.Writer) {
	width := clampWidth(detectWidth())
	useUnicode := supportsUnicode()

	border := lipgloss.RoundedBorder()
	if !useUnicode {
		border = lipgloss.Border{
			Top: "-", Bottom: "-", Left: "|", Right: "|",
			TopLeft: "+", TopRight: "+", BottomLeft: "+", BottomRight: "+",
		}
	}
	container := boxStyle.Border(border).Width(width)
	title := titleStyle.Width(width - 6).Align(lipgloss.Center).Render("GATEKEEPER QUICK REFERENCE")

	agent := renderSection("AS AGENT", []string{
		bullet("gatekeeper submit <id> [params...] -j", "validate, gate and run an allow-listed command"),
		bullet("gatekeeper submit --request - -j < req.json", "submit a JSON envelope"),
		bullet("gatekeeper policy check <id> [params...]", "dry run: show the argv without running it"),
		bullet("gatekeeper deps install <pkg> --version <v>", "install a vetted package"),
	})
	reviewer := renderSection("AS REVIEWER", []string{
		bullet("gatekeeper pending", "list requests waiting for approval"),
		bullet("gatekeeper approve <key>", "let the next submission run"),
		bullet("gatekeeper deny <key>", "reject permanently"),
		bullet("gatekeeper review", "interactive approve/deny screen"),
	})
	policy := renderSection("POLICY", []string{
		bullet("gatekeeper policy show", "allow-listed commands and risk levels"),
		bullet("gatekeeper policy risk <id>", "approval and bypass flags for one id"),
		bullet("gatekeeper config set policy.allowlist_path <file>", "use a custom allow-list"),
	})

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		agent,
		reviewer,
		policy,
		riskLegend(),
		flagLegend(),
		mutedStyle.Render("\nexit status: 0 success, 1 failure, 2 approval pending"),
	)
	fmt.Fprintln(w, container.Render(content))
}

func clampWidth(w int) int {
	if w < 72 {
		return 72
	}
	if w > 100 {
		return 100
	}
	return w
}

func detectWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if v, err := strconv.Atoi(cols); err == nil && v > 0 {
			return v
		}
	}
	return 80
}

func supportsUnicode() bool {
	termEnv := strings.ToLower(os.Getenv("TERM"))
	locale := strings.ToLower(strings.Join([]string{
		os.Getenv("LC_ALL"),
		os.Getenv("LC_CTYPE"),
		os.Getenv("LANG"),
	}, " "))
	if strings.Contains(termEnv, "dumb") {
		return false
	}
	return strings.Contains(locale, "utf-8") || strings.Contains(locale, "utf8")
}

func bullet(command, desc string) string {
	return commandStyle.Render("  "+command) + mutedStyle.Render("  "+desc)
}

func renderSection(title string, lines []string) string {
	return lipgloss.JoinVertical(lipgloss.Left, sectionStyle.Render(title), strings.Join(lines, "\n"))
}

func riskLegend() string {
	parts := make([]string, 0, len(riskLegendStyles))
	for _, level := range []string{"low", "medium", "high"} {
		label := strings.ToUpper(level)
		if level == "high" {
			label += " (approval)"
		}
		parts = append(parts, riskLegendStyles[level].Render(label))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		sectionStyle.Render("BUILT-IN RISK LEVELS"),
		"  "+strings.Join(parts, "   "),
	)
}

func flagLegend() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		sectionStyle.Render("GLOBAL FLAGS"),
		flagStyle.Render("  -j, --json")+mutedStyle.Render("              structured output"),
		flagStyle.Render("  -C, --project <dir>")+mutedStyle.Render("     project directory"),
		flagStyle.Render("  --ledger <path>")+mutedStyle.Render("         approval ledger path"),
		flagStyle.Render("  -v, --verbose")+mutedStyle.Render("           debug logging"),
	)
}
