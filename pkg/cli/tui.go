package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the color scheme of the status frame.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Alert   lipgloss.Color
	OK      lipgloss.Color
}

// DefaultTheme is the default theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Alert:   lipgloss.Color("#ff5f5f"),
	OK:      lipgloss.Color("#5fd7ff"),
}

// Styles holds the styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Border lipgloss.Style
	Help   lipgloss.Style
	Alert  lipgloss.Style
	OK     lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Border: lipgloss.NewStyle().Foreground(t.Primary),
		Help:   lipgloss.NewStyle().Foreground(t.Dim),
		Alert:  lipgloss.NewStyle().Bold(true).Foreground(t.Alert),
		OK:     lipgloss.NewStyle().Foreground(t.OK),
	}
}

// Section is a labeled block of lines. A section with MaxLines > 0 shows
// only its last MaxLines lines.
type Section struct {
	Label    string
	Lines    []string
	MaxLines int
}

// Frame is a bordered panel with a title line and labeled sections.
type Frame struct {
	Styles   Styles
	Title    string
	Status   string
	Sections []Section
	Help     string
}

// Render renders the frame width columns wide.
func (f Frame) Render(width int) string {
	width = max(width, 20)
	inner := width - 4
	bc := f.Styles.Border

	row := func(text string) string {
		if lipgloss.Width(text) > inner {
			text = truncate(text, inner-1) + "…"
		}
		pad := strings.Repeat(" ", max(0, inner-lipgloss.Width(text)))
		return bc.Render("│") + " " + text + pad + " " + bc.Render("│")
	}

	var lines []string
	lines = append(lines, bc.Render("╭"+strings.Repeat("─", width-2)+"╮"))

	head := f.Styles.Title.Render(f.Title)
	if f.Status != "" {
		head += " " + f.Styles.Help.Render("["+f.Status+"]")
	}
	lines = append(lines, row(head))

	for _, sec := range f.Sections {
		label := f.Styles.Label.Render(" " + sec.Label + " ")
		fill := max(0, width-3-lipgloss.Width(label))
		lines = append(lines, bc.Render("├─")+label+bc.Render(strings.Repeat("─", fill)+"┤"))

		body := sec.Lines
		if sec.MaxLines > 0 && len(body) > sec.MaxLines {
			body = body[len(body)-sec.MaxLines:]
		}
		if len(body) == 0 {
			body = []string{f.Styles.Help.Render("(none)")}
		}
		for _, l := range body {
			lines = append(lines, row(l))
		}
	}

	lines = append(lines, bc.Render("╰"+strings.Repeat("─", width-2)+"╯"))
	if f.Help != "" {
		lines = append(lines, f.Styles.Help.Render(f.Help))
	}
	return strings.Join(lines, "\n")
}

// truncate cuts s to at most width display columns.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	w := 0
	for i, r := range s {
		rw := lipgloss.Width(string(r))
		if w+rw > width {
			return s[:i]
		}
		w += rw
	}
	return s
}

// Bar renders a fraction in [0, 1] as a bar n cells wide.
func Bar(f float64, n int) string {
	f = min(max(f, 0), 1)
	filled := int(f*float64(n) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", n-filled)
}
