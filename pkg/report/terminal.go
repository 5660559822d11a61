package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/user/sentinel-adk/pkg/engine"
)

var (
	colorCritical = lipgloss.Color("#FF0000")
	colorHigh     = lipgloss.Color("#FF6B6B")
	colorMedium   = lipgloss.Color("#FFD93D")
	colorLow      = lipgloss.Color("#6BCB77")
	colorMuted    = lipgloss.Color("#6B7280")
	colorPrimary  = lipgloss.Color("#7D56F4")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(colorPrimary).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(colorMuted)
	issueStyle = lipgloss.NewStyle().Bold(true)
	bodyStyle  = lipgloss.NewStyle().PaddingLeft(4)
)

func severityStyle(s engine.Severity) lipgloss.Style {
	st := lipgloss.NewStyle().Bold(true)
	switch s {
	case engine.SeverityCritical:
		return st.Foreground(colorCritical)
	case engine.SeverityHigh:
		return st.Foreground(colorHigh)
	case engine.SeverityMedium:
		return st.Foreground(colorMedium)
	default:
		return st.Foreground(colorLow)
	}
}

func levelStyle(l Level) lipgloss.Style {
	switch l {
	case LevelCritical:
		return severityStyle(engine.SeverityCritical)
	case LevelHigh:
		return severityStyle(engine.SeverityHigh)
	case LevelMedium:
		return severityStyle(engine.SeverityMedium)
	default:
		return severityStyle(engine.SeverityLow)
	}
}

// Terminal renders r for an interactive terminal. Colors are dropped when
// the output does not support them.
func Terminal(r Report) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("SECURITY REPORT") + "\n")

	header := []string{
		labelStyle.Render("Target: ") + r.Target,
		labelStyle.Render("Scan:   ") + r.ScanID,
		labelStyle.Render("Status: ") + string(r.Status),
		labelStyle.Render("Risk Score: ") + levelStyle(r.Risk.Level).Render(fmt.Sprintf("%d/100 (%s)", r.Risk.Score, r.Risk.Level)),
	}
	sb.WriteString(boxStyle.Render(strings.Join(header, "\n")) + "\n")

	var counts []string
	for _, c := range r.Summary {
		sev, _ := engine.ParseSeverity(c.Severity)
		counts = append(counts, severityStyle(sev).Render(fmt.Sprintf("%s: %d", c.Severity, c.Count)))
	}
	sb.WriteString(strings.Join(counts, "  ") + "\n\n")

	if len(r.Findings) == 0 {
		sb.WriteString("No findings.\n")
		return sb.String()
	}

	for i, f := range r.Findings {
		tag := severityStyle(f.Severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(f.Severity.String())))
		fmt.Fprintf(&sb, "%d. %s %s\n", i+1, tag, issueStyle.Render(f.Issue))

		lines := []string{labelStyle.Render(string(f.Category))}
		if f.Description != "" {
			lines = append(lines, f.Description)
		}
		if f.Evidence != "" {
			lines = append(lines, labelStyle.Render("Evidence: ")+strings.ReplaceAll(f.Evidence, "\n", " | "))
		}
		if f.Remediation != "" {
			lines = append(lines, labelStyle.Render("Fix: ")+firstLine(f.Remediation))
		}
		if len(f.Controls) > 0 {
			lines = append(lines, labelStyle.Render("Controls: ")+joinControls(f.Controls))
		}
		sb.WriteString(bodyStyle.Render(strings.Join(lines, "\n")) + "\n\n")
	}
	return sb.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
