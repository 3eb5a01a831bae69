package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/yllada/ssht-client/autoconnect"
)

func renderView(m model) string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(" SSH T PROJECT · Auto-connect "))
	b.WriteString("\n\n")

	b.WriteString(renderStatus(m))
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(m.fraction()))
	b.WriteString("\n\n")

	b.WriteString(HeaderStyle.Render("Log"))
	b.WriteString("\n")
	b.WriteString(renderEntries(m.entries, maxVisibleEntries))

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(renderHelp(m))
	return b.String()
}

func renderStatus(m model) string {
	if m.done {
		return renderResult(m)
	}
	if m.quitting {
		return m.spinner.View() + " Cancelling..."
	}
	if m.current == "" {
		return m.spinner.View() + " Preparing..."
	}
	return fmt.Sprintf("%s Testing %d/%d: %s",
		m.spinner.View(), m.index+1, m.total, activeStyle.Render(m.current))
}

func renderResult(m model) string {
	if m.result == nil {
		return ""
	}
	elapsed := m.result.Duration.Round(100 * time.Millisecond)
	switch {
	case m.result.Winner != nil:
		return SuccessStyle.Render(fmt.Sprintf("✓ Connected with %s", m.result.Winner.Name)) +
			MutedStyle.Render(fmt.Sprintf("  (%d tried, %s)", len(m.result.Trials), elapsed))
	case m.result.Cancelled:
		return warnStyle.Render("Test cancelled") +
			MutedStyle.Render(fmt.Sprintf("  (%d tried, %s)", len(m.result.Trials), elapsed))
	default:
		return ErrorStyle.Render("No profile worked") +
			MutedStyle.Render(fmt.Sprintf("  (%d tried, %s)", len(m.result.Trials), elapsed))
	}
}

func renderEntries(entries []autoconnect.Entry, limit int) string {
	if len(entries) == 0 {
		return MutedStyle.Render("  Waiting for the first trial...") + "\n"
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	var b strings.Builder
	for _, e := range entries {
		line := fmt.Sprintf("%s %s %s %s",
			statusIndicator(e.Status),
			MutedStyle.Render(e.Time.Format("15:04:05")),
			sourceLabel(e),
			statusStyle(e.Status).Render(e.Message))
		if e.Duration > 0 {
			line += MutedStyle.Render(fmt.Sprintf(" (%s)", e.Duration.Round(100*time.Millisecond)))
		}
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func sourceLabel(e autoconnect.Entry) string {
	if e.System() {
		return HeaderStyle.Render(e.Source + ":")
	}
	return e.Source + ":"
}

func renderHelp(m model) string {
	if m.done {
		return HelpStyle.Render("enter/q: exit")
	}
	return HelpStyle.Render("q/esc/ctrl+c: cancel")
}
