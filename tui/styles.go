package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/yllada/ssht-client/autoconnect"
)

// Brand palette with light/dark variants.
var (
	colorBrand   = lipgloss.AdaptiveColor{Light: "#6205D5", Dark: "#8B5CF6"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "28", Dark: "42"}
	colorWarn    = lipgloss.AdaptiveColor{Light: "136", Dark: "214"}
	colorError   = lipgloss.AdaptiveColor{Light: "160", Dark: "196"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "245", Dark: "244"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "25", Dark: "75"}
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "255", Dark: "255"}).
			Background(colorBrand).
			Padding(0, 1)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBrand)

	MutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	HelpStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	ErrorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)

	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarn)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	activeStyle  = lipgloss.NewStyle().Foreground(colorAccent)
)

func statusStyle(s autoconnect.Status) lipgloss.Style {
	switch s {
	case autoconnect.StatusSuccess:
		return successStyle
	case autoconnect.StatusFailed:
		return errorStyle
	case autoconnect.StatusTimeout, autoconnect.StatusCancelled:
		return warnStyle
	case autoconnect.StatusConnecting, autoconnect.StatusTesting:
		return activeStyle
	default:
		return MutedStyle
	}
}

func statusIndicator(s autoconnect.Status) string {
	switch s {
	case autoconnect.StatusSuccess:
		return successStyle.Render("●")
	case autoconnect.StatusFailed:
		return errorStyle.Render("✕")
	case autoconnect.StatusTimeout:
		return warnStyle.Render("◷")
	case autoconnect.StatusCancelled:
		return warnStyle.Render("○")
	default:
		return activeStyle.Render("◐")
	}
}
