package tui

import (
	"botconsole/clients/dashboardapi"
	"botconsole/internal/app"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorAccent  = lipgloss.Color("36")
	colorMuted   = lipgloss.Color("240")
	colorSuccess = lipgloss.Color("46")
	colorInfo    = lipgloss.Color("39")
	colorWarning = lipgloss.Color("214")
	colorError   = lipgloss.Color("196")
	colorTrade   = lipgloss.Color("135")

	tabStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Bold(true)

	activeTabStyle = tabStyle.
			Foreground(colorAccent).
			Background(lipgloss.Color("235"))

	inactiveTabStyle = tabStyle.
				Foreground(colorMuted)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230"))

	contentStyle = lipgloss.NewStyle().
			Padding(1, 2)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("230")).
			Padding(0, 1)

	dangerBannerStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("230")).
				Background(colorError).
				Padding(0, 1)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(1, 2)

	dangerModalStyle = modalStyle.
				BorderForeground(colorError)

	highlightStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236"))

	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	keyStyle   = lipgloss.NewStyle().Foreground(colorInfo).Bold(true)
)

func hotKey(k, desc string) string {
	return keyStyle.Render("["+k+"]") + " " + desc
}

func levelStyle(level string) lipgloss.Style {
	switch level {
	case dashboardapi.LevelSuccess:
		return lipgloss.NewStyle().Foreground(colorSuccess)
	case dashboardapi.LevelWarning:
		return lipgloss.NewStyle().Foreground(colorWarning)
	case dashboardapi.LevelError:
		return lipgloss.NewStyle().Foreground(colorError)
	case dashboardapi.LevelTrade:
		return lipgloss.NewStyle().Foreground(colorTrade)
	default:
		return lipgloss.NewStyle().Foreground(colorInfo)
	}
}

func toastStyle(level app.ToastLevel) lipgloss.Style {
	switch level {
	case app.ToastSuccess:
		return lipgloss.NewStyle().Foreground(colorSuccess)
	case app.ToastWarning:
		return lipgloss.NewStyle().Foreground(colorWarning)
	case app.ToastError:
		return lipgloss.NewStyle().Foreground(colorError)
	default:
		return lipgloss.NewStyle().Foreground(colorInfo)
	}
}

func modeStyle(m dashboardapi.TradingMode) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("16"))
	switch m {
	case dashboardapi.ModeProduction:
		return s.Background(colorError)
	case dashboardapi.ModeSandbox:
		return s.Background(colorWarning)
	default:
		return s.Background(colorMuted)
	}
}

func indicatorStyle(state app.ConnState) lipgloss.Style {
	switch state {
	case app.ConnConnected:
		return lipgloss.NewStyle().Foreground(colorSuccess)
	case app.ConnDisconnected:
		return lipgloss.NewStyle().Foreground(colorError)
	default:
		return lipgloss.NewStyle().Foreground(colorWarning)
	}
}
