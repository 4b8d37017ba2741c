package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func renderStatusBar(left, hints string, width int) string {
	right := " " + hints + " "

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + fmt.Sprintf("%*s", gap, "") + right

	return statusBarStyle.Width(width).Render(bar)
}

func renderTabs(active mode, width int) string {
	sep := tabSeparatorStyle.Render(" · ")
	var parts []string
	for _, m := range []mode{modeTrend, modeVideo} {
		style := tabInactiveStyle
		if m == active {
			style = tabActiveStyle
		}
		parts = append(parts, style.Render(m.String()))
	}
	row := parts[0] + sep + parts[1]
	return lipgloss.NewStyle().Width(width).PaddingLeft(1).Render(row)
}
