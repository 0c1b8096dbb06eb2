package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

// renderHeader produces the top bar:
//
//	FREIGHTVIEW  |  Project demo  |  Stage dev
func renderHeader(m *Model) string {
	sep := headerSepStyle.Render(" │ ")
	parts := []string{
		headerBrandStyle.Render("FREIGHTVIEW"),
		sep,
		headerMetaStyle.Render("Project " + m.project),
		sep,
	}

	if m.screen == ScreenStage {
		parts = append(parts, headerMetaStyle.Render("Stage "+m.stage.session.Key().Stage))
	} else {
		parts = append(parts, headerMetaStyle.Render("Charts"))
	}

	return headerBarStyle.Width(m.width).Render(strings.Join(parts, ""))
}

// renderFooter produces the bottom status bar with keyboard hints.
func renderFooter(m *Model) string {
	var left, right string
	if m.statusMsg != "" {
		left = statusStyle.Render(m.statusMsg)
	}

	if m.screen == ScreenStage {
		right = renderHints([]key.Binding{keys.Up, pageKeys.Pages, keys.Refresh, keys.Back, keys.Quit})
	} else {
		right = renderHints([]key.Binding{keys.Up, keys.Left, keys.NextRegistry, keys.History, keys.Open, keys.Refresh, keys.Quit})
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return lipgloss.NewStyle().
		Background(colorBgSurface).
		Width(m.width).
		Render(bar)
}

func renderHints(bindings []key.Binding) string {
	var parts []string
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts,
			hintKeyStyle.Render(h.Key)+" "+hintDescStyle.Render(h.Desc))
	}
	return strings.Join(parts, hintDescStyle.Render("  "))
}
