package tui

import "github.com/charmbracelet/lipgloss"

// ────────────────────────────────────────────────────────────
// Color Palette: GitHub Dark
// ────────────────────────────────────────────────────────────
//
// All chrome colors are defined here. Stage colors come from the
// colors package so the matrix and legend agree.

var (
	colorBgSurface = lipgloss.Color("#1c2128")

	// Text
	colorText      = lipgloss.Color("#e6edf3")
	colorTextDim   = lipgloss.Color("#8b949e")
	colorTextMuted = lipgloss.Color("#484f58")

	// Accents
	colorBlue   = lipgloss.Color("#58a6ff")
	colorGreen  = lipgloss.Color("#3fb950")
	colorRed    = lipgloss.Color("#f85149")
	colorYellow = lipgloss.Color("#d29922")

	// Structural
	colorDivider   = lipgloss.Color("#30363d")
	colorHighlight = lipgloss.Color("#1f6feb")
)

// Matrix cells: blend target, empty fill, frame glyphs.
const (
	cellBackground = "#0d1117"
	cellEmpty      = "#52525b"
	cellFrame      = "#b3b3b3"
)

// ────────────────────────────────────────────────────────────
// Component Styles
// ────────────────────────────────────────────────────────────

// Header bar
var (
	headerBarStyle = lipgloss.NewStyle().
			Background(colorBgSurface).
			Foreground(colorText).
			Padding(0, 1)

	headerBrandStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorBlue)

	headerSepStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	headerMetaStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)
)

// Panel chrome
var (
	panelStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.Border{
			Top:    "─",
			Bottom: "",
			Left:   "",
			Right:  "",
		}).
		BorderForeground(colorDivider)

	panelTitleStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true)
)

// Chart matrix
var (
	toggleOnStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	toggleOffStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			Bold(true)

	registryStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorBgSurface).
			Padding(0, 1)

	versionLabelStyle = lipgloss.NewStyle().
				Foreground(colorTextDim).
				Align(lipgloss.Right)

	versionSelectedStyle = lipgloss.NewStyle().
				Foreground(colorText).
				Bold(true).
				Align(lipgloss.Right)

	stageHeadStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)
)

// Promotions table
var (
	tableHeaderStyle = lipgloss.NewStyle().
				Foreground(colorTextDim).
				Bold(true)

	rowStyle = lipgloss.NewStyle().
			Foreground(colorText)

	rowSelectedStyle = lipgloss.NewStyle().
				Background(colorHighlight).
				Foreground(colorText).
				Bold(true)

	iconSucceededStyle = lipgloss.NewStyle().
				Foreground(colorGreen)

	iconErroredStyle = lipgloss.NewStyle().
				Foreground(colorRed)

	iconUnknownStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#aaaaaa"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(colorBlue)

	detailLabelStyle = lipgloss.NewStyle().
				Foreground(colorBlue)

	detailValueStyle = lipgloss.NewStyle().
				Foreground(colorText)

	pagerStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)
)

// Banners
var (
	bannerErrorStyle = lipgloss.NewStyle().
				Foreground(colorRed).
				Bold(true)

	bannerWarnStyle = lipgloss.NewStyle().
			Foreground(colorYellow)
)

// Footer / status bar
var (
	statusStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorBgSurface).
			Padding(0, 1)

	hintKeyStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	hintDescStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	emptyStateStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			Padding(2, 4)
)
