package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ────────────────────────────────────────────────────────────
// String helpers
// ────────────────────────────────────────────────────────────

// truncate cuts a string to maxLen and appends "..." if truncated.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// padRight pads s with spaces to width display cells.
func padRight(s string, width int) string {
	gap := width - lipgloss.Width(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}

// clamp restricts val to [lo, hi].
func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// maxInt returns the larger of a and b.
func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// scrollWindow returns the first visible index so that cursor stays
// within a window of size rows over total items.
func scrollWindow(cursor, total, rows int) int {
	if rows <= 0 || total <= rows {
		return 0
	}
	start := cursor - rows/2
	return clamp(start, 0, total-rows)
}
