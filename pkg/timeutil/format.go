// Package timeutil provides time formatting utilities for freightview.
//
// Server timestamps arrive as RFC 3339 values and are shown in local time.
package timeutil

import (
	"fmt"
	"time"
)

// FormatPromotionDate formats a promotion creation time for the table.
// Format: "Jan 2nd 2006 15:04:05". The zero time formats as "".
func FormatPromotionDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s %s %s", t.Format("Jan"), Ordinal(t.Day()), t.Format("2006 15:04:05"))
}

// Ordinal returns n with its English ordinal suffix: 1st, 2nd, 3rd, 11th.
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// FormatDuration formats a duration for status messages.
// Examples: "450ms", "1.2s", "2m 15.3s"
func FormatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := float64(ms) / 1000.0
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	minutes := int(seconds / 60)
	remaining := seconds - float64(minutes*60)
	return fmt.Sprintf("%dm %.1fs", minutes, remaining)
}

// RelativeTime returns a human-readable relative time string.
// Examples: "just now", "5s ago", "2m ago", "1h ago"
func RelativeTime(t, now time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Second:
		return "just now"
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		days := int(diff.Hours() / 24)
		return fmt.Sprintf("%dd ago", days)
	}
}
