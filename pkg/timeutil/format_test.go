package timeutil

import (
	"testing"
	"time"
)

func TestFormatPromotionDate(t *testing.T) {
	ts := time.Date(2024, time.March, 2, 14, 5, 9, 0, time.UTC)
	if got, want := FormatPromotionDate(ts), "Mar 2nd 2024 14:05:09"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if got := FormatPromotionDate(time.Time{}); got != "" {
		t.Errorf("expected empty string for zero time, got %q", got)
	}
}

func TestOrdinal(t *testing.T) {
	tests := map[int]string{
		1: "1st", 2: "2nd", 3: "3rd", 4: "4th",
		11: "11th", 12: "12th", 13: "13th",
		21: "21st", 22: "22nd", 23: "23rd", 31: "31st",
	}
	for n, want := range tests {
		if got := Ordinal(n); got != want {
			t.Errorf("Ordinal(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{450 * time.Millisecond, "450ms"},
		{1200 * time.Millisecond, "1.2s"},
		{135300 * time.Millisecond, "2m 15.3s"},
	}
	for _, tc := range tests {
		if got := FormatDuration(tc.d); got != tc.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{0, "just now"},
		{5 * time.Second, "5s ago"},
		{2 * time.Minute, "2m ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
	}
	for _, tc := range tests {
		if got := RelativeTime(now.Add(-tc.ago), now); got != tc.want {
			t.Errorf("RelativeTime(-%v) = %q, want %q", tc.ago, got, tc.want)
		}
	}
}
