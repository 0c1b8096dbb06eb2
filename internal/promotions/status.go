package promotions

import "github.com/Mr-Dark-debug/freightview/internal/api"

// StatusKind selects the icon drawn for a promotion.
type StatusKind int

const (
	StatusUnknown StatusKind = iota
	StatusSucceeded
	StatusErrored
	StatusInProgress
)

// Status is the icon and hover text for one promotion row.
type Status struct {
	Kind StatusKind
	// Title is the tooltip or popover heading.
	Title string
	// Detail is popover content; only set for errored promotions.
	Detail string
}

// Animated reports whether the icon spins.
func (s Status) Animated() bool {
	return s.Kind == StatusInProgress
}

// StatusOf maps a promotion's phase to its table status.
func StatusOf(p api.Promotion) Status {
	switch p.Status.Phase {
	case api.PhaseSucceeded:
		return Status{Kind: StatusSucceeded, Title: "Succeeded"}
	case api.PhaseErrored:
		return Status{Kind: StatusErrored, Title: "Errored", Detail: p.Status.Error}
	case api.PhasePending, api.PhaseRunning:
		return Status{Kind: StatusInProgress, Title: string(p.Status.Phase)}
	default:
		return Status{Kind: StatusUnknown, Title: "Unknown"}
	}
}

// shortFreightLen is the conventional short-hash length.
const shortFreightLen = 7

// ShortFreight returns the first seven characters of a freight id.
func ShortFreight(id string) string {
	r := []rune(id)
	if len(r) <= shortFreightLen {
		return id
	}
	return string(r[:shortFreightLen])
}
