// Package promotions keeps a stage's promotion list in step with the
// server's watch stream and derives what the promotions table shows.
package promotions

import (
	"sort"

	"github.com/Mr-Dark-debug/freightview/internal/api"
)

// IndexOf returns the position of the promotion named name, or -1.
func IndexOf(list []api.Promotion, name string) int {
	for i := range list {
		if list[i].Metadata.Name == name {
			return i
		}
	}
	return -1
}

// Apply folds one watch event into list and returns the resulting list.
// A delete removes the matching entry; any other event replaces the
// matching entry in place or appends when there is none. Events without a
// promotion, and deletes with no match, return list unchanged.
func Apply(list []api.Promotion, ev api.PromotionEvent) []api.Promotion {
	if ev.Promotion == nil {
		return list
	}
	i := IndexOf(list, ev.Promotion.Metadata.Name)

	if ev.Type == api.EventDeleted {
		if i == -1 {
			return list
		}
		return RemoveAt(list, i)
	}

	if i == -1 {
		return Append(list, *ev.Promotion)
	}
	return ReplaceAt(list, i, *ev.Promotion)
}

// Fold applies events to list in order.
func Fold(list []api.Promotion, events ...api.PromotionEvent) []api.Promotion {
	for _, ev := range events {
		list = Apply(list, ev)
	}
	return list
}

// SortedByCreation returns a copy of list, newest first. Equal timestamps
// keep their list order.
func SortedByCreation(list []api.Promotion) []api.Promotion {
	out := append([]api.Promotion(nil), list...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Metadata.CreationTimestamp.After(out[j].Metadata.CreationTimestamp)
	})
	return out
}
