// Package tui implements the freightview terminal dashboard.
//
// Component architecture:
//
//	model.go       root model, message routing, Init/Update
//	theme.go       centralized color + style definitions
//	header.go      top bar and footer with keyboard hints
//	charts.go      chart-version matrix and registry selector
//	promotions.go  live promotions table of one stage
//	backend.go     the list/watch source the screens read from
//	keys.go        key bindings
//	helpers.go     truncation, padding, scrolling
package tui
