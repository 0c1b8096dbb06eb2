// Package charts builds the chart-version matrix shown on the project
// screen: for every registry and version, the style each stage paints in
// its cell.
package charts

import (
	"github.com/Mr-Dark-debug/freightview/internal/api"
)

// Style is how one stage's cell is painted for one chart version.
type Style struct {
	// Opacity is 1 for current freight and 1 - i/len(history) for the
	// i-th history entry.
	Opacity float64
	// Color is the stage's assigned color.
	Color string
	// Border marks a current cell while history is shown.
	Border bool
}

// Current reports whether s comes from the stage's current freight.
func (s Style) Current() bool {
	return s.Opacity == 1
}

// StageStyles maps stage name to its style for one chart version.
type StageStyles map[string]Style

// ColorFunc returns the color assigned to a stage uid.
type ColorFunc func(uid string) string

// Index maps registry URL to version to per-stage style. Registries and
// versions keep first-seen order.
type Index struct {
	registries *OrderedMap[string, *OrderedMap[string, StageStyles]]
}

// Build derives an Index from stages. Stages are walked in order; each
// stage's history is applied before its current freight, so current
// freight wins when both reference the same chart version.
func Build(stages []api.Stage, color ColorFunc) *Index {
	idx := &Index{registries: NewOrderedMap[string, *OrderedMap[string, StageStyles]]()}
	if color == nil {
		color = func(string) string { return "" }
	}

	for _, stage := range stages {
		name := stage.Metadata.Name
		c := color(stage.Metadata.UID)

		history := stage.Status.History
		n := float64(len(history))
		for i, freight := range history {
			for _, chart := range freight.Charts {
				idx.slot(chart)[name] = Style{
					Opacity: 1 - float64(i)/n,
					Color:   c,
				}
			}
		}

		if cur := stage.Status.CurrentFreight; cur != nil {
			for _, chart := range cur.Charts {
				idx.slot(chart)[name] = Style{Opacity: 1, Color: c}
			}
		}
	}
	return idx
}

func (idx *Index) slot(chart api.Chart) StageStyles {
	versions := idx.registries.GetOrCreate(chart.RegistryURL, NewOrderedMap[string, StageStyles])
	return versions.GetOrCreate(chart.Version, func() StageStyles { return StageStyles{} })
}

// Empty reports whether no stage references any chart.
func (idx *Index) Empty() bool {
	return idx == nil || idx.registries.Len() == 0
}

// Registries returns registry URLs in first-seen order.
func (idx *Index) Registries() []string {
	if idx == nil {
		return nil
	}
	return idx.registries.Keys()
}

// FirstRegistry returns the first registry seen while building.
func (idx *Index) FirstRegistry() (string, bool) {
	if idx == nil {
		return "", false
	}
	return idx.registries.First()
}

// HasRegistry reports whether registry is present.
func (idx *Index) HasRegistry(registry string) bool {
	if idx == nil {
		return false
	}
	_, ok := idx.registries.Get(registry)
	return ok
}

// Versions returns the versions of registry, highest first.
func (idx *Index) Versions(registry string) []string {
	if idx == nil {
		return nil
	}
	versions, ok := idx.registries.Get(registry)
	if !ok {
		return nil
	}
	return SortVersionsDesc(versions.Keys())
}

// Styles returns the per-stage styles for one registry version.
func (idx *Index) Styles(registry, version string) StageStyles {
	if idx == nil {
		return nil
	}
	versions, ok := idx.registries.Get(registry)
	if !ok {
		return nil
	}
	styles, _ := versions.Get(version)
	return styles
}

// Lookup returns the style a stage has for a registry version.
func (idx *Index) Lookup(registry, version, stage string) (Style, bool) {
	s, ok := idx.Styles(registry, version)[stage]
	return s, ok
}
