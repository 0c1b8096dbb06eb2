// Package colors assigns each stage a stable display color and blends
// colors for partially opaque matrix cells.
package colors

import (
	"github.com/Mr-Dark-debug/freightview/internal/api"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Palette is the ordered set of stage colors. Stages beyond its length
// wrap around.
var Palette = []string{
	"#58a6ff", // blue
	"#3fb950", // green
	"#bc8cff", // purple
	"#d29922", // yellow
	"#76e3ea", // cyan
	"#f778ba", // pink
	"#ff7b72", // salmon
	"#a5d6ff", // pale blue
	"#7ee787", // mint
	"#e3b341", // amber
}

// Assignment maps stage uid to color.
type Assignment map[string]string

// Assign gives each stage a palette color in list order. A uid seen
// earlier keeps its first color.
func Assign(stages []api.Stage) Assignment {
	out := make(Assignment, len(stages))
	i := 0
	for _, s := range stages {
		uid := s.Metadata.UID
		if _, ok := out[uid]; ok {
			continue
		}
		out[uid] = Palette[i%len(Palette)]
		i++
	}
	return out
}

// Of returns the color for uid, or the first palette entry when unknown.
func (a Assignment) Of(uid string) string {
	if c, ok := a[uid]; ok {
		return c
	}
	return Palette[0]
}

// Blend mixes fg over bg at the given opacity and returns a hex color.
// Opacity is clamped to [0, 1]; unparsable colors return fg unchanged.
func Blend(fg, bg string, opacity float64) string {
	if opacity >= 1 {
		return fg
	}
	if opacity < 0 {
		opacity = 0
	}
	f, err := colorful.Hex(fg)
	if err != nil {
		return fg
	}
	b, err := colorful.Hex(bg)
	if err != nil {
		return fg
	}
	return b.BlendRgb(f, opacity).Clamped().Hex()
}
