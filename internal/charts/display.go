package charts

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Visible applies the show-history filter to a cell. With history hidden
// only current cells are shown. With history shown every defined cell is,
// and current cells gain a border. The input style is not modified.
func Visible(s Style, defined, showHistory bool) (Style, bool) {
	if !defined {
		return Style{}, false
	}
	if !showHistory {
		if !s.Current() {
			return Style{}, false
		}
		return s, true
	}
	if s.Current() {
		s.Border = true
	}
	return s, true
}

// SortVersionsDesc returns versions ordered highest first using numeric
// collation, so "v10" precedes "v9".
func SortVersionsDesc(versions []string) []string {
	out := append([]string(nil), versions...)
	c := collate.New(language.Und, collate.Numeric)
	sort.SliceStable(out, func(i, j int) bool {
		return c.CompareString(out[i], out[j]) > 0
	})
	return out
}
