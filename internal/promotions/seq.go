package promotions

// The sequence helpers below never modify their input. Each returns a
// freshly allocated slice, so a list handed to a renderer stays valid
// after later events are applied.

// Append returns s with v added at the end.
func Append[T any](s []T, v T) []T {
	out := make([]T, 0, len(s)+1)
	out = append(out, s...)
	return append(out, v)
}

// InsertAt returns s with v inserted at index i. i is clamped to [0, len(s)].
func InsertAt[T any](s []T, i int, v T) []T {
	if i < 0 {
		i = 0
	}
	if i > len(s) {
		i = len(s)
	}
	out := make([]T, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, v)
	return append(out, s[i:]...)
}

// RemoveAt returns s without the element at index i. An out-of-range index
// returns an unchanged copy.
func RemoveAt[T any](s []T, i int) []T {
	if i < 0 || i >= len(s) {
		return append([]T(nil), s...)
	}
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}

// ReplaceAt returns s with the element at index i set to v. An out-of-range
// index returns an unchanged copy.
func ReplaceAt[T any](s []T, i int, v T) []T {
	out := append([]T(nil), s...)
	if i >= 0 && i < len(out) {
		out[i] = v
	}
	return out
}
