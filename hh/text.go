package hh

import "strings"

// CleanText trims surrounding whitespace, including non-breaking spaces.
func CleanText(s string) string {
	return strings.TrimSpace(s)
}

// CleanPlace cuts a row location like "Москва, Охотный Ряд, и еще 1" down to
// the city before the first comma.
func CleanPlace(s string) string {
	if i := strings.Index(s, ","); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
