package registry

import "strings"

// Args is the untyped argument bag of a tool call.
type Args map[string]any

// String returns the argument as a string when it is one.
func (a Args) String(key string) (string, bool) {
	if a == nil {
		return "", false
	}
	s, ok := a[key].(string)
	return s, ok
}

// Trimmed returns the trimmed string argument, "" when absent or not a string.
func (a Args) Trimmed(key string) string {
	s, _ := a.String(key)
	return strings.TrimSpace(s)
}
