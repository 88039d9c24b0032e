// Package policy holds the pure decision helpers used by the gate:
// scope glob matching and shell command risk classification.
package policy

import (
	"path"
	"regexp"
	"strings"
)

// ToPosix converts backslash separators to forward slashes.
func ToPosix(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// trimLeadingDot strips a single leading "./" or "/".
func trimLeadingDot(p string) string {
	if strings.HasPrefix(p, "./") {
		return p[2:]
	}
	return strings.TrimPrefix(p, "/")
}

// globToRegexp compiles a scope glob into an anchored expression.
//
//   - "**" matches any run of characters, separators included
//   - "*" matches any run of characters except "/"
//   - "?" matches exactly one character except "/"
//
// Everything else is matched literally.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		switch ch := pattern[i]; ch {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// IsGlobMatch reports whether candidate matches pattern as a whole string.
// An empty pattern never matches.
func IsGlobMatch(pattern, candidate string) bool {
	pattern = trimLeadingDot(strings.TrimSpace(ToPosix(pattern)))
	candidate = trimLeadingDot(ToPosix(candidate))
	if pattern == "" {
		return false
	}
	re, err := globToRegexp(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(candidate)
}

// IsPathWithinScope reports whether relPath matches at least one of the
// scope globs. The candidate is cleaned first so "src/../src/a.ts" and
// "./src/a.ts" are judged as "src/a.ts".
func IsPathWithinScope(relPath string, scopeGlobs []string) bool {
	candidate := path.Clean(ToPosix(relPath))
	for _, glob := range scopeGlobs {
		if IsGlobMatch(glob, candidate) {
			return true
		}
	}
	return false
}
