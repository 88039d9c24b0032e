package locking

import (
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/triage-ai/palisade/services/intent_guard/internal/contenthash"
	"github.com/triage-ai/palisade/services/intent_guard/internal/policy"
)

var (
	listMarkerPrefix = regexp.MustCompile(`^[^\w./-]+\s+`)
	searchHeader     = regexp.MustCompile(`(?m)^#\s+(.+?)\s*$`)
	resultFilePath   = regexp.MustCompile(`^File path:\s*(.+?)\s*$`)
	driveLetterPath  = regexp.MustCompile(`^[A-Za-z]:/`)
)

// ListFilesPaths extracts file entries from list_files output. Directory
// entries, the empty-listing sentinel and truncation notices are skipped.
func ListFilesPaths(output string) []string {
	var entries []string
	for _, line := range splitLines(output) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "(") && strings.Contains(line, "File list truncated") {
			continue
		}
		if line == "No files found." || line == "No files found" {
			continue
		}
		cleaned := strings.TrimSpace(listMarkerPrefix.ReplaceAllString(line, ""))
		if cleaned == "" || strings.HasSuffix(cleaned, "/") {
			continue
		}
		entries = append(entries, cleaned)
	}
	return dedupe(entries)
}

// SearchFilesPaths extracts the "# <path>" section headers of search_files
// output.
func SearchFilesPaths(output string) []string {
	var paths []string
	for _, m := range searchHeader.FindAllStringSubmatch(contenthash.Normalize(output), -1) {
		if p := strings.TrimSpace(m[1]); p != "" {
			paths = append(paths, p)
		}
	}
	return dedupe(paths)
}

// CodebaseSearchPaths extracts "File path: <p>" lines that follow a
// "Results:" line. Output without a results block yields nothing.
func CodebaseSearchPaths(output string) []string {
	var paths []string
	inResults := false
	for _, line := range splitLines(output) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "Results:" {
			inResults = true
			continue
		}
		if !inResults {
			continue
		}
		if m := resultFilePath.FindStringSubmatch(trimmed); m != nil && m[1] != "" {
			paths = append(paths, m[1])
		}
	}
	return dedupe(paths)
}

// ResourceRelPath resolves a file:// URI to a workspace-relative slash
// path. Other schemes, undecodable URIs and paths outside root resolve to
// false.
func ResourceRelPath(root, uri string) (string, bool) {
	const scheme = "file://"
	if !strings.HasPrefix(uri, scheme) {
		return "", false
	}
	decoded, err := url.PathUnescape(strings.TrimPrefix(uri, scheme))
	if err != nil {
		return "", false
	}
	fsPath := decoded
	if strings.HasPrefix(decoded, "/") && driveLetterPath.MatchString(decoded[1:]) {
		fsPath = decoded[1:]
	}

	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(filepath.FromSlash(fsPath)))
	if err != nil {
		return "", false
	}
	if strings.HasPrefix(rel, "..") || (!filepath.IsAbs(rel) && strings.Contains(rel, ":")) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// JoinListingPath places a listing entry under the listed directory.
func JoinListingPath(dir, entry string) string {
	dir = strings.TrimSpace(dir)
	joined := entry
	if dir != "" && dir != "." {
		joined = path.Join(policy.ToPosix(dir), entry)
	}
	return path.Clean(strings.TrimPrefix(joined, "./"))
}

func splitLines(s string) []string {
	return strings.Split(contenthash.Normalize(s), "\n")
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// CleanRelPath normalizes a tool-supplied relative path into the form used
// for snapshot keys, so "./src/a.ts" and "src/a.ts" share a snapshot.
func CleanRelPath(p string) string {
	return path.Clean(policy.ToPosix(strings.TrimSpace(p)))
}
