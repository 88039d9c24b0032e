package trace

import (
	"strings"

	"github.com/triage-ai/palisade/services/intent_guard/internal/contenthash"
)

// AddedBlock concatenates the added lines of every hunk in a unified diff,
// without their leading "+". File headers and anything before the first
// hunk header are ignored. The result ends with a newline; ok is false when
// the diff adds nothing.
func AddedBlock(diff string) (text string, ok bool) {
	var added []string
	inHunk := false
	for _, line := range strings.Split(contenthash.Normalize(diff), "\n") {
		if strings.HasPrefix(line, "@@") {
			inHunk = true
			continue
		}
		if !inHunk {
			continue
		}
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}
		if strings.HasPrefix(line, "+") {
			added = append(added, line[1:])
		}
	}
	if len(added) == 0 {
		return "", false
	}
	return strings.Join(added, "\n") + "\n", true
}
