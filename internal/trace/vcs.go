package trace

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"
)

// RevisionTimeout bounds the git lookup.
const RevisionTimeout = 2 * time.Second

// RevisionFunc resolves the current VCS revision of a workspace. ok is
// false when none can be resolved.
type RevisionFunc func(ctx context.Context, root string) (rev string, ok bool)

// GitRevision returns `git rev-parse HEAD` for root.
func GitRevision(ctx context.Context, root string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, RevisionTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	cmd.Dir = root
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", false
	}
	rev := strings.TrimSpace(stdout.String())
	return rev, rev != ""
}
