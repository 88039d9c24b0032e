package auth

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/metadata"
)

// KeyPrefix marks intent guard API keys.
const KeyPrefix = "igk_"

// Workspace modes.
const (
	ModeEnforce = "enforce"
	// ModeShadow evaluates and records every call but never blocks it.
	ModeShadow = "shadow"
)

// Authenticator validates incoming requests and returns a WorkspaceContext.
type Authenticator interface {
	Authenticate(ctx context.Context) (*WorkspaceContext, error)
}

// WorkspaceContext holds the authenticated workspace's identity and the
// filesystem root the gate operates on.
type WorkspaceContext struct {
	WorkspaceID string
	Root        string
	Mode        string // "enforce" or "shadow"
}

// Shadow reports whether decisions are advisory for this workspace.
func (w *WorkspaceContext) Shadow() bool {
	return w.Mode == ModeShadow
}

// ErrUnauthenticated is returned when no valid credentials are found.
var ErrUnauthenticated = errors.New("unauthenticated")

// ExtractBearerToken extracts an igk_ API key from gRPC metadata.
func ExtractBearerToken(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", ErrUnauthenticated
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return "", ErrUnauthenticated
	}
	token := values[0]
	token = strings.TrimPrefix(token, "Bearer ")
	token = strings.TrimPrefix(token, "bearer ")
	if !strings.HasPrefix(token, KeyPrefix) {
		return "", ErrUnauthenticated
	}
	return token, nil
}
