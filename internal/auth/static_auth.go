package auth

import (
	"context"
)

// StaticAuthenticator is a single-workspace authenticator for local use.
// It accepts any igk_ key and serves one fixed root.
type StaticAuthenticator struct {
	root string
}

func NewStaticAuthenticator(root string) *StaticAuthenticator {
	return &StaticAuthenticator{root: root}
}

func (a *StaticAuthenticator) Authenticate(ctx context.Context) (*WorkspaceContext, error) {
	token, err := ExtractBearerToken(ctx)
	if err != nil {
		return nil, err
	}
	id := token
	if len(id) > 8 {
		id = id[:8]
	}
	return &WorkspaceContext{
		WorkspaceID: "static-" + id,
		Root:        a.root,
		Mode:        ModeEnforce,
	}, nil
}
