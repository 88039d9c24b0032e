package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// WorkspaceStore abstracts DB queries for testability.
type WorkspaceStore interface {
	LookupByPrefix(ctx context.Context, prefix string) (*workspaceRow, error)
}

type workspaceRow struct {
	WorkspaceID string
	APIKeyHash  string
	RootPath    string
	Mode        string
}

// sqlWorkspaceStore is the real implementation using *sql.DB.
type sqlWorkspaceStore struct {
	db *sql.DB
}

func (s *sqlWorkspaceStore) LookupByPrefix(ctx context.Context, prefix string) (*workspaceRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, api_key_hash, root_path, mode
		FROM intent_guard_workspaces
		WHERE api_key_prefix = $1 AND revoked_at IS NULL
	`, prefix)

	var r workspaceRow
	if err := row.Scan(&r.WorkspaceID, &r.APIKeyHash, &r.RootPath, &r.Mode); err != nil {
		return nil, err
	}
	return &r, nil
}

// PostgresAuthenticator validates API keys against the workspaces table.
// There is no fail-open path: without a resolved workspace root the gate
// has nothing to evaluate against.
type PostgresAuthenticator struct {
	store  WorkspaceStore
	cache  *keyCache
	logger *zap.Logger
}

// PostgresAuthConfig configures the PostgresAuthenticator.
type PostgresAuthConfig struct {
	DB       *sql.DB
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// NewPostgresAuthenticator creates a new PostgresAuthenticator.
func NewPostgresAuthenticator(cfg PostgresAuthConfig) *PostgresAuthenticator {
	return NewPostgresAuthenticatorWithStore(&sqlWorkspaceStore{db: cfg.DB}, cfg.CacheTTL, cfg.Logger)
}

// NewPostgresAuthenticatorWithStore creates an authenticator with a custom store (for testing).
func NewPostgresAuthenticatorWithStore(store WorkspaceStore, cacheTTL time.Duration, logger *zap.Logger) *PostgresAuthenticator {
	if cacheTTL == 0 {
		cacheTTL = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresAuthenticator{
		store:  store,
		cache:  newKeyCache(cacheTTL),
		logger: logger,
	}
}

func (a *PostgresAuthenticator) Authenticate(ctx context.Context) (*WorkspaceContext, error) {
	token, err := ExtractBearerToken(ctx)
	if err != nil {
		return nil, err
	}

	cached, state := a.cache.get(token)
	switch state {
	case cacheRefresh:
		go a.refreshInBackground(token)
		return cached, nil
	case cacheFresh, cacheStale:
		return cached, nil
	}

	workspace, err := a.authenticateFromDB(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("Authenticate: %w", err)
	}

	a.cache.put(token, workspace)
	return workspace, nil
}

func (a *PostgresAuthenticator) authenticateFromDB(ctx context.Context, token string) (*WorkspaceContext, error) {
	if len(token) < 12 {
		return nil, ErrUnauthenticated
	}
	prefix := token[:12]

	row, err := a.store.LookupByPrefix(ctx, prefix)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("authenticateFromDB: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.APIKeyHash), []byte(token)); err != nil {
		return nil, ErrUnauthenticated
	}

	mode := row.Mode
	if mode != ModeShadow {
		mode = ModeEnforce
	}
	return &WorkspaceContext{
		WorkspaceID: row.WorkspaceID,
		Root:        row.RootPath,
		Mode:        mode,
	}, nil
}

func (a *PostgresAuthenticator) refreshInBackground(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	workspace, err := a.authenticateFromDB(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			a.cache.drop(token)
		} else {
			a.cache.release(token)
		}
		a.logger.Warn("background auth refresh failed", zap.Error(err))
		return
	}
	a.cache.put(token, workspace)
}
