package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc/metadata"
)

const testKey = "igk_abcdefgh12345678"

type stubWorkspaceStore struct {
	mu    sync.Mutex
	row   *workspaceRow
	err   error
	calls int
}

func (s *stubWorkspaceStore) LookupByPrefix(_ context.Context, _ string) (*workspaceRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.row, nil
}

func withToken(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))
}

func hashKey(t *testing.T, key string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(h)
}

func TestExtractBearerToken(t *testing.T) {
	if _, err := ExtractBearerToken(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated without metadata, got %v", err)
	}
	if _, err := ExtractBearerToken(withToken("tsk_other")); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated for foreign prefix, got %v", err)
	}
	got, err := ExtractBearerToken(withToken(testKey))
	if err != nil || got != testKey {
		t.Fatalf("got %q %v", got, err)
	}
}

func TestStaticAuthenticator(t *testing.T) {
	a := NewStaticAuthenticator("/srv/repo")
	ws, err := a.Authenticate(withToken(testKey))
	if err != nil {
		t.Fatal(err)
	}
	if ws.Root != "/srv/repo" || ws.Mode != ModeEnforce || ws.Shadow() {
		t.Fatalf("unexpected workspace %+v", ws)
	}
	if _, err := a.Authenticate(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestPostgresAuthenticator_ValidKeyIsCached(t *testing.T) {
	store := &stubWorkspaceStore{row: &workspaceRow{
		WorkspaceID: "ws-1",
		APIKeyHash:  hashKey(t, testKey),
		RootPath:    "/srv/ws-1",
		Mode:        "shadow",
	}}
	a := NewPostgresAuthenticatorWithStore(store, time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		ws, err := a.Authenticate(withToken(testKey))
		if err != nil {
			t.Fatal(err)
		}
		if ws.WorkspaceID != "ws-1" || ws.Root != "/srv/ws-1" || !ws.Shadow() {
			t.Fatalf("unexpected workspace %+v", ws)
		}
	}
	if store.calls != 1 {
		t.Fatalf("expected 1 DB call, got %d", store.calls)
	}
}

func TestPostgresAuthenticator_WrongKey(t *testing.T) {
	store := &stubWorkspaceStore{row: &workspaceRow{
		WorkspaceID: "ws-1",
		APIKeyHash:  hashKey(t, "igk_abcdefgh_different"),
		Mode:        "enforce",
	}}
	a := NewPostgresAuthenticatorWithStore(store, time.Minute, nil)
	if _, err := a.Authenticate(withToken(testKey)); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestPostgresAuthenticator_UnknownPrefix(t *testing.T) {
	a := NewPostgresAuthenticatorWithStore(&stubWorkspaceStore{err: sql.ErrNoRows}, time.Minute, nil)
	if _, err := a.Authenticate(withToken(testKey)); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestPostgresAuthenticator_DBErrorIsNotFailOpen(t *testing.T) {
	a := NewPostgresAuthenticatorWithStore(&stubWorkspaceStore{err: errors.New("connection refused")}, time.Minute, nil)
	ws, err := a.Authenticate(withToken(testKey))
	if err == nil || ws != nil {
		t.Fatalf("expected error, got %+v", ws)
	}
}

func TestKeyCache_StaleWhileRevalidate(t *testing.T) {
	c := newKeyCache(time.Second)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.put("k", &WorkspaceContext{WorkspaceID: "ws"})
	if ws, state := c.get("k"); state != cacheFresh || ws.WorkspaceID != "ws" {
		t.Fatalf("expected fresh hit, got %v %+v", state, ws)
	}

	now = now.Add(1500 * time.Millisecond)
	if ws, state := c.get("k"); state != cacheRefresh || ws.WorkspaceID != "ws" {
		t.Fatalf("expected stale hit owning the refresh, got %v %+v", state, ws)
	}
	if _, state := c.get("k"); state != cacheStale {
		t.Fatalf("only one caller should refresh, got %v", state)
	}
	c.release("k")
	if _, state := c.get("k"); state != cacheRefresh {
		t.Fatalf("released entry should be refreshable again, got %v", state)
	}

	c.drop("k")
	if _, state := c.get("k"); state != cacheMiss {
		t.Fatalf("expected miss after drop, got %v", state)
	}
}

func TestKeyCache_ExpiresAfterTwoTTL(t *testing.T) {
	c := newKeyCache(time.Second)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.put("k", &WorkspaceContext{WorkspaceID: "ws"})
	now = now.Add(2 * time.Second)
	if ws, state := c.get("k"); state != cacheMiss || ws != nil {
		t.Fatalf("expected miss past the stale window, got %v %+v", state, ws)
	}
	if len(c.entries) != 0 {
		t.Fatalf("expired entry should be evicted, %d left", len(c.entries))
	}
}

func TestKeyCache_DoesNotHoldPlaintextKeys(t *testing.T) {
	c := newKeyCache(time.Minute)
	c.put(testKey, &WorkspaceContext{WorkspaceID: "ws"})
	for id := range c.entries {
		if strings.Contains(string(id[:]), testKey) {
			t.Fatal("cache key contains the API key")
		}
	}
	if _, state := c.get(testKey); state != cacheFresh {
		t.Fatalf("expected fresh hit, got %v", state)
	}
}
