package auth

import (
	"crypto/sha256"
	"sync"
	"time"
)

type cacheState int

const (
	cacheMiss cacheState = iota
	cacheFresh
	// cacheStale is served while another caller refreshes the entry.
	cacheStale
	// cacheRefresh is served and the caller owns the refresh.
	cacheRefresh
)

// keyCache maps API keys to resolved workspaces. Keys are held as SHA-256
// digests. An entry is fresh for ttl and may then be served stale for one
// more ttl while a single caller refreshes it. Older entries are misses,
// so a key revoked while the database is unreachable stops working after
// at most 2*ttl.
type keyCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[[sha256.Size]byte]*keyEntry
}

type keyEntry struct {
	workspace  *WorkspaceContext
	storedAt   time.Time
	refreshing bool
}

func newKeyCache(ttl time.Duration) *keyCache {
	return &keyCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[[sha256.Size]byte]*keyEntry),
	}
}

func (c *keyCache) get(token string) (*WorkspaceContext, cacheState) {
	id := sha256.Sum256([]byte(token))

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, cacheMiss
	}
	age := c.now().Sub(e.storedAt)
	switch {
	case age < c.ttl:
		return e.workspace, cacheFresh
	case age >= 2*c.ttl:
		delete(c.entries, id)
		return nil, cacheMiss
	case e.refreshing:
		return e.workspace, cacheStale
	default:
		e.refreshing = true
		return e.workspace, cacheRefresh
	}
}

func (c *keyCache) put(token string, ws *WorkspaceContext) {
	id := sha256.Sum256([]byte(token))
	c.mu.Lock()
	c.entries[id] = &keyEntry{workspace: ws, storedAt: c.now()}
	c.mu.Unlock()
}

// release lets a later caller retry a refresh that failed transiently.
func (c *keyCache) release(token string) {
	id := sha256.Sum256([]byte(token))
	c.mu.Lock()
	if e, ok := c.entries[id]; ok {
		e.refreshing = false
	}
	c.mu.Unlock()
}

func (c *keyCache) drop(token string) {
	id := sha256.Sum256([]byte(token))
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}
