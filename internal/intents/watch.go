package intents

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchedRegistry caches parsed registries per workspace and drops an entry
// whenever fsnotify reports a change to its .orchestration directory. A hit
// is also re-validated against the file's mtime and size, so a write is
// visible before its event is delivered. Workspaces whose .orchestration
// directory cannot be watched are never cached.
type WatchedRegistry struct {
	inner   *FileRegistry
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu      sync.RWMutex
	cache   map[string]cachedDoc // keyed by registry file path
	gen     map[string]uint64    // bumped on every invalidation
	watched map[string]bool      // keyed by directory

	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewWatchedRegistry starts the watcher goroutine. Call Close to stop it.
func NewWatchedRegistry(logger *zap.Logger) (*WatchedRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	r := &WatchedRegistry{
		inner:   NewFileRegistry(logger),
		watcher: w,
		logger:  logger,
		cache:   make(map[string]cachedDoc),
		gen:     make(map[string]uint64),
		watched: make(map[string]bool),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go r.run()
	return r, nil
}

// Load returns the cached registry for root, reading it on a miss.
func (r *WatchedRegistry) Load(root string) *Document {
	path := FilePath(root)

	r.mu.RLock()
	entry, ok := r.cache[path]
	gen := r.gen[path]
	r.mu.RUnlock()
	if ok {
		if entry.stamp.matches(statFile(path)) {
			return entry.doc
		}
		r.invalidate(path)
		r.mu.RLock()
		gen = r.gen[path]
		r.mu.RUnlock()
	}

	// Watch and stat before reading so a write racing the read still
	// invalidates.
	cacheable := r.watch(filepath.Dir(path))
	stamp := statFile(path)
	doc := r.inner.Load(root)
	if cacheable {
		r.mu.Lock()
		if r.gen[path] == gen {
			r.cache[path] = cachedDoc{doc: doc, stamp: stamp}
		}
		r.mu.Unlock()
	}
	return doc
}

type cachedDoc struct {
	doc   *Document
	stamp fileStamp
}

// fileStamp is the zero value when the file does not exist.
type fileStamp struct {
	modTime time.Time
	size    int64
}

func (s fileStamp) matches(o fileStamp) bool {
	return s.size == o.size && s.modTime.Equal(o.modTime)
}

func statFile(path string) fileStamp {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{modTime: info.ModTime(), size: info.Size()}
}

// SetActive writes through and invalidates the cached entry.
func (r *WatchedRegistry) SetActive(root, intentID string) error {
	path := FilePath(root)
	r.invalidate(path)
	err := r.inner.SetActive(root, intentID)
	r.invalidate(path)
	return err
}

// Close stops the watcher goroutine and releases the inotify handle.
func (r *WatchedRegistry) Close() error {
	var err error
	r.once.Do(func() {
		close(r.done)
		err = r.watcher.Close()
		<-r.stopped
	})
	return err
}

func (r *WatchedRegistry) watch(dir string) bool {
	r.mu.RLock()
	ok := r.watched[dir]
	r.mu.RUnlock()
	if ok {
		return true
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return false
	}
	if err := r.watcher.Add(dir); err != nil {
		r.logger.Debug("registry watch failed, caching disabled for workspace",
			zap.String("dir", dir),
			zap.Error(err),
		)
		return false
	}
	r.mu.Lock()
	r.watched[dir] = true
	r.mu.Unlock()
	return true
}

func (r *WatchedRegistry) invalidate(path string) {
	r.mu.Lock()
	delete(r.cache, path)
	r.gen[path]++
	r.mu.Unlock()
}

func (r *WatchedRegistry) run() {
	defer close(r.stopped)
	for {
		select {
		case <-r.done:
			return
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != filepath.Base(RelativePath) {
				continue
			}
			r.invalidate(ev.Name)
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				// The directory itself may be gone; re-check on next Load.
				r.mu.Lock()
				delete(r.watched, filepath.Dir(ev.Name))
				r.mu.Unlock()
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("registry watcher error", zap.Error(err))
			// Events may have been lost; start from a clean cache.
			r.mu.Lock()
			for path := range r.cache {
				delete(r.cache, path)
				r.gen[path]++
			}
			r.mu.Unlock()
		}
	}
}
