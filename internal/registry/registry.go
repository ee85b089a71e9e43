// Package registry implements the process-wide database registry (C2): a
// name -> store.Handle map guarded by a reader-writer lock, with concurrent
// open/create/delete/list semantics.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/andy-yx-chen/leveldb-win/internal/logger"
	"github.com/andy-yx-chen/leveldb-win/internal/store"
)

// Registry is the sole creator of store.Handles (§3 "Registry"). Names are
// unique; lookup and listing take the shared lock, create and delete take
// the exclusive lock.
type Registry struct {
	dataDir string
	engine  store.EngineOptions

	mu sync.RWMutex
	db map[string]*store.Handle
}

// New constructs a Registry rooted at dataDir and bootstraps it: every
// immediate subdirectory of dataDir is opened as a database. A subdirectory
// that fails to open is logged and skipped — a corrupt subdirectory never
// prevents service startup (§4.2 "Algorithm — bootstrap").
func New(dataDir string, engine store.EngineOptions) (*Registry, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %q: %w", dataDir, err)
	}

	r := &Registry{
		dataDir: dataDir,
		engine:  engine,
		db:      make(map[string]*store.Handle),
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("scan data directory %q: %w", dataDir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || isTombstone(entry.Name()) {
			continue
		}
		name := entry.Name()
		handle, err := store.Open(name, filepath.Join(dataDir, name), engine)
		if err != nil {
			logger.Warn("skipping database that failed to open at startup", "name", name, "error", err)
			continue
		}
		r.db[name] = handle
	}

	return r, nil
}

// Open is a pure lookup: it never opens a database on demand (§4.2).
// The returned Handle has had Acquire called on the caller's behalf; the
// caller must Release it.
func (r *Registry) Open(name string) (*store.Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handle, ok := r.db[name]
	if !ok {
		return nil, false
	}
	return handle.Acquire(), true
}

// Create opens a new database named name and inserts it, returning false if
// the name is already registered or the store fails to open.
//
// This follows the two-phase pattern in §4.2: an optimistic shared-lock
// existence check, then the (possibly slow) store.Open performed outside
// any lock, then a final check-and-insert under the exclusive lock. The
// final check is mandatory per §9.4: two racing Create calls for the same
// name must not let the second silently displace the first's handle — the
// loser's freshly opened store is closed and discarded, and Create returns
// false.
func (r *Registry) Create(name string) (bool, error) {
	if name == "" {
		return false, nil
	}

	r.mu.RLock()
	_, exists := r.db[name]
	r.mu.RUnlock()
	if exists {
		return false, nil
	}

	handle, err := store.Open(name, filepath.Join(r.dataDir, name), r.engine)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	_, raced := r.db[name]
	if raced {
		r.mu.Unlock()
		handle.Release() // loser closes its own store; the winner's insert stands
		return false, nil
	}
	r.db[name] = handle
	r.mu.Unlock()

	return true, nil
}

// Delete removes name from the registry and arranges for its on-disk
// directory to be reclaimed.
//
// Existing sessions holding this database's Handle keep a valid reference
// for the natural lifetime of that reference — the directory itself is
// renamed to a tombstone path immediately (so a concurrent bootstrap or
// Create of the same name never collides with it) and is only unlinked once
// the last Handle.Release drops the refcount to zero (§9.3).
func (r *Registry) Delete(name string) bool {
	r.mu.Lock()
	handle, ok := r.db[name]
	if ok {
		delete(r.db, name)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	tombstone := filepath.Join(r.dataDir, tombstoneName(name))
	if err := os.Rename(handle.Dir, tombstone); err != nil {
		logger.Warn("failed to tombstone database directory, deferring delete", "name", name, "error", err)
		tombstone = handle.Dir
	}

	handle.MarkPendingDeleteDir(tombstone)
	// Release the reference this Registry implicitly held while the handle
	// sat in the map. If no session is currently holding the database, this
	// is the last reference and the close+tombstone-removal run immediately;
	// otherwise it runs when the last session releases its own reference.
	handle.Release()
	return true
}

// List returns the registered database names, unordered (§4.2).
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.db))
	for name := range r.db {
		names = append(names, name)
	}
	return names
}

const tombstonePrefix = ".deleted-"

func tombstoneName(name string) string {
	return tombstonePrefix + name + "-" + uuid.NewString()
}

func isTombstone(name string) bool {
	return len(name) >= len(tombstonePrefix) && name[:len(tombstonePrefix)] == tombstonePrefix
}
