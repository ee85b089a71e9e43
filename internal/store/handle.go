// Package store binds the spec's out-of-scope embedded LSM engine interface
// (open/get/put/delete/write_batch, returning ok/not-found/io-error) to
// BadgerDB, and provides the reference-counted Handle the registry (C2)
// hands out to sessions (§3 "Store handle").
package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/andy-yx-chen/leveldb-win/internal/logger"
)

// Handle is a reference-counted, thread-safe handle to one opened database.
// The registry is the sole creator of Handles (§3 "Registry"); multiple
// sessions may hold the same Handle concurrently, and the underlying store
// stays open for as long as any reference exists.
type Handle struct {
	Name string
	Dir  string

	mu       sync.Mutex
	db       *badgerdb.DB
	refCount int
	closed   bool

	// pendingDelete is set by the registry when Delete(Name) has removed
	// this handle from the map; the directory (already renamed to a
	// tombstone path) is removed once the last reference is released.
	pendingDelete func()
}

// Open opens (or creates, implicitly — Badger always creates a missing
// directory) a database rooted at dir, applying opts, and returns a Handle
// with a single reference already held by the caller.
func Open(name, dir string, opts EngineOptions) (*Handle, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory %q: %w", dir, err)
	}

	db, err := badgerdb.Open(opts.badgerOptions(dir))
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", name, err)
	}

	return &Handle{Name: name, Dir: dir, db: db, refCount: 1}, nil
}

// Acquire adds a reference to h and returns h itself; callers hold the same
// *Handle, not a copy, so refcount bookkeeping stays centralized.
func (h *Handle) Acquire() *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refCount++
	return h
}

// Release drops a reference. When the count reaches zero the underlying
// database is closed; if the registry has marked this handle for deletion,
// the on-disk tombstone directory is removed afterward.
func (h *Handle) Release() {
	h.mu.Lock()
	h.refCount--
	shouldClose := h.refCount <= 0 && !h.closed
	if shouldClose {
		h.closed = true
	}
	pending := h.pendingDelete
	h.mu.Unlock()

	if !shouldClose {
		return
	}
	if err := h.db.Close(); err != nil {
		logger.Warn("error closing database", "name", h.Name, "error", err)
	}
	if pending != nil {
		pending()
	}
}

// MarkPendingDeleteDir arranges for the directory at path (a tombstoned
// rename of this handle's original directory) to be removed once this
// handle's last reference is released. Used by the registry's Delete to
// implement the rename-then-delete resolution in SPEC_FULL.md §4.2.
func (h *Handle) MarkPendingDeleteDir(path string) {
	h.mu.Lock()
	h.pendingDelete = func() {
		if err := os.RemoveAll(path); err != nil {
			logger.Warn("failed to remove tombstoned database directory", "path", path, "error", err)
		}
	}
	h.mu.Unlock()
}

// Get implements the GET command's store call.
func (h *Handle) Get(ctx context.Context, key []byte) ([]byte, Result) {
	if err := ctx.Err(); err != nil {
		return nil, ResultError
	}

	var value []byte
	err := h.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		value = v
		return nil
	})

	switch {
	case err == nil:
		return value, ResultOK
	case err == badgerdb.ErrKeyNotFound:
		return nil, ResultNotFound
	default:
		logger.DebugCtx(ctx, "engine get failed", "name", h.Name, "error", err)
		return nil, ResultError
	}
}

// Put implements the PUT command's store call.
func (h *Handle) Put(ctx context.Context, key, value []byte) Result {
	if err := ctx.Err(); err != nil {
		return ResultError
	}

	err := h.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		logger.DebugCtx(ctx, "engine put failed", "name", h.Name, "error", err)
		return ResultError
	}
	return ResultOK
}

// Delete implements the DELETE command's store call.
func (h *Handle) Delete(ctx context.Context, key []byte) Result {
	if err := ctx.Err(); err != nil {
		return ResultError
	}

	err := h.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})

	switch {
	case err == nil:
		return ResultOK
	case err == badgerdb.ErrKeyNotFound:
		return ResultNotFound
	default:
		logger.DebugCtx(ctx, "engine delete failed", "name", h.Name, "error", err)
		return ResultError
	}
}

// BatchOp is one sub-operation of an atomic BATCH write.
type BatchOp struct {
	Delete bool
	Key    []byte
	Value  []byte // unused when Delete is true
}

// WriteBatch applies ops atomically: the engine's write_batch interface
// guarantees all-or-nothing application (§4.6 BATCH, invariant 4).
func (h *Handle) WriteBatch(ctx context.Context, ops []BatchOp) Result {
	if err := ctx.Err(); err != nil {
		return ResultError
	}

	err := h.db.Update(func(txn *badgerdb.Txn) error {
		for _, op := range ops {
			if op.Delete {
				if err := txn.Delete(op.Key); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set(op.Key, op.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.DebugCtx(ctx, "engine batch write failed", "name", h.Name, "error", err)
		return ResultError
	}
	return ResultOK
}
