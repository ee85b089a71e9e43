package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/andy-yx-chen/leveldb-win/internal/logger"
	"github.com/andy-yx-chen/leveldb-win/internal/metrics"
	"github.com/andy-yx-chen/leveldb-win/internal/registry"
)

// DefaultPort is the fixed TCP port the service binds, per §6.
const DefaultPort = 4406

// Acceptor is the TCP listener of C7: it admits connections and spawns one
// Session per connection. Go's net poller already multiplexes blocking
// socket reads/writes across a small OS thread pool, so there is no
// separate worker-thread reactor to manage here — one goroutine per
// connection achieves the same sharing the spec describes for its N
// worker threads (see SPEC_FULL.md §4.7 for the full rationale). What the
// spec's worker count DOES still usefully bound is how many of those
// goroutines may be blocked inside the storage engine at once; that bound
// is storeSlots, enforced via Session.acquireStoreSlot.
type Acceptor struct {
	registry   *registry.Registry
	metrics    metrics.Metrics
	storeSlots int

	mu       sync.Mutex
	listener net.Listener

	shutdown     chan struct{}
	shutdownOnce sync.Once
	activeConns  sync.WaitGroup
}

// NewAcceptor constructs an Acceptor bound to reg, with storeSlots
// concurrent blocking store calls permitted across all sessions (0 means
// unbounded).
func NewAcceptor(reg *registry.Registry, m metrics.Metrics, storeSlots int) *Acceptor {
	if m == nil {
		m = metrics.Noop()
	}
	return &Acceptor{
		registry:   reg,
		metrics:    m,
		storeSlots: storeSlots,
		shutdown:   make(chan struct{}),
	}
}

// Listen binds port, returning the listener Serve will accept on. Split
// out from Serve so a caller (the service shell) can know the bind
// succeeded before it reports itself as started.
func (a *Acceptor) Listen(port int) (net.Listener, error) {
	ln, err := net.Listen("tcp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}

	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()

	logger.Info("acceptor listening", "addr", ln.Addr().String())
	return ln, nil
}

// Serve accepts connections on ln until ctx is cancelled or Stop is
// called, returning nil on graceful shutdown.
func (a *Acceptor) Serve(ctx context.Context, ln net.Listener) error {
	var storeSem chan struct{}
	if a.storeSlots > 0 {
		storeSem = make(chan struct{}, a.storeSlots)
	}

	go func() {
		<-ctx.Done()
		a.Stop()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-a.shutdown:
				a.activeConns.Wait()
				logger.Info("acceptor stopped")
				return nil
			default:
				logger.Debug("accept error", "error", err)
				continue
			}
		}

		a.metrics.ConnectionOpened()
		a.activeConns.Add(1)

		sess := NewSession(conn, a.registry, storeSem, a.metrics)
		go func() {
			defer a.activeConns.Done()
			sess.Serve(ctx)
		}()
	}
}

// Stop closes the listening socket, which causes Serve's accept loop to
// drain and return. Safe to call multiple times and from any goroutine
// (§4.8: "stop closes the acceptor ... repeated stop after stop is a
// no-op").
func (a *Acceptor) Stop() {
	a.shutdownOnce.Do(func() {
		close(a.shutdown)
		a.mu.Lock()
		ln := a.listener
		a.mu.Unlock()
		if ln != nil {
			_ = ln.Close()
		}
	})
}
