// Package server implements the per-connection session (C4), the command
// dispatch table (C5), the command handlers (C6), and the TCP acceptor
// (C7) described in the specification.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/andy-yx-chen/leveldb-win/internal/logger"
	"github.com/andy-yx-chen/leveldb-win/internal/metrics"
	"github.com/andy-yx-chen/leveldb-win/internal/registry"
	"github.com/andy-yx-chen/leveldb-win/internal/store"
	"github.com/andy-yx-chen/leveldb-win/internal/wire"
)

// Session is the per-connection state described in §3 "Session": the
// socket, the session's currently selected store (if any), and the shared
// collaborators every handler needs (the registry, the blocking-call
// semaphore, metrics). A Session's read loop runs on exactly one goroutine
// for its whole lifetime, which is what gives the spec's "at most one
// outstanding read/write per session" invariant for free in Go — see
// SPEC_FULL.md §4.4.
type Session struct {
	conn     net.Conn
	registry *registry.Registry
	storeSem chan struct{}
	metrics  metrics.Metrics

	connID string

	// selected is the database this session has OPEN'd, or nil. Only this
	// session's own goroutine ever reads or writes it, so it needs no lock
	// (§3 "The selected store is mutable only by ... handlers of that
	// session; no other session observes it").
	selected *store.Handle
}

// NewSession constructs a Session for an accepted connection.
func NewSession(conn net.Conn, reg *registry.Registry, storeSem chan struct{}, m metrics.Metrics) *Session {
	if m == nil {
		m = metrics.Noop()
	}
	return &Session{
		conn:     conn,
		registry: reg,
		storeSem: storeSem,
		metrics:  m,
		connID:   uuid.NewString(),
	}
}

// Serve runs the session's read loop until the connection errors, the peer
// disconnects, or ctx is cancelled. It always releases the session's
// selected store handle (if any) before returning.
func (s *Session) Serve(ctx context.Context) {
	defer s.close()

	cc := &logger.ConnContext{ConnID: s.connID, RemoteIP: s.conn.RemoteAddr().String(), StartTime: time.Now()}
	ctx = logger.WithConn(ctx, cc)
	logger.InfoCtx(ctx, "connection accepted")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := wire.ReadFrame(s.conn)
		if err != nil {
			s.logReadError(ctx, err)
			return
		}

		if err := s.handleFrame(ctx, frame); err != nil {
			logger.DebugCtx(ctx, "connection closed while writing reply", "error", err)
			return
		}
	}
}

func (s *Session) logReadError(ctx context.Context, err error) {
	switch {
	case errors.Is(err, io.EOF):
		logger.DebugCtx(ctx, "connection closed by peer")
	case errors.Is(err, wire.ErrDataError):
		// A malformed *header* (negative top-level length) can't even be
		// replied to meaningfully since we don't know where the next frame
		// starts; the spec's framing contract is broken, so the connection
		// is dropped like any other I/O error.
		logger.WarnCtx(ctx, "malformed frame header, dropping connection", "error", err)
	default:
		logger.DebugCtx(ctx, "read error, dropping connection", "error", err)
	}
}

// handleFrame dispatches one request frame and writes its reply. A non-nil
// error here always means the connection's socket is unusable and Serve
// should stop.
func (s *Session) handleFrame(ctx context.Context, frame wire.Frame) error {
	start := time.Now()
	opcode, status, payload := Dispatch(ctx, s, frame)
	s.metrics.CommandProcessed(opcodeName(opcode), statusName(status), time.Since(start))

	return wire.WriteFrame(s.conn, int32(status), payload)
}

func (s *Session) close() {
	if s.selected != nil {
		s.selected.Release()
		s.selected = nil
	}
	_ = s.conn.Close()
	s.metrics.ConnectionClosed()
	logger.Debug("connection closed", "conn_id", s.connID)
}

// setSelected replaces the session's selected store, releasing any
// previously held reference (OPEN after CLOSE, or re-OPEN without an
// intervening CLOSE, must not leak the old handle's reference).
func (s *Session) setSelected(h *store.Handle) {
	if s.selected != nil {
		s.selected.Release()
	}
	s.selected = h
}

// acquireStoreSlot bounds concurrent blocking engine calls to the
// configured worker count, per SPEC_FULL.md §4.7's dedicated-pool
// resolution of §5's "store calls do not suspend" caveat.
func (s *Session) acquireStoreSlot() {
	if s.storeSem != nil {
		s.storeSem <- struct{}{}
	}
}

func (s *Session) releaseStoreSlot() {
	if s.storeSem != nil {
		<-s.storeSem
	}
}
