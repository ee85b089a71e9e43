package server

import (
	"context"

	"github.com/andy-yx-chen/leveldb-win/internal/logger"
	"github.com/andy-yx-chen/leveldb-win/internal/wire"
)

// handleLogin implements §4.6 LOGIN: authentication is a stub, so the
// payload is ignored entirely and the reply is always OK.
func handleLogin(_ context.Context, _ *Session, _ []byte) (wire.Status, []byte) {
	return wire.StatusOK, nil
}

// handleOpen implements §4.6 OPEN. Per §9.1 the vestigial "payload length
// >= 4" check is dropped (see SPEC_FULL.md §4.6): any non-empty payload is
// accepted as the raw database name.
func handleOpen(ctx context.Context, s *Session, payload []byte) (wire.Status, []byte) {
	name := string(payload)
	handle, ok := s.registry.Open(name)
	if !ok {
		return wire.StatusNoDB, nil
	}
	s.setSelected(handle)
	logger.DebugCtx(ctx, "session selected database", "name", name)
	return wire.StatusOK, nil
}

// handleCreate implements §4.6 CREATE. It does not also select the store —
// the client must issue OPEN afterward.
func handleCreate(ctx context.Context, s *Session, payload []byte) (wire.Status, []byte) {
	name := string(payload)
	created, err := s.registry.Create(name)
	if err != nil {
		logger.WarnCtx(ctx, "create failed", "name", name, "error", err)
	}
	if !created {
		return wire.StatusCreateFailed, nil
	}
	return wire.StatusOK, nil
}

// handleClose implements §4.6 CLOSE: clears the session's selected store,
// dropping its reference.
func handleClose(_ context.Context, s *Session, _ []byte) (wire.Status, []byte) {
	s.setSelected(nil)
	return wire.StatusOK, nil
}

// handleList implements §4.6 LIST as extended per §9.2: the registry's
// names are serialized as a count-prefixed list of length-prefixed byte
// strings: [4-byte count]([4-byte len][name bytes])*.
func handleList(_ context.Context, s *Session, _ []byte) (wire.Status, []byte) {
	names := s.registry.List()

	size := 4
	for _, name := range names {
		size += 4 + len(name)
	}

	out := make([]byte, 0, size)
	out = append(out, wire.EncodeInt32(int32(len(names)))...)
	for _, name := range names {
		out = append(out, wire.EncodeInt32(int32(len(name)))...)
		out = append(out, name...)
	}
	return wire.StatusOK, out
}
