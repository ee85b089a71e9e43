package server

import (
	"context"

	"github.com/andy-yx-chen/leveldb-win/internal/logger"
	"github.com/andy-yx-chen/leveldb-win/internal/wire"
)

// handlerFunc is the shape of every command handler (C6): it receives the
// request's raw payload and returns the reply status and reply payload
// (nil for every reply except a successful GET).
type handlerFunc func(ctx context.Context, s *Session, payload []byte) (wire.Status, []byte)

// handlerEntry pairs a handler with whether it requires a selected store.
// §4.5: "Handlers that require a selected store and find none MUST reply
// NO_DB_SELECTED without touching the payload further" — dispatch enforces
// this uniformly so individual handlers never need to check it themselves.
type handlerEntry struct {
	fn            handlerFunc
	requiresStore bool
}

// dispatchTable is the total function opcode -> handler described in §4.5.
// An opcode absent from this table is, by definition, unknown.
var dispatchTable = map[wire.Opcode]handlerEntry{
	wire.OpLogin:  {fn: handleLogin},
	wire.OpOpen:   {fn: handleOpen},
	wire.OpClose:  {fn: handleClose},
	wire.OpCreate: {fn: handleCreate},
	wire.OpList:   {fn: handleList},
	wire.OpPut:    {fn: handlePut, requiresStore: true},
	wire.OpGet:    {fn: handleGet, requiresStore: true},
	wire.OpDelete: {fn: handleDelete, requiresStore: true},
	wire.OpBatch:  {fn: handleBatch, requiresStore: true},
}

// Dispatch maps one request frame to its reply, enforcing the dispatch-level
// invariants of §4.5 before calling into the command handler itself:
// unknown opcodes get BAD_COMMAND, and store-requiring commands get
// NO_DB_SELECTED when the session has nothing open.
func Dispatch(ctx context.Context, s *Session, frame wire.Frame) (wire.Opcode, wire.Status, []byte) {
	opcode := wire.Opcode(frame.Code)
	entry, ok := dispatchTable[opcode]
	if !ok {
		logger.DebugCtx(ctx, "unknown opcode", "opcode", frame.Code)
		return opcode, wire.StatusBadCommand, nil
	}

	if cc := logger.ConnFromContext(ctx); cc != nil {
		ctx = logger.WithConn(ctx, cc.WithCommand(opcodeName(opcode)))
	}

	if entry.requiresStore && s.selected == nil {
		return opcode, wire.StatusNoDBSelected, nil
	}

	status, payload := entry.fn(ctx, s, frame.Payload)
	return opcode, status, payload
}

func opcodeName(op wire.Opcode) string {
	switch op {
	case wire.OpLogin:
		return "LOGIN"
	case wire.OpOpen:
		return "OPEN"
	case wire.OpClose:
		return "CLOSE"
	case wire.OpPut:
		return "PUT"
	case wire.OpBatch:
		return "BATCH"
	case wire.OpGet:
		return "GET"
	case wire.OpDelete:
		return "DELETE"
	case wire.OpList:
		return "LIST"
	case wire.OpCreate:
		return "CREATE"
	default:
		return "UNKNOWN"
	}
}

func statusName(st wire.Status) string {
	switch st {
	case wire.StatusOK:
		return "OK"
	case wire.StatusDataError:
		return "DATA_ERROR"
	case wire.StatusUnAuth:
		return "UN_AUTH"
	case wire.StatusNoDB:
		return "NO_DB"
	case wire.StatusNoDBSelected:
		return "NO_DB_SELECTED"
	case wire.StatusBadCommand:
		return "BAD_COMMAND"
	case wire.StatusNotFound:
		return "NOT_FOUND"
	case wire.StatusIOError:
		return "IO_ERROR"
	case wire.StatusCreateFailed:
		return "CREAT_FAILED"
	case wire.StatusDBError:
		return "DB_ERROR"
	default:
		return "UNKNOWN"
	}
}
