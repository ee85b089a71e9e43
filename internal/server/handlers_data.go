package server

import (
	"context"
	"fmt"

	"github.com/andy-yx-chen/leveldb-win/internal/logger"
	"github.com/andy-yx-chen/leveldb-win/internal/store"
	"github.com/andy-yx-chen/leveldb-win/internal/wire"
)

// mapWriteResult maps an engine Result to a reply status for PUT/BATCH,
// which never expect a not-found outcome (§4.6 "map engine ok -> OK, any
// other status -> DB_ERROR").
func mapWriteResult(r store.Result) wire.Status {
	if r == store.ResultOK {
		return wire.StatusOK
	}
	return wire.StatusDBError
}

// mapReadResult maps an engine Result to a reply status for GET/DELETE,
// which do distinguish not-found from a genuine engine error.
func mapReadResult(r store.Result) wire.Status {
	switch r {
	case store.ResultOK:
		return wire.StatusOK
	case store.ResultNotFound:
		return wire.StatusNotFound
	default:
		return wire.StatusDBError
	}
}

// handlePut implements §4.6 PUT:
//
//	[4 bytes key_len][4 bytes value_len][key bytes][value bytes]
//
// Validation order: payload >= 8; key_len >= 0, value_len >= 0; remaining
// payload >= key_len + value_len.
func handlePut(ctx context.Context, s *Session, payload []byte) (wire.Status, []byte) {
	key, value, err := parsePutPayload(payload)
	if err != nil {
		return wire.StatusDataError, nil
	}

	s.acquireStoreSlot()
	defer s.releaseStoreSlot()
	return mapWriteResult(s.selected.Put(ctx, key, value)), nil
}

func parsePutPayload(payload []byte) (key, value []byte, err error) {
	if len(payload) < 8 {
		return nil, nil, fmt.Errorf("put payload too short: %d bytes", len(payload))
	}
	keyLen := wire.DecodeInt32(payload[0:4])
	valueLen := wire.DecodeInt32(payload[4:8])
	if keyLen < 0 || valueLen < 0 {
		return nil, nil, fmt.Errorf("negative length: key_len=%d value_len=%d", keyLen, valueLen)
	}

	rest := payload[8:]
	if int64(keyLen)+int64(valueLen) > int64(len(rest)) {
		return nil, nil, fmt.Errorf("declared lengths exceed payload: have %d, need %d", len(rest), int64(keyLen)+int64(valueLen))
	}

	key = rest[:keyLen]
	value = rest[keyLen : keyLen+valueLen]
	return key, value, nil
}

// handleGet implements §4.6 GET: payload is the whole key, length > 0.
func handleGet(ctx context.Context, s *Session, payload []byte) (wire.Status, []byte) {
	if len(payload) == 0 {
		return wire.StatusDataError, nil
	}

	s.acquireStoreSlot()
	defer s.releaseStoreSlot()
	value, result := s.selected.Get(ctx, payload)
	return mapReadResult(result), replyPayload(result, value)
}

func replyPayload(result store.Result, value []byte) []byte {
	if result != store.ResultOK {
		return nil
	}
	return value
}

// handleDelete implements §4.6 DELETE: payload is the whole key, length > 0.
func handleDelete(ctx context.Context, s *Session, payload []byte) (wire.Status, []byte) {
	if len(payload) == 0 {
		return wire.StatusDataError, nil
	}

	s.acquireStoreSlot()
	defer s.releaseStoreSlot()
	return mapReadResult(s.selected.Delete(ctx, payload)), nil
}

// handleBatch implements §4.6 BATCH:
//
//	[4 bytes item_count]
//	then item_count items, each:
//	  [4 bytes sub_op]  -- 4 (PUT) or 7 (DELETE)
//	  PUT:    [4 bytes key_len][4 bytes value_len][key][value], key_len>0, value_len>0
//	  DELETE: [4 bytes key_len][key], key_len>0
//
// Any bounds violation aborts parsing with DATA_ERROR and no writes are
// attempted; an unrecognized sub-op aborts with BAD_COMMAND. Only a fully
// parsed batch reaches the store, where it is applied as one transaction
// (§8 invariant 4).
func handleBatch(ctx context.Context, s *Session, payload []byte) (wire.Status, []byte) {
	ops, status := parseBatchPayload(payload)
	if status != wire.StatusOK {
		return status, nil
	}

	s.acquireStoreSlot()
	defer s.releaseStoreSlot()
	result := s.selected.WriteBatch(ctx, ops)
	if result != store.ResultOK {
		logger.DebugCtx(ctx, "batch write failed", "items", len(ops))
	} else {
		s.metrics.BatchSize(len(ops))
	}
	return mapWriteResult(result), nil
}

func parseBatchPayload(payload []byte) ([]store.BatchOp, wire.Status) {
	if len(payload) < 4 {
		return nil, wire.StatusDataError
	}
	count := wire.DecodeInt32(payload[0:4])
	if count <= 0 {
		return nil, wire.StatusDataError
	}

	rest := payload[4:]
	// Every item takes at least 9 bytes, so a count larger than the payload
	// can hold never drives the preallocation; the loop below rejects it.
	ops := make([]store.BatchOp, 0, min(int(count), len(rest)/9))

	for i := int32(0); i < count; i++ {
		if len(rest) < 4 {
			return nil, wire.StatusDataError
		}
		subOp := wire.BatchSubOp(wire.DecodeInt32(rest[0:4]))
		rest = rest[4:]

		switch subOp {
		case wire.BatchPut:
			key, value, remainder, err := parseBatchPut(rest)
			if err != nil {
				return nil, wire.StatusDataError
			}
			ops = append(ops, store.BatchOp{Key: key, Value: value})
			rest = remainder
		case wire.BatchDelete:
			key, remainder, err := parseBatchDelete(rest)
			if err != nil {
				return nil, wire.StatusDataError
			}
			ops = append(ops, store.BatchOp{Delete: true, Key: key})
			rest = remainder
		default:
			return nil, wire.StatusBadCommand
		}
	}

	return ops, wire.StatusOK
}

func parseBatchPut(rest []byte) (key, value, remainder []byte, err error) {
	if len(rest) < 8 {
		return nil, nil, nil, fmt.Errorf("batch put header truncated")
	}
	keyLen := wire.DecodeInt32(rest[0:4])
	valueLen := wire.DecodeInt32(rest[4:8])
	if keyLen <= 0 || valueLen <= 0 {
		return nil, nil, nil, fmt.Errorf("batch put requires positive lengths: key_len=%d value_len=%d", keyLen, valueLen)
	}

	body := rest[8:]
	if int64(keyLen)+int64(valueLen) > int64(len(body)) {
		return nil, nil, nil, fmt.Errorf("batch put lengths exceed payload")
	}

	key = body[:keyLen]
	value = body[keyLen : keyLen+valueLen]
	return key, value, body[keyLen+valueLen:], nil
}

func parseBatchDelete(rest []byte) (key, remainder []byte, err error) {
	if len(rest) < 4 {
		return nil, nil, fmt.Errorf("batch delete header truncated")
	}
	keyLen := wire.DecodeInt32(rest[0:4])
	if keyLen <= 0 {
		return nil, nil, fmt.Errorf("batch delete requires positive key_len: %d", keyLen)
	}

	body := rest[4:]
	if int64(keyLen) > int64(len(body)) {
		return nil, nil, fmt.Errorf("batch delete length exceeds payload")
	}

	key = body[:keyLen]
	return key, body[keyLen:], nil
}
