package server

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andy-yx-chen/leveldb-win/internal/metrics"
	"github.com/andy-yx-chen/leveldb-win/internal/registry"
	"github.com/andy-yx-chen/leveldb-win/internal/store"
	"github.com/andy-yx-chen/leveldb-win/internal/wire"
)

// testServer starts an Acceptor on an OS-assigned port and returns a dialer
// plus a teardown func. Grounded on the end-to-end scenarios in spec §8.
func testServer(t *testing.T) (dial func() net.Conn, teardown func()) {
	t.Helper()

	reg, err := registry.New(filepath.Join(t.TempDir(), "data"), store.EngineOptions{})
	require.NoError(t, err)

	acceptor := NewAcceptor(reg, metrics.Noop(), 2)
	ln, err := acceptor.Listen(0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = acceptor.Serve(ctx, ln) }()

	dial = func() net.Conn {
		conn, err := net.Dial("tcp", ln.Addr().String())
		require.NoError(t, err)
		require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
		return conn
	}
	teardown = func() {
		cancel()
		acceptor.Stop()
	}
	return dial, teardown
}

func sendFrame(t *testing.T, conn net.Conn, code int32, payload []byte) wire.Frame {
	t.Helper()
	require.NoError(t, wire.WriteFrame(conn, code, payload))
	frame, err := wire.ReadFrame(conn)
	require.NoError(t, err)
	return frame
}

func encodeName(name string) []byte { return []byte(name) }

func putPayload(key, value string) []byte {
	out := wire.EncodeInt32(int32(len(key)))
	out = append(out, wire.EncodeInt32(int32(len(value)))...)
	out = append(out, key...)
	out = append(out, value...)
	return out
}

// TestScenarioLogin is end-to-end scenario 1 of spec §8.
func TestScenarioLogin(t *testing.T) {
	dial, teardown := testServer(t)
	defer teardown()
	conn := dial()
	defer conn.Close()

	reply := sendFrame(t, conn, int32(wire.OpLogin), nil)
	assert.Equal(t, int32(wire.StatusOK), reply.Code)
	assert.Empty(t, reply.Payload)
}

// TestScenarioCreateThenOpen is end-to-end scenario 2.
func TestScenarioCreateThenOpen(t *testing.T) {
	dial, teardown := testServer(t)
	defer teardown()
	conn := dial()
	defer conn.Close()

	reply := sendFrame(t, conn, int32(wire.OpCreate), encodeName("demo"))
	require.Equal(t, int32(wire.StatusOK), reply.Code)

	reply = sendFrame(t, conn, int32(wire.OpOpen), encodeName("demo"))
	assert.Equal(t, int32(wire.StatusOK), reply.Code)
}

// TestScenarioPutGetGetMissing is end-to-end scenario 3.
func TestScenarioPutGetGetMissing(t *testing.T) {
	dial, teardown := testServer(t)
	defer teardown()
	conn := dial()
	defer conn.Close()

	require.Equal(t, int32(wire.StatusOK), sendFrame(t, conn, int32(wire.OpCreate), encodeName("demo")).Code)
	require.Equal(t, int32(wire.StatusOK), sendFrame(t, conn, int32(wire.OpOpen), encodeName("demo")).Code)

	reply := sendFrame(t, conn, int32(wire.OpPut), putPayload("k", "v"))
	require.Equal(t, int32(wire.StatusOK), reply.Code)

	reply = sendFrame(t, conn, int32(wire.OpGet), []byte("k"))
	require.Equal(t, int32(wire.StatusOK), reply.Code)
	assert.Equal(t, []byte("v"), reply.Payload)

	reply = sendFrame(t, conn, int32(wire.OpGet), []byte("x"))
	assert.Equal(t, int32(wire.StatusNotFound), reply.Code)
	assert.Empty(t, reply.Payload)
}

// TestScenarioAtomicBatch is end-to-end scenario 4.
func TestScenarioAtomicBatch(t *testing.T) {
	dial, teardown := testServer(t)
	defer teardown()
	conn := dial()
	defer conn.Close()

	require.Equal(t, int32(wire.StatusOK), sendFrame(t, conn, int32(wire.OpCreate), encodeName("demo")).Code)
	require.Equal(t, int32(wire.StatusOK), sendFrame(t, conn, int32(wire.OpOpen), encodeName("demo")).Code)
	require.Equal(t, int32(wire.StatusOK), sendFrame(t, conn, int32(wire.OpPut), putPayload("b", "old")).Code)

	payload := wire.EncodeInt32(2)
	payload = append(payload, wire.EncodeInt32(int32(wire.BatchPut))...)
	payload = append(payload, batchPutItem("a", "1")...)
	payload = append(payload, wire.EncodeInt32(int32(wire.BatchDelete))...)
	payload = append(payload, batchDeleteItem("b")...)

	reply := sendFrame(t, conn, int32(wire.OpBatch), payload)
	require.Equal(t, int32(wire.StatusOK), reply.Code)

	reply = sendFrame(t, conn, int32(wire.OpGet), []byte("a"))
	require.Equal(t, int32(wire.StatusOK), reply.Code)
	assert.Equal(t, []byte("1"), reply.Payload)

	reply = sendFrame(t, conn, int32(wire.OpGet), []byte("b"))
	assert.Equal(t, int32(wire.StatusNotFound), reply.Code)
}

// TestScenarioBadBatchRollsBack is end-to-end scenario 5.
func TestScenarioBadBatchRollsBack(t *testing.T) {
	dial, teardown := testServer(t)
	defer teardown()
	conn := dial()
	defer conn.Close()

	require.Equal(t, int32(wire.StatusOK), sendFrame(t, conn, int32(wire.OpCreate), encodeName("demo")).Code)
	require.Equal(t, int32(wire.StatusOK), sendFrame(t, conn, int32(wire.OpOpen), encodeName("demo")).Code)
	require.Equal(t, int32(wire.StatusOK), sendFrame(t, conn, int32(wire.OpPut), putPayload("a", "prior")).Code)

	payload := wire.EncodeInt32(2)
	payload = append(payload, wire.EncodeInt32(int32(wire.BatchPut))...)
	payload = append(payload, batchPutItem("a", "9")...)
	payload = append(payload, wire.EncodeInt32(99)...) // unrecognized sub-op

	reply := sendFrame(t, conn, int32(wire.OpBatch), payload)
	assert.Equal(t, int32(wire.StatusBadCommand), reply.Code)

	reply = sendFrame(t, conn, int32(wire.OpGet), []byte("a"))
	require.Equal(t, int32(wire.StatusOK), reply.Code)
	assert.Equal(t, []byte("prior"), reply.Payload, "rolled-back batch must not apply any sub-operation")
}

// TestScenarioNoDBSelected is end-to-end scenario 6.
func TestScenarioNoDBSelected(t *testing.T) {
	dial, teardown := testServer(t)
	defer teardown()
	conn := dial()
	defer conn.Close()

	reply := sendFrame(t, conn, int32(wire.OpPut), putPayload("a", "b"))
	assert.Equal(t, int32(wire.StatusNoDBSelected), reply.Code)
}

func TestUnknownOpcodeRepliesBadCommand(t *testing.T) {
	dial, teardown := testServer(t)
	defer teardown()
	conn := dial()
	defer conn.Close()

	reply := sendFrame(t, conn, 999, nil)
	assert.Equal(t, int32(wire.StatusBadCommand), reply.Code)
}

func TestOpenMissingDatabaseRepliesNoDB(t *testing.T) {
	dial, teardown := testServer(t)
	defer teardown()
	conn := dial()
	defer conn.Close()

	reply := sendFrame(t, conn, int32(wire.OpOpen), encodeName("ghost"))
	assert.Equal(t, int32(wire.StatusNoDB), reply.Code)
}

func TestCreateDuplicateNameRepliesCreateFailed(t *testing.T) {
	dial, teardown := testServer(t)
	defer teardown()
	conn := dial()
	defer conn.Close()

	require.Equal(t, int32(wire.StatusOK), sendFrame(t, conn, int32(wire.OpCreate), encodeName("demo")).Code)
	reply := sendFrame(t, conn, int32(wire.OpCreate), encodeName("demo"))
	assert.Equal(t, int32(wire.StatusCreateFailed), reply.Code)
}

func TestCloseThenPutRepliesNoDBSelected(t *testing.T) {
	dial, teardown := testServer(t)
	defer teardown()
	conn := dial()
	defer conn.Close()

	require.Equal(t, int32(wire.StatusOK), sendFrame(t, conn, int32(wire.OpCreate), encodeName("demo")).Code)
	require.Equal(t, int32(wire.StatusOK), sendFrame(t, conn, int32(wire.OpOpen), encodeName("demo")).Code)
	require.Equal(t, int32(wire.StatusOK), sendFrame(t, conn, int32(wire.OpClose), nil).Code)

	reply := sendFrame(t, conn, int32(wire.OpPut), putPayload("a", "b"))
	assert.Equal(t, int32(wire.StatusNoDBSelected), reply.Code)
}

func TestListSerializesCreatedNames(t *testing.T) {
	dial, teardown := testServer(t)
	defer teardown()
	conn := dial()
	defer conn.Close()

	require.Equal(t, int32(wire.StatusOK), sendFrame(t, conn, int32(wire.OpCreate), encodeName("alpha")).Code)
	require.Equal(t, int32(wire.StatusOK), sendFrame(t, conn, int32(wire.OpCreate), encodeName("beta")).Code)

	reply := sendFrame(t, conn, int32(wire.OpList), nil)
	require.Equal(t, int32(wire.StatusOK), reply.Code)

	count := wire.DecodeInt32(reply.Payload[0:4])
	require.Equal(t, int32(2), count)

	names := map[string]bool{}
	rest := reply.Payload[4:]
	for i := int32(0); i < count; i++ {
		l := wire.DecodeInt32(rest[0:4])
		rest = rest[4:]
		names[string(rest[:l])] = true
		rest = rest[l:]
	}
	assert.True(t, names["alpha"])
	assert.True(t, names["beta"])
}

func TestMalformedPutRepliesDataError(t *testing.T) {
	dial, teardown := testServer(t)
	defer teardown()
	conn := dial()
	defer conn.Close()

	require.Equal(t, int32(wire.StatusOK), sendFrame(t, conn, int32(wire.OpCreate), encodeName("demo")).Code)
	require.Equal(t, int32(wire.StatusOK), sendFrame(t, conn, int32(wire.OpOpen), encodeName("demo")).Code)

	// key_len declares more than the payload actually holds.
	bad := wire.EncodeInt32(100)
	bad = append(bad, wire.EncodeInt32(1)...)
	bad = append(bad, "k"...)
	bad = append(bad, "v"...)

	reply := sendFrame(t, conn, int32(wire.OpPut), bad)
	assert.Equal(t, int32(wire.StatusDataError), reply.Code)
}

func batchPutItem(key, value string) []byte {
	out := wire.EncodeInt32(int32(len(key)))
	out = append(out, wire.EncodeInt32(int32(len(value)))...)
	out = append(out, key...)
	out = append(out, value...)
	return out
}

func batchDeleteItem(key string) []byte {
	out := wire.EncodeInt32(int32(len(key)))
	out = append(out, key...)
	return out
}
