package wire

// Opcode identifies a client request. Values match the fixed wire contract
// in §4.5 of the specification and must never be renumbered.
type Opcode int32

const (
	OpLogin  Opcode = 1
	OpOpen   Opcode = 2
	OpClose  Opcode = 3
	OpPut    Opcode = 4
	OpBatch  Opcode = 5
	OpGet    Opcode = 6
	OpDelete Opcode = 7
	OpList   Opcode = 8
	OpCreate Opcode = 9
)

// Status identifies a reply's outcome. Values match the fixed wire contract
// in §6 of the specification and must never be renumbered.
type Status int32

const (
	StatusOK             Status = 0
	StatusDataError      Status = 400
	StatusUnAuth         Status = 401
	StatusNoDB           Status = 402
	StatusNoDBSelected   Status = 403
	StatusBadCommand     Status = 404
	StatusNotFound       Status = 405
	StatusIOError        Status = 501
	StatusCreateFailed   Status = 502
	StatusDBError        Status = 503
)

// BatchSubOp identifies one item of a BATCH request. Only Put and Delete are
// valid; any other value is a protocol error (BAD_COMMAND).
type BatchSubOp int32

const (
	BatchPut    BatchSubOp = 4 // same numeric space as OpPut
	BatchDelete BatchSubOp = 7 // same numeric space as OpDelete
)
