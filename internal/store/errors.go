package store

// Result is the engine-agnostic outcome of a storage operation, the Go
// stand-in for the spec's "ok/not-found/io-error" status trio that the
// out-of-scope embedded engine is specified to return. Command handlers map
// Result to the wire protocol's status codes; the underlying Badger error
// text itself is logged, never sent to the client (§7).
type Result int

const (
	ResultOK Result = iota
	ResultNotFound
	ResultError
)
