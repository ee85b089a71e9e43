// Package metrics defines the optional observability surface for the
// service. Noop() returns an implementation that discards everything, so
// callers that don't want metrics never need to nil-check before recording.
package metrics

import "time"

// Metrics collects counters and gauges for the acceptor (C7) and command
// handlers (C6).
type Metrics interface {
	// ConnectionOpened records a newly accepted connection.
	ConnectionOpened()

	// ConnectionClosed records a connection ending, lowering the count of
	// active connections by one.
	ConnectionClosed()

	// CommandProcessed records one dispatched command: its opcode name,
	// the wire status it replied with, and how long the handler took.
	CommandProcessed(opcode string, status string, duration time.Duration)

	// BatchSize records the number of sub-operations in a successfully
	// applied BATCH command.
	BatchSize(n int)
}

type noopMetrics struct{}

func (noopMetrics) ConnectionOpened() {}
func (noopMetrics) ConnectionClosed() {}
func (noopMetrics) CommandProcessed(opcode string, status string, d time.Duration) {}
func (noopMetrics) BatchSize(n int) {}

// Noop returns a Metrics implementation that discards everything.
func Noop() Metrics { return noopMetrics{} }
