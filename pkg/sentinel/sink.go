// sink.go defines the Sink interface for local mirrors of report envelopes.

package sentinel

import "context"

// Sink receives a copy of every envelope before it is delivered. Sinks are
// mirrors: their errors are logged and never change a report's Outcome.
// Implementations must be safe for concurrent use.
type Sink interface {
	// Write persists an envelope. Called after enrichment and scrubbing.
	Write(ctx context.Context, env Envelope) error

	// Flush ensures any buffered envelopes are persisted.
	// For synchronous sinks, this may be a no-op.
	Flush(ctx context.Context) error

	// Close releases resources held by the sink.
	// After Close is called, Write and Flush should return errors.
	Close() error
}

// Deliverer sends envelopes to the collection endpoint.
type Deliverer interface {
	// Send delivers env and reports the result. It never panics and never
	// returns a nil-status Outcome.
	Send(ctx context.Context, env Envelope) Outcome

	// Ping performs a lightweight reachability probe.
	Ping(ctx context.Context) error
}
