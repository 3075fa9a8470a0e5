package protocol

import "time"

// Transport is one exclusively-owned duplex line channel to a running
// implementation. The production transport is a subprocess or container
// managed by internal/container; tests substitute in-memory pipes.
type Transport interface {
	// Send writes one request line. A write against a dead process
	// returns an error.
	Send(line []byte) error
	// Lines yields response lines. The channel closes on EOF.
	Lines() <-chan []byte
	// Done fires once when the underlying process exits, carrying its
	// exit error if any.
	Done() <-chan error
	// Stderr returns the error-stream output captured so far.
	Stderr() string
	// Terminate tears the process down, waiting up to grace before
	// forcing. Idempotent; tolerates an already-dead process.
	Terminate(grace time.Duration) error
}
