package protocol

import "fmt"

// The errors below separate malformed single exchanges (SequenceError,
// ResponseError), after which the session stays usable, from transport death
// (TransportError), which crashes the session and drops the implementation.
// Handshake failures (StartupError, VersionMismatchError, MetadataError) are
// always fatal to the implementation.

// StartupError means the handshake failed after the process existed: it
// exited, produced stderr instead of a response, or stayed silent past the
// timeout.
type StartupError struct {
	ID     string
	Stderr string
	Err    error
}

func (e *StartupError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: startup failed: %v (stderr: %s)", e.ID, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: startup failed: %v", e.ID, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

// VersionMismatchError means the implementation speaks a different protocol
// version than the harness.
type VersionMismatchError struct {
	ID  string
	Got int
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("%s: speaks protocol version %d, harness speaks %d", e.ID, e.Got, Version)
}

// MetadataError means the implementation's self-description failed
// validation against the metadata schema.
type MetadataError struct {
	ID  string
	Err error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("%s: invalid metadata: %v", e.ID, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// DialectUnsupportedError means the implementation does not support the
// requested dialect. The session itself is still healthy.
type DialectUnsupportedError struct {
	ID      string
	Dialect string
}

func (e *DialectUnsupportedError) Error() string {
	return fmt.Sprintf("%s: does not support dialect %s", e.ID, e.Dialect)
}

// SequenceError means a run response echoed the wrong sequence number.
// Isolated to the one exchange.
type SequenceError struct {
	ID   string
	Want int
	Got  int
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("%s: response sequence %d, expected %d", e.ID, e.Got, e.Want)
}

// ResponseError means a response line was not valid JSON or not the shape
// the protocol requires. Isolated to the one exchange.
type ResponseError struct {
	ID   string
	Line string
	Err  error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: invalid response: %v", e.ID, e.Err)
}

func (e *ResponseError) Unwrap() error { return e.Err }

// TransportError means the process died or the pipe broke. Fatal to the
// session.
type TransportError struct {
	ID  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failed: %v", e.ID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
