// Package protocol implements the line-delimited request/response protocol
// the harness speaks with each implementation, and the per-implementation
// session state machine that enforces it.
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/jsvx/crosscheck/internal/domain"
)

// State is the session lifecycle position. Crashed is absorbing: once a
// session crashes it is never retried.
type State int

const (
	StateUnstarted State = iota
	StateStarting
	StateReady
	StateDialectSet
	StateRunning
	StateStopped
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateDialectSet:
		return "dialect-set"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateCrashed:
		return "crashed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	errNoResponse = errors.New("no response before EOF")
	errTimeout    = errors.New("no response within timeout")
)

// Options configures a session. Zero values get sensible defaults.
type Options struct {
	// Timeout bounds each request/response exchange.
	Timeout time.Duration
	// Grace bounds termination before the transport is forced down.
	Grace  time.Duration
	Clock  clock.Clock
	Logger *zap.Logger
}

const (
	defaultTimeout = 10 * time.Second
	defaultGrace   = 2 * time.Second
)

// Session owns the full-duplex conversation with exactly one implementation
// for the lifetime of a run. The transport is exclusively owned; nothing
// else may read or write it.
type Session struct {
	id        string
	transport Transport
	clock     clock.Clock
	timeout   time.Duration
	grace     time.Duration
	log       *zap.Logger

	mu    sync.Mutex
	state State
	seq   int
	impl  domain.Implementation
}

// NewSession wraps a transport in an unstarted session.
func NewSession(id string, t Transport, opts Options) *Session {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Grace <= 0 {
		opts.Grace = defaultGrace
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Session{
		id:        id,
		transport: t,
		clock:     opts.Clock,
		timeout:   opts.Timeout,
		grace:     opts.Grace,
		log:       opts.Logger.With(zap.String("implementation", id)),
		state:     StateUnstarted,
	}
}

// ID returns the harness-side identity of the implementation.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Crashed reports whether the session reached the absorbing crash state.
func (s *Session) Crashed() bool { return s.State() == StateCrashed }

// Implementation returns the validated metadata. Only meaningful after a
// successful Start.
func (s *Session) Implementation() domain.Implementation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.impl
}

// NextSeq hands out this session's strictly increasing sequence numbers.
func (s *Session) NextSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Start performs the version handshake and validates the implementation's
// self-description. Every failure here is fatal: the session crashes and the
// implementation is dropped for the remainder of the run.
func (s *Session) Start(ctx context.Context) (domain.Implementation, error) {
	if err := s.transition(StateUnstarted, StateStarting); err != nil {
		return domain.Implementation{}, err
	}

	line, err := s.exchange(ctx, startRequest{Cmd: "start", Version: Version})
	if err != nil {
		return domain.Implementation{}, s.crashStartup(err)
	}

	var resp startResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return domain.Implementation{}, s.crashStartup(fmt.Errorf("malformed start response: %w", err))
	}
	if resp.Version != Version {
		s.crash()
		return domain.Implementation{}, &VersionMismatchError{ID: s.id, Got: resp.Version}
	}
	impl, err := domain.ParseImplementation(s.id, resp.Implementation)
	if err != nil {
		s.crash()
		return domain.Implementation{}, &MetadataError{ID: s.id, Err: err}
	}

	s.mu.Lock()
	s.impl = impl
	s.state = StateReady
	s.mu.Unlock()
	s.log.Debug("started", zap.String("name", impl.Name), zap.Strings("dialects", impl.Dialects))
	return impl, nil
}

// SetDialect asks the implementation to speak the given dialect. An
// unsupported dialect leaves the session healthy; the caller decides whether
// to drop the implementation.
func (s *Session) SetDialect(ctx context.Context, uri string) error {
	if err := s.transition(StateReady, StateReady); err != nil {
		return err
	}
	if !s.Implementation().SupportsDialect(uri) {
		return &DialectUnsupportedError{ID: s.id, Dialect: uri}
	}

	line, err := s.exchange(ctx, dialectRequest{Cmd: "dialect", Dialect: uri})
	if err != nil {
		return s.crashTransport(err)
	}
	var resp dialectResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return s.crashTransport(fmt.Errorf("malformed dialect response: %w", err))
	}
	if !resp.OK {
		return &DialectUnsupportedError{ID: s.id, Dialect: uri}
	}

	s.mu.Lock()
	s.state = StateDialectSet
	s.mu.Unlock()
	return nil
}

// Run sends one test case under the given sequence number. Sequence and
// response-shape errors are isolated to this exchange and leave the session
// alive; only transport death crashes it.
func (s *Session) Run(ctx context.Context, seq int, tc domain.TestCase) (*RunResult, error) {
	s.mu.Lock()
	if s.state != StateDialectSet && s.state != StateRunning {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%s: run requested in state %s", s.id, state)
	}
	s.state = StateRunning
	s.mu.Unlock()

	line, err := s.exchange(ctx, runRequest{Cmd: "run", Seq: seq, Case: tc})
	if err != nil {
		return nil, s.crashTransport(err)
	}

	if !gjson.ValidBytes(line) {
		return nil, &ResponseError{ID: s.id, Line: string(line), Err: errors.New("response is not valid JSON")}
	}
	var resp RunResult
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, &ResponseError{ID: s.id, Line: string(line), Err: err}
	}
	if resp.Seq != seq {
		return nil, &SequenceError{ID: s.id, Want: seq, Got: resp.Seq}
	}
	return &resp, nil
}

// Stop sends a best-effort termination request and tears the transport down.
// Idempotent; tolerates the process already having exited.
func (s *Session) Stop() error {
	s.mu.Lock()
	state := s.state
	if state == StateStopped || state == StateCrashed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopped
	s.mu.Unlock()

	if state != StateUnstarted {
		if req, err := json.Marshal(stopRequest{Cmd: "stop"}); err == nil {
			_ = s.transport.Send(req)
		}
	}
	return s.transport.Terminate(s.grace)
}

// exchange sends one request and waits for its single-line response.
func (s *Session) exchange(ctx context.Context, req any) ([]byte, error) {
	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if err := s.transport.Send(line); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	return s.recv(ctx)
}

// recv waits for the next response line. The transport closes its line
// channel only after delivering everything the process wrote, so a closed
// channel reliably means the conversation is over.
func (s *Session) recv(ctx context.Context) ([]byte, error) {
	timer := s.clock.Timer(s.timeout)
	defer timer.Stop()

	select {
	case line, ok := <-s.transport.Lines():
		if !ok {
			return nil, errNoResponse
		}
		return line, nil
	case <-timer.C:
		return nil, errTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// transition moves from the required state to the next, failing loudly on
// protocol misuse by the caller.
func (s *Session) transition(from, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return fmt.Errorf("%s: invalid transition from %s", s.id, s.state)
	}
	s.state = to
	return nil
}

// crash moves to the absorbing crash state and forces the transport down.
func (s *Session) crash() {
	s.mu.Lock()
	already := s.state == StateCrashed
	s.state = StateCrashed
	s.mu.Unlock()
	if !already {
		_ = s.transport.Terminate(s.grace)
	}
}

func (s *Session) crashStartup(err error) error {
	stderr := s.transport.Stderr()
	s.crash()
	return &StartupError{ID: s.id, Stderr: stderr, Err: err}
}

func (s *Session) crashTransport(err error) error {
	stderr := s.transport.Stderr()
	s.crash()
	if stderr != "" {
		err = fmt.Errorf("%w (stderr: %s)", err, stderr)
	}
	return &TransportError{ID: s.id, Err: err}
}
