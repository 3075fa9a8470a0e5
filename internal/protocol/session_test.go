package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsvx/crosscheck/internal/domain"
)

const fakeMetadata = `{
	"name": "fake-validator",
	"language": "go",
	"homepage": "https://example.com/fake",
	"issues": "https://example.com/fake/issues",
	"source": "https://example.com/fake.git",
	"dialects": ["https://json-schema.org/draft/2020-12/schema", "http://json-schema.org/draft-07/schema#"]
}`

// fakeTransport is an in-memory stand-in for a container process. Responses
// are queued onto the lines channel ahead of the calls that consume them.
type fakeTransport struct {
	mu         sync.Mutex
	sent       [][]byte
	sendErr    error
	stderr     string
	terminated int

	lines chan []byte
	done  chan error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		lines: make(chan []byte, 16),
		done:  make(chan error, 1),
	}
}

func (f *fakeTransport) Send(line []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	cp := make([]byte, len(line))
	copy(cp, line)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeTransport) Lines() <-chan []byte { return f.lines }
func (f *fakeTransport) Done() <-chan error   { return f.done }

func (f *fakeTransport) Stderr() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stderr
}

func (f *fakeTransport) Terminate(time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated++
	return nil
}

func (f *fakeTransport) terminations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminated
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeTransport) queue(line string) {
	f.lines <- []byte(line)
}

func testCase(t *testing.T) domain.TestCase {
	t.Helper()
	tc, err := domain.ParseTestCase([]byte(`{"description":"integers","schema":{"type":"integer"},"tests":[{"description":"one","instance":1}]}`))
	require.NoError(t, err)
	return tc
}

func startedSession(t *testing.T, ft *fakeTransport) *Session {
	t.Helper()
	s := NewSession("fake", ft, Options{})
	ft.queue(fmt.Sprintf(`{"version":1,"implementation":%s}`, fakeMetadata))
	_, err := s.Start(context.Background())
	require.NoError(t, err)
	return s
}

func TestSessionStart(t *testing.T) {
	ft := newFakeTransport()
	s := NewSession("fake", ft, Options{})
	require.Equal(t, StateUnstarted, s.State())

	ft.queue(fmt.Sprintf(`{"version":1,"implementation":%s}`, fakeMetadata))
	impl, err := s.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, "fake-validator", impl.Name)
	assert.Equal(t, "fake", impl.ID)

	require.Equal(t, 1, ft.sentCount())
	var req map[string]any
	require.NoError(t, json.Unmarshal(ft.sent[0], &req))
	assert.Equal(t, "start", req["cmd"])
	assert.EqualValues(t, Version, req["version"])
}

func TestSessionStartTwiceRejected(t *testing.T) {
	ft := newFakeTransport()
	s := startedSession(t, ft)

	_, err := s.Start(context.Background())
	assert.Error(t, err)
}

func TestSessionStartVersionMismatch(t *testing.T) {
	ft := newFakeTransport()
	s := NewSession("fake", ft, Options{})

	ft.queue(fmt.Sprintf(`{"version":2,"implementation":%s}`, fakeMetadata))
	_, err := s.Start(context.Background())

	var vErr *VersionMismatchError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 2, vErr.Got)
	assert.True(t, s.Crashed())
	assert.Equal(t, 1, ft.terminations())
}

func TestSessionStartBadMetadata(t *testing.T) {
	ft := newFakeTransport()
	s := NewSession("fake", ft, Options{})

	ft.queue(`{"version":1,"implementation":{"name":"incomplete"}}`)
	_, err := s.Start(context.Background())

	var mErr *MetadataError
	require.ErrorAs(t, err, &mErr)
	assert.True(t, s.Crashed())
}

func TestSessionStartProcessDiesSilently(t *testing.T) {
	ft := newFakeTransport()
	ft.stderr = "panic: cannot bind"
	close(ft.lines)
	s := NewSession("fake", ft, Options{})

	_, err := s.Start(context.Background())

	var sErr *StartupError
	require.ErrorAs(t, err, &sErr)
	assert.Contains(t, sErr.Error(), "panic: cannot bind")
	assert.True(t, s.Crashed())
}

func TestSessionStartTimeout(t *testing.T) {
	ft := newFakeTransport()
	clk := clock.NewMock()
	s := NewSession("fake", ft, Options{Timeout: 5 * time.Second, Clock: clk})

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Start(context.Background())
		errCh <- err
	}()

	// Let Start reach the timer before advancing the mock clock.
	time.Sleep(20 * time.Millisecond)
	clk.Add(5 * time.Second)

	err := <-errCh
	var sErr *StartupError
	require.ErrorAs(t, err, &sErr)
	assert.True(t, s.Crashed())
}

func TestSessionSetDialect(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		ft := newFakeTransport()
		s := startedSession(t, ft)

		ft.queue(`{"ok":true}`)
		require.NoError(t, s.SetDialect(context.Background(), "http://json-schema.org/draft-07/schema#"))
		assert.Equal(t, StateDialectSet, s.State())
	})

	t.Run("refused at runtime", func(t *testing.T) {
		ft := newFakeTransport()
		s := startedSession(t, ft)

		ft.queue(`{"ok":false}`)
		err := s.SetDialect(context.Background(), "http://json-schema.org/draft-07/schema#")

		var dErr *DialectUnsupportedError
		require.ErrorAs(t, err, &dErr)
		// The implementation is healthy, just unusable for this dialect.
		assert.Equal(t, StateReady, s.State())
		assert.False(t, s.Crashed())
	})

	t.Run("not declared", func(t *testing.T) {
		ft := newFakeTransport()
		s := startedSession(t, ft)
		before := ft.sentCount()

		err := s.SetDialect(context.Background(), "http://json-schema.org/draft-04/schema#")

		var dErr *DialectUnsupportedError
		require.ErrorAs(t, err, &dErr)
		// Nothing crossed the wire for a dialect the metadata rules out.
		assert.Equal(t, before, ft.sentCount())
	})
}

func dialectSetSession(t *testing.T, ft *fakeTransport) *Session {
	t.Helper()
	s := startedSession(t, ft)
	ft.queue(`{"ok":true}`)
	require.NoError(t, s.SetDialect(context.Background(), "https://json-schema.org/draft/2020-12/schema"))
	return s
}

func TestSessionRun(t *testing.T) {
	ft := newFakeTransport()
	s := dialectSetSession(t, ft)

	tc := testCase(t)
	seq := s.NextSeq()
	ft.queue(fmt.Sprintf(`{"seq":%d,"results":[{"valid":true}]}`, seq))

	res, err := s.Run(context.Background(), seq, tc)
	require.NoError(t, err)
	assert.Equal(t, seq, res.Seq)
	require.Len(t, res.Results, 1)
	assert.Equal(t, StateRunning, s.State())
}

func TestSessionRunSequenceMismatch(t *testing.T) {
	ft := newFakeTransport()
	s := dialectSetSession(t, ft)

	seq := s.NextSeq()
	ft.queue(fmt.Sprintf(`{"seq":%d,"results":[{"valid":true}]}`, seq+7))
	_, err := s.Run(context.Background(), seq, testCase(t))

	var qErr *SequenceError
	require.ErrorAs(t, err, &qErr)
	assert.Equal(t, seq, qErr.Want)
	assert.Equal(t, seq+7, qErr.Got)

	// The session survives and the next exchange proceeds normally.
	assert.False(t, s.Crashed())
	next := s.NextSeq()
	ft.queue(fmt.Sprintf(`{"seq":%d,"results":[{"valid":false}]}`, next))
	_, err = s.Run(context.Background(), next, testCase(t))
	assert.NoError(t, err)
}

func TestSessionRunMalformedResponse(t *testing.T) {
	ft := newFakeTransport()
	s := dialectSetSession(t, ft)

	seq := s.NextSeq()
	ft.queue(`this is not json`)
	_, err := s.Run(context.Background(), seq, testCase(t))

	var rErr *ResponseError
	require.ErrorAs(t, err, &rErr)
	assert.False(t, s.Crashed())
}

func TestSessionRunTransportDeath(t *testing.T) {
	ft := newFakeTransport()
	s := dialectSetSession(t, ft)
	ft.stderr = "segmentation fault"
	close(ft.lines)

	_, err := s.Run(context.Background(), s.NextSeq(), testCase(t))

	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Contains(t, tErr.Error(), "segmentation fault")
	assert.True(t, s.Crashed())
}

func TestSessionRunBeforeDialect(t *testing.T) {
	ft := newFakeTransport()
	s := startedSession(t, ft)

	_, err := s.Run(context.Background(), s.NextSeq(), testCase(t))
	assert.Error(t, err)
}

func TestSessionRunContextCanceled(t *testing.T) {
	ft := newFakeTransport()
	s := dialectSetSession(t, ft)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Run(ctx, s.NextSeq(), testCase(t))
	assert.Error(t, err)
	assert.True(t, s.Crashed())
}

func TestSessionStopIdempotent(t *testing.T) {
	ft := newFakeTransport()
	s := startedSession(t, ft)
	sentBefore := ft.sentCount()

	require.NoError(t, s.Stop())
	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, sentBefore+1, ft.sentCount(), "expected a stop command on the wire")
	assert.Equal(t, 1, ft.terminations())

	require.NoError(t, s.Stop())
	assert.Equal(t, 1, ft.terminations())
}

func TestSessionStopUnstartedSkipsWire(t *testing.T) {
	ft := newFakeTransport()
	s := NewSession("fake", ft, Options{})

	require.NoError(t, s.Stop())
	assert.Zero(t, ft.sentCount())
	assert.Equal(t, 1, ft.terminations())
}

func TestSessionNextSeq(t *testing.T) {
	s := NewSession("fake", newFakeTransport(), Options{})
	assert.Equal(t, 1, s.NextSeq())
	assert.Equal(t, 2, s.NextSeq())
	assert.Equal(t, 3, s.NextSeq())
}
