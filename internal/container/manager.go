// Package container owns the external execution units the harness talks to:
// it starts, supervises and terminates the subprocess or container behind
// each protocol session. It has no protocol knowledge.
package container

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// LaunchKind selects how a spec is executed.
type LaunchKind int

const (
	// KindImage runs a container image under the configured runtime.
	KindImage LaunchKind = iota
	// KindDirect runs a local command, used by tests and development
	// adapters.
	KindDirect
)

// LaunchSpec describes one execution unit to spawn.
type LaunchSpec struct {
	// ID is the harness-side identity of the implementation.
	ID string
	// Image is the container image reference (KindImage).
	Image string
	// Argv is the direct command line (KindDirect).
	Argv []string
	// Kind selects image or direct execution.
	Kind LaunchKind
	// Network allows outbound network access. Off by default:
	// implementations are adversarial until proven otherwise.
	Network bool
}

// LaunchError means the execution unit could not be created at all (image or
// binary not found, permission denied). Distinct from a startup failure
// raised after the process exists.
type LaunchError struct {
	Spec string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("%s: launch failed: %v", e.Spec, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Manager spawns and supervises execution units.
type Manager struct {
	// runtime is the container runtime binary, "docker" by default.
	runtime string
	log     *zap.Logger
}

// NewManager builds a manager using the given container runtime binary.
func NewManager(runtime string, log *zap.Logger) *Manager {
	if runtime == "" {
		runtime = "docker"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{runtime: runtime, log: log}
}

const (
	// maxLineBytes bounds one response line. Implementations emitting
	// more than this are misbehaving.
	maxLineBytes = 1024 * 1024
	// maxStderrBytes bounds captured error-stream output.
	maxStderrBytes = 64 * 1024
	// lineBacklog bounds buffered, unread response lines.
	lineBacklog = 64
)

// Spawn creates the execution unit for spec and returns its duplex stream.
// Immediate failures are LaunchErrors; anything after the process exists is
// the session's problem.
func (m *Manager) Spawn(ctx context.Context, spec LaunchSpec) (*Proc, error) {
	argv, err := m.argv(spec)
	if err != nil {
		return nil, &LaunchError{Spec: spec.ID, Err: err}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &LaunchError{Spec: spec.ID, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &LaunchError{Spec: spec.ID, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &LaunchError{Spec: spec.ID, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Spec: spec.ID, Err: err}
	}
	m.log.Debug("spawned", zap.String("id", spec.ID), zap.Strings("argv", argv), zap.Int("pid", cmd.Process.Pid))

	p := &Proc{
		id:       spec.ID,
		cmd:      cmd,
		stdin:    stdin,
		lines:    make(chan []byte, lineBacklog),
		done:     make(chan error, 1),
		waitDone: make(chan struct{}),
		quit:     make(chan struct{}),
	}

	var readers sync.WaitGroup
	readers.Add(2)

	go func() {
		defer readers.Done()
		defer close(p.lines)
		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for sc.Scan() {
			line := make([]byte, len(sc.Bytes()))
			copy(line, sc.Bytes())
			select {
			case p.lines <- line:
			case <-p.quit:
				return
			}
		}
	}()

	go func() {
		defer readers.Done()
		buf := make([]byte, 4096)
		for {
			n, err := stderr.Read(buf)
			if n > 0 {
				p.appendStderr(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	go func() {
		readers.Wait()
		err := cmd.Wait()
		p.done <- err
		close(p.done)
		close(p.waitDone)
	}()

	return p, nil
}

func (m *Manager) argv(spec LaunchSpec) ([]string, error) {
	switch spec.Kind {
	case KindImage:
		if spec.Image == "" {
			return nil, fmt.Errorf("image spec has no image reference")
		}
		argv := []string{m.runtime, "run", "--rm", "--interactive"}
		if !spec.Network {
			argv = append(argv, "--network", "none")
		}
		return append(argv, spec.Image), nil
	case KindDirect:
		if len(spec.Argv) == 0 {
			return nil, fmt.Errorf("direct spec has no command")
		}
		return spec.Argv, nil
	default:
		return nil, fmt.Errorf("unknown launch kind %d", spec.Kind)
	}
}

// Proc is one running execution unit. It satisfies the protocol transport
// contract: the line channel closes only after every line the process wrote
// has been delivered.
type Proc struct {
	id       string
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	lines    chan []byte
	done     chan error
	waitDone chan struct{}
	quit     chan struct{}

	writeMu sync.Mutex

	stderrMu sync.Mutex
	stderr   []byte

	termOnce sync.Once
	termErr  error
}

// Send writes one newline-terminated request line to the process.
func (p *Proc) Send(line []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if _, err := p.stdin.Write(line); err != nil {
		return err
	}
	_, err := p.stdin.Write([]byte{'\n'})
	return err
}

// Lines yields response lines; closed on EOF.
func (p *Proc) Lines() <-chan []byte { return p.lines }

// Done fires once the process has exited.
func (p *Proc) Done() <-chan error { return p.done }

// Stderr returns the captured error-stream output so far.
func (p *Proc) Stderr() string {
	p.stderrMu.Lock()
	defer p.stderrMu.Unlock()
	return string(p.stderr)
}

func (p *Proc) appendStderr(b []byte) {
	p.stderrMu.Lock()
	defer p.stderrMu.Unlock()
	if room := maxStderrBytes - len(p.stderr); room > 0 {
		if len(b) > room {
			b = b[:room]
		}
		p.stderr = append(p.stderr, b...)
	}
}

// Terminate closes stdin, signals the process, and forces it down after the
// grace period. Idempotent; tolerates an already-dead process.
func (p *Proc) Terminate(grace time.Duration) error {
	p.termOnce.Do(func() {
		close(p.quit)
		_ = p.stdin.Close()
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Signal(syscall.SIGTERM)
		}
		select {
		case <-p.waitDone:
		case <-time.After(grace):
			if p.cmd.Process != nil {
				p.termErr = p.cmd.Process.Kill()
			}
			<-p.waitDone
		}
	})
	return p.termErr
}
