package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jsvx/crosscheck/internal/dialect"
	"github.com/jsvx/crosscheck/internal/harness"
	"github.com/jsvx/crosscheck/internal/report"
)

// RunCmd runs a stream of test cases against one or more implementations
// and streams the report to stdout.
type RunCmd struct {
	Input           string        `arg:"" optional:"" help:"NDJSON file of test cases (defaults to stdin)"`
	Implementations []string      `short:"i" name:"implementation" required:"" help:"Implementation to run: a container image (bare names get the configured repository prefix), or a command line with --direct. Repeatable."`
	Dialect         string        `short:"D" help:"Dialect URI or shortname for the run (default: newest known)"`
	FailFast        bool          `short:"x" help:"Stop after the first case containing a non-valid outcome"`
	MaxFail         int           `help:"Stop once this many non-valid outcomes have accumulated"`
	Filter          string        `short:"k" help:"Only run cases whose description matches this glob pattern"`
	SetSchema       bool          `short:"S" help:"Explicitly set $schema on all non-boolean case schemas sent to implementations"`
	Timeout         time.Duration `help:"Per-exchange response timeout (default from config, 10s)"`
	Direct          bool          `help:"Treat implementations as local commands instead of container images"`
	Network         bool          `help:"Allow implementations outbound network access"`
}

// Run executes the run command.
func (c *RunCmd) Run(globals *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := resolveDialect(c.Dialect, globals)
	if err != nil {
		return &ExitError{Code: harness.ResultConfigError.ExitCode(), Message: err.Error()}
	}

	input, closeInput, err := openInput(c.Input)
	if err != nil {
		return &ExitError{Code: harness.ResultConfigError.ExitCode(), Message: err.Error()}
	}
	defer closeInput()

	runners := startRunners(ctx, globals, c.Implementations, runnerOptions{
		Direct:  c.Direct,
		Network: c.Network,
		Timeout: resolveTimeout(c.Timeout, globals),
	})

	h, err := harness.New(runners, report.NewWriter(globals.Stdout), harness.Options{
		Dialect:   d,
		FailFast:  c.FailFast,
		MaxFail:   resolveMaxFail(c.MaxFail, c.FailFast, globals),
		SetSchema: c.SetSchema,
		Logger:    globals.Logger,
	})
	if err != nil {
		for _, r := range runners {
			_ = r.Stop()
		}
		return &ExitError{Code: harness.ResultConfigError.ExitCode(), Message: err.Error()}
	}

	var cases harness.CaseSource = harness.NewNDJSONSource(input)
	if c.Filter != "" {
		cases = harness.NewFilterSource(cases, c.Filter)
	}

	summary, err := h.Run(ctx, cases)
	if err != nil {
		return err
	}
	globals.Logger.Info("run finished",
		zap.Int("cases", summary.Cases),
		zap.Int("failures", summary.Failures),
		zap.Bool("stopped_early", summary.DidStopEarly))
	if code := summary.Result.ExitCode(); code != 0 {
		return &ExitError{Code: code, Message: summary.Result.String()}
	}
	return nil
}

// resolveDialect picks the run's dialect from the flag, the config file, or
// the newest known dialect, in that order.
func resolveDialect(flag string, globals *Globals) (dialect.Dialect, error) {
	name := flag
	if name == "" {
		name = globals.Config.Dialect
	}
	if name == "" {
		return dialect.Latest(), nil
	}
	d, ok := dialect.Lookup(name)
	if !ok {
		return dialect.Dialect{}, fmt.Errorf("unknown dialect %q (shortnames: %v)", name, dialect.ShortNames())
	}
	return d, nil
}

// resolveMaxFail falls back from the flag to the config file. An explicit
// fail-fast flag suppresses the config default; only giving both flags is a
// conflict.
func resolveMaxFail(flag int, failFast bool, globals *Globals) int {
	if flag > 0 {
		return flag
	}
	if failFast {
		return 0
	}
	return globals.Config.MaxFail
}

// resolveTimeout falls back from the flag to the config file to the
// protocol default.
func resolveTimeout(flag time.Duration, globals *Globals) time.Duration {
	if flag > 0 {
		return flag
	}
	if globals.Config.Timeout != "" {
		if d, err := time.ParseDuration(globals.Config.Timeout); err == nil && d > 0 {
			return d
		}
	}
	return 10 * time.Second
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
