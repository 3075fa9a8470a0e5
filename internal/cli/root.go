package cli

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jsvx/crosscheck/internal/config"
)

// CLI is the root command structure for crosscheck.
type CLI struct {
	// Global flags
	Quiet   bool `short:"q" help:"Suppress diagnostics (errors only)"`
	Verbose bool `short:"v" help:"Show debug diagnostics (protocol exchanges, session state)"`

	// Commands
	Run      RunCmd      `cmd:"" default:"withargs" help:"Run a stream of test cases against implementations"`
	Smoke    SmokeCmd    `cmd:"" help:"Smoke test implementations for basic protocol correctness"`
	Summary  SummaryCmd  `cmd:"" help:"Summarize per-implementation outcomes from a report"`
	Validate ValidateCmd `cmd:"" help:"Check that a report stream parses"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`
}

// Globals holds shared state for all commands.
type Globals struct {
	Quiet   bool
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
	Config  *config.Config
	Logger  *zap.Logger
}

// NewGlobals creates a Globals instance from CLI flags with config
// fallbacks. Diagnostics always go to stderr so stdout stays a clean report
// stream.
func NewGlobals(cli *CLI, cfg *config.Config) *Globals {
	if cfg == nil {
		cfg = config.Default()
	}
	g := &Globals{
		Quiet:   cli.Quiet || cfg.Quiet,
		Verbose: cli.Verbose || cfg.Verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Config:  cfg,
	}
	g.Logger = newLogger(g.Stderr, g.Quiet, g.Verbose)
	return g
}

// newLogger builds the diagnostic side channel: console-encoded zap bound to
// the given writer.
func newLogger(w io.Writer, quiet, verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	if quiet {
		level = zapcore.ErrorLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(writerSyncer{w}),
		level,
	)
	return zap.New(core)
}

type writerSyncer struct{ io.Writer }

func (writerSyncer) Sync() error { return nil }

// VersionCmd shows version information.
type VersionCmd struct{}

// Run executes the version command.
func (v *VersionCmd) Run(globals *Globals) error {
	_, err := io.WriteString(globals.Stdout, "crosscheck version "+Version+" ("+Commit+")\n")
	return err
}

// Version information (set at build time)
var (
	Version = "dev"
	Commit  = "none"
)
