package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/jsvx/crosscheck/internal/dialect"
	"github.com/jsvx/crosscheck/internal/domain"
	"github.com/jsvx/crosscheck/internal/harness"
)

// SmokeCmd checks one or more implementations for basic protocol
// correctness: a clean handshake plus two trivial cases with known answers.
type SmokeCmd struct {
	Implementations []string      `short:"i" name:"implementation" required:"" help:"Implementation to smoke test. Repeatable."`
	Timeout         time.Duration `help:"Per-exchange response timeout"`
	Direct          bool          `help:"Treat implementations as local commands instead of container images"`
	Network         bool          `help:"Allow implementations outbound network access"`
}

var (
	smokePassStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	smokeFailStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
)

func maybeNoStyleSmoke(globals *Globals) {
	if globals == nil || globals.Stdout == nil {
		return
	}
	if f, ok := globals.Stdout.(*os.File); ok {
		if !isatty.IsTerminal(f.Fd()) {
			smokePassStyle = smokePassStyle.UnsetForeground()
			smokeFailStyle = smokeFailStyle.UnsetForeground().UnsetBold()
		}
	}
}

// smokeCases are the built-in trivial cases with known answers.
func smokeCases(dialectURI string) []domain.TestCase {
	boolPtr := func(b bool) *bool { return &b }
	allowEverything, _ := json.Marshal(map[string]string{"$schema": dialectURI})
	allowNothing, _ := json.Marshal(map[string]any{"$schema": dialectURI, "not": map[string]any{}})
	return []domain.TestCase{
		{
			Description: "allow-everything schema",
			Schema:      allowEverything,
			Tests: []domain.Test{
				{Description: "First", Instance: json.RawMessage(`1`), Valid: boolPtr(true)},
				{Description: "Second", Instance: json.RawMessage(`"foo"`), Valid: boolPtr(true)},
			},
		},
		{
			Description: "allow-nothing schema",
			Schema:      allowNothing,
			Tests: []domain.Test{
				{Description: "First", Instance: json.RawMessage(`12`), Valid: boolPtr(false)},
			},
		},
	}
}

// Run executes the smoke command.
func (c *SmokeCmd) Run(globals *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	maybeNoStyleSmoke(globals)

	runners := startRunners(ctx, globals, c.Implementations, runnerOptions{
		Direct:  c.Direct,
		Network: c.Network,
		Timeout: resolveTimeout(c.Timeout, globals),
	})
	if len(runners) == 0 {
		return &ExitError{Code: harness.ResultConfigError.ExitCode(), Message: "no implementations available"}
	}

	worst := harness.ResultOK
	for _, r := range runners {
		fmt.Fprintf(globals.Stdout, "Testing %q...\n", r.ID())
		result := c.smokeOne(ctx, globals, r)
		if result.ExitCode() > worst.ExitCode() {
			worst = result
		}
	}
	for _, r := range runners {
		_ = r.Stop()
	}

	if worst != harness.ResultOK {
		fmt.Fprintln(globals.Stdout, smokeFailStyle.Render("\nsome failures"))
		return &ExitError{Code: worst.ExitCode(), Message: worst.String()}
	}
	fmt.Fprintln(globals.Stdout, smokePassStyle.Render("\nall passed"))
	return nil
}

func (c *SmokeCmd) smokeOne(ctx context.Context, globals *Globals, r harness.Runner) harness.Result {
	impl, err := r.Start(ctx)
	if err != nil {
		fmt.Fprintf(globals.Stdout, "  %s: startup failed\n", smokeFailStyle.Render("error"))
		globals.Logger.Warn("smoke startup failed", zap.String("implementation", r.ID()), zap.Error(err))
		return harness.ResultConfigError
	}

	d := newestSupported(impl)
	if err := r.SetDialect(ctx, d); err != nil {
		fmt.Fprintf(globals.Stdout, "  %s: could not set dialect %s\n", smokeFailStyle.Render("error"), d)
		globals.Logger.Warn("smoke dialect failed", zap.String("implementation", r.ID()), zap.Error(err))
		return harness.ResultConfigError
	}

	result := harness.ResultOK
	for _, tc := range smokeCases(d) {
		outcomes, err := harness.RunCase(ctx, r, tc)
		if err != nil {
			fmt.Fprintf(globals.Stdout, "  %s: %s\n", smokeFailStyle.Render("error"), tc.Description)
			result = harness.ResultDataError
			continue
		}
		marker := smokePassStyle.Render("ok")
		for i, o := range outcomes {
			expected := domain.KindInvalid
			if tc.Tests[i].Valid != nil && *tc.Tests[i].Valid {
				expected = domain.KindValid
			}
			if o.Kind != expected {
				marker = smokeFailStyle.Render("failed")
				result = harness.ResultDataError
				break
			}
		}
		fmt.Fprintf(globals.Stdout, "  %s: %s\n", marker, tc.Description)
	}
	return result
}

// newestSupported picks the most recent known dialect the implementation
// declares, falling back to its first declared one.
func newestSupported(impl domain.Implementation) string {
	var best *dialect.Dialect
	for _, uri := range impl.Dialects {
		d, ok := dialect.Lookup(uri)
		if !ok {
			continue
		}
		if best == nil || d.Newer(*best) {
			dd := d
			best = &dd
		}
	}
	if best != nil {
		return best.URI
	}
	return impl.Dialects[0]
}
