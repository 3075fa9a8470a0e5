package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/jsvx/crosscheck/internal/harness"
	"github.com/jsvx/crosscheck/internal/report"
)

// ValidateCmd re-parses a report stream, distinguishing a structurally
// sound but empty report from one that does not parse at all.
type ValidateCmd struct {
	Report string `arg:"" help:"Report file to check"`
}

// Run executes the validate command.
func (c *ValidateCmd) Run(globals *Globals) error {
	f, err := os.Open(c.Report)
	if err != nil {
		return &ExitError{Code: harness.ResultConfigError.ExitCode(), Message: err.Error()}
	}
	defer f.Close()

	rep, err := report.Load(f)
	if errors.Is(err, report.ErrEmptyReport) {
		fmt.Fprintln(globals.Stdout, "report is empty: metadata only, no case records")
		return &ExitError{Code: harness.ResultNoInput.ExitCode(), Message: "empty report"}
	}
	if err != nil {
		fmt.Fprintf(globals.Stdout, "report does not parse: %v\n", err)
		return &ExitError{Code: harness.ResultDataError.ExitCode(), Message: err.Error()}
	}

	fmt.Fprintf(globals.Stdout, "report ok: %d implementations, %d cases\n",
		len(rep.Metadata.Implementations), len(rep.Cases))
	return nil
}
