package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/jsvx/crosscheck/internal/domain"
	"github.com/jsvx/crosscheck/internal/harness"
	"github.com/jsvx/crosscheck/internal/report"
)

// SummaryCmd renders per-implementation outcome totals from a report.
type SummaryCmd struct {
	Report string `arg:"" help:"Report file produced by 'crosscheck run'"`
}

// implTotals accumulates one implementation's outcome counts.
type implTotals struct {
	valid, invalid, errored, skipped int
}

// Run executes the summary command.
func (c *SummaryCmd) Run(globals *Globals) error {
	f, err := os.Open(c.Report)
	if err != nil {
		return &ExitError{Code: harness.ResultConfigError.ExitCode(), Message: err.Error()}
	}
	defer f.Close()

	rep, err := report.Load(f)
	if errors.Is(err, report.ErrEmptyReport) {
		fmt.Fprintln(globals.Stdout, "report is empty: no case records")
		return &ExitError{Code: harness.ResultNoInput.ExitCode(), Message: "empty report"}
	}
	if err != nil {
		return &ExitError{Code: harness.ResultDataError.ExitCode(), Message: err.Error()}
	}

	totals := map[string]*implTotals{}
	for _, impl := range rep.Metadata.Implementations {
		totals[impl.ID] = &implTotals{}
	}
	for _, rec := range rep.Cases {
		for _, result := range rec.Results {
			for id, outcome := range result {
				t := totals[id]
				if t == nil {
					t = &implTotals{}
					totals[id] = t
				}
				switch outcome.Kind {
				case domain.KindValid:
					t.valid++
				case domain.KindInvalid:
					t.invalid++
				case domain.KindErrored:
					t.errored++
				case domain.KindSkipped:
					t.skipped++
				}
			}
		}
	}

	fmt.Fprintf(globals.Stdout, "dialect: %s\ncases: %d\n\n", rep.Metadata.Dialect, len(rep.Cases))

	table := tablewriter.NewTable(globals.Stdout)
	table.Header("implementation", "valid", "invalid", "errored", "skipped")
	for _, impl := range rep.Metadata.Implementations {
		t := totals[impl.ID]
		if err := table.Append([]string{
			impl.ID,
			strconv.Itoa(t.valid),
			strconv.Itoa(t.invalid),
			strconv.Itoa(t.errored),
			strconv.Itoa(t.skipped),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}
