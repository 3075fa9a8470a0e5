package harness

// Result is the logical outcome of a whole run, distinct from raw process
// exit codes; the CLI maps it onto sysexits-style codes.
type Result int

const (
	// ResultOK means cases ran and every dispatched case is fully
	// accounted for in the report.
	ResultOK Result = iota
	// ResultNoInput means the input stream held no cases at all.
	ResultNoInput
	// ResultConfigError means no implementations were available after
	// startup, or the configuration itself was invalid.
	ResultConfigError
	// ResultDataError means cases ran but produced non-valid outcomes a
	// compliance-checking caller treats as failure.
	ResultDataError
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultNoInput:
		return "no input"
	case ResultConfigError:
		return "configuration error"
	case ResultDataError:
		return "data error"
	default:
		return "unknown"
	}
}

// ExitCode maps the result onto the conventional sysexits values the
// original tooling used.
func (r Result) ExitCode() int {
	switch r {
	case ResultOK:
		return 0
	case ResultNoInput:
		return 66
	case ResultConfigError:
		return 78
	case ResultDataError:
		return 65
	default:
		return 1
	}
}

// Summary is what a finished run hands back to the caller.
type Summary struct {
	Result Result
	// Cases is how many cases were dispatched before any stop condition.
	Cases int
	// Failures counts non-valid outcomes across the whole run.
	Failures int
	// DidStopEarly reports whether fail-fast or max-fail cut the run short.
	DidStopEarly bool
}
