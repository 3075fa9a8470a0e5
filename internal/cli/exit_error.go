package cli

// ExitError carries a specific process exit code out of a command so main
// can distinguish configuration errors, empty input and data failures.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}
