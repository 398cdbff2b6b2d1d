package errors

import (
	"errors"
	"os/exec"
)

// ExitError carries the exit status of a child command so the CLI can
// forward it as its own.
type ExitError struct {
	Code int
	Err  error
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return "command exited with non-zero status"
}

// Unwrap returns the underlying error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var ee *ExitError
	if errors.As(err, &ee) && ee.Code > 0 {
		return ee.Code
	}

	var xe *exec.ExitError
	if errors.As(err, &xe) && xe.ExitCode() > 0 {
		return xe.ExitCode()
	}

	return 1
}
