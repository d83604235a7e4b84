package cli

import "fmt"

// Carries a process exit code through the CLI error path.
//
// Returned when a run command's container exits non-zero so main can
// propagate the code instead of flattening every failure to 1.
type ExitError struct {
	Code int   // Exit code to propagate.
	Err  error // Underlying cause; may be nil for a plain non-zero exit.
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
