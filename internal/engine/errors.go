package engine

// SkipError marks a transient condition. The sub-job is left untouched and
// retried on the next tick.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return e.Reason
}

// Skip wraps a transient reason.
func Skip(reason string) error {
	return &SkipError{Reason: reason}
}

// TerminalError marks a condition that fails the sub-job permanently. The
// reason is persisted into the sub-job details.
type TerminalError struct {
	Reason string
}

func (e *TerminalError) Error() string {
	return e.Reason
}

// Fail wraps a terminal reason.
func Fail(reason string) error {
	return &TerminalError{Reason: reason}
}
