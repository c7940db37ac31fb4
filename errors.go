package sqlgate

import (
	"fmt"
	"time"
)

// UnknownTargetError is returned when a logical database name does not
// match any configured target.
type UnknownTargetError struct {
	Name string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown database target %q", e.Name)
}

// PoolExhaustedError is returned when no pooled connection became free
// within the acquire timeout.
type PoolExhaustedError struct {
	Target string
	Wait   time.Duration
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("connection pool for target %q exhausted: no connection became free within %s", e.Target, e.Wait)
}

// ReadOnlyViolationError is returned when a statement classified as a
// write is submitted while the gateway runs in read-only mode. The
// statement never reaches a connection.
type ReadOnlyViolationError struct {
	Statement string
}

func (e *ReadOnlyViolationError) Error() string {
	return fmt.Sprintf("write statement blocked by read-only mode: %s", e.Statement)
}

// ParameterBindingError is returned when the number of provided
// positional parameters does not match the $n placeholders in the SQL.
type ParameterBindingError struct {
	Placeholders int
	Args         int
}

func (e *ParameterBindingError) Error() string {
	return fmt.Sprintf("parameter count mismatch: statement references %d placeholder(s), %d argument(s) provided", e.Placeholders, e.Args)
}

// TimeoutError is returned when an operation exceeded its configured
// deadline. It is distinct from ExecutionError so callers can decide
// whether to retry. The connection involved is discarded, never pooled.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded the %s timeout", e.Op, e.Limit)
}

// ExecutionError wraps a driver-reported failure. Message has been
// redacted and length-capped; it never contains credentials or a full
// driver stack.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string {
	return e.Message
}
