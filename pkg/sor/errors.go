package sor

import "fmt"

// DeltaSizeLimitError reports a single encoded delta over the size limit.
// The condition is terminal for the whole UpdateAll call; the offending
// update is never silently dropped.
type DeltaSizeLimitError struct {
	Size  int
	Limit int
}

func (e *DeltaSizeLimitError) Error() string {
	return fmt.Sprintf("delta exceeds size limit of %d: %d", e.Limit, e.Size)
}

// FrameSizeError reports a physical batch whose wire frame met or
// exceeded the transport frame limit. Callers may reduce batching
// aggressiveness and retry; this layer does not.
type FrameSizeError struct {
	Op  string
	Err error
}

func (e *FrameSizeError) Error() string {
	return fmt.Sprintf("request frame too large to %s: %v", e.Op, e.Err)
}

func (e *FrameSizeError) Unwrap() error { return e.Err }

// ExecutionError wraps any other physical write failure with a
// description of the attempted operation.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
