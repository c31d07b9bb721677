package model

import "fmt"

// ErrInvalidTransition is returned when a Task transition method
// (MarkRunning, Complete, Fail) is called from a state that does not permit
// it. Job.SetStatus does not check transitions and never returns it.
var ErrInvalidTransition = &ScanError{Code: "E3002", Message: "invalid state transition"}

// ErrorCode is a stable short code identifying an error kind, carried
// across process/persistence boundaries so a stored job's failure reason
// stays meaningful after the process that produced it exits.
type ErrorCode string

const (
	CodeInvalidTarget ErrorCode = "E1001"
	CodeToolNotFound  ErrorCode = "E2001"
	CodeScheduler     ErrorCode = "E3001"
	CodeExecution     ErrorCode = "E4001"
)

// ScanError is the base error type for all scanforge domain errors.
type ScanError struct {
	Code    ErrorCode
	Message string
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidTargetError reports a malformed or disallowed scan target.
func NewInvalidTargetError(reason string) *ScanError {
	return &ScanError{Code: CodeInvalidTarget, Message: reason}
}

// NewToolNotFoundError reports a task referencing an unregistered tool.
func NewToolNotFoundError(toolName string) *ScanError {
	return &ScanError{Code: CodeToolNotFound, Message: fmt.Sprintf("unknown tool %q", toolName)}
}

// NewSchedulerError reports a scheduler-level failure (unknown job, cycle,
// deadlock) distinct from an individual task's own failure.
func NewSchedulerError(reason string) *ScanError {
	return &ScanError{Code: CodeScheduler, Message: reason}
}

// NewExecutionError reports a tool adapter or command executor failure.
func NewExecutionError(reason string) *ScanError {
	return &ScanError{Code: CodeExecution, Message: reason}
}
