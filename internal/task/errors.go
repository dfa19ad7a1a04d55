package task

import (
	"errors"
	"fmt"
)

// Common errors returned by the Executor and by Task accessors.
var (
	// ErrShutdown is returned by Submit after Shutdown has been called.
	ErrShutdown = errors.New("executor is shut down")

	// ErrNilCallable is returned by Submit when the callable is nil.
	ErrNilCallable = errors.New("callable must not be nil")

	// ErrQueueFull is returned by Submit when the pending queue is at capacity.
	ErrQueueFull = errors.New("pending queue is full")

	// ErrNegativeDuration is returned by configuration setters for durations < 0.
	ErrNegativeDuration = errors.New("duration must not be negative")

	// ErrTimeout is returned by GetTimeout when the deadline elapses before
	// the task reaches a terminal state. It says nothing about the task's
	// outcome; the task keeps running.
	ErrTimeout = errors.New("timed out waiting for task completion")

	// ErrCancelled is returned by Get for a task cancelled while queued.
	ErrCancelled = errors.New("task was cancelled")

	// ErrInterrupted is returned by Get for a task interrupted while running.
	ErrInterrupted = errors.New("task was interrupted")
)

// ExecutionError wraps the failure cause of a task whose callable returned
// an error or panicked. Get callers unwrap it to reach the original cause.
type ExecutionError struct {
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("task execution failed: %v", e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}
