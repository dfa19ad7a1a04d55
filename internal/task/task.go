package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/asyncd/asyncd/internal/platform/metrics"
)

// State represents the current lifecycle state of a task
type State string

// Possible task states. Transitions are monotonic except the externally
// triggered Queued→Cancelled and Running→Interrupted.
const (
	StateQueued      State = "queued"
	StateRunning     State = "running"
	StateDone        State = "done"
	StateFailed      State = "failed"
	StateCancelled   State = "cancelled"
	StateInterrupted State = "interrupted"
)

// Callable is a unit of work submitted to the Executor. The context is
// cancelled when the task is interrupted; cooperative callables should
// honor it. The returned value becomes the task's result.
type Callable func(ctx context.Context) (any, error)

// Task is the future-style handle for a submitted callable. It is created
// by the Executor, executed by exactly one worker, and polled by callers
// through Get/GetTimeout until the registry purges it.
type Task struct {
	id   string
	call Callable

	mu          sync.Mutex
	state       State
	result      any
	cause       error
	completedAt time.Time
	interrupt   context.CancelFunc

	// done is closed exactly once, when the task reaches a terminal state.
	done chan struct{}
}

func newTask(id string, call Callable) *Task {
	return &Task{
		id:    id,
		call:  call,
		state: StateQueued,
		done:  make(chan struct{}),
	}
}

// ID returns the task's registry identifier.
func (t *Task) ID() string {
	return t.id
}

// State returns the task's current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsDone reports whether the task has reached a terminal state.
func (t *Task) IsDone() bool {
	s := t.State()
	return s != StateQueued && s != StateRunning
}

// IsCancelled reports whether the task was cancelled or interrupted.
func (t *Task) IsCancelled() bool {
	s := t.State()
	return s == StateCancelled || s == StateInterrupted
}

// CompletedAt returns the instant the task reached a terminal state, or the
// zero time if it has not completed yet.
func (t *Task) CompletedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completedAt
}

// Cancel attempts to stop the task. A queued task is cancelled outright and
// never executes. A running task is interrupted only if mayInterrupt is
// true: its context is cancelled and its externally visible state becomes
// interrupted immediately, even if a non-cooperating callable keeps running.
// Returns false for tasks already terminal or running without interrupt
// permission.
func (t *Task) Cancel(mayInterrupt bool) bool {
	t.mu.Lock()
	switch t.state {
	case StateQueued:
		t.finishLocked(StateCancelled, nil, nil)
		t.mu.Unlock()
		return true
	case StateRunning:
		if !mayInterrupt {
			t.mu.Unlock()
			return false
		}
		cancel := t.interrupt
		t.finishLocked(StateInterrupted, nil, nil)
		t.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return true
	default:
		t.mu.Unlock()
		return false
	}
}

// Get blocks until the task reaches a terminal state or ctx is cancelled.
// It returns the callable's value for a done task, an *ExecutionError for a
// failed one, ErrCancelled or ErrInterrupted for a stopped one, and the
// context's error if the caller gave up first.
func (t *Task) Get(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.outcome()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetTimeout blocks until the task reaches a terminal state or the timeout
// elapses, in which case it returns ErrTimeout. A timeout never alters the
// task's state; completion at or before the deadline always wins the race.
func (t *Task) GetTimeout(timeout time.Duration) (any, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-t.done:
		return t.outcome()
	case <-timer.C:
		// The timer may fire in the same instant the task completes;
		// completion takes precedence.
		select {
		case <-t.done:
			return t.outcome()
		default:
			return nil, ErrTimeout
		}
	}
}

// run executes the callable exactly once. A second invocation, or an
// invocation on a task cancelled while queued, is a no-op. The completion
// timestamp is stamped in the deferred epilogue regardless of how the
// callable exits, including by panic.
func (t *Task) run(parent context.Context) {
	t.mu.Lock()
	if t.state != StateQueued {
		t.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(parent)
	t.state = StateRunning
	t.interrupt = cancel
	t.mu.Unlock()

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("callable panicked: %v", r)
			}
		}()
		result, err = t.call(runCtx)
	}()
	cancel()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.interrupt = nil
	if t.state != StateRunning {
		// Interrupted while running; the interrupt already finished the
		// task and the callable's outcome is discarded.
		return
	}
	if err != nil {
		t.finishLocked(StateFailed, nil, err)
	} else {
		t.finishLocked(StateDone, result, nil)
	}
}

// finishLocked moves the task to a terminal state, records the outcome and
// completion instant, and releases all Get waiters. Callers must hold t.mu
// and must only call it once per task.
func (t *Task) finishLocked(state State, result any, cause error) {
	t.state = state
	t.result = result
	t.cause = cause
	t.completedAt = time.Now()
	metrics.TasksCompleted.WithLabelValues(string(state)).Inc()
	close(t.done)
}

// outcome translates the terminal state into the Get return contract.
// Only called after t.done is closed.
func (t *Task) outcome() (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case StateDone:
		return t.result, nil
	case StateFailed:
		return nil, &ExecutionError{Cause: t.cause}
	case StateCancelled:
		return nil, ErrCancelled
	case StateInterrupted:
		return nil, ErrInterrupted
	default:
		return nil, fmt.Errorf("task %s in non-terminal state %s after completion", t.id, t.state)
	}
}

// failureCause returns the recorded failure cause, or nil.
func (t *Task) failureCause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cause
}

// completion reports whether the task is terminal and, if so, when it
// completed. Used by the registry's purge sweep.
func (t *Task) completion() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completedAt, !t.completedAt.IsZero()
}
