package task

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asyncd/asyncd/internal/platform/metrics"
)

// ExecutorConfig holds configuration options for the Executor.
type ExecutorConfig struct {
	// MaxWorkers caps the number of concurrent workers. Zero means unbounded.
	MaxWorkers int

	// QueueSize determines the buffer size of the pending queue.
	QueueSize int

	// KeepAlive is how long an idle worker waits for new work before
	// self-terminating.
	KeepAlive time.Duration

	// ResultRetention is how long a completed task's result remains
	// queryable before the next lookup sweep purges it.
	ResultRetention time.Duration
}

// DefaultExecutorConfig returns an ExecutorConfig with reasonable defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxWorkers:      2,
		QueueSize:       100,
		KeepAlive:       30 * time.Second,
		ResultRetention: 5 * time.Minute,
	}
}

// Executor accepts callables for asynchronous execution, hands each a
// registered Task handle, and routes it to an idle worker, a new worker,
// or the pending queue. Workers are spawned on demand up to MaxWorkers and
// tear themselves down after KeepAlive without work.
type Executor struct {
	registry *registry
	pending  chan *Task
	logger   *slog.Logger

	keepAlive atomic.Int64 // nanoseconds
	retention atomic.Int64 // nanoseconds

	mu           sync.Mutex
	maxWorkers   int
	liveWorkers  int
	idleWorkers  int
	nextWorkerID int64
	shutdown     bool

	// quit is closed on shutdown so idle workers exit without waiting out
	// their keep-alive timers.
	quit chan struct{}
}

// NewExecutor creates an executor from the given configuration. Invalid
// values are replaced with defaults and logged, mirroring how negative
// worker counts are treated elsewhere; use the setters to get errors
// instead.
func NewExecutor(cfg ExecutorConfig, logger *slog.Logger) *Executor {
	def := DefaultExecutorConfig()
	if cfg.MaxWorkers < 0 {
		logger.Warn("invalid max workers specified, using default",
			"specified", cfg.MaxWorkers,
			"default", def.MaxWorkers)
		cfg.MaxWorkers = def.MaxWorkers
	}
	if cfg.QueueSize <= 0 {
		logger.Warn("invalid queue size specified, using default",
			"specified", cfg.QueueSize,
			"default", def.QueueSize)
		cfg.QueueSize = def.QueueSize
	}
	if cfg.KeepAlive < 0 {
		logger.Warn("invalid keep-alive specified, using default",
			"specified", cfg.KeepAlive,
			"default", def.KeepAlive)
		cfg.KeepAlive = def.KeepAlive
	}
	if cfg.ResultRetention < 0 {
		logger.Warn("invalid result retention specified, using default",
			"specified", cfg.ResultRetention,
			"default", def.ResultRetention)
		cfg.ResultRetention = def.ResultRetention
	}

	e := &Executor{
		registry:   newRegistry(),
		pending:    make(chan *Task, cfg.QueueSize),
		logger:     logger,
		maxWorkers: cfg.MaxWorkers,
		quit:       make(chan struct{}),
	}
	e.keepAlive.Store(int64(cfg.KeepAlive))
	e.retention.Store(int64(cfg.ResultRetention))
	return e
}

// Submit registers the callable under a fresh random identifier and
// schedules it for execution. It returns ErrShutdown after Shutdown,
// ErrNilCallable for a nil callable, and ErrQueueFull when the pending
// queue is at capacity.
func (e *Executor) Submit(call Callable) (string, error) {
	return e.submit(call, "")
}

// SubmitPrefix is Submit with identifiers of the form "<prefix>-<n>",
// where n counts submissions per prefix starting at 1.
func (e *Executor) SubmitPrefix(call Callable, prefix string) (string, error) {
	return e.submit(call, prefix)
}

func (e *Executor) submit(call Callable, prefix string) (string, error) {
	if call == nil {
		return "", ErrNilCallable
	}

	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return "", ErrShutdown
	}

	var t *Task
	if prefix == "" {
		t = e.registry.add(call)
	} else {
		t = e.registry.addPrefixed(call, prefix)
	}

	// executeOrQueue: reuse a worker that is (or is about to become) idle,
	// or that we can't add to anyway; otherwise spawn one bound to this
	// task. The idle check races with workers going idle concurrently, so
	// it is best-effort load balancing, not a strict guarantee.
	spawn := e.idleWorkers == 0 && (e.maxWorkers == 0 || e.liveWorkers < e.maxWorkers)
	if spawn {
		w := e.newWorkerLocked()
		e.mu.Unlock()
		metrics.TasksSubmitted.Inc()
		go w.loop(t)
		return t.ID(), nil
	}
	e.mu.Unlock()

	select {
	case e.pending <- t:
		metrics.TasksSubmitted.Inc()
		metrics.QueueDepth.Set(float64(len(e.pending)))
		e.logger.Debug("task enqueued",
			"task_id", t.ID(),
			"queue_len", len(e.pending),
			"queue_cap", cap(e.pending))
		e.ensureWorker()
		return t.ID(), nil
	default:
		e.registry.remove(t.ID())
		return "", fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(e.pending))
	}
}

// ensureWorker covers the race where the last worker exited between the
// scheduling decision and the enqueue: a queued task must always have a
// worker left to drain it.
func (e *Executor) ensureWorker() {
	e.mu.Lock()
	if !e.shutdown && e.liveWorkers == 0 && len(e.pending) > 0 {
		w := e.newWorkerLocked()
		e.mu.Unlock()
		go w.loop(nil)
		return
	}
	e.mu.Unlock()
}

// newWorkerLocked registers a new worker in the live set. Caller holds e.mu.
func (e *Executor) newWorkerLocked() *worker {
	e.nextWorkerID++
	e.liveWorkers++
	metrics.WorkersLive.Inc()
	return &worker{
		id:   e.nextWorkerID,
		exec: e,
	}
}

// Get purges expired results, then returns the task handle for id, or nil
// if the identifier is unknown or already purged.
func (e *Executor) Get(id string) *Task {
	return e.registry.get(id, e.ResultRetention())
}

// Keys purges expired results, then returns a snapshot of tracked
// identifiers.
func (e *Executor) Keys() []string {
	return e.registry.keys(e.ResultRetention())
}

// Shutdown stops intake of new submissions. Every still-queued task is
// cancelled; running tasks finish undisturbed unless mayInterruptRunning is
// true, in which case they are interrupted and their contexts cancelled.
// A second call is a no-op.
func (e *Executor) Shutdown(mayInterruptRunning bool) {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return
	}
	e.shutdown = true
	close(e.quit)
	e.mu.Unlock()

	e.logger.Info("executor shutting down", "interrupt_running", mayInterruptRunning)

	for _, t := range e.registry.all() {
		switch t.State() {
		case StateQueued:
			if t.Cancel(false) {
				e.logger.Debug("queued task cancelled on shutdown", "task_id", t.ID())
			}
		case StateRunning:
			if mayInterruptRunning && t.Cancel(true) {
				e.logger.Info("running task interrupted on shutdown", "task_id", t.ID())
			}
		}
	}
}

// IsShutdown reports whether Shutdown has been called.
func (e *Executor) IsShutdown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdown
}

// IsTerminated reports whether the executor is shut down and every worker
// has exited.
func (e *Executor) IsTerminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdown && e.liveWorkers == 0
}

// WorkerCount returns the current number of live workers.
func (e *Executor) WorkerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liveWorkers
}

// KeepAlive returns the idle-worker keep-alive duration.
func (e *Executor) KeepAlive() time.Duration {
	return time.Duration(e.keepAlive.Load())
}

// SetKeepAlive updates the idle-worker keep-alive duration. Negative
// durations are rejected with ErrNegativeDuration.
func (e *Executor) SetKeepAlive(d time.Duration) error {
	if d < 0 {
		return ErrNegativeDuration
	}
	e.keepAlive.Store(int64(d))
	return nil
}

// ResultRetention returns the completed-result retention window.
func (e *Executor) ResultRetention() time.Duration {
	return time.Duration(e.retention.Load())
}

// SetResultRetention updates the completed-result retention window.
// Negative durations are rejected with ErrNegativeDuration.
func (e *Executor) SetResultRetention(d time.Duration) error {
	if d < 0 {
		return ErrNegativeDuration
	}
	e.retention.Store(int64(d))
	return nil
}

// setWorkerIdle adjusts the idle-worker count consulted by executeOrQueue.
func (e *Executor) setWorkerIdle(idle bool) {
	e.mu.Lock()
	if idle {
		e.idleWorkers++
	} else {
		e.idleWorkers--
	}
	e.mu.Unlock()
}

// removeWorker deregisters a worker that has terminated. A submission may
// have been enqueued in the same instant the worker decided to exit; if the
// pending queue is non-empty and capacity allows, a replacement worker is
// spawned so the task is not stranded.
func (e *Executor) removeWorker(w *worker) {
	metrics.WorkersLive.Dec()
	e.mu.Lock()
	e.liveWorkers--
	e.logger.Debug("worker deregistered", "worker_id", w.id)

	if !e.shutdown && (e.maxWorkers == 0 || e.liveWorkers < e.maxWorkers) {
		select {
		case t := <-e.pending:
			metrics.QueueDepth.Set(float64(len(e.pending)))
			nw := e.newWorkerLocked()
			e.mu.Unlock()
			go nw.loop(t)
			return
		default:
		}
	}
	e.mu.Unlock()
}
