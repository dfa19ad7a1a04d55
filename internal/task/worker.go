package task

import (
	"context"
	"time"

	"github.com/asyncd/asyncd/internal/platform/metrics"
)

// worker is a goroutine that executes one task at a time: first the task it
// was spawned for, then whatever the pending queue yields. When the queue
// produces nothing for the executor's keep-alive duration, the worker
// deregisters itself and exits.
type worker struct {
	id   int64
	exec *Executor
}

// loop runs the worker until shutdown or idle timeout. The first task, if
// any, was assigned at spawn time and bypasses the pending queue.
func (w *worker) loop(first *Task) {
	defer w.exec.removeWorker(w)

	logger := w.exec.logger.With("worker_id", w.id)
	logger.Debug("worker started")

	if first != nil {
		w.execute(first)
	}

	for {
		idle := time.NewTimer(w.exec.KeepAlive())
		w.exec.setWorkerIdle(true)

		select {
		case <-w.exec.quit:
			w.exec.setWorkerIdle(false)
			idle.Stop()
			logger.Debug("worker stopping on shutdown")
			return

		case t := <-w.exec.pending:
			w.exec.setWorkerIdle(false)
			idle.Stop()
			metrics.QueueDepth.Set(float64(len(w.exec.pending)))
			w.execute(t)

		case <-idle.C:
			w.exec.setWorkerIdle(false)
			logger.Debug("worker idle timeout, terminating",
				"keep_alive", w.exec.KeepAlive())
			return
		}
	}
}

// execute runs a single task to completion. Failures are recorded on the
// task and logged, never propagated, so one bad task cannot kill the pool.
// The logger carries the active task identifier for the duration of the run.
func (w *worker) execute(t *Task) {
	if t.IsDone() {
		// Cancelled while still queued; never executes.
		w.exec.logger.Debug("skipping task no longer queued",
			"task_id", t.ID(),
			"state", t.State(),
			"worker_id", w.id)
		return
	}

	logger := w.exec.logger.With("task_id", t.ID(), "worker_id", w.id)
	logger.Info("task started")
	start := time.Now()

	t.run(context.Background())

	switch t.State() {
	case StateDone:
		logger.Info("task completed",
			"duration_ms", time.Since(start).Milliseconds())
	case StateFailed:
		logger.Error("task execution failed",
			"duration_ms", time.Since(start).Milliseconds(),
			"error", t.failureCause())
	case StateInterrupted:
		logger.Warn("task interrupted",
			"duration_ms", time.Since(start).Milliseconds())
	}
}
