package task

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// registry maps identifiers to task handles and owns identifier generation.
// Expired results are evicted lazily: every lookup sweeps for tasks whose
// completion instant is older than the retention window. There is no
// background timer, so results nobody queries are retained until the next
// lookup touches the registry.
type registry struct {
	mu       sync.Mutex
	tasks    map[string]*Task
	counters map[string]uint64
}

func newRegistry() *registry {
	return &registry{
		tasks:    make(map[string]*Task),
		counters: make(map[string]uint64),
	}
}

// add registers a new task under a random identifier. Generation and
// insertion happen under one lock so a colliding identifier (vanishingly
// unlikely with UUIDs) is retried rather than overwritten.
func (r *registry) add(call Callable) *Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	var id string
	for {
		id = uuid.NewString()
		if _, exists := r.tasks[id]; !exists {
			break
		}
	}
	t := newTask(id, call)
	r.tasks[id] = t
	return t
}

// addPrefixed registers a new task under "<prefix>-<n>", with n drawn from a
// per-prefix counter starting at 1. The counter is incremented under the
// registry lock so concurrent submissions with the same prefix never collide.
func (r *registry) addPrefixed(call Callable, prefix string) *Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counters[prefix]++
	id := fmt.Sprintf("%s-%d", prefix, r.counters[prefix])
	t := newTask(id, call)
	r.tasks[id] = t
	return t
}

// get purges expired results, then returns the task for id, or nil if the
// identifier is unknown or already purged.
func (r *registry) get(id string, retention time.Duration) *Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked(retention)
	return r.tasks[id]
}

// keys purges expired results, then returns a snapshot of tracked identifiers.
func (r *registry) keys(retention time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked(retention)
	ids := make([]string, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
	}
	return ids
}

// all returns a snapshot of every tracked task, without purging. Used by
// the executor's shutdown sweep.
func (r *registry) all() []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	tasks := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t)
	}
	return tasks
}

// remove drops a task whose submission did not complete (pending queue full).
func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
}

func (r *registry) purgeLocked(retention time.Duration) {
	cutoff := time.Now().Add(-retention)
	for id, t := range r.tasks {
		if at, done := t.completion(); done && at.Before(cutoff) {
			delete(r.tasks, id)
		}
	}
}
