// Package task implements asynchronous execution of submitted callables.
// It provides a bounded pool of workers draining a shared FIFO queue, a
// registry of future-style handles keyed by string identifiers, and lazy
// purging of completed results after a retention window, ensuring
// long-running operations don't block the submitting caller and remain
// queryable until they expire.
package task
