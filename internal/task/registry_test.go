package task

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopCallable(ctx context.Context) (any, error) {
	return nil, nil
}

func TestRegistryRandomIdentifiersAreUnique(t *testing.T) {
	r := newRegistry()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tk := r.add(noopCallable)
		assert.False(t, seen[tk.ID()])
		seen[tk.ID()] = true
	}
}

func TestRegistryPrefixedIdentifiers(t *testing.T) {
	r := newRegistry()

	for i := 1; i <= 3; i++ {
		tk := r.addPrefixed(noopCallable, "job")
		assert.Equal(t, fmt.Sprintf("job-%d", i), tk.ID())
	}

	// Counters are scoped per prefix.
	tk := r.addPrefixed(noopCallable, "report")
	assert.Equal(t, "report-1", tk.ID())
}

func TestRegistryPrefixedIdentifiersConcurrent(t *testing.T) {
	r := newRegistry()

	const n = 50
	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- r.addPrefixed(noopCallable, "job").ID()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate identifier %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestRegistryPurgesExpiredResults(t *testing.T) {
	r := newRegistry()

	expired := r.add(noopCallable)
	expired.run(context.Background())

	pending := r.add(noopCallable)

	time.Sleep(30 * time.Millisecond)

	// Completed longer than the retention window ago: gone.
	assert.Nil(t, r.get(expired.ID(), 10*time.Millisecond))

	// Never completed: retained regardless of age.
	assert.NotNil(t, r.get(pending.ID(), 10*time.Millisecond))

	keys := r.keys(10 * time.Millisecond)
	assert.Equal(t, []string{pending.ID()}, keys)
}

func TestRegistryRetainsFreshResults(t *testing.T) {
	r := newRegistry()

	tk := r.add(noopCallable)
	tk.run(context.Background())

	assert.NotNil(t, r.get(tk.ID(), time.Minute))
	assert.Contains(t, r.keys(time.Minute), tk.ID())
}

func TestRegistryRemove(t *testing.T) {
	r := newRegistry()

	tk := r.add(noopCallable)
	r.remove(tk.ID())
	assert.Nil(t, r.get(tk.ID(), time.Minute))
}
