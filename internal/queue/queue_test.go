package queue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendsync/attendance-monitor/internal/conf"
)

func TestQueue_EnqueueDeduplicatesByName(t *testing.T) {
	t.Parallel()
	q := New(conf.QueueSettings{})

	assert.True(t, q.Enqueue("/in/march.xlsx"))
	assert.False(t, q.Enqueue("/in/march.xlsx"))
	assert.False(t, q.Enqueue("/other/march.xlsx"), "same base name is the same file")
	assert.True(t, q.Enqueue("/in/april.xlsx"))
	assert.Equal(t, 2, q.Len())
}

func TestQueue_DrainSnapshotsInOrder(t *testing.T) {
	t.Parallel()
	q := New(conf.QueueSettings{})

	q.Enqueue("/in/b.xlsx")
	q.Enqueue("/in/a.xlsx")

	batch := q.Drain()
	assert.Equal(t, []string{"/in/b.xlsx", "/in/a.xlsx"}, batch)
	assert.Zero(t, q.Len())
	assert.Nil(t, q.Drain())

	// In-flight names are not queued twice, new names wait for the next batch.
	assert.False(t, q.Enqueue("/in/a.xlsx"))
	assert.True(t, q.Enqueue("/in/c.xlsx"))
	assert.Equal(t, 2, q.Stats().InFlight)

	q.Complete("/in/b.xlsx", true)
	q.Complete("/in/a.xlsx", true)
	assert.Equal(t, []string{"/in/c.xlsx"}, q.Drain())
}

func TestQueue_ProcessedNamesAreSkipped(t *testing.T) {
	t.Parallel()
	q := New(conf.QueueSettings{})

	q.Enqueue("/in/a.xlsx")
	q.Drain()
	q.Complete("/in/a.xlsx", true)

	assert.True(t, q.IsProcessed("/in/a.xlsx"))
	assert.False(t, q.Enqueue("/in/a.xlsx"))

	assert.True(t, q.Forget("/in/a.xlsx"))
	assert.False(t, q.Forget("/in/a.xlsx"))
	assert.True(t, q.Enqueue("/in/a.xlsx"))
}

func TestQueue_CompleteWithoutProcessingAllowsRequeue(t *testing.T) {
	t.Parallel()
	q := New(conf.QueueSettings{})

	q.Enqueue("/in/a.xlsx")
	q.Drain()
	q.Complete("/in/a.xlsx", false)

	assert.False(t, q.IsProcessed("/in/a.xlsx"))
	assert.True(t, q.Enqueue("/in/a.xlsx"))
}

func TestQueue_Retry(t *testing.T) {
	t.Parallel()
	q := New(conf.QueueSettings{})

	q.Enqueue("/in/a.xlsx")
	q.Drain()
	assert.True(t, q.Retry("/in/a.xlsx"))
	assert.Equal(t, []string{"/in/a.xlsx"}, q.Drain())
}

func TestQueue_HistoryEvictsOldestFraction(t *testing.T) {
	t.Parallel()
	q := New(conf.QueueSettings{HistoryCapacity: 10, EvictFraction: 0.2})

	for i := range 11 {
		path := fmt.Sprintf("/in/f%02d.xlsx", i)
		require.True(t, q.Enqueue(path))
		q.Drain()
		q.Complete(path, true)
	}

	// 11 > 10 evicts the oldest 2.
	stats := q.Stats()
	assert.Equal(t, 9, stats.History)
	assert.Equal(t, 2, stats.Evicted)
	assert.False(t, q.IsProcessed("/in/f00.xlsx"))
	assert.False(t, q.IsProcessed("/in/f01.xlsx"))
	assert.True(t, q.IsProcessed("/in/f02.xlsx"))
	assert.True(t, q.IsProcessed("/in/f10.xlsx"))
}

func TestQueue_TrimHistory(t *testing.T) {
	t.Parallel()
	q := New(conf.QueueSettings{HistoryCapacity: 100})

	for i := range 10 {
		path := fmt.Sprintf("/in/f%02d.xlsx", i)
		q.Enqueue(path)
		q.Drain()
		q.Complete(path, true)
	}

	assert.Equal(t, 6, q.TrimHistory(4))
	assert.Equal(t, 4, q.HistoryLen())
	assert.True(t, q.IsProcessed("/in/f09.xlsx"))
	assert.False(t, q.IsProcessed("/in/f05.xlsx"))
	assert.Zero(t, q.TrimHistory(10))
}

func TestQueue_ConcurrentEnqueue(t *testing.T) {
	t.Parallel()
	q := New(conf.QueueSettings{})

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				q.Enqueue(fmt.Sprintf("/in/f%03d.xlsx", (w*7+i)%100))
			}
		}()
	}
	wg.Wait()

	batch := q.Drain()
	seen := make(map[string]bool, len(batch))
	for _, p := range batch {
		assert.False(t, seen[p], "duplicate %s", p)
		seen[p] = true
	}
	assert.LessOrEqual(t, len(batch), 100)
}

func TestNew_DefaultsForInvalidSettings(t *testing.T) {
	t.Parallel()
	q := New(conf.QueueSettings{HistoryCapacity: -1, EvictFraction: 3})
	assert.Equal(t, DefaultHistoryCapacity, q.history.capacity)
	assert.InDelta(t, DefaultEvictFraction, q.history.fraction, 1e-9)
}
