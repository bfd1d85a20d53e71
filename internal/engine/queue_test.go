package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fsmrt/internal/fsm"
)

func TestEventQueue_EnqueueDequeue(t *testing.T) {
	q := newEventQueue()

	ok := q.Enqueue(fsm.EventStart)
	require.True(t, ok, "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, fsm.EventStart, got)
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	for _, ev := range []fsm.Event{"A", "B", "C"} {
		q.Enqueue(ev)
	}

	for _, want := range []fsm.Event{"A", "B", "C"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestEventQueue_TryDequeue_Empty(t *testing.T) {
	q := newEventQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestEventQueue_Wait_SignalsOnEnqueue(t *testing.T) {
	q := newEventQueue()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue("late")
	}()

	select {
	case <-q.Wait():
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, fsm.Event("late"), got)
	case <-time.After(time.Second):
		t.Fatal("wait did not signal")
	}
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue()
	q.Enqueue("pending")
	q.Close()

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue("after-close"), "enqueue after close should return false")
	_, ok := q.TryDequeue()
	assert.False(t, ok, "close drops pending events")

	select {
	case <-q.Wait():
	default:
		t.Fatal("closed queue should wake waiters")
	}

	assert.NotPanics(t, q.Close, "double close is a no-op")
}

func TestEventQueue_Len(t *testing.T) {
	q := newEventQueue()

	assert.Equal(t, 0, q.Len())
	q.Enqueue("1")
	q.Enqueue("2")
	assert.Equal(t, 2, q.Len())
	q.TryDequeue()
	assert.Equal(t, 1, q.Len())
}

func TestEventQueue_PerProducerOrder(t *testing.T) {
	q := newEventQueue()

	const producers = 8
	const eventsPerProducer = 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(producerID int) {
			defer wg.Done()
			for i := 0; i < eventsPerProducer; i++ {
				q.Enqueue(fsm.Event(fmt.Sprintf("%d:%d", producerID, i)))
			}
		}(p)
	}
	wg.Wait()

	// Interleaving across producers is arbitrary; each producer's own
	// sequence must come out in send order.
	next := make(map[int]int)
	for {
		ev, ok := q.TryDequeue()
		if !ok {
			break
		}
		var producer, i int
		_, err := fmt.Sscanf(string(ev), "%d:%d", &producer, &i)
		require.NoError(t, err)
		assert.Equal(t, next[producer], i, "producer %d out of order", producer)
		next[producer] = i + 1
	}

	for p := 0; p < producers; p++ {
		assert.Equal(t, eventsPerProducer, next[p])
	}
}
