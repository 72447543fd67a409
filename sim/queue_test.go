package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketQueue_FIFO(t *testing.T) {
	q := NewPacketQueue()
	_, ok := q.TryPop()
	assert.False(t, ok, "empty queue")

	for i := uint64(0); i < 5; i++ {
		q.Push(Packet{ID: i})
	}
	assert.Equal(t, 5, q.Len())
	assert.Equal(t, "[0 1 2 3 4]", q.String())

	for i := uint64(0); i < 5; i++ {
		p, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, i, p.ID)
	}
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, "[]", q.String())
}

func TestPacketQueue_PopWaitsForPush(t *testing.T) {
	// GIVEN a consumer parked on an empty queue
	q := NewPacketQueue()
	got := make(chan Packet, 1)
	go func() {
		p, ok := q.Pop(context.Background())
		if ok {
			got <- p
		}
	}()

	// WHEN a packet is pushed
	time.Sleep(5 * time.Millisecond)
	q.Push(Packet{ID: 7})

	// THEN the consumer wakes with it
	select {
	case p := <-got:
		assert.Equal(t, uint64(7), p.ID)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake after Push")
	}
}

func TestPacketQueue_PopStopsOnCancel(t *testing.T) {
	t.Run("empty queue", func(t *testing.T) {
		q := NewPacketQueue()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, ok := q.Pop(ctx)
		assert.False(t, ok)
	})

	t.Run("packets stay queued after cancel", func(t *testing.T) {
		q := NewPacketQueue()
		q.Push(Packet{ID: 1})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, ok := q.Pop(ctx)
		assert.False(t, ok)
		assert.Equal(t, 1, q.Len())
	})
}

func TestPacketQueue_ConcurrentProducers(t *testing.T) {
	// GIVEN several producers pushing disjoint ID ranges
	const producers, perProducer = 8, 500
	q := NewPacketQueue()
	var wg sync.WaitGroup
	for w := 0; w < producers; w++ {
		wg.Add(1)
		go func(base uint64) {
			defer wg.Done()
			for i := uint64(0); i < perProducer; i++ {
				q.Push(Packet{ID: base + i})
			}
		}(uint64(w * perProducer))
	}

	// WHEN a single consumer drains everything
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	seen := make(map[uint64]bool)
	lastPerProducer := make(map[uint64]int64)
	for len(seen) < producers*perProducer {
		p, ok := q.Pop(ctx)
		require.True(t, ok, "timed out after %d packets", len(seen))
		require.False(t, seen[p.ID], "packet %d popped twice", p.ID)
		seen[p.ID] = true

		// THEN each producer's packets come out in push order
		producer := p.ID / perProducer
		last, started := lastPerProducer[producer]
		if started {
			assert.Greater(t, int64(p.ID), last)
		}
		lastPerProducer[producer] = int64(p.ID)
	}
	wg.Wait()
	assert.Equal(t, 0, q.Len())
}
