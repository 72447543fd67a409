// Implements PacketQueue, the FIFO hand-off between switch stages.

package sim

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// PacketQueue is an unbounded FIFO of packets safe for any number of
// producers and a single consumer. Operations are total: Push always
// succeeds, TryPop and Pop either return a packet or report none.
// An empty queue parks its consumer on a wake channel instead of spinning.
type PacketQueue struct {
	mu    sync.Mutex
	queue []Packet
	wake  chan struct{}
}

// NewPacketQueue creates an empty queue.
func NewPacketQueue() *PacketQueue {
	return &PacketQueue{wake: make(chan struct{}, 1)}
}

// Push appends a packet to the back of the queue.
func (q *PacketQueue) Push(p Packet) {
	q.mu.Lock()
	q.queue = append(q.queue, p)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// TryPop removes the packet at the front of the queue, if any.
func (q *PacketQueue) TryPop() (Packet, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) == 0 {
		return Packet{}, false
	}
	p := q.queue[0]
	q.queue[0] = Packet{}
	q.queue = q.queue[1:]
	return p, true
}

// Pop waits for a packet. It returns false once ctx is done, even if
// packets remain; those stay in the queue for Len to account for.
func (q *PacketQueue) Pop(ctx context.Context) (Packet, bool) {
	for {
		if ctx.Err() != nil {
			return Packet{}, false
		}
		if p, ok := q.TryPop(); ok {
			return p, true
		}
		select {
		case <-q.wake:
		case <-ctx.Done():
			return Packet{}, false
		}
	}
}

// Len returns the number of queued packets.
func (q *PacketQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

func (q *PacketQueue) String() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var sb strings.Builder
	sb.WriteString("[")
	for i, p := range q.queue {
		sb.WriteString(fmt.Sprint(p.ID))
		if i < len(q.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
