package sim

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Host owns a rate limiter and one egress FIFO per priority level.
// Admission workers call Admit concurrently with the host's own egress stage;
// both are serialized on mu.
type Host struct {
	ID   int
	Rack int // rack whose ToR this host's egress feeds (may be outside the fabric in reference routing)

	mu      sync.Mutex
	buckets *TokenBuckets
	buffers [NumLevels][]Packet
	ready   chan struct{}
}

// NewHost creates a host with full buckets and empty buffers.
func NewHost(id, rack int, budgets Budgets) *Host {
	return &Host{
		ID:      id,
		Rack:    rack,
		buckets: NewTokenBuckets(budgets),
		ready:   make(chan struct{}, 1),
	}
}

// Admit runs the rate limiter for p in epoch. An admitted packet is appended
// to its level's egress buffer; ErrNoBuffers leaves the host unchanged.
func (h *Host) Admit(p Packet, epoch int64) error {
	h.mu.Lock()
	if err := h.buckets.Consume(p.Priority, p.Length, epoch); err != nil {
		h.mu.Unlock()
		return err
	}
	h.buffers[p.Priority] = append(h.buffers[p.Priority], p)
	h.mu.Unlock()
	select {
	case h.ready <- struct{}{}:
	default:
	}
	return nil
}

// egressTurn pops at most one packet from each level, level 0 first.
func (h *Host) egressTurn(out []Packet) []Packet {
	h.mu.Lock()
	defer h.mu.Unlock()
	for l := range h.buffers {
		if len(h.buffers[l]) == 0 {
			continue
		}
		out = append(out, h.buffers[l][0])
		h.buffers[l][0] = Packet{}
		h.buffers[l] = h.buffers[l][1:]
	}
	return out
}

// RunEgress forwards admitted packets into out, round-robin across levels,
// until ctx is done. Packets still buffered at that point stay buffered.
func (h *Host) RunEgress(ctx context.Context, out *PacketQueue) error {
	logrus.Debugf("host %d: egress started (rack %d)", h.ID, h.Rack)
	defer logrus.Debugf("host %d: egress stopped", h.ID)
	turn := make([]Packet, 0, NumLevels)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.ready:
		}
		for ctx.Err() == nil {
			turn = h.egressTurn(turn[:0])
			if len(turn) == 0 {
				break
			}
			for _, p := range turn {
				out.Push(p)
			}
		}
	}
}

// Buffered returns the number of packets waiting in each level's buffer.
func (h *Host) Buffered() [NumLevels]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	var n [NumLevels]int
	for l := range h.buffers {
		n[l] = len(h.buffers[l])
	}
	return n
}

// Remaining returns the bytes left in a level's bucket as of its last touch.
func (h *Host) Remaining(priority int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buckets.Remaining(priority)
}

// Refills returns how many times this host's buckets have been refilled.
func (h *Host) Refills() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buckets.Refills()
}
