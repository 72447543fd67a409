package sim

import "fmt"

// Budgets holds the per-epoch byte capacity of each priority level.
// Level 0 gets the most room, the strictest level the least.
type Budgets [NumLevels]int

// Validate checks every level has a positive capacity.
func (b Budgets) Validate() error {
	for l, c := range b {
		if c <= 0 {
			return fmt.Errorf("%w: level %d budget must be positive, got %d", ErrInvalidConfig, l, c)
		}
	}
	return nil
}

// TokenBuckets implements Qjump rate limiting: one byte counter per level,
// refilled to capacity at most once per epoch, lazily on the first touch in a
// new epoch. Unused budget never carries over, however many epochs elapse
// between touches.
//
// Not thread-safe; Host serializes access.
type TokenBuckets struct {
	capacity  Budgets
	tokens    Budgets
	lastEpoch int64
	refills   int64
}

// NewTokenBuckets creates buckets that start full in epoch 0.
func NewTokenBuckets(capacity Budgets) *TokenBuckets {
	return &TokenBuckets{
		capacity: capacity,
		tokens:   capacity,
	}
}

// Consume charges length bytes to the level's budget for epoch. On
// ErrNoBuffers no counter changes.
func (tb *TokenBuckets) Consume(priority, length int, epoch int64) error {
	tb.refill(epoch)
	if length > tb.tokens[priority] {
		return ErrNoBuffers
	}
	tb.tokens[priority] -= length
	return nil
}

func (tb *TokenBuckets) refill(epoch int64) {
	if epoch <= tb.lastEpoch {
		return
	}
	tb.tokens = tb.capacity
	tb.lastEpoch = epoch
	tb.refills++
}

// Remaining returns the bytes left in a level as of the last touch.
func (tb *TokenBuckets) Remaining(priority int) int {
	return tb.tokens[priority]
}

// Capacity returns the per-epoch capacity of a level.
func (tb *TokenBuckets) Capacity(priority int) int {
	return tb.capacity[priority]
}

// LastEpoch returns the epoch of the most recent refill (0 before any).
func (tb *TokenBuckets) LastEpoch() int64 {
	return tb.lastEpoch
}

// Refills returns how many refills have happened.
func (tb *TokenBuckets) Refills() int64 {
	return tb.refills
}
