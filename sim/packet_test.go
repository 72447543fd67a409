package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPacket_Deliver(t *testing.T) {
	p := Packet{ID: 1, CreatedAt: 10 * time.Microsecond}
	assert.False(t, p.Delivered())
	assert.Zero(t, p.Latency())

	p.Deliver(25*time.Microsecond, 2)

	assert.True(t, p.Delivered())
	assert.Equal(t, 15*time.Microsecond, p.Latency())
	assert.Equal(t, 2, p.DeliveredBy)
}

func TestPacket_DeliverTwicePanics(t *testing.T) {
	p := Packet{ID: 1}
	p.Deliver(time.Millisecond, 0)
	assert.Panics(t, func() { p.Deliver(2*time.Millisecond, 0) })
}

func TestPacket_DeliverBeforeCreationPanics(t *testing.T) {
	p := Packet{ID: 1, CreatedAt: time.Millisecond}
	assert.Panics(t, func() { p.Deliver(time.Microsecond, 0) })
	assert.False(t, p.Delivered())
}

func TestPacket_String(t *testing.T) {
	p := Packet{ID: 3, Priority: 2, Length: 300, Src: 1, Dst: 9, Epoch: 4}
	assert.Equal(t, "Packet: (ID: 3, Priority: 2, Length: 300, Src: 1, Dst: 9, Epoch: 4)", p.String())
}

func TestPacket_Traverse(t *testing.T) {
	// GIVEN a fresh packet
	p := Packet{ID: 1}

	// WHEN it crosses a ToR, the aggregation switch and another ToR
	assert.Equal(t, 1, p.traverse(false))
	assert.False(t, p.ViaAggregation)
	assert.Equal(t, 2, p.traverse(true))
	assert.Equal(t, 3, p.traverse(false))

	// THEN the hop count and aggregation mark persist, and delivery is untouched
	assert.Equal(t, 3, p.Hops)
	assert.True(t, p.ViaAggregation)
	assert.False(t, p.Delivered())
}
