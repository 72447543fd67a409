package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseDistribution = Distribution{6.0 / 12, 9.0 / 12, 11.0 / 12, 1.0}

func TestDistribution_Validate(t *testing.T) {
	tests := []struct {
		name    string
		dist    Distribution
		wantErr bool
	}{
		{"base", baseDistribution, false},
		{"uniform", Distribution{0.25, 0.5, 0.75, 1.0}, false},
		{"all strict", Distribution{0, 0, 0, 1}, false},
		{"decreasing", Distribution{0.5, 0.4, 0.9, 1.0}, true},
		{"last not one", Distribution{0.25, 0.5, 0.75, 0.99}, true},
		{"negative", Distribution{-0.1, 0.5, 0.75, 1.0}, true},
		{"above one", Distribution{0.25, 0.5, 1.5, 1.0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.dist.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDistribution_Level(t *testing.T) {
	d := Distribution{0.25, 0.5, 0.75, 1.0}
	tests := []struct {
		u    float64
		want int
	}{
		{0, 0},
		{0.2499, 0},
		{0.25, 1},
		{0.5, 2},
		{0.74, 2},
		{0.75, 3},
		{0.9999, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.Level(tt.u), "u=%v", tt.u)
	}

	// Empty levels are skipped
	skip := Distribution{0.5, 0.5, 0.5, 1.0}
	assert.Equal(t, 3, skip.Level(0.5))
}

func TestDistribution_Share(t *testing.T) {
	assert.InDelta(t, 0.5, baseDistribution.Share(0), 1e-12)
	assert.InDelta(t, 1.0/12, baseDistribution.Share(3), 1e-12)
}

func TestParseDistribution(t *testing.T) {
	d, err := ParseDistribution([]float64{0.25, 0.5, 0.75})
	require.NoError(t, err)
	assert.Equal(t, Distribution{0.25, 0.5, 0.75, 1.0}, d)

	d, err = ParseDistribution([]float64{0.1, 0.2, 0.3, 1.0})
	require.NoError(t, err)
	assert.Equal(t, Distribution{0.1, 0.2, 0.3, 1.0}, d)

	_, err = ParseDistribution([]float64{0.5, 1.0})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ParseDistribution([]float64{0.9, 0.2, 0.3})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSampleLength_BoundedAroundMean(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const n = 100_000
	sum := 0
	under := 0
	for i := 0; i < n; i++ {
		l := SampleLength(rng)
		require.GreaterOrEqual(t, l, MinPacketLength)
		require.LessOrEqual(t, l, MaxPacketLength)
		sum += l
		if l < 256 {
			under++
		}
	}
	assert.InDelta(t, PacketLengthMean, float64(sum)/n, 2.0)
	// Roughly half the packets fall under 256 bytes
	assert.InDelta(t, 0.5, float64(under)/n, 0.02)
}

func TestGenerator_SequentialAndDeterministic(t *testing.T) {
	g1 := NewGenerator(baseDistribution, rand.New(rand.NewSource(1)))
	g2 := NewGenerator(baseDistribution, rand.New(rand.NewSource(1)))

	for i := 0; i < 100; i++ {
		p1 := g1.Generate(int64(i), 0, 2, 5)
		p2 := g2.Generate(int64(i), 0, 2, 5)
		assert.Equal(t, p1, p2)
		assert.Equal(t, uint64(i), p1.ID)
		assert.Equal(t, 2, p1.Src)
		assert.Equal(t, 5, p1.Dst)
		assert.Equal(t, int64(i), p1.Epoch)
		assert.False(t, p1.Delivered())
	}
	assert.Equal(t, uint64(100), g1.Count())
}

func TestGenerator_PriorityFollowsDistribution(t *testing.T) {
	g := NewGenerator(baseDistribution, rand.New(rand.NewSource(3)))
	var counts [NumLevels]int
	const n = 60_000
	for i := 0; i < n; i++ {
		counts[g.Generate(0, 0, 0, 0).Priority]++
	}
	for l := 0; l < NumLevels; l++ {
		assert.InDelta(t, baseDistribution.Share(l), float64(counts[l])/n, 0.01, "level %d", l)
	}
}
