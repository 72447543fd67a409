package sim

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRateConfig(epochs int64, dist Distribution) RateSimConfig {
	cfg := DefaultRateSimConfig(DefaultConstants())
	cfg.Epochs = epochs
	cfg.Distribution = dist
	return cfg
}

func TestSimulateRateLimiter_HandcraftedEpochs(t *testing.T) {
	// GIVEN strict-level packets spread over three epochs
	packets := []Packet{
		{ID: 0, Epoch: 0, Priority: 3, Length: 200},
		{ID: 1, Epoch: 0, Priority: 3, Length: 100}, // 56 bytes left
		{ID: 2, Epoch: 0, Priority: 3, Length: 56},
		{ID: 3, Epoch: 1, Priority: 3, Length: 100}, // refilled
		{ID: 4, Epoch: 2, Priority: 0, Length: 1000},
		{ID: 5, Epoch: 7, Priority: 0, Length: 10}, // beyond the last epoch
	}

	// WHEN three epochs are simulated
	res := simulateRateLimiter(packets, 3, testBudgets)

	// THEN only in-range packets are processed, each exactly once
	assert.Equal(t, int64(5), res.Total)
	assert.Equal(t, int64(4), res.Sent)
	assert.Equal(t, int64(1), res.Rejected)
	assert.Equal(t, int64(1), res.StrictRejected)
	assert.Equal(t, [NumLevels]int64{0, 0, 0, 1}, res.RejectedByPriority)
	assert.InDelta(t, 0.2, res.RejectionRatio, 1e-12)
	assert.Equal(t, 1.0, res.StrictShareOfRejections())
}

func TestSimulateRateLimiter_NoCarryOver(t *testing.T) {
	// An idle epoch does not double the next epoch's budget.
	packets := []Packet{
		{ID: 0, Epoch: 2, Priority: 3, Length: 256},
		{ID: 1, Epoch: 2, Priority: 3, Length: 1},
	}
	res := simulateRateLimiter(packets, 3, testBudgets)
	assert.Equal(t, int64(1), res.Sent)
	assert.Equal(t, int64(1), res.Rejected)
}

func TestRunRateSim_Conservation(t *testing.T) {
	res, err := RunRateSim(testRateConfig(5_000, baseDistribution))
	require.NoError(t, err)

	assert.Equal(t, res.Total, res.Sent+res.Rejected)
	var generated, rejected int64
	for l := 0; l < NumLevels; l++ {
		generated += res.GeneratedByPriority[l]
		rejected += res.RejectedByPriority[l]
		assert.LessOrEqual(t, res.RejectedByPriority[l], res.GeneratedByPriority[l])
	}
	assert.Equal(t, res.Total, generated)
	assert.Equal(t, res.Rejected, rejected)
	// floor(Normal(5, 1)) averages about 4.5 packets per epoch
	assert.InDelta(t, 4.5, float64(res.Total)/5_000, 0.1)
}

func TestRunRateSim_Deterministic(t *testing.T) {
	cfg := testRateConfig(2_000, baseDistribution)
	a, err := RunRateSim(cfg)
	require.NoError(t, err)
	b, err := RunRateSim(cfg)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	cfg.Seed++
	c, err := RunRateSim(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.GeneratedByPriority, c.GeneratedByPriority)
}

func TestRunRateSim_StrictLevelDominatesRejections(t *testing.T) {
	if testing.Short() {
		t.Skip("100k-epoch run")
	}
	// GIVEN the base mix, where the strictest level carries 1/12 of traffic
	res, err := RunRateSim(testRateConfig(100_000, baseDistribution))
	require.NoError(t, err)

	// THEN it still takes most of the rejections, since its budget is one packet
	assert.InDelta(t, 1.0/12, res.StrictShareOfTraffic(), 0.01)
	assert.Greater(t, res.StrictShareOfRejections(), 0.5)
	assert.Greater(t, res.StrictShareOfRejections(), res.StrictShareOfTraffic())
}

func TestRunRateSim_UniformRejectsMore(t *testing.T) {
	base, err := RunRateSim(testRateConfig(20_000, baseDistribution))
	require.NoError(t, err)
	uniform, err := RunRateSim(testRateConfig(20_000, Distribution{0.25, 0.5, 0.75, 1.0}))
	require.NoError(t, err)
	assert.Greater(t, uniform.RejectionRatio, base.RejectionRatio)
}

func TestRateSimConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RateSimConfig)
	}{
		{"zero epochs", func(c *RateSimConfig) { c.Epochs = 0 }},
		{"zero mean", func(c *RateSimConfig) { c.MeanPacketsPerEpoch = 0 }},
		{"bad distribution", func(c *RateSimConfig) { c.Distribution = Distribution{1, 1, 1, 0.5} }},
		{"zero budget", func(c *RateSimConfig) { c.Budgets[3] = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testRateConfig(10, baseDistribution)
			tt.mutate(&cfg)
			_, err := RunRateSim(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestRateSimResult_Print(t *testing.T) {
	res := simulateRateLimiter([]Packet{{Priority: 3, Length: 300}}, 1, testBudgets)
	var buf bytes.Buffer
	res.Print(&buf)
	assert.Contains(t, buf.String(), "Packets that caused ENOBUFS         : 1")
	assert.Contains(t, buf.String(), "Ratio of rejections / total packets : 1.000000")
}

func TestRateSimResult_WriteJSON(t *testing.T) {
	res := simulateRateLimiter([]Packet{{Priority: 3, Length: 300}, {Priority: 0, Length: 10}}, 1, testBudgets)
	var buf bytes.Buffer
	require.NoError(t, res.WriteJSON(&buf))

	var decoded RateSimResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, *res, decoded)
	assert.Contains(t, buf.String(), `"strict_rejected": 1`)
}
