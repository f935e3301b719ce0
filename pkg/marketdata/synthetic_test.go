package marketdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthetic(t *testing.T) {
	cfg := DefaultSyntheticConfig("EURUSD/GBPUSD")
	cfg.Seed = 42

	s := Synthetic(cfg)
	require.Len(t, s.Ccy1, cfg.Days)
	require.Len(t, s.Ccy2, cfg.Days)
	assert.Equal(t, "EURUSD/GBPUSD", s.Pair)

	// 最早一天是起始价
	assert.Equal(t, cfg.Start1, s.Ccy1[cfg.Days-1])
	assert.Equal(t, cfg.Start2, s.Ccy2[cfg.Days-1])

	for i := range s.Ccy1 {
		assert.Greater(t, s.Ccy1[i], 0.0)
		assert.Greater(t, s.Ccy2[i], 0.0)
	}
}

func TestSynthetic_Seeded(t *testing.T) {
	cfg := DefaultSyntheticConfig("X")
	cfg.Seed = 7
	assert.Equal(t, Synthetic(cfg), Synthetic(cfg))

	cfg.Days = 0
	assert.Equal(t, 0, Synthetic(cfg).Len())
}

func TestSeries_Head(t *testing.T) {
	s := &Series{Pair: "p", Ccy1: []float64{1, 2, 3}, Ccy2: []float64{4, 5, 6}}

	h := s.Head(2)
	assert.Equal(t, []float64{1, 2}, h.Ccy1)
	assert.Equal(t, []float64{4, 5}, h.Ccy2)
	assert.Equal(t, "p", h.Pair)

	assert.Equal(t, 3, s.Head(0).Len())
	assert.Equal(t, 3, s.Head(10).Len())

	// 副本
	h.Ccy1[0] = 99
	assert.Equal(t, 1.0, s.Ccy1[0])
}
