package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(s *MarketStats, n int, price, cvd, imb, vol float64) {
	for i := 0; i < n; i++ {
		s.Update(price, cvd, imb, vol)
	}
}

func TestVolatilityWarmup(t *testing.T) {
	s := NewMarketStats(1000, 60)

	// n prices produce n-1 returns, so lookback returns need
	// lookback+1 prices.
	lookback := 5
	prices := []float64{100, 101, 100.5, 102, 101.5}
	for _, p := range prices {
		s.Update(p, 0, 0, 0)
	}

	_, ok := s.Volatility(lookback)
	assert.False(t, ok, "one return short of the lookback")

	s.Update(102.5, 0, 0, 0)
	vol, ok := s.Volatility(lookback)
	require.True(t, ok)
	assert.Greater(t, vol, 0.0)
}

func TestVolatilityMatchesSampleStddev(t *testing.T) {
	s := NewMarketStats(1000, 60)
	prices := []float64{100, 102, 101, 103}
	for _, p := range prices {
		s.Update(p, 0, 0, 0)
	}

	var rets []float64
	for i := 1; i < len(prices); i++ {
		rets = append(rets, (prices[i]-prices[i-1])/prices[i-1])
	}
	m := (rets[0] + rets[1] + rets[2]) / 3
	var ss float64
	for _, r := range rets {
		ss += (r - m) * (r - m)
	}
	want := math.Sqrt(ss / 2) // n-1 divisor

	got, ok := s.Volatility(3)
	require.True(t, ok)
	assert.InDelta(t, want, got, 1e-12)
}

func TestReturnsSkipNonPositivePrev(t *testing.T) {
	s := NewMarketStats(1000, 60)
	s.Update(0, 0, 0, 0)
	s.Update(100, 0, 0, 0)
	s.Update(101, 0, 0, 0)

	// only the 100 -> 101 transition yields a return
	_, ok := s.Volatility(2)
	assert.False(t, ok)
}

func TestSmoothedImbalanceFallback(t *testing.T) {
	s := NewMarketStats(1000, 60)

	_, ok := s.SmoothedImbalance(3)
	assert.False(t, ok, "no samples at all")

	s.Update(100, 0, 0.4, 0)
	v, ok := s.SmoothedImbalance(3)
	assert.True(t, ok)
	assert.Equal(t, 0.4, v, "single sample passes through unsmoothed")

	s.Update(100, 0, 0.2, 0)
	v, ok = s.SmoothedImbalance(3)
	assert.True(t, ok)
	assert.Equal(t, 0.2, v, "still under the window, latest sample wins")

	s.Update(100, 0, 0.6, 0)
	v, ok = s.SmoothedImbalance(3)
	assert.True(t, ok)
	assert.InDelta(t, (0.4+0.2+0.6)/3, v, 1e-12)
}

func TestCVDSlopeBoundary(t *testing.T) {
	s := NewMarketStats(1000, 60)
	lookback := 7

	for i := 0; i < lookback; i++ {
		s.Update(100, float64(i*10), 0, 0)
	}
	_, ok := s.CVDSlope(lookback)
	assert.False(t, ok, "needs strictly more than lookback samples")

	s.Update(100, 70, 0, 0)
	slope, ok := s.CVDSlope(lookback)
	require.True(t, ok)
	assert.Equal(t, 70.0, slope, "cvd[last] minus cvd lookback steps back")
}

func TestVolumeNormalized(t *testing.T) {
	t.Run("below min samples", func(t *testing.T) {
		s := NewMarketStats(1000, 60)
		fill(s, 19, 100, 0, 0, 5)
		_, ok := s.VolumeNormalized(100)
		assert.False(t, ok)
	})

	t.Run("flat volume reads one half", func(t *testing.T) {
		s := NewMarketStats(1000, 60)
		fill(s, 20, 100, 0, 0, 5)
		v, ok := s.VolumeNormalized(100)
		require.True(t, ok)
		assert.Equal(t, 0.5, v)
	})

	t.Run("min and max map to 0 and 1", func(t *testing.T) {
		s := NewMarketStats(1000, 60)
		fill(s, 19, 100, 0, 0, 5)
		s.Update(100, 0, 0, 15)
		v, ok := s.VolumeNormalized(100)
		require.True(t, ok)
		assert.Equal(t, 1.0, v)

		s.Update(100, 0, 0, 2)
		v, ok = s.VolumeNormalized(100)
		require.True(t, ok)
		assert.Equal(t, 0.0, v)
	})

	t.Run("interior value", func(t *testing.T) {
		s := NewMarketStats(1000, 60)
		fill(s, 10, 100, 0, 0, 0)
		fill(s, 10, 100, 0, 0, 10)
		s.Update(100, 0, 0, 4)
		v, ok := s.VolumeNormalized(100)
		require.True(t, ok)
		assert.InDelta(t, 0.4, v, 1e-12)
	})
}

func TestDynamicThresholdsDefaultsUnder100(t *testing.T) {
	s := NewMarketStats(1000, 60)
	fill(s, 99, 100, 0, 0.3, 0)
	pos, neg := s.DynamicThresholds(0.4, -0.4)
	assert.Equal(t, 0.4, pos)
	assert.Equal(t, -0.4, neg)
}

func TestIsVolatileEnough(t *testing.T) {
	s := NewMarketStats(1000, 60)
	for i := 0; i < 49; i++ {
		s.Update(100+float64(i), 0, 0, 0)
	}
	assert.False(t, s.IsVolatileEnough(0.1), "needs 50 samples")

	s.Update(149, 0, 0, 0)
	assert.True(t, s.IsVolatileEnough(0.1))
}
