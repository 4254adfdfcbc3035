package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sniperflow/market"
)

func TestCVDApplyTrades(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewCVD(100)

	total := c.ApplyTrades([]market.TradeEvent{
		{Time: now, Price: 100, Qty: 3, Buy: true},
		{Time: now, Price: 100, Qty: 1, Buy: false},
		{Time: now, Price: 100, Qty: 2, Buy: true},
	}, now)

	assert.Equal(t, 4.0, total)
	assert.Equal(t, 4.0, c.Current())
}

func TestCVDEmptyBatchStillSamples(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewCVD(100)

	c.ApplyTrades([]market.TradeEvent{{Time: now, Qty: 5, Buy: true}}, now)
	c.ApplyTrades(nil, now.Add(time.Second))

	// the empty-batch sample carries the unchanged total
	v, ok := c.RecentMax(500*time.Millisecond, now.Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, 5.0, v)
}

func TestCVDRecentMinMax(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewCVD(100)

	steps := []struct {
		qty float64
		buy bool
	}{
		{10, true},  // total 10
		{25, false}, // total -15
		{30, true},  // total 15
	}
	for i, s := range steps {
		ts := start.Add(time.Duration(i) * time.Second)
		c.ApplyTrades([]market.TradeEvent{{Time: ts, Qty: s.qty, Buy: s.buy}}, ts)
	}

	now := start.Add(2 * time.Second)

	min, ok := c.RecentMin(time.Minute, now)
	require.True(t, ok)
	assert.Equal(t, -15.0, min)

	max, ok := c.RecentMax(time.Minute, now)
	require.True(t, ok)
	assert.Equal(t, 15.0, max)

	// narrow window only sees the last sample
	min, ok = c.RecentMin(500*time.Millisecond, now)
	require.True(t, ok)
	assert.Equal(t, 15.0, min)
}

func TestCVDHistoryBounded(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewCVD(3)

	for i := 0; i < 10; i++ {
		ts := start.Add(time.Duration(i) * time.Second)
		c.ApplyTrades([]market.TradeEvent{{Time: ts, Qty: 1, Buy: true}}, ts)
	}

	// oldest samples are gone, min over the whole hour is total-3
	min, ok := c.RecentMin(time.Hour, start.Add(9*time.Second))
	require.True(t, ok)
	assert.Equal(t, 8.0, min)
	assert.Equal(t, 10.0, c.Current())
}

func TestCVDEmptyHistory(t *testing.T) {
	c := NewCVD(10)
	_, ok := c.RecentMin(time.Minute, time.Now())
	assert.False(t, ok)
}
