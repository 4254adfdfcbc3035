package stats

import (
	"time"

	"sniperflow/market"
)

type cvdSample struct {
	time  time.Time
	total float64
}

// CVD accumulates signed aggressive-trade volume into a running
// cumulative total (buy aggressor adds, sell aggressor subtracts)
// and keeps a bounded timestamped history for windowed min/max
// queries.
type CVD struct {
	total   float64
	history []cvdSample
	cap     int
}

// NewCVD creates a tracker keeping at most capacity history samples.
func NewCVD(capacity int) *CVD {
	return &CVD{
		history: make([]cvdSample, 0, capacity),
		cap:     capacity,
	}
}

// Current returns the running total.
func (c *CVD) Current() float64 { return c.total }

// ApplyTrades folds a batch of trades into the running total and
// appends one history sample stamped with the last trade's time, or
// now for an empty batch. An empty batch leaves the total unchanged
// but still records a sample, so the history stays populated at the
// feed's cadence. Returns the updated total.
func (c *CVD) ApplyTrades(trades []market.TradeEvent, now time.Time) float64 {
	for _, t := range trades {
		if t.Buy {
			c.total += t.Qty
		} else {
			c.total -= t.Qty
		}
	}

	ts := now
	if len(trades) > 0 {
		ts = trades[len(trades)-1].Time
	}

	c.history = append(c.history, cvdSample{time: ts, total: c.total})
	if len(c.history) > c.cap {
		c.history = c.history[1:]
	}
	return c.total
}

// RecentMin returns the minimum running total observed within the
// window ending at now. ok=false when the window holds no samples.
func (c *CVD) RecentMin(window time.Duration, now time.Time) (float64, bool) {
	return c.recentExtreme(window, now, func(v, best float64) bool { return v < best })
}

// RecentMax returns the maximum running total observed within the
// window ending at now. ok=false when the window holds no samples.
func (c *CVD) RecentMax(window time.Duration, now time.Time) (float64, bool) {
	return c.recentExtreme(window, now, func(v, best float64) bool { return v > best })
}

func (c *CVD) recentExtreme(window time.Duration, now time.Time, better func(v, best float64) bool) (float64, bool) {
	cutoff := now.Add(-window)
	var best float64
	found := false
	for _, s := range c.history {
		if s.time.Before(cutoff) {
			continue
		}
		if !found || better(s.total, best) {
			best = s.total
			found = true
		}
	}
	return best, found
}
