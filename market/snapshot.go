package market

import "time"

// Side of a position or signal.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Long {
		return Short
	}
	return Long
}

// BookLevel is one resting level of an order book ladder.
type BookLevel struct {
	Price float64
	Qty   float64
}

// TradeEvent is a single aggressive trade reported by the feed.
// Buy means the aggressor was the buyer.
type TradeEvent struct {
	Time  time.Time
	Price float64
	Qty   float64
	Buy   bool
}

// BookSnapshot holds ranked top-of-book ladders. Bids are sorted
// best (highest) first, asks best (lowest) first, and levels with
// non-positive quantity are excluded by the feed.
type BookSnapshot struct {
	Time time.Time
	Bids []BookLevel
	Asks []BookLevel
}

// Snapshot is one tick of market state for a single instrument:
// the mid price, the current book and every aggressive trade seen
// since the previous snapshot. It is transient; consumers derive
// stats from it and drop it.
type Snapshot struct {
	Instrument string
	Time       time.Time
	Mid        float64
	Book       BookSnapshot
	Trades     []TradeEvent
}

// PeriodVolume sums the traded quantity in this snapshot.
func (s Snapshot) PeriodVolume() float64 {
	var v float64
	for _, t := range s.Trades {
		v += t.Qty
	}
	return v
}
