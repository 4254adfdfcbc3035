package portfolio

import (
	"time"

	"sniperflow/market"
	"sniperflow/strategy"
)

// Position is a live holding on one instrument. Exactly one may
// exist per instrument; it is created fully populated at open,
// mutated on every tick while open, and removed on full close.
type Position struct {
	Instrument string
	Side       market.Side

	EntryPrice  float64
	Qty         float64 // remaining quantity
	InitialQty  float64
	StopPrice   float64
	TargetPrice float64

	EntryTime      time.Time
	EntryImbalance float64
	RiskPct        float64 // fraction of equity committed at entry
	Class          strategy.Classification
	OpenReason     string

	BreakevenDone bool
	PartialTaken  bool

	// price extremes since entry, favorable and adverse to the side
	FavorableExtreme float64
	AdverseExtreme   float64

	// consecutive adverse smoothed-imbalance samples
	InvalidImbCount int
	// adverse price distance from entry, in instrument ticks
	AdverseTicks int

	FeesPaid float64 // accumulated fees charged so far
}

// favorableMove is the signed move in the position's favor.
func (p *Position) favorableMove(price float64) float64 {
	if p.Side == market.Long {
		return price - p.EntryPrice
	}
	return p.EntryPrice - price
}

// updateExtremes ratchets the favorable/adverse price extremes.
func (p *Position) updateExtremes(price float64) {
	if p.Side == market.Long {
		if price > p.FavorableExtreme {
			p.FavorableExtreme = price
		}
		if price < p.AdverseExtreme {
			p.AdverseExtreme = price
		}
	} else {
		if price < p.FavorableExtreme {
			p.FavorableExtreme = price
		}
		if price > p.AdverseExtreme {
			p.AdverseExtreme = price
		}
	}
}

// pricePnL is the price-difference PnL for qty closed at exit, fees
// excluded.
func (p *Position) pricePnL(exit, qty float64) float64 {
	if p.Side == market.Long {
		return (exit - p.EntryPrice) * qty
	}
	return (p.EntryPrice - exit) * qty
}
