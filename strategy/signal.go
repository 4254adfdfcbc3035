package strategy

import "sniperflow/market"

// Classification labels a signal's conviction tier. SNIPER signals
// get an elevated risk-allocation multiplier.
type Classification string

const (
	Standard Classification = "STANDARD"
	Sniper   Classification = "SNIPER"
)

// Signal is an immutable entry candidate produced by the scorer:
// consumed by the portfolio on the same tick or discarded.
type Signal struct {
	Instrument string
	Side       market.Side
	Score      float64 // 0-100
	Reason     string
	RiskMult   float64 // >= 1.0
	Class      Classification
}
