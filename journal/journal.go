package journal

import (
	"time"

	"sniperflow/market"
)

// TradeRecord is the immutable close-out receipt for a full or
// partial position close.
type TradeRecord struct {
	TradeID    string
	Instrument string
	Side       market.Side
	EntryPrice float64
	ExitPrice  float64
	Qty        float64 // quantity closed by this record
	StopPrice  float64 // stop at close time
	TargetPrice float64
	EntryTime  time.Time
	ExitTime   time.Time
	RealizedPnL float64 // price PnL minus fees for the closed quantity
	FeesPaid   float64
	Reason     string
}

// FeatureSnapshot is the per-tick observational record written for
// offline analysis. It never feeds back into core state.
type FeatureSnapshot struct {
	Instrument      string
	Time            time.Time
	Price           float64
	CVD             float64
	Imbalance       float64
	SmoothImbalance float64
	HasSmoothImb    bool
	Volatility      float64
	HasVolatility   bool
	VolNorm         float64
	HasVolNorm      bool
	CVDSlope        float64
	HasCVDSlope     bool
	HasPosition     bool
	PositionSide    market.Side
	SignalSide      market.Side
	SignalScore     float64
	HasSignal       bool
	Equity          float64
}

// Journal is an append-only sink for trade closes and feature
// snapshots.
type Journal interface {
	RecordTrade(TradeRecord) error
	RecordFeatures(FeatureSnapshot) error
	Close() error
}
