package strategy

import (
	"fmt"
	"log"
	"math"

	"sniperflow/config"
	"sniperflow/market"
	"sniperflow/stats"
)

// flowClass buckets a CVD slope by strength and direction.
type flowClass int

const (
	flowNeutral flowClass = iota
	flowWeakBullish
	flowStrongBullish
	flowWeakBearish
	flowStrongBearish
)

// Scorer turns an instrument's rolling order-flow metrics into a
// bounded 0-100 conviction score per side and emits a Signal when
// one side clears the candidate threshold. Stateless between
// evaluations; all state lives in the MarketStats it reads.
type Scorer struct {
	instrument string
	stats      *stats.MarketStats

	score      config.ScoreConfig
	sstat      config.StatsConfig
	sym        config.SymbolConfig
	sniperMult float64
}

func NewScorer(instrument string, st *stats.MarketStats, cfg *config.Config) *Scorer {
	return &Scorer{
		instrument: instrument,
		stats:      st,
		score:      cfg.Score,
		sstat:      cfg.Stats,
		sym:        cfg.Symbol(instrument),
		sniperMult: cfg.Risk.SniperRiskMult,
	}
}

// Evaluate scores the current tick. It returns nil when no edge is
// present: metrics still warming up, fewer than the cold-start
// sample count accumulated, price already ran away (anti-chase), a
// score tie, or both sides below the candidate minimum.
func (s *Scorer) Evaluate(price float64) *Signal {
	vol, volOK := s.stats.Volatility(s.sstat.ReturnsLookback)
	smoothImb, imbOK := s.stats.SmoothedImbalance(s.sstat.SmoothImbWindow)
	slope, slopeOK := s.stats.CVDSlope(s.sstat.CVDSlopeLookback)
	volNorm, volNormOK := s.stats.VolumeNormalized(s.sstat.VolNormLookback)

	if !volOK || !imbOK || !slopeOK || !volNormOK {
		return nil
	}
	if s.stats.PriceCount() < s.score.ColdStartSamples || s.stats.CVDCount() < s.score.ColdStartSamples {
		return nil
	}

	// Anti-chase: never enter after a fast, already-completed move.
	if past, ok := s.stats.PriceFromEnd(s.score.AntiChaseLookbackTicks); ok && past > 0 {
		if math.Abs(price-past)/past > s.score.AntiChaseMaxMovePct {
			return nil
		}
	}

	flowLong, flowShort := s.flowScore(slope)
	imbLong, imbShort := s.imbalanceScore(smoothImb)
	volScore := s.volumeScore(volNorm, vol)

	totalWeight := s.score.WeightFlow + s.score.WeightImbalance + s.score.WeightVolume

	scoreLong := (flowLong*s.score.WeightFlow +
		imbLong*s.score.WeightImbalance +
		volScore*s.score.WeightVolume) / totalWeight
	scoreShort := (flowShort*s.score.WeightFlow +
		imbShort*s.score.WeightImbalance +
		volScore*s.score.WeightVolume) / totalWeight

	var side market.Side
	var final float64
	switch {
	case scoreLong >= s.score.MinCandidate && scoreLong > scoreShort:
		side, final = market.Long, scoreLong
	case scoreShort >= s.score.MinCandidate && scoreShort > scoreLong:
		side, final = market.Short, scoreShort
	default:
		return nil
	}

	riskMult := 1.0
	class := Standard
	if final >= s.score.SniperMin {
		riskMult = s.sniperMult
		class = Sniper
	}

	flowSide, imbSide := flowLong, imbLong
	if side == market.Short {
		flowSide, imbSide = flowShort, imbShort
	}
	reason := fmt.Sprintf("SCORE_%s=%.1f (%s) | Flow: %.0f, Imb: %.0f, Vol: %.0f",
		side, final, class, flowSide, imbSide, volScore)

	log.Printf("[scorer] %s signal: %s score=%.2f (%s)", s.instrument, side, final, class)

	return &Signal{
		Instrument: s.instrument,
		Side:       side,
		Score:      final,
		Reason:     reason,
		RiskMult:   riskMult,
		Class:      class,
	}
}

// classifyFlow buckets the slope against the configured strong/weak
// thresholds.
func (s *Scorer) classifyFlow(slope float64) flowClass {
	switch {
	case slope >= s.score.SlopeStrongUp:
		return flowStrongBullish
	case slope >= s.score.SlopeWeakUp:
		return flowWeakBullish
	case slope <= s.score.SlopeStrongDown:
		return flowStrongBearish
	case slope <= s.score.SlopeWeakDown:
		return flowWeakBearish
	default:
		return flowNeutral
	}
}

// flowScore maps the CVD slope class to 0-100 per side and halves
// both sides when the absolute slope is below the neutral
// threshold (low-conviction flow).
func (s *Scorer) flowScore(slope float64) (long, short float64) {
	switch s.classifyFlow(slope) {
	case flowStrongBullish:
		long = 100
	case flowWeakBullish:
		long = 60
	case flowStrongBearish:
		short = 100
	case flowWeakBearish:
		short = 60
	}

	if math.Abs(slope) < s.score.SlopeNeutral {
		long *= 0.5
		short *= 0.5
	}
	return long, short
}

// imbalanceScore scales linearly from the base score at the entry
// threshold to the max score at the +/-1.0 extreme, then normalizes
// to 0-100. The opposite side scores zero.
func (s *Scorer) imbalanceScore(imbalance float64) (long, short float64) {
	var rawLong, rawShort float64

	if imbalance > 0 && s.score.ImbalanceLongEntry < 1.0 && imbalance > s.score.ImbalanceLongEntry {
		frac := (imbalance - s.score.ImbalanceLongEntry) / math.Max(1e-9, 1.0-s.score.ImbalanceLongEntry)
		frac = clamp01(frac)
		rawLong = s.score.ImbalanceScoreBase + frac*(s.score.ImbalanceScoreMax-s.score.ImbalanceScoreBase)
	}
	if imbalance < 0 && s.score.ImbalanceShortEntry < 0 && imbalance < s.score.ImbalanceShortEntry {
		denom := s.score.ImbalanceShortEntry - (-1.0)
		frac := (s.score.ImbalanceShortEntry - imbalance) / math.Max(1e-9, denom)
		frac = clamp01(frac)
		rawShort = s.score.ImbalanceScoreBase + frac*(s.score.ImbalanceScoreMax-s.score.ImbalanceScoreBase)
	}

	if s.score.ImbalanceScoreMax > 0 {
		long = rawLong / s.score.ImbalanceScoreMax * 100
		short = rawShort / s.score.ImbalanceScoreMax * 100
	}
	return long, short
}

// volumeScore is 0 outside the admissible volatility band or below
// the minimum normalized volume, 100 above the bonus threshold, and
// linear in between.
func (s *Scorer) volumeScore(volNorm, vol float64) float64 {
	if !(vol > s.score.VolatilityMin && vol < s.score.VolatilityMax) {
		return 0
	}
	if volNorm < s.score.MinVolNorm {
		return 0
	}
	if volNorm > s.score.BonusVolNorm {
		return 100
	}
	score := (volNorm - s.score.MinVolNorm) / (s.score.BonusVolNorm - s.score.MinVolNorm) * 100
	return clamp01(score/100) * 100
}

func clamp01(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}
