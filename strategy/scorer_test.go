package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sniperflow/config"
	"sniperflow/market"
	"sniperflow/stats"
)

// seed feeds n ticks of a controlled regime: prices alternating by
// one cent (volatility inside the admissible band), a fixed CVD step
// per tick, constant imbalance and volume. Returns the last price.
func seed(st *stats.MarketStats, n int, cvdStep, imb, volume float64) float64 {
	var price float64
	for i := 0; i < n; i++ {
		price = 100 + 0.01*float64(i%2)
		st.Update(price, cvdStep*float64(i), imb, volume)
	}
	return price
}

func TestEvaluateWarmup(t *testing.T) {
	cfg := config.Default()
	st := stats.NewMarketStats(cfg.Stats.WindowSize, cfg.Stats.ContextWindow)
	s := NewScorer("btcusdt", st, cfg)

	price := seed(st, 10, 20, 0.8, 5)
	assert.Nil(t, s.Evaluate(price), "metrics still warming up")
}

func TestEvaluateFlatMarket(t *testing.T) {
	cfg := config.Default()
	st := stats.NewMarketStats(cfg.Stats.WindowSize, cfg.Stats.ContextWindow)
	s := NewScorer("btcusdt", st, cfg)

	// no flow, no imbalance: both sides tie at the volume component
	price := seed(st, 80, 0, 0, 5)
	assert.Nil(t, s.Evaluate(price))
}

func TestEvaluateLongStandard(t *testing.T) {
	cfg := config.Default()
	st := stats.NewMarketStats(cfg.Stats.WindowSize, cfg.Stats.ContextWindow)
	s := NewScorer("btcusdt", st, cfg)

	// strong bullish flow, deep bid-side book, median volume regime
	price := seed(st, 80, 20, 0.8, 5)

	sig := s.Evaluate(price)
	require.NotNil(t, sig)
	assert.Equal(t, market.Long, sig.Side)
	assert.Equal(t, Standard, sig.Class)
	assert.Equal(t, 1.0, sig.RiskMult)

	// flow 100, imbalance (26 + (0.8-0.4)/0.6*14)/40*100, volume 50
	wantImb := (26.0 + (0.8-0.4)/0.6*14.0) / 40.0 * 100.0
	want := (100*35 + wantImb*45 + 50*15) / 95
	assert.InDelta(t, want, sig.Score, 0.01)
	assert.Contains(t, sig.Reason, "SCORE_LONG")
}

func TestEvaluateSniper(t *testing.T) {
	cfg := config.Default()
	st := stats.NewMarketStats(cfg.Stats.WindowSize, cfg.Stats.ContextWindow)
	s := NewScorer("btcusdt", st, cfg)

	// same regime, but the last tick prints the biggest volume so
	// the normalized volume reads 1.0 and the volume leg maxes out
	seed(st, 79, 20, 0.8, 5)
	price := 100.0
	st.Update(price, 20*79, 0.8, 50)

	sig := s.Evaluate(price)
	require.NotNil(t, sig)
	assert.Equal(t, market.Long, sig.Side)
	assert.Equal(t, Sniper, sig.Class)
	assert.Equal(t, cfg.Risk.SniperRiskMult, sig.RiskMult)
	assert.GreaterOrEqual(t, sig.Score, cfg.Score.SniperMin)
}

func TestClassificationBoundary(t *testing.T) {
	// a maxed regime: strong flow, imbalance at the +1.0 extreme,
	// volume above the bonus threshold. Every leg scores 100, so
	// the combined score is exactly 100 and the sniper threshold
	// can be pinned right at it.
	perfect := func(cfg *config.Config) *Signal {
		st := stats.NewMarketStats(cfg.Stats.WindowSize, cfg.Stats.ContextWindow)
		s := NewScorer("btcusdt", st, cfg)
		seed(st, 79, 20, 1.0, 5)
		st.Update(100, 20*79, 1.0, 50)
		return s.Evaluate(100)
	}

	t.Run("at threshold", func(t *testing.T) {
		cfg := config.Default()
		cfg.Score.SniperMin = 100
		sig := perfect(cfg)
		require.NotNil(t, sig)
		assert.Equal(t, 100.0, sig.Score)
		assert.Equal(t, Sniper, sig.Class)
		assert.Equal(t, cfg.Risk.SniperRiskMult, sig.RiskMult)
	})

	t.Run("below threshold", func(t *testing.T) {
		cfg := config.Default()
		cfg.Score.SniperMin = 101
		sig := perfect(cfg)
		require.NotNil(t, sig)
		assert.Equal(t, Standard, sig.Class)
		assert.Equal(t, 1.0, sig.RiskMult)
	})
}

func TestEvaluateShort(t *testing.T) {
	cfg := config.Default()
	st := stats.NewMarketStats(cfg.Stats.WindowSize, cfg.Stats.ContextWindow)
	s := NewScorer("ethusdt", st, cfg)

	price := seed(st, 80, -20, -0.8, 5)

	sig := s.Evaluate(price)
	require.NotNil(t, sig)
	assert.Equal(t, market.Short, sig.Side)
	assert.Contains(t, sig.Reason, "SCORE_SHORT")
}

func TestEvaluateAntiChase(t *testing.T) {
	cfg := config.Default()
	st := stats.NewMarketStats(cfg.Stats.WindowSize, cfg.Stats.ContextWindow)
	s := NewScorer("btcusdt", st, cfg)

	price := seed(st, 80, 20, 0.8, 5)
	require.NotNil(t, s.Evaluate(price), "sanity: regime produces a signal")

	// evaluating a price that already ran 1% is chasing
	assert.Nil(t, s.Evaluate(price*1.01))
}

func TestEvaluateWeakFlowHalved(t *testing.T) {
	cfg := config.Default()
	st := stats.NewMarketStats(cfg.Stats.WindowSize, cfg.Stats.ContextWindow)
	s := NewScorer("btcusdt", st, cfg)

	// slope of 7 per 7 ticks lands in the dead zone below the weak
	// threshold: flow contributes nothing either way
	price := seed(st, 80, 1, 0.8, 5)

	sig := s.Evaluate(price)
	require.NotNil(t, sig)
	wantImb := (26.0 + (0.8-0.4)/0.6*14.0) / 40.0 * 100.0
	want := (0*35 + wantImb*45 + 50*15) / 95
	assert.InDelta(t, want, sig.Score, 0.01)
}

func TestEvaluateVolatilityBandGate(t *testing.T) {
	cfg := config.Default()
	st := stats.NewMarketStats(cfg.Stats.WindowSize, cfg.Stats.ContextWindow)
	s := NewScorer("btcusdt", st, cfg)

	// constant price: zero volatility is outside the band, so the
	// volume leg reads zero
	for i := 0; i < 80; i++ {
		st.Update(100, 20*float64(i), 0.8, 5)
	}

	sig := s.Evaluate(100)
	require.NotNil(t, sig)
	wantImb := (26.0 + (0.8-0.4)/0.6*14.0) / 40.0 * 100.0
	want := (100*35 + wantImb*45 + 0*15) / 95
	assert.InDelta(t, want, sig.Score, 0.01)
}
