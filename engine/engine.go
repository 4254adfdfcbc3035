// Package engine runs the per-instrument trading loops: it consumes
// market snapshots, keeps the derived statistics current, drives the
// portfolio's exit management, and asks the scorer for entries when
// the instrument is flat.
package engine

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"sniperflow/config"
	"sniperflow/display"
	"sniperflow/feed"
	"sniperflow/journal"
	"sniperflow/market"
	"sniperflow/portfolio"
	"sniperflow/stats"
	"sniperflow/strategy"
)

// symbolState is the per-instrument derived state. Snapshots are
// processed sequentially so none of it needs locking.
type symbolState struct {
	stats  *stats.MarketStats
	cvd    *stats.CVD
	scorer *strategy.Scorer

	killUntil  time.Time
	prevVol    float64
	hasPrevVol bool
}

// Engine wires sources, statistics, scoring, the portfolio and the
// journal into one run loop.
type Engine struct {
	cfg     *config.Config
	pf      *portfolio.Portfolio
	jnl     journal.Journal
	sources []feed.Source

	panel *display.Panel
	rec   *feed.Recorder

	states        map[string]*symbolState
	displaySymbol string
}

// New creates an engine over the given snapshot sources. All sources
// feed the same portfolio and journal.
func New(cfg *config.Config, jnl journal.Journal, sources ...feed.Source) *Engine {
	e := &Engine{
		cfg:     cfg,
		pf:      portfolio.New(cfg),
		jnl:     jnl,
		sources: sources,
		states:  make(map[string]*symbolState),
	}
	if len(cfg.Feed.Symbols) > 0 {
		e.displaySymbol = strings.ToLower(cfg.Feed.Symbols[0])
	}
	return e
}

// SetPanel enables the console status panel. Only the first
// configured symbol is rendered so frames do not overwrite each
// other.
func (e *Engine) SetPanel(p *display.Panel) { e.panel = p }

// SetRecorder persists every consumed snapshot for later replay.
func (e *Engine) SetRecorder(r *feed.Recorder) { e.rec = r }

// Portfolio exposes the engine's portfolio for inspection.
func (e *Engine) Portfolio() *portfolio.Portfolio { return e.pf }

// Run consumes all sources until ctx is cancelled or every source's
// channel closes. Snapshots from all sources are merged and handled
// sequentially.
func (e *Engine) Run(ctx context.Context) error {
	merged := make(chan market.Snapshot, 64)

	var wg sync.WaitGroup
	for _, src := range e.sources {
		ch, err := src.Stream(ctx)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func(ch <-chan market.Snapshot) {
			defer wg.Done()
			for snap := range ch {
				select {
				case merged <- snap:
				case <-ctx.Done():
					return
				}
			}
		}(ch)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	for snap := range merged {
		e.handle(snap)
	}
	return ctx.Err()
}

func (e *Engine) state(instrument string) *symbolState {
	st, ok := e.states[instrument]
	if !ok {
		st = &symbolState{
			stats: stats.NewMarketStats(e.cfg.Stats.WindowSize, e.cfg.Stats.ContextWindow),
			cvd:   stats.NewCVD(e.cfg.Stats.CVDHistoryMaxSize),
		}
		st.scorer = strategy.NewScorer(instrument, st.stats, e.cfg)
		e.states[instrument] = st
	}
	return st
}

func (e *Engine) handle(snap market.Snapshot) {
	instrument := strings.ToLower(snap.Instrument)
	st := e.state(instrument)

	if e.rec != nil {
		if err := e.rec.Write(snap); err != nil {
			log.Printf("[engine] record snapshot: %v", err)
		}
	}

	price := snap.Mid
	now := snap.Time

	cvdCurrent := st.cvd.ApplyTrades(snap.Trades, now)
	imbalance := market.Imbalance(snap.Book.Bids, snap.Book.Asks, e.cfg.Feed.DepthLevels)
	st.stats.Update(price, cvdCurrent, imbalance, snap.PeriodVolume())

	vol, volOK := st.stats.Volatility(e.cfg.Stats.ReturnsLookback)
	volNorm, volNormOK := st.stats.VolumeNormalized(e.cfg.Stats.VolNormLookback)
	smoothImb, smoothImbOK := st.stats.SmoothedImbalance(e.cfg.Stats.SmoothImbWindow)

	e.checkKillSwitch(st, instrument, now, vol, volOK)

	m := portfolio.Metrics{
		SmoothImbalance:   smoothImb,
		SmoothImbalanceOK: smoothImbOK,
		VolNorm:           volNorm,
		VolNormOK:         volNormOK,
	}
	for _, closed := range e.pf.OnTick(instrument, now, price, m) {
		if err := e.jnl.RecordTrade(closed); err != nil {
			log.Printf("[engine] record trade: %v", err)
		}
		log.Printf("[engine] %s %s closed | PnL: %.4f | %s",
			strings.ToUpper(closed.Instrument), closed.Side, closed.RealizedPnL, closed.Reason)
	}

	var sig *strategy.Signal
	if !now.Before(st.killUntil) && e.cfg.InSession(now) && !e.pf.HasPosition(instrument) {
		sig = st.scorer.Evaluate(price)
		if sig != nil {
			e.pf.Open(now, price, sig, price, imbalance)
		}
	}

	if e.panel != nil && instrument == e.displaySymbol {
		status := display.Status{
			Instrument: instrument,
			Price:      price,
			CVD:        cvdCurrent,
			Imbalance:  imbalance,
			Volatility: vol,
			HasVol:     volOK,
			Signal:     sig,
			Equity:     e.pf.Equity(),
		}
		if pos, ok := e.pf.GetPosition(instrument); ok {
			status.Position = &pos
		}
		e.panel.Render(status)
	}

	e.recordFeatures(st, instrument, now, price, cvdCurrent, imbalance, sig, m, vol, volOK)
}

// checkKillSwitch locks out new entries after an absolute-volatility
// breach or a volatility spike versus the previous sample.
func (e *Engine) checkKillSwitch(st *symbolState, instrument string, now time.Time, vol float64, volOK bool) {
	if !volOK {
		return
	}
	cooldown := time.Duration(e.cfg.Score.KillSwitchCooldownSec * float64(time.Second))

	if vol > e.cfg.Score.VolatilityMax {
		st.killUntil = now.Add(cooldown)
		log.Printf("[engine] %s kill switch: absolute volatility %.6f, entries locked until %s",
			strings.ToUpper(instrument), vol, st.killUntil.UTC().Format(time.RFC3339))
	}
	if st.hasPrevVol && st.prevVol > 0 && vol >= st.prevVol*e.cfg.Score.KillSwitchVolMult {
		st.killUntil = now.Add(cooldown)
		log.Printf("[engine] %s kill switch: volatility spike %.6f -> %.6f, entries locked until %s",
			strings.ToUpper(instrument), st.prevVol, vol, st.killUntil.UTC().Format(time.RFC3339))
	}

	st.prevVol = vol
	st.hasPrevVol = true
}

func (e *Engine) recordFeatures(st *symbolState, instrument string, now time.Time, price, cvd, imbalance float64, sig *strategy.Signal, m portfolio.Metrics, vol float64, volOK bool) {
	slope, slopeOK := st.stats.CVDSlope(e.cfg.Stats.CVDSlopeLookback)

	fs := journal.FeatureSnapshot{
		Instrument:      instrument,
		Time:            now,
		Price:           price,
		CVD:             cvd,
		Imbalance:       imbalance,
		SmoothImbalance: m.SmoothImbalance,
		HasSmoothImb:    m.SmoothImbalanceOK,
		Volatility:      vol,
		HasVolatility:   volOK,
		VolNorm:         m.VolNorm,
		HasVolNorm:      m.VolNormOK,
		CVDSlope:        slope,
		HasCVDSlope:     slopeOK,
		Equity:          e.pf.Equity(),
	}
	if pos, ok := e.pf.GetPosition(instrument); ok {
		fs.HasPosition = true
		fs.PositionSide = pos.Side
	}
	if sig != nil {
		fs.HasSignal = true
		fs.SignalSide = sig.Side
		fs.SignalScore = sig.Score
	}

	if err := e.jnl.RecordFeatures(fs); err != nil {
		log.Printf("[engine] record features: %v", err)
	}
}
