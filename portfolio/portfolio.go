package portfolio

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"sniperflow/config"
	"sniperflow/internal/id"
	"sniperflow/journal"
	"sniperflow/market"
	"sniperflow/strategy"
)

// Metrics carries the optional per-tick derived metrics OnTick
// consumes. The OK flags make the warming-up case explicit.
type Metrics struct {
	SmoothImbalance   float64
	SmoothImbalanceOK bool
	VolNorm           float64
	VolNormOK         bool
}

// Portfolio is the position-lifecycle state machine and the
// capital-allocation authority shared by all instrument loops. It
// owns every open position, the realized balance, the daily risk
// counters and the global open-risk budget.
//
// All instrument loops funnel through Open and OnTick; both take
// one mutex for a short critical section and never block on I/O
// while holding it, so concurrent loops cannot double-count balance
// or risk.
type Portfolio struct {
	mu sync.Mutex

	acct  config.AccountConfig
	risk  config.RiskConfig
	exits config.ExitConfig
	symFn func(string) config.SymbolConfig

	balance float64
	equity  float64

	positions map[string]*Position
	history   []journal.TradeRecord

	// day accounting, UTC calendar day
	dayKey       string
	dayBalance   float64 // balance at start of day
	tradesToday  int

	lastExit       map[string]time.Time
	tradesLastHour map[string][]time.Time
	lastPrice      map[string]float64
}

func New(cfg *config.Config) *Portfolio {
	return &Portfolio{
		acct:           cfg.Account,
		risk:           cfg.Risk,
		exits:          cfg.Exits,
		symFn:          cfg.Symbol,
		balance:        cfg.Account.Balance,
		equity:         cfg.Account.Balance,
		positions:      make(map[string]*Position),
		lastExit:       make(map[string]time.Time),
		tradesLastHour: make(map[string][]time.Time),
		lastPrice:      make(map[string]float64),
	}
}

// -------- queries --------

func (pf *Portfolio) Balance() float64 {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.balance
}

func (pf *Portfolio) Equity() float64 {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.equity
}

func (pf *Portfolio) HasPosition(instrument string) bool {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	_, ok := pf.positions[instrument]
	return ok
}

// GetPosition returns a copy of the open position, if any.
func (pf *Portfolio) GetPosition(instrument string) (Position, bool) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	p, ok := pf.positions[instrument]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

func (pf *Portfolio) OpenRisk() float64 {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.totalOpenRiskLocked()
}

// History returns a copy of the trade history.
func (pf *Portfolio) History() []journal.TradeRecord {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return append([]journal.TradeRecord(nil), pf.history...)
}

// -------- day / risk accounting --------

func dayKeyOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (pf *Portfolio) resetIfNewDayLocked(now time.Time) {
	key := dayKeyOf(now)
	if key == pf.dayKey {
		return
	}
	pf.dayKey = key
	pf.dayBalance = pf.balance
	pf.tradesToday = 0
	log.Printf("[portfolio] new day %s, start balance=%.2f", key, pf.dayBalance)
}

func (pf *Portfolio) dailyDrawdownPctLocked() float64 {
	if pf.dayBalance <= 0 {
		return 0
	}
	return (pf.balance - pf.dayBalance) / pf.dayBalance
}

func (pf *Portfolio) totalOpenRiskLocked() float64 {
	var sum float64
	for _, p := range pf.positions {
		sum += p.RiskPct
	}
	return sum
}

// -------- opening --------

// Open attempts to open a position for a signal. Guards run in
// order and the first failure aborts with no side effects; a nil
// return means the attempt was rejected. Rejections are logged, not
// errors; the caller just skips the tick.
//
// recentExtreme is the recent adverse extreme price the stop hangs
// off; entryImbalance is recorded on the position for audit.
func (pf *Portfolio) Open(now time.Time, price float64, sig *strategy.Signal, recentExtreme, entryImbalance float64) *Position {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	instrument := sig.Instrument

	if _, exists := pf.positions[instrument]; exists {
		return nil
	}

	// cooldown after the last close on this instrument
	cooldown := time.Duration(pf.risk.CooldownAfterTradeSec * float64(time.Second))
	if last, ok := pf.lastExit[instrument]; ok && now.Sub(last) < cooldown {
		return nil
	}

	// hourly rate limit per instrument
	recent := pruneHour(pf.tradesLastHour[instrument], now)
	pf.tradesLastHour[instrument] = recent
	if len(recent) >= pf.risk.MaxTradesPerHourPerSymbol {
		return nil
	}

	// daily gates close the day for every instrument
	pf.resetIfNewDayLocked(now)
	if dd := pf.dailyDrawdownPctLocked(); dd <= -pf.risk.DailyMaxLossPct {
		log.Printf("[portfolio] daily loss limit hit: dd=%.2f%%", dd*100)
		return nil
	}
	if ddAbs := pf.balance - pf.dayBalance; ddAbs <= -pf.risk.DailyMaxLossAbs {
		log.Printf("[portfolio] absolute daily loss limit hit: %.2f", -ddAbs)
		return nil
	}
	if pf.tradesToday >= pf.risk.MaxTradesPerDay {
		log.Printf("[portfolio] daily trade limit reached: %d", pf.risk.MaxTradesPerDay)
		return nil
	}

	// risk sizing, clamped to the remaining global headroom
	riskPct := pf.risk.BaseRiskPerTrade * sig.RiskMult
	headroom := pf.risk.MaxTotalOpenRisk - pf.totalOpenRiskLocked()
	if headroom <= 0 {
		log.Printf("[portfolio] global risk saturated, not opening %s", instrument)
		return nil
	}
	if riskPct > headroom {
		log.Printf("[portfolio] clamping risk: requested=%.2f%% allowed=%.2f%%",
			riskPct*100, headroom*100)
		riskPct = headroom
	}

	// stop beyond the recent adverse extreme, buffered away from entry
	var stop float64
	if sig.Side == market.Long {
		stop = recentExtreme * (1 - pf.risk.StopBuffer)
	} else {
		stop = recentExtreme * (1 + pf.risk.StopBuffer)
	}

	qty, ok := pf.sizeLocked(price, stop, riskPct)
	if !ok {
		return nil
	}

	// target at reward:risk times the stop distance
	var target float64
	if sig.Side == market.Long {
		target = price + (price-stop)*pf.risk.RewardRisk
	} else {
		target = price - (stop-price)*pf.risk.RewardRisk
	}

	// gross profit at target must clear the fee floor
	estFees := price*qty*pf.acct.FeeMaker + target*qty*pf.acct.FeeTaker
	grossTP := math.Abs(target-price) * qty
	if grossTP < estFees*pf.risk.MinTPVsFees {
		log.Printf("[portfolio] %s TP too small vs fees: gross=%.4f fees=%.4f",
			instrument, grossTP, estFees)
		return nil
	}

	entryFee := price * qty * pf.acct.FeeMaker
	pf.balance -= entryFee
	pf.tradesToday++

	pos := &Position{
		Instrument:       instrument,
		Side:             sig.Side,
		EntryPrice:       price,
		Qty:              qty,
		InitialQty:       qty,
		StopPrice:        stop,
		TargetPrice:      target,
		EntryTime:        now,
		EntryImbalance:   entryImbalance,
		RiskPct:          riskPct,
		Class:            sig.Class,
		OpenReason:       sig.Reason,
		FavorableExtreme: price,
		AdverseExtreme:   price,
		FeesPaid:         entryFee,
	}
	pf.positions[instrument] = pos

	log.Printf("[portfolio] OPEN %s %s price=%.2f sl=%.2f tp=%.2f qty=%.6f risk=%.2f%% reason=%s",
		instrument, sig.Side, price, stop, target, qty, riskPct*100, sig.Reason)
	return pos
}

// sizeLocked computes quantity from the risk budget and scales it
// down when the notional would exceed what balance and leverage
// allow, leaving ~10% margin slack.
func (pf *Portfolio) sizeLocked(entry, stop, riskPct float64) (float64, bool) {
	dist := math.Abs(entry - stop)
	if dist <= 0 {
		log.Printf("[portfolio] stop distance <= 0: entry=%.4f stop=%.4f", entry, stop)
		return 0, false
	}

	qty := pf.equity * riskPct / dist
	if qty <= 0 {
		return 0, false
	}

	notional := entry * qty
	if notional/pf.acct.Leverage > pf.balance {
		scale := pf.balance * pf.acct.Leverage * 0.9 / notional
		qty *= scale
		log.Printf("[portfolio] scaling qty for margin: notional=%.2f balance=%.2f -> qty=%.6f",
			notional, pf.balance, qty)
	}
	if qty <= 0 {
		return 0, false
	}
	return qty, true
}

// -------- per-tick management --------

// OnTick runs the full exit pipeline for one instrument at one
// price, then recomputes equity across all open positions. It must
// be called on every tick whether or not a position exists, and
// returns the trade records closed this tick (possibly a partial
// and a full close together).
func (pf *Portfolio) OnTick(instrument string, now time.Time, price float64, m Metrics) []journal.TradeRecord {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	pf.resetIfNewDayLocked(now)

	var closed []journal.TradeRecord

	if pos, ok := pf.positions[instrument]; ok {
		pos.updateExtremes(price)
		pf.updateAdverseTicksLocked(pos, price)
		pf.applyBreakevenTrailingLocked(pos, price)

		// fast partial take-profit close to entry
		if !pos.PartialTaken {
			var trigger float64
			hit := false
			if pos.Side == market.Long {
				trigger = pos.EntryPrice * (1 + pf.exits.PartialTPTriggerPct)
				hit = price >= trigger
			} else {
				trigger = pos.EntryPrice * (1 - pf.exits.PartialTPTriggerPct)
				hit = price <= trigger
			}
			if hit {
				closed = append(closed, pf.closePartialLocked(pos, now, trigger, "TP1_FAST")...)
			}
		}

		exitPrice, exitLabel := pf.checkExitsLocked(pos, now, price, m)
		if exitPrice > 0 && pos.Qty > 0 {
			closed = append(closed, pf.closeFullLocked(pos, now, exitPrice, exitLabel)...)
		}
	}

	pf.lastPrice[instrument] = price
	pf.recomputeEquityLocked()

	return closed
}

// checkExitsLocked evaluates the ordered exit conditions and
// returns the first triggered exit price and label, or 0.
func (pf *Portfolio) checkExitsLocked(pos *Position, now time.Time, price float64, m Metrics) (float64, string) {
	// hard stop, then target (full target only after the partial)
	if pos.Side == market.Long {
		if price <= pos.StopPrice {
			return pos.StopPrice, "SL"
		}
		if pos.PartialTaken && price >= pos.TargetPrice {
			return pos.TargetPrice, "TP"
		}
	} else {
		if price >= pos.StopPrice {
			return pos.StopPrice, "SL"
		}
		if pos.PartialTaken && price <= pos.TargetPrice {
			return pos.TargetPrice, "TP"
		}
	}

	if reason := pf.checkInvalidImbLocked(pos, now, m); reason != "" {
		log.Printf("[portfolio] %s %s", pos.Instrument, reason)
		return price, reason
	}

	if pf.checkNoProgressLocked(pos, now, price) {
		return price, "NO_PROGRESS"
	}

	// dynamic time stop, shorter in high-volatility regimes
	limit := time.Duration(pf.exits.TimeStopLowVolSec * float64(time.Second))
	if m.VolNormOK && m.VolNorm >= pf.exits.VolNormHigh {
		limit = time.Duration(pf.exits.TimeStopHighVolSec * float64(time.Second))
	}
	if age := now.Sub(pos.EntryTime); age >= limit {
		log.Printf("[portfolio] %s TIME_STOP after %s (limit %s)", pos.Instrument, age, limit)
		return price, "TIME_STOP"
	}

	return 0, ""
}

func (pf *Portfolio) updateAdverseTicksLocked(pos *Position, price float64) {
	tick := pf.symFn(pos.Instrument).TickSize
	if tick <= 0 {
		pos.AdverseTicks = 0
		return
	}

	var move float64
	if pos.Side == market.Long {
		move = math.Max(0, pos.EntryPrice-price)
	} else {
		move = math.Max(0, price-pos.EntryPrice)
	}
	pos.AdverseTicks = int(move / tick)
}

// applyBreakevenTrailingLocked moves the stop to entry once the
// favorable move reaches the trigger (one-shot), then ratchets it
// with the market. The stop only ever tightens.
func (pf *Portfolio) applyBreakevenTrailingLocked(pos *Position, price float64) {
	if !pos.BreakevenDone {
		if pos.favorableMove(price) >= pos.EntryPrice*pf.exits.BreakevenTriggerPct {
			old := pos.StopPrice
			pos.StopPrice = pos.EntryPrice
			pos.BreakevenDone = true
			log.Printf("[portfolio] BREAKEVEN %s %s old_sl=%.2f new_sl=%.2f",
				pos.Instrument, pos.Side, old, pos.StopPrice)
		}
	}

	if pos.BreakevenDone {
		if pos.Side == market.Long {
			trail := price * (1 - pf.exits.TrailingStopPct)
			if trail > pos.StopPrice {
				pos.StopPrice = trail
			}
		} else {
			trail := price * (1 + pf.exits.TrailingStopPct)
			if trail < pos.StopPrice {
				pos.StopPrice = trail
			}
		}
	}
}

// checkInvalidImbLocked detects persistently adverse order-book
// pressure against the open side. Any non-adverse sample resets the
// consecutive counter.
func (pf *Portfolio) checkInvalidImbLocked(pos *Position, now time.Time, m Metrics) string {
	if !pf.exits.InvalidImbEnable || !m.SmoothImbalanceOK {
		pos.InvalidImbCount = 0
		return ""
	}

	age := now.Sub(pos.EntryTime)
	if age < time.Duration(pf.exits.InvalidImbMinAgeSec*float64(time.Second)) {
		pos.InvalidImbCount = 0
		return ""
	}

	var adverse bool
	if pos.Side == market.Long {
		adverse = m.SmoothImbalance <= -pf.exits.InvalidImbThreshold
	} else {
		adverse = m.SmoothImbalance >= pf.exits.InvalidImbThreshold
	}
	if !adverse {
		pos.InvalidImbCount = 0
		return ""
	}

	pos.InvalidImbCount++
	if pos.InvalidImbCount < pf.exits.InvalidImbConsecSamples {
		return ""
	}
	if pos.AdverseTicks < pf.exits.InvalidImbMinAdverseTicks {
		return ""
	}

	return fmt.Sprintf("INVALID_IMB | side=%s Imb_smooth=%.2f age=%.1fs adv_ticks=%d",
		pos.Side, m.SmoothImbalance, age.Seconds(), pos.AdverseTicks)
}

// checkNoProgressLocked cuts trades that reached a minimal
// favorable excursion and then gave most of it back.
func (pf *Portfolio) checkNoProgressLocked(pos *Position, now time.Time, price float64) bool {
	if !pf.exits.NoProgressEnable {
		return false
	}
	if now.Sub(pos.EntryTime) < time.Duration(pf.exits.NoProgressMinAgeSec*float64(time.Second)) {
		return false
	}

	entry := pos.EntryPrice
	var mfePct, currentPct float64
	if pos.Side == market.Long {
		mfePct = (pos.FavorableExtreme - entry) / entry
		currentPct = (price - entry) / entry
	} else {
		mfePct = (entry - pos.FavorableExtreme) / entry
		currentPct = (entry - price) / entry
	}

	if mfePct < pf.exits.NoProgressMinMFEPct {
		return false
	}
	return currentPct <= mfePct-pf.exits.NoProgressGivebackPct
}

// -------- closing --------

func (pf *Portfolio) closePartialLocked(pos *Position, now time.Time, exitPrice float64, label string) []journal.TradeRecord {
	qty := pos.Qty * pf.exits.PartialTPFraction
	if qty <= 0 {
		return nil
	}

	rec := pf.settleLocked(pos, now, exitPrice, qty, label)

	pos.Qty -= qty
	pos.PartialTaken = true

	log.Printf("[portfolio] PARTIAL %s %s %s exit=%.2f qty=%.6f pnl=%.4f balance=%.4f",
		pos.Instrument, pos.Side, label, exitPrice, qty, rec.RealizedPnL, pf.balance)
	return []journal.TradeRecord{rec}
}

func (pf *Portfolio) closeFullLocked(pos *Position, now time.Time, exitPrice float64, label string) []journal.TradeRecord {
	qty := pos.Qty
	if qty <= 0 {
		return nil
	}

	rec := pf.settleLocked(pos, now, exitPrice, qty, label)

	pos.Qty = 0
	delete(pf.positions, pos.Instrument)

	// cooldown and hourly-rate bookkeeping start at the close
	pf.lastExit[pos.Instrument] = now
	pf.tradesLastHour[pos.Instrument] = append(pruneHour(pf.tradesLastHour[pos.Instrument], now), now)

	log.Printf("[portfolio] CLOSE %s %s %s exit=%.2f qty=%.6f pnl=%.4f balance=%.4f",
		pos.Instrument, pos.Side, label, exitPrice, qty, rec.RealizedPnL, pf.balance)
	return []journal.TradeRecord{rec}
}

// settleLocked realizes PnL for qty closed at exitPrice, charges
// the taker exit fee, and appends the trade record.
func (pf *Portfolio) settleLocked(pos *Position, now time.Time, exitPrice, qty float64, label string) journal.TradeRecord {
	exitFee := exitPrice * qty * pf.acct.FeeTaker
	realized := pos.pricePnL(exitPrice, qty) - exitFee

	pf.balance += realized
	pos.FeesPaid += exitFee

	rec := journal.TradeRecord{
		TradeID:     id.New(),
		Instrument:  pos.Instrument,
		Side:        pos.Side,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exitPrice,
		Qty:         qty,
		StopPrice:   pos.StopPrice,
		TargetPrice: pos.TargetPrice,
		EntryTime:   pos.EntryTime,
		ExitTime:    now,
		RealizedPnL: realized,
		FeesPaid:    exitFee,
		Reason:      label + " | " + pos.OpenReason,
	}
	pf.history = append(pf.history, rec)
	return rec
}

// recomputeEquityLocked derives equity = balance + unrealized PnL
// net of the estimated exit fee, using the latest known price per
// instrument.
func (pf *Portfolio) recomputeEquityLocked() {
	eq := pf.balance
	for instrument, pos := range pf.positions {
		price, ok := pf.lastPrice[instrument]
		if !ok {
			continue
		}
		exitFeeEst := price * pos.Qty * pf.acct.FeeTaker
		eq += pos.pricePnL(price, pos.Qty) - exitFeeEst
	}
	pf.equity = eq
}

func pruneHour(ts []time.Time, now time.Time) []time.Time {
	out := ts[:0]
	for _, t := range ts {
		if now.Sub(t) < time.Hour {
			out = append(out, t)
		}
	}
	return out
}
