package stats

import (
	"math"
	"sort"
)

// MarketStats maintains parallel rolling windows of market features
// for one instrument and derives the metrics the scorer and the
// portfolio consume. Reads that need a minimum sample count return
// ok=false until it is reached; SmoothedImbalance is deliberately
// lenient (see its doc) and is the only read that never blocks on a
// cold start.
//
// MarketStats is owned by a single instrument loop and needs no
// locking.
type MarketStats struct {
	prices     *Window
	cvd        *Window
	imbalances *Window
	volumes    *Window
	returns    *Window

	// shorter CVD window for flow-context comparisons
	cvdContext *Window
}

// NewMarketStats creates stats with a shared window capacity for
// price/cvd/imbalance/volume/returns and a separate, smaller
// capacity for the CVD context window.
func NewMarketStats(windowSize, contextSize int) *MarketStats {
	return &MarketStats{
		prices:     NewWindow(windowSize),
		cvd:        NewWindow(windowSize),
		imbalances: NewWindow(windowSize),
		volumes:    NewWindow(windowSize),
		returns:    NewWindow(windowSize),
		cvdContext: NewWindow(contextSize),
	}
}

// Update appends one sample to every window. The fractional return
// from the previous price is recorded when a positive previous
// price exists.
func (s *MarketStats) Update(price, cvd, imbalance, volume float64) {
	if prev, ok := s.prices.Last(); ok && prev > 0 {
		s.returns.Push((price - prev) / prev)
	}

	s.prices.Push(price)
	s.cvd.Push(cvd)
	s.imbalances.Push(imbalance)
	s.volumes.Push(volume)
	s.cvdContext.Push(cvd)
}

func (s *MarketStats) PriceCount() int { return s.prices.Len() }
func (s *MarketStats) CVDCount() int   { return s.cvd.Len() }

// PriceFromEnd returns the price n ticks back from the most recent.
func (s *MarketStats) PriceFromEnd(n int) (float64, bool) {
	return s.prices.FromEnd(n)
}

// Volatility is the sample standard deviation (n-1 divisor) of the
// last lookback returns. ok=false with fewer than lookback returns
// or fewer than 2.
func (s *MarketStats) Volatility(lookback int) (float64, bool) {
	if s.returns.Len() < lookback {
		return 0, false
	}
	tail := s.returns.Tail(lookback)
	if len(tail) < 2 {
		return 0, false
	}
	return stddev(tail), true
}

// SmoothedImbalance is the mean of the last window imbalance
// samples. With fewer samples than the window it falls back to the
// single most recent sample instead of reporting insufficient data,
// so early ticks are never blocked; callers must tolerate the
// unsmoothed value. ok=false only when no sample exists at all.
func (s *MarketStats) SmoothedImbalance(window int) (float64, bool) {
	if s.imbalances.Len() == 0 {
		return 0, false
	}
	if s.imbalances.Len() < window {
		return s.imbalances.Last()
	}
	return mean(s.imbalances.Tail(window)), true
}

// CVDSlope is cvd[last] - cvd[last-1-lookback]: the net signed
// aggressive flow over the window. Positive means net buying
// pressure. ok=false unless strictly more than lookback samples
// exist.
func (s *MarketStats) CVDSlope(lookback int) (float64, bool) {
	if s.cvd.Len() <= lookback {
		return 0, false
	}
	last, _ := s.cvd.FromEnd(0)
	past, _ := s.cvd.FromEnd(lookback)
	return last - past, true
}

// volumeNormalizedMinSamples is the minimum volume history before a
// normalized reading is meaningful.
const volumeNormalizedMinSamples = 20

// VolumeNormalized min-max normalizes the latest traded volume
// against the trailing lookback samples, clamped to [0, 1]. Flat
// volume (max == min) reads 0.5. ok=false below 20 total samples.
func (s *MarketStats) VolumeNormalized(lookback int) (float64, bool) {
	if s.volumes.Len() < volumeNormalizedMinSamples {
		return 0, false
	}

	recent := s.volumes.Tail(lookback)
	if len(recent) < 2 {
		return 0, false
	}

	current := recent[len(recent)-1]
	lo, hi := recent[0], recent[0]
	for _, v := range recent {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	if hi <= lo {
		return 0.5, true
	}
	norm := (current - lo) / (hi - lo)
	return math.Min(1, math.Max(0, norm)), true
}

// IsVolatileEnough reports whether the population standard deviation
// of raw prices exceeds minStd. Requires 50 price samples.
func (s *MarketStats) IsVolatileEnough(minStd float64) bool {
	if s.prices.Len() < 50 {
		return false
	}
	return stddevPop(s.prices.Values()) > minStd
}

// DynamicThresholds returns the 90th/10th percentile of the
// imbalance history, or the supplied defaults below 100 samples.
func (s *MarketStats) DynamicThresholds(defaultPos, defaultNeg float64) (float64, float64) {
	if s.imbalances.Len() < 100 {
		return defaultPos, defaultNeg
	}
	vals := append([]float64(nil), s.imbalances.Values()...)
	sort.Float64s(vals)
	return percentile(vals, 90), percentile(vals, 10)
}

// ContextMean is the mean CVD over the context window, for
// dominant-flow comparisons.
func (s *MarketStats) ContextMean() (float64, bool) {
	if s.cvdContext.Len() == 0 {
		return 0, false
	}
	return mean(s.cvdContext.Values()), true
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func stddev(vals []float64) float64 {
	m := mean(vals)
	var ss float64
	for _, v := range vals {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)-1))
}

func stddevPop(vals []float64) float64 {
	m := mean(vals)
	var ss float64
	for _, v := range vals {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)))
}

// percentile over a sorted slice, linear interpolation between ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
