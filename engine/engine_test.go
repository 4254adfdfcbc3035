package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sniperflow/config"
	"sniperflow/feed"
	"sniperflow/journal"
	"sniperflow/market"
)

type stubSource struct {
	snaps []market.Snapshot
}

func (s *stubSource) Stream(ctx context.Context) (<-chan market.Snapshot, error) {
	ch := make(chan market.Snapshot)
	go func() {
		defer close(ch)
		for _, snap := range s.snaps {
			select {
			case ch <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

var _ feed.Source = (*stubSource)(nil)

type fakeJournal struct {
	trades   []journal.TradeRecord
	features []journal.FeatureSnapshot
}

func (j *fakeJournal) RecordTrade(t journal.TradeRecord) error          { j.trades = append(j.trades, t); return nil }
func (j *fakeJournal) RecordFeatures(s journal.FeatureSnapshot) error   { j.features = append(j.features, s); return nil }
func (j *fakeJournal) Close() error                                     { return nil }

// bullishTape is a regime that warms every metric and then scores a
// long: alternating cent prices, a deep bid book, one aggressive buy
// per tick.
func bullishTape(n int) []market.Snapshot {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	snaps := make([]market.Snapshot, 0, n)
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		snaps = append(snaps, market.Snapshot{
			Instrument: "btcusdt",
			Time:       ts,
			Mid:        100 + 0.01*float64(i%2),
			Book: market.BookSnapshot{
				Time: ts,
				Bids: []market.BookLevel{{Price: 99.99, Qty: 9}},
				Asks: []market.BookLevel{{Price: 100.01, Qty: 1}},
			},
			Trades: []market.TradeEvent{{Time: ts, Price: 100, Qty: 20, Buy: true}},
		})
	}
	return snaps
}

func TestEngineOpensAndStopsOut(t *testing.T) {
	cfg := config.Default()
	cfg.Feed.Symbols = []string{"btcusdt"}

	snaps := bullishTape(80)

	// drop through the stop on the final tick
	last := snaps[len(snaps)-1]
	snaps = append(snaps, market.Snapshot{
		Instrument: "btcusdt",
		Time:       last.Time.Add(time.Second),
		Mid:        99.0,
		Book: market.BookSnapshot{
			Time: last.Time.Add(time.Second),
			Bids: []market.BookLevel{{Price: 98.99, Qty: 5}},
			Asks: []market.BookLevel{{Price: 99.01, Qty: 5}},
		},
	})

	jnl := &fakeJournal{}
	eng := New(cfg, jnl, &stubSource{snaps: snaps})

	require.NoError(t, eng.Run(context.Background()))

	require.Len(t, jnl.trades, 1)
	rec := jnl.trades[0]
	assert.Equal(t, "btcusdt", rec.Instrument)
	assert.Equal(t, market.Long, rec.Side)
	assert.True(t, strings.HasPrefix(rec.Reason, "SL | "))

	assert.False(t, eng.Portfolio().HasPosition("btcusdt"))
	assert.Len(t, jnl.features, len(snaps), "one feature snapshot per tick")

	// the signal tick is flagged in the feature log
	var sawSignal bool
	for _, fs := range jnl.features {
		if fs.HasSignal {
			sawSignal = true
			assert.Equal(t, market.Long, fs.SignalSide)
		}
	}
	assert.True(t, sawSignal)
}

func TestEngineSessionFilterBlocksEntries(t *testing.T) {
	cfg := config.Default()
	cfg.Feed.Symbols = []string{"btcusdt"}
	// the tape runs at 10:00 UTC, outside this window
	cfg.Sessions = []config.SessionWindow{{Start: "14:00", End: "16:00"}}

	jnl := &fakeJournal{}
	eng := New(cfg, jnl, &stubSource{snaps: bullishTape(80)})

	require.NoError(t, eng.Run(context.Background()))

	assert.False(t, eng.Portfolio().HasPosition("btcusdt"))
	assert.Empty(t, jnl.trades)
	for _, fs := range jnl.features {
		assert.False(t, fs.HasSignal, "no entries evaluated out of session")
	}
}

func TestEngineKillSwitchBlocksEntries(t *testing.T) {
	cfg := config.Default()
	cfg.Feed.Symbols = []string{"btcusdt"}
	// any measurable volatility trips the absolute breaker
	cfg.Score.VolatilityMax = 1e-9

	jnl := &fakeJournal{}
	eng := New(cfg, jnl, &stubSource{snaps: bullishTape(80)})

	require.NoError(t, eng.Run(context.Background()))

	assert.False(t, eng.Portfolio().HasPosition("btcusdt"))
	assert.Empty(t, jnl.trades)
}
