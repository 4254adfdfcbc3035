package feed

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sniperflow/market"
)

func sampleSnapshots() []market.Snapshot {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	return []market.Snapshot{
		{
			Instrument: "btcusdt",
			Time:       base,
			Mid:        100.05,
			Book: market.BookSnapshot{
				Time: base,
				Bids: []market.BookLevel{{Price: 100, Qty: 3}, {Price: 99.9, Qty: 5}},
				Asks: []market.BookLevel{{Price: 100.1, Qty: 2}},
			},
			Trades: []market.TradeEvent{
				{Time: base, Price: 100.05, Qty: 0.5, Buy: true},
				{Time: base, Price: 100.04, Qty: 0.2, Buy: false},
			},
		},
		{
			Instrument: "btcusdt",
			Time:       base.Add(time.Second),
			Mid:        100.10,
			Book: market.BookSnapshot{
				Time: base.Add(time.Second),
				Bids: []market.BookLevel{{Price: 100.05, Qty: 1}},
				Asks: []market.BookLevel{{Price: 100.15, Qty: 4}},
			},
		},
	}
}

func drain(t *testing.T, src Source) []market.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := src.Stream(ctx)
	require.NoError(t, err)

	var out []market.Snapshot
	for snap := range ch {
		out = append(out, snap)
	}
	return out
}

func TestRecordReplayRoundTrip(t *testing.T) {
	for _, name := range []string{"session.jsonl", "session.jsonl.xz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			rec, err := NewRecorder(path)
			require.NoError(t, err)
			want := sampleSnapshots()
			for _, snap := range want {
				require.NoError(t, rec.Write(snap))
			}
			require.NoError(t, rec.Close())

			got := drain(t, NewReplay(path, 0))
			require.Len(t, got, len(want))

			for i := range want {
				assert.Equal(t, want[i].Instrument, got[i].Instrument)
				assert.True(t, want[i].Time.Equal(got[i].Time))
				assert.Equal(t, want[i].Mid, got[i].Mid)
				assert.Equal(t, want[i].Book.Bids, got[i].Book.Bids)
				assert.Equal(t, want[i].Book.Asks, got[i].Book.Asks)
				require.Len(t, got[i].Trades, len(want[i].Trades))
				for j := range want[i].Trades {
					assert.True(t, want[i].Trades[j].Time.Equal(got[i].Trades[j].Time))
					assert.Equal(t, want[i].Trades[j].Qty, got[i].Trades[j].Qty)
					assert.Equal(t, want[i].Trades[j].Buy, got[i].Trades[j].Buy)
				}
			}
		})
	}
}

func TestReplayMissingFile(t *testing.T) {
	_, err := NewReplay("/nonexistent/recording.jsonl", 0).Stream(context.Background())
	assert.Error(t, err)
}

func TestReplayCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.jsonl")
	rec, err := NewRecorder(path)
	require.NoError(t, err)
	for _, snap := range sampleSnapshots() {
		require.NoError(t, rec.Write(snap))
	}
	require.NoError(t, rec.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch, err := NewReplay(path, 0).Stream(ctx)
	require.NoError(t, err)

	// the channel closes promptly instead of blocking on a dead
	// consumer
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("replay did not shut down on cancel")
		}
	}
}
