package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImbalance(t *testing.T) {
	bids := []BookLevel{{Price: 99, Qty: 6}, {Price: 98, Qty: 2}}
	asks := []BookLevel{{Price: 101, Qty: 2}, {Price: 102, Qty: 2}}

	// (8 - 4) / (8 + 4)
	assert.InDelta(t, 1.0/3.0, Imbalance(bids, asks, 5), 1e-12)
}

func TestImbalanceDepthTruncation(t *testing.T) {
	bids := []BookLevel{{Price: 99, Qty: 5}, {Price: 98, Qty: 100}}
	asks := []BookLevel{{Price: 101, Qty: 5}, {Price: 102, Qty: 100}}

	assert.Equal(t, 0.0, Imbalance(bids, asks, 1), "deep levels excluded")
}

func TestImbalanceEmptySides(t *testing.T) {
	bids := []BookLevel{{Price: 99, Qty: 5}}

	assert.Equal(t, 0.0, Imbalance(nil, nil, 5))
	assert.Equal(t, 0.0, Imbalance(bids, nil, 5), "one-sided book is no signal")
	assert.Equal(t, 0.0, Imbalance(nil, bids, 5))
}

func TestImbalanceZeroVolume(t *testing.T) {
	bids := []BookLevel{{Price: 99, Qty: 0}}
	asks := []BookLevel{{Price: 101, Qty: 0}}

	assert.Equal(t, 0.0, Imbalance(bids, asks, 5))
}

func TestImbalanceExtremes(t *testing.T) {
	bids := []BookLevel{{Price: 99, Qty: 10}}
	asks := []BookLevel{{Price: 101, Qty: 0.000001}}

	assert.InDelta(t, 1.0, Imbalance(bids, asks, 5), 1e-3)
	assert.InDelta(t, -1.0, Imbalance(asks, bids, 5), 1e-3)
}
