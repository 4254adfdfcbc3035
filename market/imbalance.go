package market

// Imbalance computes the order book imbalance over the top depth
// levels of each side:
//
//	(BidVol - AskVol) / (BidVol + AskVol)
//
// The result is in [-1, 1]. An empty side or non-positive combined
// volume yields 0, never a division by zero; a book with resting
// bids but no asks is still 0 rather than +1 because a one-sided
// book carries no usable pressure reading.
func Imbalance(bids, asks []BookLevel, depth int) float64 {
	if len(bids) == 0 || len(asks) == 0 {
		return 0
	}

	if depth < len(bids) {
		bids = bids[:depth]
	}
	if depth < len(asks) {
		asks = asks[:depth]
	}

	var bidVol, askVol float64
	for _, l := range bids {
		bidVol += l.Qty
	}
	for _, l := range asks {
		askVol += l.Qty
	}

	total := bidVol + askVol
	if total <= 0 {
		return 0
	}
	return (bidVol - askVol) / total
}
