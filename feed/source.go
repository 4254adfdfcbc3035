package feed

import (
	"context"

	"sniperflow/market"
)

// Source delivers market snapshots for one instrument in timestamp
// order. The channel closes when the context is cancelled or the
// source is exhausted; the core consumes whatever it is given and
// never waits on I/O itself.
type Source interface {
	Stream(ctx context.Context) (<-chan market.Snapshot, error)
}
