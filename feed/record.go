package feed

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ulikunitz/xz"

	"sniperflow/market"
)

// wireSnapshot is the JSONL on-disk shape of one snapshot. Times are
// unix milliseconds to keep recordings compact and portable.
type wireSnapshot struct {
	Instrument string      `json:"s"`
	TimeMs     int64       `json:"t"`
	Mid        float64     `json:"m"`
	Bids       [][2]float64 `json:"b"`
	Asks       [][2]float64 `json:"a"`
	Trades     []wireTrade `json:"x,omitempty"`
}

type wireTrade struct {
	TimeMs int64   `json:"t"`
	Price  float64 `json:"p"`
	Qty    float64 `json:"q"`
	Buy    bool    `json:"b"`
}

func toWire(snap market.Snapshot) wireSnapshot {
	w := wireSnapshot{
		Instrument: snap.Instrument,
		TimeMs:     snap.Time.UnixMilli(),
		Mid:        snap.Mid,
		Bids:       packLevels(snap.Book.Bids),
		Asks:       packLevels(snap.Book.Asks),
	}
	for _, t := range snap.Trades {
		w.Trades = append(w.Trades, wireTrade{
			TimeMs: t.Time.UnixMilli(),
			Price:  t.Price,
			Qty:    t.Qty,
			Buy:    t.Buy,
		})
	}
	return w
}

func (w wireSnapshot) toSnapshot() market.Snapshot {
	ts := time.UnixMilli(w.TimeMs)
	snap := market.Snapshot{
		Instrument: w.Instrument,
		Time:       ts,
		Mid:        w.Mid,
		Book: market.BookSnapshot{
			Time: ts,
			Bids: unpackLevels(w.Bids),
			Asks: unpackLevels(w.Asks),
		},
	}
	for _, t := range w.Trades {
		snap.Trades = append(snap.Trades, market.TradeEvent{
			Time:  time.UnixMilli(t.TimeMs),
			Price: t.Price,
			Qty:   t.Qty,
			Buy:   t.Buy,
		})
	}
	return snap
}

func packLevels(levels []market.BookLevel) [][2]float64 {
	out := make([][2]float64, len(levels))
	for i, l := range levels {
		out[i] = [2]float64{l.Price, l.Qty}
	}
	return out
}

func unpackLevels(pairs [][2]float64) []market.BookLevel {
	out := make([]market.BookLevel, len(pairs))
	for i, p := range pairs {
		out[i] = market.BookLevel{Price: p[0], Qty: p[1]}
	}
	return out
}

// Recorder persists snapshots as JSON lines. A path ending in .xz is
// compressed on the fly.
type Recorder struct {
	mu   sync.Mutex
	file *os.File
	w    *bufio.Writer
	xz   *xz.Writer
	enc  *json.Encoder
}

// NewRecorder opens path for writing, truncating any existing file.
func NewRecorder(path string) (*Recorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}

	r := &Recorder{file: file}
	var sink io.Writer = file
	if strings.HasSuffix(path, ".xz") {
		xw, err := xz.NewWriter(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("xz writer: %w", err)
		}
		r.xz = xw
		sink = xw
	}
	r.w = bufio.NewWriter(sink)
	r.enc = json.NewEncoder(r.w)
	return r, nil
}

// Write appends one snapshot.
func (r *Recorder) Write(snap market.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(toWire(snap)); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Close flushes and closes the recording.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.w.Flush(); err != nil {
		r.file.Close()
		return err
	}
	if r.xz != nil {
		if err := r.xz.Close(); err != nil {
			r.file.Close()
			return err
		}
	}
	return r.file.Close()
}
