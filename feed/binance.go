package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"sniperflow/market"
)

// BinanceConfig tunes the websocket connector.
type BinanceConfig struct {
	// BaseURL is the combined-stream endpoint, e.g.
	// wss://fstream.binance.com/stream
	BaseURL string
	// EmitInterval is the cadence at which aggregated snapshots are
	// emitted downstream.
	EmitInterval time.Duration

	HandshakeTimeout  time.Duration
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
}

// DefaultBinanceConfig returns connector defaults.
func DefaultBinanceConfig(baseURL string, emit time.Duration) BinanceConfig {
	return BinanceConfig{
		BaseURL:           baseURL,
		EmitInterval:      emit,
		HandshakeTimeout:  10 * time.Second,
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      20 * time.Second,
		ReadTimeout:       60 * time.Second,
	}
}

// Binance streams public futures market data for one instrument by
// subscribing to the depth and aggTrade combined streams, buffering
// between emits, and yielding one Snapshot per emit interval.
// Disconnects trigger reconnection with exponential backoff; the
// buffers reset on reconnect so a stale book is never emitted.
type Binance struct {
	instrument string
	cfg        BinanceConfig

	depthStream string
	tradeStream string
	url         string

	bids   []market.BookLevel
	asks   []market.BookLevel
	trades []market.TradeEvent
}

// NewBinance creates a connector for one instrument (lowercase
// symbol, e.g. "btcusdt").
func NewBinance(instrument string, cfg BinanceConfig) *Binance {
	instrument = strings.ToLower(instrument)
	depth := instrument + "@depth10@100ms"
	trade := instrument + "@aggTrade"
	return &Binance{
		instrument:  instrument,
		cfg:         cfg,
		depthStream: depth,
		tradeStream: trade,
		url:         fmt.Sprintf("%s?streams=%s/%s", cfg.BaseURL, depth, trade),
	}
}

// Stream implements Source. The returned channel closes when ctx is
// cancelled.
func (b *Binance) Stream(ctx context.Context) (<-chan market.Snapshot, error) {
	out := make(chan market.Snapshot)
	go b.run(ctx, out)
	return out, nil
}

func (b *Binance) run(ctx context.Context, out chan<- market.Snapshot) {
	defer close(out)

	delay := b.cfg.ReconnectDelay
	for {
		if ctx.Err() != nil {
			return
		}

		err := b.consume(ctx, out)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("[feed] %s disconnected: %v, retrying in %s", b.instrument, err, delay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > b.cfg.MaxReconnectDelay {
			delay = b.cfg.MaxReconnectDelay
		}
	}
}

// consume holds one websocket session: read messages, keep the
// ladders and trade buffer current, emit snapshots on cadence.
func (b *Binance) consume(ctx context.Context, out chan<- market.Snapshot) error {
	dialer := websocket.Dialer{HandshakeTimeout: b.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// fresh session, fresh state
	b.bids, b.asks, b.trades = nil, nil, nil

	conn.SetReadDeadline(time.Now().Add(b.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(b.cfg.ReadTimeout))
	})

	// ping loop; also closes the connection on ctx cancel so the
	// blocking read below returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(b.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				deadline := time.Now().Add(5 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			}
		}
	}()

	lastEmit := time.Now()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("websocket read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(b.cfg.ReadTimeout))

		var combined struct {
			Stream string          `json:"stream"`
			Data   json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(msg, &combined); err != nil {
			continue
		}

		switch combined.Stream {
		case b.depthStream:
			b.handleDepth(combined.Data)
		case b.tradeStream:
			b.handleTrade(combined.Data)
		}

		now := time.Now()
		if now.Sub(lastEmit) < b.cfg.EmitInterval {
			continue
		}
		lastEmit = now

		if len(b.bids) == 0 || len(b.asks) == 0 {
			b.trades = nil
			continue
		}

		mid := (b.bids[0].Price + b.asks[0].Price) / 2

		snap := market.Snapshot{
			Instrument: b.instrument,
			Time:       now,
			Mid:        mid,
			Book: market.BookSnapshot{
				Time: now,
				Bids: append([]market.BookLevel(nil), b.bids...),
				Asks: append([]market.BookLevel(nil), b.asks...),
			},
			Trades: b.trades,
		}
		b.trades = nil

		select {
		case out <- snap:
		case <-ctx.Done():
			return nil
		}
	}
}

type depthPayload struct {
	Bids [][]string `json:"b"`
	Asks [][]string `json:"a"`
}

func (b *Binance) handleDepth(data json.RawMessage) {
	var d depthPayload
	if err := json.Unmarshal(data, &d); err != nil {
		return
	}

	bids := parseLevels(d.Bids)
	asks := parseLevels(d.Asks)

	// best bid first, best ask first
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	b.bids = bids
	b.asks = asks
}

// parseLevels converts ["price","qty"] pairs, excluding
// non-positive quantities.
func parseLevels(raw [][]string) []market.BookLevel {
	levels := make([]market.BookLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			continue
		}
		price, err1 := strconv.ParseFloat(pair[0], 64)
		qty, err2 := strconv.ParseFloat(pair[1], 64)
		if err1 != nil || err2 != nil || qty <= 0 {
			continue
		}
		levels = append(levels, market.BookLevel{Price: price, Qty: qty})
	}
	return levels
}

type aggTradePayload struct {
	Price        string `json:"p"`
	Qty          string `json:"q"`
	BuyerIsMaker bool   `json:"m"`
	TradeTime    int64  `json:"T"`
	EventTime    int64  `json:"E"`
}

func (b *Binance) handleTrade(data json.RawMessage) {
	var t aggTradePayload
	if err := json.Unmarshal(data, &t); err != nil {
		return
	}

	price, err1 := strconv.ParseFloat(t.Price, 64)
	qty, err2 := strconv.ParseFloat(t.Qty, 64)
	if err1 != nil || err2 != nil {
		return
	}

	ms := t.TradeTime
	if ms == 0 {
		ms = t.EventTime
	}
	ts := time.Now()
	if ms > 0 {
		ts = time.UnixMilli(ms)
	}

	b.trades = append(b.trades, market.TradeEvent{
		Time:  ts,
		Price: price,
		Qty:   qty,
		// buyer-is-maker means the aggressor was the seller
		Buy: !t.BuyerIsMaker,
	})
}
