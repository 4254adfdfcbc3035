// Package display renders a live console status panel for one
// instrument.
package display

import (
	"fmt"
	"io"
	"strings"

	"sniperflow/market"
	"sniperflow/portfolio"
	"sniperflow/strategy"
)

const (
	colorRed    = "\033[91m"
	colorGreen  = "\033[92m"
	colorYellow = "\033[93m"
	colorBlue   = "\033[94m"
	colorCyan   = "\033[96m"
	colorReset  = "\033[0m"

	clearScreen = "\033[2J\033[H"
)

// Status is one frame of panel input.
type Status struct {
	Instrument string
	Price      float64
	CVD        float64
	Imbalance  float64
	Volatility float64
	HasVol     bool

	Signal *strategy.Signal

	Equity   float64
	Position *portfolio.Position
}

// Panel writes status frames to a terminal. Colors and screen
// clearing are suppressed when Plain is set, which keeps piped
// output readable.
type Panel struct {
	Out   io.Writer
	Plain bool
}

func (p *Panel) color(c string) string {
	if p.Plain {
		return ""
	}
	return c
}

// Render draws one full frame.
func (p *Panel) Render(st Status) {
	var b strings.Builder
	if !p.Plain {
		b.WriteString(clearScreen)
	}

	rule := strings.Repeat("-", 25)

	fmt.Fprintln(&b, "--- SNIPER FLOW BOT ---")
	fmt.Fprintf(&b, "Symbol: %s%s%s\n", p.color(colorCyan), strings.ToUpper(st.Instrument), p.color(colorReset))
	fmt.Fprintln(&b, rule)

	fmt.Fprintf(&b, "%-12s %s%.2f%s\n", "Price:", p.color(colorYellow), st.Price, p.color(colorReset))
	fmt.Fprintf(&b, "%-12s %s%.3f%s\n", "Imbalance:", p.color(colorBlue), st.Imbalance, p.color(colorReset))
	fmt.Fprintf(&b, "%-12s %s%.2f%s\n", "Current CVD:", p.color(colorBlue), st.CVD, p.color(colorReset))
	if st.HasVol {
		fmt.Fprintf(&b, "%-12s %s%.6f%s\n", "Volatility:", p.color(colorBlue), st.Volatility, p.color(colorReset))
	}
	fmt.Fprintln(&b, rule)

	if st.Signal != nil {
		c := colorGreen
		if st.Signal.Side == market.Short {
			c = colorRed
		}
		fmt.Fprintf(&b, "%-12s %s%s @ %.2f (Score: %.2f)%s\n",
			"Signal:", p.color(c), st.Signal.Side, st.Price, st.Signal.Score, p.color(colorReset))
	} else {
		fmt.Fprintf(&b, "%-12s --\n", "Signal:")
	}
	fmt.Fprintln(&b, rule)

	fmt.Fprintf(&b, "%-15s %s%.2f USD%s\n", "Global Equity:", p.color(colorGreen), st.Equity, p.color(colorReset))
	if pos := st.Position; pos != nil {
		var unrealized float64
		if pos.Side == market.Long {
			unrealized = (st.Price - pos.EntryPrice) * pos.Qty
		} else {
			unrealized = (pos.EntryPrice - st.Price) * pos.Qty
		}
		pnlColor := colorGreen
		if unrealized < 0 {
			pnlColor = colorRed
		}
		fmt.Fprintf(&b, "%-15s %s %.4f\n", "Position:", pos.Side, pos.Qty)
		fmt.Fprintf(&b, "%-15s %.2f\n", "Entry:", pos.EntryPrice)
		fmt.Fprintf(&b, "%-15s %s%.4f USD%s\n", "Unrealized PnL:", p.color(pnlColor), unrealized, p.color(colorReset))
		fmt.Fprintf(&b, "%-15s %.2f / %.2f\n", "SL/TP:", pos.StopPrice, pos.TargetPrice)
	} else {
		fmt.Fprintf(&b, "%-15s --\n", "Position:")
	}
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "Press Ctrl+C to stop.")

	io.WriteString(p.Out, b.String())
}
