package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// CSVJournal writes trades and feature snapshots to two flat CSV
// files, flushed per record so a crash loses at most the row being
// written.
type CSVJournal struct {
	trades   *csv.Writer
	features *csv.Writer
	tf, ff   *os.File
}

func NewCSV(tradesPath, featuresPath string) (*CSVJournal, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	ff, err := os.Create(featuresPath)
	if err != nil {
		tf.Close()
		return nil, err
	}

	tw := csv.NewWriter(tf)
	fw := csv.NewWriter(ff)

	if err := tw.Write([]string{
		"trade_id", "instrument", "side", "entry_price", "exit_price", "qty",
		"stop_price", "target_price", "entry_time", "exit_time",
		"realized_pnl", "fees_paid", "reason",
	}); err != nil {
		return nil, err
	}
	if err := fw.Write([]string{
		"instrument", "time", "price", "cvd", "imbalance", "smooth_imbalance",
		"volatility", "vol_norm", "cvd_slope", "has_position", "position_side",
		"signal_side", "signal_score", "equity",
	}); err != nil {
		return nil, err
	}

	tw.Flush()
	if err := tw.Error(); err != nil {
		return nil, err
	}
	fw.Flush()
	if err := fw.Error(); err != nil {
		return nil, err
	}

	return &CSVJournal{trades: tw, features: fw, tf: tf, ff: ff}, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	err := j.trades.Write([]string{
		t.TradeID,
		t.Instrument,
		string(t.Side),
		f(t.EntryPrice),
		f(t.ExitPrice),
		f(t.Qty),
		f(t.StopPrice),
		f(t.TargetPrice),
		t.EntryTime.Format(time.RFC3339),
		t.ExitTime.Format(time.RFC3339),
		f(t.RealizedPnL),
		f(t.FeesPaid),
		t.Reason,
	})
	if err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) RecordFeatures(s FeatureSnapshot) error {
	err := j.features.Write([]string{
		s.Instrument,
		s.Time.Format(time.RFC3339),
		f(s.Price),
		f(s.CVD),
		f(s.Imbalance),
		opt(s.SmoothImbalance, s.HasSmoothImb),
		opt(s.Volatility, s.HasVolatility),
		opt(s.VolNorm, s.HasVolNorm),
		opt(s.CVDSlope, s.HasCVDSlope),
		strconv.FormatBool(s.HasPosition),
		string(s.PositionSide),
		sigSide(s),
		opt(s.SignalScore, s.HasSignal),
		f(s.Equity),
	})
	if err != nil {
		return err
	}
	j.features.Flush()
	return j.features.Error()
}

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.features.Flush()
	if err := j.features.Error(); err != nil {
		return err
	}

	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.ff.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

// opt renders an optional metric; empty cell while warming up.
func opt(x float64, ok bool) string {
	if !ok {
		return ""
	}
	return f(x)
}

func sigSide(s FeatureSnapshot) string {
	if !s.HasSignal {
		return ""
	}
	return string(s.SignalSide)
}
