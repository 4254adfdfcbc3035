package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteJournal stores trades and features in a single SQLite file,
// handy for post-run SQL analysis.
type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, instrument, side, entry_price, exit_price, qty,
		 stop_price, target_price, entry_time, exit_time, realized_pnl, fees_paid, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Instrument, string(t.Side), t.EntryPrice, t.ExitPrice, t.Qty,
		t.StopPrice, t.TargetPrice, t.EntryTime, t.ExitTime, t.RealizedPnL, t.FeesPaid, t.Reason,
	)
	return err
}

func (j *SQLiteJournal) RecordFeatures(s FeatureSnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO features
		(instrument, time, price, cvd, imbalance, smooth_imbalance,
		 volatility, vol_norm, cvd_slope, has_position, position_side,
		 signal_side, signal_score, equity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Instrument, s.Time, s.Price, s.CVD, s.Imbalance,
		nullable(s.SmoothImbalance, s.HasSmoothImb),
		nullable(s.Volatility, s.HasVolatility),
		nullable(s.VolNorm, s.HasVolNorm),
		nullable(s.CVDSlope, s.HasCVDSlope),
		s.HasPosition, string(s.PositionSide),
		sigSide(s),
		nullable(s.SignalScore, s.HasSignal),
		s.Equity,
	)
	return err
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func nullable(x float64, ok bool) interface{} {
	if !ok {
		return nil
	}
	return x
}
