package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	instrument TEXT NOT NULL,
	side TEXT NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	qty REAL NOT NULL,
	stop_price REAL NOT NULL,
	target_price REAL NOT NULL,
	entry_time DATETIME NOT NULL,
	exit_time DATETIME NOT NULL,
	realized_pnl REAL NOT NULL,
	fees_paid REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS features (
	instrument TEXT NOT NULL,
	time DATETIME NOT NULL,
	price REAL NOT NULL,
	cvd REAL NOT NULL,
	imbalance REAL NOT NULL,
	smooth_imbalance REAL,
	volatility REAL,
	vol_norm REAL,
	cvd_slope REAL,
	has_position INTEGER NOT NULL,
	position_side TEXT,
	signal_side TEXT,
	signal_score REAL,
	equity REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_exit_time ON trades(exit_time);
CREATE INDEX IF NOT EXISTS idx_features_time ON features(instrument, time);
`
