package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete, immutable-for-a-run configuration of the
// bot: feed, account, risk limits, scoring thresholds, exit
// management, stats windows and journaling.
type Config struct {
	Feed    FeedConfig    `json:"feed" yaml:"feed"`
	Account AccountConfig `json:"account" yaml:"account"`
	Risk    RiskConfig    `json:"risk" yaml:"risk"`
	Score   ScoreConfig   `json:"score" yaml:"score"`
	Exits   ExitConfig    `json:"exits" yaml:"exits"`
	Stats   StatsConfig   `json:"stats" yaml:"stats"`
	Journal JournalConfig `json:"journal" yaml:"journal"`

	// Sessions are the UTC trading windows during which new entries
	// are allowed. Open positions are always managed regardless.
	Sessions []SessionWindow `json:"sessions" yaml:"sessions"`

	// Symbols holds per-instrument tuning; Symbol() falls back to
	// DefaultSymbol for instruments without an entry.
	Symbols       map[string]SymbolConfig `json:"symbols" yaml:"symbols"`
	DefaultSymbol SymbolConfig            `json:"default_symbol" yaml:"default_symbol"`
}

// SessionWindow is an inclusive "HH:MM" interval in UTC.
type SessionWindow struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// Contains reports whether t (converted to UTC) falls inside the
// window.
func (s SessionWindow) Contains(t time.Time) bool {
	start, err := parseClock(s.Start)
	if err != nil {
		return false
	}
	end, err := parseClock(s.End)
	if err != nil {
		return false
	}
	u := t.UTC()
	m := u.Hour()*60 + u.Minute()
	if start <= end {
		return m >= start && m <= end
	}
	// window wraps midnight
	return m >= start || m <= end
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return h*60 + m, nil
}

// InSession reports whether any configured session window contains t.
// No windows means always in session.
func (c *Config) InSession(t time.Time) bool {
	if len(c.Sessions) == 0 {
		return true
	}
	for _, s := range c.Sessions {
		if s.Contains(t) {
			return true
		}
	}
	return false
}

// FeedConfig configures the market-data transport.
type FeedConfig struct {
	Symbols      []string `json:"symbols" yaml:"symbols"`
	URL          string   `json:"url" yaml:"url"`
	EmitInterval string   `json:"emit_interval" yaml:"emit_interval"` // e.g. "1s"
	DepthLevels  int      `json:"depth_levels" yaml:"depth_levels"`
}

// EmitEvery parses EmitInterval.
func (f FeedConfig) EmitEvery() (time.Duration, error) {
	return time.ParseDuration(f.EmitInterval)
}

// AccountConfig contains paper-account initialization and fees.
type AccountConfig struct {
	Balance  float64 `json:"balance" yaml:"balance"`
	Leverage float64 `json:"leverage" yaml:"leverage"`
	FeeMaker float64 `json:"fee_maker" yaml:"fee_maker"`
	FeeTaker float64 `json:"fee_taker" yaml:"fee_taker"`
}

// RiskConfig contains the global capital-risk limits shared by all
// instrument loops.
type RiskConfig struct {
	BaseRiskPerTrade float64 `json:"base_risk_per_trade" yaml:"base_risk_per_trade"`
	SniperRiskMult   float64 `json:"sniper_risk_mult" yaml:"sniper_risk_mult"`
	MaxTotalOpenRisk float64 `json:"max_total_open_risk" yaml:"max_total_open_risk"`

	DailyMaxLossPct float64 `json:"daily_max_loss_pct" yaml:"daily_max_loss_pct"`
	DailyMaxLossAbs float64 `json:"daily_max_loss_abs" yaml:"daily_max_loss_abs"`
	MaxTradesPerDay int     `json:"max_trades_per_day" yaml:"max_trades_per_day"`

	MaxTradesPerHourPerSymbol int     `json:"max_trades_per_hour_per_symbol" yaml:"max_trades_per_hour_per_symbol"`
	CooldownAfterTradeSec     float64 `json:"cooldown_after_trade_sec" yaml:"cooldown_after_trade_sec"`

	RewardRisk   float64 `json:"reward_risk" yaml:"reward_risk"`
	StopBuffer   float64 `json:"stop_buffer" yaml:"stop_buffer"`
	MinTPVsFees  float64 `json:"min_tp_vs_fees" yaml:"min_tp_vs_fees"`
}

// ScoreConfig contains signal-scoring weights and thresholds.
type ScoreConfig struct {
	WeightFlow      float64 `json:"weight_flow" yaml:"weight_flow"`
	WeightImbalance float64 `json:"weight_imbalance" yaml:"weight_imbalance"`
	WeightVolume    float64 `json:"weight_volume" yaml:"weight_volume"`

	MinCandidate float64 `json:"min_candidate" yaml:"min_candidate"`
	SniperMin    float64 `json:"sniper_min" yaml:"sniper_min"`

	SlopeStrongUp   float64 `json:"slope_strong_up" yaml:"slope_strong_up"`
	SlopeWeakUp     float64 `json:"slope_weak_up" yaml:"slope_weak_up"`
	SlopeStrongDown float64 `json:"slope_strong_down" yaml:"slope_strong_down"`
	SlopeWeakDown   float64 `json:"slope_weak_down" yaml:"slope_weak_down"`
	SlopeNeutral    float64 `json:"slope_neutral" yaml:"slope_neutral"`

	ImbalanceLongEntry  float64 `json:"imbalance_long_entry" yaml:"imbalance_long_entry"`
	ImbalanceShortEntry float64 `json:"imbalance_short_entry" yaml:"imbalance_short_entry"`
	ImbalanceScoreBase  float64 `json:"imbalance_score_base" yaml:"imbalance_score_base"`
	ImbalanceScoreMax   float64 `json:"imbalance_score_max" yaml:"imbalance_score_max"`

	MinVolNorm    float64 `json:"min_vol_norm" yaml:"min_vol_norm"`
	BonusVolNorm  float64 `json:"bonus_vol_norm" yaml:"bonus_vol_norm"`
	VolatilityMin float64 `json:"volatility_min" yaml:"volatility_min"`
	VolatilityMax float64 `json:"volatility_max" yaml:"volatility_max"`

	AntiChaseLookbackTicks int     `json:"anti_chase_lookback_ticks" yaml:"anti_chase_lookback_ticks"`
	AntiChaseMaxMovePct    float64 `json:"anti_chase_max_move_pct" yaml:"anti_chase_max_move_pct"`

	ColdStartSamples int `json:"cold_start_samples" yaml:"cold_start_samples"`

	KillSwitchVolMult    float64 `json:"kill_switch_vol_mult" yaml:"kill_switch_vol_mult"`
	KillSwitchCooldownSec float64 `json:"kill_switch_cooldown_sec" yaml:"kill_switch_cooldown_sec"`
}

// ExitConfig contains the per-tick position management parameters.
type ExitConfig struct {
	BreakevenTriggerPct float64 `json:"breakeven_trigger_pct" yaml:"breakeven_trigger_pct"`
	TrailingStopPct     float64 `json:"trailing_stop_pct" yaml:"trailing_stop_pct"`

	PartialTPFraction   float64 `json:"partial_tp_fraction" yaml:"partial_tp_fraction"`
	PartialTPTriggerPct float64 `json:"partial_tp_trigger_pct" yaml:"partial_tp_trigger_pct"`

	InvalidImbEnable          bool    `json:"invalid_imb_enable" yaml:"invalid_imb_enable"`
	InvalidImbThreshold       float64 `json:"invalid_imb_threshold" yaml:"invalid_imb_threshold"`
	InvalidImbConsecSamples   int     `json:"invalid_imb_consec_samples" yaml:"invalid_imb_consec_samples"`
	InvalidImbMinAgeSec       float64 `json:"invalid_imb_min_age_sec" yaml:"invalid_imb_min_age_sec"`
	InvalidImbMinAdverseTicks int     `json:"invalid_imb_min_adverse_ticks" yaml:"invalid_imb_min_adverse_ticks"`

	NoProgressEnable      bool    `json:"no_progress_enable" yaml:"no_progress_enable"`
	NoProgressMinAgeSec   float64 `json:"no_progress_min_age_sec" yaml:"no_progress_min_age_sec"`
	NoProgressMinMFEPct   float64 `json:"no_progress_min_mfe_pct" yaml:"no_progress_min_mfe_pct"`
	NoProgressGivebackPct float64 `json:"no_progress_giveback_pct" yaml:"no_progress_giveback_pct"`

	TimeStopLowVolSec  float64 `json:"time_stop_low_vol_sec" yaml:"time_stop_low_vol_sec"`
	TimeStopHighVolSec float64 `json:"time_stop_high_vol_sec" yaml:"time_stop_high_vol_sec"`
	VolNormHigh        float64 `json:"vol_norm_high" yaml:"vol_norm_high"`
}

// StatsConfig contains rolling-window sizes and metric lookbacks.
type StatsConfig struct {
	WindowSize        int `json:"window_size" yaml:"window_size"`
	ContextWindow     int `json:"context_window" yaml:"context_window"`
	ReturnsLookback   int `json:"returns_lookback" yaml:"returns_lookback"`
	SmoothImbWindow   int `json:"smooth_imb_window" yaml:"smooth_imb_window"`
	CVDSlopeLookback  int `json:"cvd_slope_lookback" yaml:"cvd_slope_lookback"`
	VolNormLookback   int `json:"vol_norm_lookback" yaml:"vol_norm_lookback"`
	CVDHistoryMaxSize int `json:"cvd_history_max_size" yaml:"cvd_history_max_size"`
}

// JournalConfig selects the trade/feature sink.
type JournalConfig struct {
	Type         string `json:"type" yaml:"type"` // "csv" or "sqlite"
	TradesFile   string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	FeaturesFile string `json:"features_file,omitempty" yaml:"features_file,omitempty"`
	DBPath       string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// SymbolConfig is per-instrument tuning.
type SymbolConfig struct {
	CVDDivergence float64 `json:"cvd_divergence" yaml:"cvd_divergence"`
	MinImbalance  float64 `json:"min_imbalance" yaml:"min_imbalance"`
	LookbackSec   int     `json:"lookback_sec" yaml:"lookback_sec"`
	TickSize      float64 `json:"tick_size" yaml:"tick_size"`
}

// Symbol returns the tuning for an instrument, falling back to
// DefaultSymbol when no entry exists.
func (c *Config) Symbol(instrument string) SymbolConfig {
	if sc, ok := c.Symbols[strings.ToLower(instrument)]; ok {
		return sc
	}
	return c.DefaultSymbol
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration as YAML (or JSON for .json).
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("feed.symbols is required")
	}
	if _, err := c.Feed.EmitEvery(); err != nil {
		return fmt.Errorf("feed.emit_interval: %w", err)
	}
	if c.Feed.DepthLevels <= 0 {
		return fmt.Errorf("feed.depth_levels must be positive")
	}
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if c.Account.Leverage < 1 {
		return fmt.Errorf("account.leverage must be >= 1")
	}
	if c.Risk.BaseRiskPerTrade <= 0 || c.Risk.BaseRiskPerTrade > 1 {
		return fmt.Errorf("risk.base_risk_per_trade must be in (0, 1]")
	}
	if c.Risk.MaxTotalOpenRisk < c.Risk.BaseRiskPerTrade {
		return fmt.Errorf("risk.max_total_open_risk must be >= base_risk_per_trade")
	}
	if c.Risk.SniperRiskMult < 1 {
		return fmt.Errorf("risk.sniper_risk_mult must be >= 1")
	}
	if c.Risk.RewardRisk <= 0 {
		return fmt.Errorf("risk.reward_risk must be positive")
	}
	if c.Score.WeightFlow+c.Score.WeightImbalance+c.Score.WeightVolume <= 0 {
		return fmt.Errorf("score weights must sum to a positive value")
	}
	if c.Score.SniperMin < c.Score.MinCandidate {
		return fmt.Errorf("score.sniper_min must be >= score.min_candidate")
	}
	if c.Exits.PartialTPFraction <= 0 || c.Exits.PartialTPFraction >= 1 {
		return fmt.Errorf("exits.partial_tp_fraction must be in (0, 1)")
	}
	if c.Stats.WindowSize < 2 {
		return fmt.Errorf("stats.window_size must be >= 2")
	}
	for i, s := range c.Sessions {
		if _, err := parseClock(s.Start); err != nil {
			return fmt.Errorf("sessions[%d].start: %w", i, err)
		}
		if _, err := parseClock(s.End); err != nil {
			return fmt.Errorf("sessions[%d].end: %w", i, err)
		}
	}
	if c.DefaultSymbol.TickSize <= 0 {
		return fmt.Errorf("default_symbol.tick_size must be positive")
	}
	switch c.Journal.Type {
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.FeaturesFile == "" {
			return fmt.Errorf("journal trades_file and features_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv' or 'sqlite'")
	}
	return nil
}

// Default returns the shipped paper-trading configuration.
func Default() *Config {
	return &Config{
		Feed: FeedConfig{
			Symbols:      []string{"btcusdt", "ethusdt", "solusdt"},
			URL:          "wss://fstream.binance.com/stream",
			EmitInterval: "1s",
			DepthLevels:  5,
		},
		Account: AccountConfig{
			Balance:  50.0,
			Leverage: 20,
			FeeMaker: 0.0002,
			FeeTaker: 0.0004,
		},
		Risk: RiskConfig{
			BaseRiskPerTrade:          0.03,
			SniperRiskMult:            1.6,
			MaxTotalOpenRisk:          0.10,
			DailyMaxLossPct:           0.06,
			DailyMaxLossAbs:           3.0,
			MaxTradesPerDay:           35,
			MaxTradesPerHourPerSymbol: 10,
			CooldownAfterTradeSec:     5.0,
			RewardRisk:                2.5,
			StopBuffer:                0.0008,
			MinTPVsFees:               3.0,
		},
		Score: ScoreConfig{
			WeightFlow:             35,
			WeightImbalance:        45,
			WeightVolume:           15,
			MinCandidate:           45,
			SniperMin:              90,
			SlopeStrongUp:          100,
			SlopeWeakUp:            30,
			SlopeStrongDown:        -100,
			SlopeWeakDown:          -30,
			SlopeNeutral:           10,
			ImbalanceLongEntry:     0.40,
			ImbalanceShortEntry:    -0.40,
			ImbalanceScoreBase:     26,
			ImbalanceScoreMax:      40,
			MinVolNorm:             0.3,
			BonusVolNorm:           0.7,
			VolatilityMin:          0.00004,
			VolatilityMax:          0.00250,
			AntiChaseLookbackTicks: 5,
			AntiChaseMaxMovePct:    0.0020,
			ColdStartSamples:       50,
			KillSwitchVolMult:      4.0,
			KillSwitchCooldownSec:  900,
		},
		Exits: ExitConfig{
			BreakevenTriggerPct:       0.0025,
			TrailingStopPct:           0.0010,
			PartialTPFraction:         0.5,
			PartialTPTriggerPct:       0.0025,
			InvalidImbEnable:          true,
			InvalidImbThreshold:       0.95,
			InvalidImbConsecSamples:   4,
			InvalidImbMinAgeSec:       5.0,
			InvalidImbMinAdverseTicks: 3,
			NoProgressEnable:          false,
			NoProgressMinAgeSec:       15.0,
			NoProgressMinMFEPct:       0.0005,
			NoProgressGivebackPct:     0.00025,
			TimeStopLowVolSec:         600,
			TimeStopHighVolSec:        300,
			VolNormHigh:               0.7,
		},
		Stats: StatsConfig{
			WindowSize:        1000,
			ContextWindow:     60,
			ReturnsLookback:   60,
			SmoothImbWindow:   3,
			CVDSlopeLookback:  7,
			VolNormLookback:   100,
			CVDHistoryMaxSize: 3600,
		},
		Sessions: []SessionWindow{
			{Start: "00:00", End: "23:59"},
		},
		Journal: JournalConfig{
			Type:         "csv",
			TradesFile:   "./trades_paper.csv",
			FeaturesFile: "./features_snapshots.csv",
		},
		Symbols: map[string]SymbolConfig{
			"btcusdt": {CVDDivergence: 3.0, MinImbalance: 0.24, LookbackSec: 180, TickSize: 0.1},
			"ethusdt": {CVDDivergence: 3.5, MinImbalance: 0.26, LookbackSec: 150, TickSize: 0.01},
			"solusdt": {CVDDivergence: 4.0, MinImbalance: 0.28, LookbackSec: 120, TickSize: 0.01},
		},
		DefaultSymbol: SymbolConfig{
			CVDDivergence: 3.0,
			MinImbalance:  0.25,
			LookbackSec:   180,
			TickSize:      0.01,
		},
	}
}
