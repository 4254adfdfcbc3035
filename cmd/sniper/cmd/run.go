package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sniperflow/config"
	"sniperflow/display"
	"sniperflow/engine"
	"sniperflow/feed"
	"sniperflow/journal"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Trade live market data on a paper account",
	Long: `Stream order books and trades for the configured symbols, score
entries per tick and manage positions on a simulated account.

Example:
  sniper run --config sniper.yaml --record session.jsonl.xz`,
	RunE: runRun,
}

var (
	runConfigPath string
	runRecordPath string
	runNoPanel    bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON); defaults apply when omitted")
	runCmd.Flags().StringVar(&runRecordPath, "record", "", "record consumed snapshots to this JSONL file (.xz compresses)")
	runCmd.Flags().BoolVar(&runNoPanel, "no-panel", false, "disable the console status panel")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(runConfigPath)
	if err != nil {
		return err
	}

	jnl, err := openJournal(cfg)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer jnl.Close()

	emit, err := cfg.Feed.EmitEvery()
	if err != nil {
		return fmt.Errorf("feed.emit_interval: %w", err)
	}

	sources := make([]feed.Source, 0, len(cfg.Feed.Symbols))
	for _, sym := range cfg.Feed.Symbols {
		sources = append(sources, feed.NewBinance(sym, feed.DefaultBinanceConfig(cfg.Feed.URL, emit)))
	}

	eng := engine.New(cfg, jnl, sources...)

	if runRecordPath != "" {
		rec, err := feed.NewRecorder(runRecordPath)
		if err != nil {
			return err
		}
		defer rec.Close()
		eng.SetRecorder(rec)
	}
	if !runNoPanel {
		eng.SetPanel(&display.Panel{Out: os.Stdout})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("[sniper] paper trading %d symbols, balance %.2f", len(cfg.Feed.Symbols), cfg.Account.Balance)

	if err := eng.Run(ctx); err != nil && err != context.Canceled {
		return err
	}

	pf := eng.Portfolio()
	fmt.Printf("\nSession summary:\n")
	fmt.Printf("  Balance: %.2f\n", pf.Balance())
	fmt.Printf("  Equity:  %.2f\n", pf.Equity())
	fmt.Printf("  Trades:  %d\n", len(pf.History()))
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openJournal(cfg *config.Config) (journal.Journal, error) {
	if cfg.Journal.Type == "sqlite" {
		return journal.NewSQLite(cfg.Journal.DBPath)
	}
	return journal.NewCSV(cfg.Journal.TradesFile, cfg.Journal.FeaturesFile)
}
