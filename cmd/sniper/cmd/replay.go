package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sniperflow/display"
	"sniperflow/engine"
	"sniperflow/feed"
)

var replayCmd = &cobra.Command{
	Use:   "replay <recording>",
	Short: "Feed a recorded snapshot file through the same engine",
	Long: `Replay a JSONL snapshot recording (optionally .xz compressed)
through the scoring and portfolio pipeline used for live trading.

With --speed 0 the recording is replayed as fast as possible; any other
value scales the recorded inter-snapshot gaps.

Example:
  sniper replay session.jsonl.xz --speed 0`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

var (
	replayConfigPath string
	replaySpeed      float64
	replayPanel      bool
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVarP(&replayConfigPath, "config", "f", "", "path to config file (YAML or JSON); defaults apply when omitted")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 0, "playback speed multiplier, 0 replays without pacing")
	replayCmd.Flags().BoolVar(&replayPanel, "panel", false, "render the console status panel during replay")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(replayConfigPath)
	if err != nil {
		return err
	}

	jnl, err := openJournal(cfg)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer jnl.Close()

	eng := engine.New(cfg, jnl, feed.NewReplay(args[0], replaySpeed))
	if replayPanel {
		eng.SetPanel(&display.Panel{Out: os.Stdout})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Run(ctx); err != nil && err != context.Canceled {
		return err
	}

	pf := eng.Portfolio()
	fmt.Printf("Replay complete: %s\n", args[0])
	fmt.Printf("  Balance: %.2f\n", pf.Balance())
	fmt.Printf("  Equity:  %.2f\n", pf.Equity())
	fmt.Printf("  Trades:  %d\n", len(pf.History()))
	for _, t := range pf.History() {
		fmt.Printf("  %s %s %s entry %.4f exit %.4f pnl %.4f (%s)\n",
			t.TradeID, t.Instrument, t.Side, t.EntryPrice, t.ExitPrice, t.RealizedPnL, t.Reason)
	}
	return nil
}
