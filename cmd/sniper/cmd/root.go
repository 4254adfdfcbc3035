package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sniper",
	Short: "A paper-trading scalper bot driven by order-flow microstructure",
	Long: `Sniper is a paper-trading scalper for crypto perpetual futures.

It scores entries from cumulative volume delta, order-book imbalance and
volume regime, sizes positions against a global risk budget, and manages
exits with breakeven, trailing, partial take-profit and time stops.

Subcommands:
  run     - Trade live market data on a paper account
  replay  - Feed a recorded snapshot file through the same engine
  config  - Generate or validate configuration files
  version - Print the version number`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
