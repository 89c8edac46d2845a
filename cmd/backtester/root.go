package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	logLevel   string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "statarb-backtester",
	Short: "Cointegration-based pairs-trading backtester",
	Long: `statarb-backtester simulates a mean-reversion pairs-trading strategy
over two correlated price series, using an Engle-Granger cointegration test
to derive the hedge ratio and a Z-score of the resulting spread to drive
entries and exits.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		zerolog.SetGlobalLevel(level)
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stderr, "statarb-backtester requires a subcommand in non-interactive environments.")
			fmt.Fprintln(os.Stderr, "  statarb-backtester run --y prices_y.csv --x prices_x.csv")
			fmt.Fprintln(os.Stderr, "  statarb-backtester batch --pairs pairs.yaml")
			fmt.Fprintln(os.Stderr, "  statarb-backtester selftest")
			os.Exit(2)
		}
		log.Info().Msg("statarb-backtester: use --help to see available commands")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML strategy config (optional, merges over defaults)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(selftestCmd)
}
