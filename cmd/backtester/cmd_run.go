package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/statarb-backtester/internal/backtest"
	"github.com/sawpanic/statarb-backtester/internal/config"
	"github.com/sawpanic/statarb-backtester/internal/execution"
	"github.com/sawpanic/statarb-backtester/internal/obsserver"
	"github.com/sawpanic/statarb-backtester/internal/resultcache"
	"github.com/sawpanic/statarb-backtester/internal/runid"
	"github.com/sawpanic/statarb-backtester/internal/store"
)

var (
	runYPath       string
	runXPath       string
	runInterval    string
	runJSON        bool
	runRedisAddr   string
	runPostgresDSN string
	runCostPreset  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Backtest a single pair",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runYPath, "y", "", "CSV file of the dependent series' closing prices (required)")
	runCmd.Flags().StringVar(&runXPath, "x", "", "CSV file of the independent series' closing prices (required)")
	runCmd.Flags().StringVar(&runInterval, "interval", "1h", "bar interval, e.g. 1m, 5m, 1h, 1d")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "emit the full result as JSON instead of a summary table")
	runCmd.Flags().StringVar(&runRedisAddr, "redis-addr", "", "Redis address for result caching (optional)")
	runCmd.Flags().StringVar(&runPostgresDSN, "postgres-dsn", "", "Postgres DSN for archiving the run (optional)")
	runCmd.Flags().StringVar(&runCostPreset, "cost-preset", "", "execution cost preset: binance-futures, conservative (overrides config commission/slippage)")
	runCmd.MarkFlagRequired("y")
	runCmd.MarkFlagRequired("x")
}

func readPriceCSV(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	prices := make([]float64, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		v, err := strconv.ParseFloat(row[len(row)-1], 64)
		if err != nil {
			continue
		}
		prices = append(prices, v)
	}
	return prices, nil
}

func loadStrategyConfig() (backtest.Config, error) {
	if configPath == "" {
		return backtest.DefaultConfig(), nil
	}
	return config.Load(configPath)
}

// applyCostPreset overrides cfg's commission/slippage fields with a named
// execution.Costs preset, when one was requested. An unrecognized preset
// name is an error rather than a silent no-op.
func applyCostPreset(cfg backtest.Config, preset string) (backtest.Config, error) {
	var costs execution.Costs
	switch preset {
	case "":
		return cfg, nil
	case "binance-futures":
		costs = execution.BinanceFuturesCosts
	case "conservative":
		costs = execution.ConservativeCosts
	default:
		return cfg, fmt.Errorf("unknown cost preset %q (want binance-futures or conservative)", preset)
	}
	cfg.CommissionPct = costs.CommissionPct
	cfg.SlippageBps = costs.SlippageBps
	return cfg, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	pricesY, err := readPriceCSV(runYPath)
	if err != nil {
		return err
	}
	pricesX, err := readPriceCSV(runXPath)
	if err != nil {
		return err
	}

	cfg, err := loadStrategyConfig()
	if err != nil {
		return err
	}
	cfg, err = applyCostPreset(cfg, runCostPreset)
	if err != nil {
		return err
	}

	id := runid.New()
	log.Info().Str("run_id", id).Str("interval", runInterval).Msg("starting backtest run")

	var cache *resultcache.Cache
	if runRedisAddr != "" {
		cache = resultcache.New(runRedisAddr, time.Hour)
		defer cache.Close()
	}

	ctx := context.Background()
	cacheKey := resultcache.Key(pricesY, pricesX, runInterval, cfg)
	var result backtest.Result
	metricsReg := obsserver.NewMetrics()

	if cached, ok := cache.Get(ctx, cacheKey); ok {
		result = cached
		log.Info().Str("run_id", id).Msg("served from result cache")
	} else {
		start := time.Now()
		result, err = backtest.Run(pricesY, pricesX, runInterval, cfg)
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		metricsReg.ObserveRun(outcome, time.Since(start), len(result.Trades))
		if err != nil {
			return fmt.Errorf("backtest run failed: %w", err)
		}
		cache.Set(ctx, cacheKey, result)
	}

	if runPostgresDSN != "" {
		s, err := store.Connect(runPostgresDSN)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to postgres, skipping archival")
		} else {
			defer s.Close()
			if err := s.SaveRun(ctx, id, runInterval, result); err != nil {
				log.Warn().Err(err).Msg("failed to archive run")
			}
		}
	}

	if runJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResultTable(result)
	return nil
}

func printResultTable(result backtest.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Hedge Ratio:\t%.6f\n", result.HedgeRatio)
	fmt.Fprintf(w, "Intercept:\t%.6f\n", result.Intercept)
	fmt.Fprintf(w, "Total Trades:\t%d\n", result.Metrics.TotalTrades)
	fmt.Fprintf(w, "Win Rate:\t%.2f%%\n", result.Metrics.WinRate*100)
	fmt.Fprintf(w, "Profit Factor:\t%.4f\n", result.Metrics.ProfitFactor)
	fmt.Fprintf(w, "Total Return:\t%.4f%%\n", result.Metrics.TotalReturn*100)
	fmt.Fprintf(w, "Sharpe Ratio:\t%.4f\n", result.Metrics.SharpeRatio)
	fmt.Fprintf(w, "Sortino Ratio:\t%.4f\n", result.Metrics.SortinoRatio)
	fmt.Fprintf(w, "Calmar Ratio:\t%.4f\n", result.Metrics.CalmarRatio)
	fmt.Fprintf(w, "Max Drawdown:\t%.4f%%\n", result.Metrics.MaxDrawdown*100)
}
