package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/statarb-backtester/internal/batch"
	"github.com/sawpanic/statarb-backtester/internal/execution"
	"github.com/sawpanic/statarb-backtester/internal/obsserver"
)

var (
	batchPairsPath string
	batchRatePerSec float64
	batchBurst      int
	batchWorkers    int
	batchSidecarAddr string
	batchCostPreset string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Backtest many pairs concurrently",
	RunE:  runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&batchPairsPath, "pairs", "", "YAML file listing pairs to backtest (required)")
	batchCmd.Flags().Float64Var(&batchRatePerSec, "rate", 5, "max pair runs started per second")
	batchCmd.Flags().IntVar(&batchBurst, "burst", 5, "rate limiter burst size")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 4, "max concurrent pair runs")
	batchCmd.Flags().StringVar(&batchSidecarAddr, "sidecar-addr", "", "if set, serve /healthz, /metrics and /progress on this address while the batch runs")
	batchCmd.Flags().StringVar(&batchCostPreset, "cost-preset", "", "execution cost preset: binance-futures, conservative (overrides config commission/slippage)")
	batchCmd.MarkFlagRequired("pairs")
}

type pairSpec struct {
	Name   string `yaml:"name"`
	YFile  string `yaml:"y_file"`
	XFile  string `yaml:"x_file"`
}

type batchSpec struct {
	Interval string     `yaml:"interval"`
	Pairs    []pairSpec `yaml:"pairs"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(batchPairsPath)
	if err != nil {
		return fmt.Errorf("read pairs file: %w", err)
	}
	var spec batchSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return fmt.Errorf("parse pairs file: %w", err)
	}
	if spec.Interval == "" {
		spec.Interval = "1h"
	}

	cfg, err := loadStrategyConfig()
	if err != nil {
		return err
	}
	cfg, err = applyCostPreset(cfg, batchCostPreset)
	if err != nil {
		return err
	}

	pairs := make([]batch.Pair, 0, len(spec.Pairs))
	for _, p := range spec.Pairs {
		y, err := readPriceCSV(p.YFile)
		if err != nil {
			return fmt.Errorf("pair %s: %w", p.Name, err)
		}
		x, err := readPriceCSV(p.XFile)
		if err != nil {
			return fmt.Errorf("pair %s: %w", p.Name, err)
		}
		pairs = append(pairs, batch.Pair{Name: p.Name, PricesY: y, PricesX: x})
	}

	var sidecar *obsserver.Server
	metricsReg := obsserver.NewMetrics()
	if batchSidecarAddr != "" {
		sidecarCfg := obsserver.DefaultConfig()
		sidecarCfg.Addr = batchSidecarAddr
		sidecar = obsserver.New(sidecarCfg, metricsReg, nil)
		go func() {
			if err := sidecar.Start(); err != nil {
				log.Debug().Err(err).Msg("obsserver sidecar stopped")
			}
		}()
		defer sidecar.Shutdown(context.Background())
	}

	runner := batch.NewRunner(cfg, spec.Interval,
		batch.WithRateLimit(batchRatePerSec, batchBurst),
		batch.WithMaxWorkers(batchWorkers),
		batch.WithProgress(func(pair string, completed, total int) {
			log.Info().Str("pair", pair).Int("completed", completed).Int("total", total).Msg("pair run completed")
			if sidecar != nil {
				sidecar.Broadcast(obsserver.ProgressEvent{
					Pair:      pair,
					Completed: completed,
					Total:     total,
					Status:    "completed",
				})
			}
		}),
	)

	results := runner.Run(context.Background(), pairs)
	printBatchTable(results)
	flagSubBreakEvenPairs(results, execution.Costs{CommissionPct: cfg.CommissionPct, SlippageBps: cfg.SlippageBps})
	return nil
}

func printBatchTable(results []batch.PairResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "Pair\tStatus\tTrades\tTotal Return\tSharpe")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%s\tERROR: %v\t-\t-\t-\n", r.Pair, r.Err)
			continue
		}
		fmt.Fprintf(w, "%s\tOK\t%d\t%.4f%%\t%.4f\n",
			r.Pair, r.Result.Metrics.TotalTrades, r.Result.Metrics.TotalReturn*100, r.Result.Metrics.SharpeRatio)
	}
}

// flagSubBreakEvenPairs warns about pairs whose average winning trade can't
// clear round-trip costs — a screening aid, not a hard filter.
func flagSubBreakEvenPairs(results []batch.PairResult, costs execution.Costs) {
	breakEven := execution.BreakEvenPnL(costs)
	for _, r := range results {
		if r.Err != nil || r.Result.Metrics.TotalTrades == 0 {
			continue
		}
		if r.Result.Metrics.AvgWin > 0 && r.Result.Metrics.AvgWin < breakEven {
			log.Warn().
				Str("pair", r.Pair).
				Float64("avg_win", r.Result.Metrics.AvgWin).
				Float64("break_even", breakEven).
				Msg("average winning trade does not clear round-trip costs")
		}
	}
}
