// Package backtest implements the bar-by-bar pairs-trading simulation
// kernel: a single-position state machine driven by a rolling Z-score of
// the cointegrating spread, producing trades, an equity curve, a per-bar
// return stream, and performance metrics.
package backtest

import (
	"fmt"
	"math"

	"github.com/sawpanic/statarb-backtester/internal/backterr"
	"github.com/sawpanic/statarb-backtester/internal/cointegration"
	"github.com/sawpanic/statarb-backtester/internal/execution"
	"github.com/sawpanic/statarb-backtester/internal/interval"
	"github.com/sawpanic/statarb-backtester/internal/metrics"
	"github.com/sawpanic/statarb-backtester/internal/spread"
)

// Result aggregates everything a backtest run produces. JSON field names
// follow spec.md §6's result-record wire shape.
type Result struct {
	Trades       []Trade         `json:"trades"`
	EquityCurve  []float64       `json:"equity_curve"`
	DailyReturns []float64       `json:"daily_returns"`
	Metrics      metrics.Metrics `json:"metrics"`
	ConfigEcho   Config          `json:"config_echo"`
	HedgeRatio   float64         `json:"hedge_ratio"`
	Intercept    float64         `json:"intercept"`
}

const fallbackLookbackBars = 20

// Run executes the pairs-trading backtest over two equal-length, aligned
// price series. It validates all inputs before the simulation starts: once
// the main loop runs, no validation error can occur (per the spec's
// fail-fast error handling contract).
func Run(pricesY, pricesX []float64, rawInterval string, cfg Config) (Result, error) {
	if cfg.UseDynamicHedge {
		return Result{}, backterr.New(backterr.InvalidInput, "use_dynamic_hedge is not implemented by this engine")
	}

	n := len(pricesY)
	if n != len(pricesX) {
		return Result{}, backterr.New(backterr.InvalidInput, fmt.Sprintf("price series length mismatch: %d vs %d", n, len(pricesX)))
	}
	for i := 0; i < n; i++ {
		if !isFinite(pricesY[i]) || !isFinite(pricesX[i]) {
			return Result{}, backterr.New(backterr.InvalidInput, "non-finite price observed")
		}
	}

	lookbackBars := fallbackLookbackBars
	if cfg.LookbackHours != nil {
		lookbackBars = interval.LookbackBars(*cfg.LookbackHours, rawInterval)
	}
	if n < lookbackBars+10 {
		return Result{}, backterr.New(backterr.InvalidInput, fmt.Sprintf("insufficient data: need at least %d bars, got %d", lookbackBars+10, n))
	}

	var hedgeRatio, intercept float64
	if cfg.hasForcedHedge() {
		hedgeRatio = *cfg.ForceHedgeRatio
		intercept = *cfg.ForceIntercept
	} else {
		eg, err := cointegration.Test(pricesY, pricesX)
		if err != nil {
			return Result{}, err
		}
		hedgeRatio = eg.Beta
		intercept = eg.Alpha
	}

	s := spread.Build(pricesY, pricesX, intercept, hedgeRatio)
	z := spread.RollingZScore(s, lookbackBars)
	costs := cfg.costs()
	roundTripCost := execution.RoundTripCost(costs)

	trades := make([]Trade, 0)
	dailyReturns := make([]float64, 0, n-lookbackBars)
	position := flatPosition()

	for i := lookbackBars; i < n; i++ {
		zi := z[i]
		barReturn := 0.0
		exitedThisBar := false

		if position.side != Flat {
			shouldExit := false
			exitReason := MeanReversion

			switch position.side {
			case LongSpread:
				if zi >= cfg.ExitThreshold {
					shouldExit = true
				}
			case ShortSpread:
				if zi <= cfg.ExitThreshold {
					shouldExit = true
				}
			}

			if !shouldExit && math.Abs(zi) >= cfg.StopLoss {
				adverse := (position.side == LongSpread && zi < position.z) ||
					(position.side == ShortSpread && zi > position.z)
				if adverse {
					shouldExit = true
					exitReason = StopLoss
				}
			}

			if shouldExit {
				gross := tradePnL(position.side, position.priceY, position.priceX, pricesY[i], pricesX[i], position.hedgeRatio)
				net := gross - roundTripCost
				trades = append(trades, Trade{
					EntryBar:      position.bar,
					ExitBar:       i,
					Side:          position.side,
					EntryZ:        position.z,
					ExitZ:         zi,
					EntryPriceY:   position.priceY,
					EntryPriceX:   position.priceX,
					ExitPriceY:    pricesY[i],
					ExitPriceX:    pricesX[i],
					GrossPnL:      gross,
					NetPnL:        net,
					HoldingPeriod: i - position.bar,
					ExitReason:    exitReason,
				})
				barReturn = net
				exitedThisBar = true
				position = flatPosition()
			}
		}

		if position.side == Flat && !exitedThisBar {
			switch {
			case zi < -cfg.EntryThreshold:
				position = positionState{side: LongSpread, entrySnapshot: entrySnapshot{
					bar: i, z: zi, priceY: pricesY[i], priceX: pricesX[i], hedgeRatio: hedgeRatio,
				}}
			case zi > cfg.EntryThreshold:
				position = positionState{side: ShortSpread, entrySnapshot: entrySnapshot{
					bar: i, z: zi, priceY: pricesY[i], priceX: pricesX[i], hedgeRatio: hedgeRatio,
				}}
			}
		}

		dailyReturns = append(dailyReturns, barReturn)
	}

	if position.side != Flat {
		last := n - 1
		gross := tradePnL(position.side, position.priceY, position.priceX, pricesY[last], pricesX[last], position.hedgeRatio)
		net := gross - roundTripCost
		trades = append(trades, Trade{
			EntryBar:      position.bar,
			ExitBar:       last,
			Side:          position.side,
			EntryZ:        position.z,
			ExitZ:         0,
			EntryPriceY:   position.priceY,
			EntryPriceX:   position.priceX,
			ExitPriceY:    pricesY[last],
			ExitPriceX:    pricesX[last],
			GrossPnL:      gross,
			NetPnL:        net,
			HoldingPeriod: last - position.bar,
			ExitReason:    EndOfData,
		})
		dailyReturns[len(dailyReturns)-1] = net
	}

	equityCurve := make([]float64, len(dailyReturns)+1)
	equityCurve[0] = 1.0
	for i, r := range dailyReturns {
		equityCurve[i+1] = equityCurve[i] * (1 + r)
	}

	m := metrics.Calculate(tradeMetricsInputs(trades), dailyReturns, rawInterval)

	return Result{
		Trades:       trades,
		EquityCurve:  equityCurve,
		DailyReturns: dailyReturns,
		Metrics:      m,
		ConfigEcho:   cfg,
		HedgeRatio:   hedgeRatio,
		Intercept:    intercept,
	}, nil
}

func tradeMetricsInputs(trades []Trade) []metrics.TradeSummary {
	out := make([]metrics.TradeSummary, len(trades))
	for i, t := range trades {
		out[i] = metrics.TradeSummary{NetPnL: t.NetPnL, HoldingPeriod: t.HoldingPeriod}
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
