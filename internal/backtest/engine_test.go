package backtest

import (
	"math"
	"testing"

	"github.com/sawpanic/statarb-backtester/internal/backterr"
)

// flatSeries builds two uncorrelated, non-cointegrated random-walk-ish
// series. Run does not gate on the Engle-Granger decision; the fitted spread
// here simply never reaches the default entry threshold (its rolling |z|
// stays below 1.5), so no trades are opened.
func flatSeries(n int) (y, x []float64) {
	y = make([]float64, n)
	x = make([]float64, n)
	py, px := 100.0, 50.0
	for i := 0; i < n; i++ {
		py += math.Sin(float64(i)) * 3
		px += math.Cos(float64(i)*1.7) * 2
		y[i] = py
		x[i] = px
	}
	return y, x
}

// meanRevertingPair builds a cointegrated pair whose spread is a pure
// sinusoid around its mean. With a 24-bar window its rolling |z| peaks near
// 1.27, so it only opens positions when the entry threshold is below that.
func meanRevertingPair(n int) (y, x []float64) {
	y = make([]float64, n)
	x = make([]float64, n)
	for i := 0; i < n; i++ {
		px := 50.0 + float64(i)*0.05
		cycle := 4.0 * math.Sin(float64(i)*0.35)
		py := 2*px + 5 + cycle
		x[i] = px
		y[i] = py
	}
	return y, x
}

func TestRunScenarioANoCointegrationProducesNoTrades(t *testing.T) {
	y, x := flatSeries(120)
	cfg := DefaultConfig()

	result, err := Run(y, x, "1h", cfg)
	if err != nil {
		if !backterr.Is(err, backterr.Degenerate) {
			t.Fatalf("unexpected error kind: %v", err)
		}
		return
	}
	if len(result.Trades) != 0 {
		t.Errorf("expected no trades on a non-cointegrated pair, got %d", len(result.Trades))
	}
}

func TestRunScenarioBForcedHedgeProducesTrades(t *testing.T) {
	y, x := meanRevertingPair(150)
	cfg := DefaultConfig()
	beta, alpha := 2.0, 5.0
	cfg.ForceHedgeRatio = &beta
	cfg.ForceIntercept = &alpha

	result, err := Run(y, x, "1h", cfg)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.HedgeRatio != beta || result.Intercept != alpha {
		t.Errorf("forced hedge ratio/intercept not echoed: got beta=%v alpha=%v", result.HedgeRatio, result.Intercept)
	}
	if len(result.Trades) == 0 {
		t.Error("expected at least one trade on an oscillating cointegrated spread")
	}
	for _, tr := range result.Trades {
		if tr.ExitReason == StopLoss {
			continue
		}
		if tr.ExitReason != MeanReversion && tr.ExitReason != EndOfData {
			t.Errorf("unexpected exit reason %v", tr.ExitReason)
		}
	}
}

func TestRunScenarioCStopLossFires(t *testing.T) {
	n := 100
	y := make([]float64, n)
	x := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = 50.0 + float64(i)*0.01
		y[i] = 2*x[i] + 5 + 0.1*math.Sin(float64(i))
	}
	// Inject a one-sided divergence after the 24-bar lookback window: a small
	// jump at bar 40 pushes z to about 2.5 (opening a short spread), then a
	// much larger jump at bar 41 drives z to about 4.7, an adverse move past
	// the stop-loss rather than a reversion. A 10-bar window could not do
	// this: with ddof=1 its |z| can never exceed 9/sqrt(10) ≈ 2.85.
	y[40] += 0.15
	for i := 41; i < n; i++ {
		y[i] += 5
	}

	cfg := DefaultConfig()
	beta, alpha := 2.0, 5.0
	cfg.ForceHedgeRatio = &beta
	cfg.ForceIntercept = &alpha

	result, err := Run(y, x, "1h", cfg)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	sawStopLoss := false
	for _, tr := range result.Trades {
		if tr.ExitReason == StopLoss {
			sawStopLoss = true
		}
	}
	if !sawStopLoss {
		t.Error("expected at least one stop-loss exit under a runaway one-sided divergence")
	}
}

func TestRunScenarioDEndOfDataClosesOpenPosition(t *testing.T) {
	y, x := meanRevertingPair(80)
	cfg := DefaultConfig()
	beta, alpha := 2.0, 5.0
	cfg.ForceHedgeRatio = &beta
	cfg.ForceIntercept = &alpha
	// A stop-loss far out of reach and an entry threshold so low that a
	// position opens near the end of the series and never has a chance to
	// mean-revert before the data ends.
	cfg.StopLoss = 1000
	cfg.EntryThreshold = 0.01

	result, err := Run(y, x, "1h", cfg)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.Trades) == 0 {
		t.Fatal("expected at least one trade")
	}
	last := result.Trades[len(result.Trades)-1]
	if last.ExitBar != len(y)-1 {
		t.Errorf("last trade should close on the final bar if still open, got exit bar %d (n=%d)", last.ExitBar, len(y))
	}
}

func TestRunTradesDoNotOverlap(t *testing.T) {
	y, x := meanRevertingPair(200)
	cfg := DefaultConfig()
	beta, alpha := 2.0, 5.0
	cfg.ForceHedgeRatio = &beta
	cfg.ForceIntercept = &alpha

	result, err := Run(y, x, "1h", cfg)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	for i := 1; i < len(result.Trades); i++ {
		prev, cur := result.Trades[i-1], result.Trades[i]
		if cur.EntryBar < prev.ExitBar {
			t.Errorf("trade %d entered at bar %d before trade %d exited at bar %d", i, cur.EntryBar, i-1, prev.ExitBar)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	y, x := meanRevertingPair(150)
	cfg := DefaultConfig()

	r1, err1 := Run(y, x, "1h", cfg)
	r2, err2 := Run(y, x, "1h", cfg)
	if (err1 == nil) != (err2 == nil) {
		t.Fatalf("error presence differs across identical runs: %v vs %v", err1, err2)
	}
	if err1 != nil {
		return
	}
	if len(r1.Trades) != len(r2.Trades) {
		t.Fatalf("trade count differs across identical runs: %d vs %d", len(r1.Trades), len(r2.Trades))
	}
	for i := range r1.Trades {
		if r1.Trades[i] != r2.Trades[i] {
			t.Errorf("trade %d differs across identical runs", i)
		}
	}
}

func TestRunEquityCurveStartsAtOneAndCompounds(t *testing.T) {
	y, x := meanRevertingPair(150)
	cfg := DefaultConfig()
	beta, alpha := 2.0, 5.0
	cfg.ForceHedgeRatio = &beta
	cfg.ForceIntercept = &alpha

	result, err := Run(y, x, "1h", cfg)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.EquityCurve) == 0 || result.EquityCurve[0] != 1.0 {
		t.Fatalf("equity curve should start at 1.0, got %v", result.EquityCurve)
	}
	for i, r := range result.DailyReturns {
		want := result.EquityCurve[i] * (1 + r)
		got := result.EquityCurve[i+1]
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("equity[%d] = %v, want %v", i+1, got, want)
		}
	}
}

func TestRunRejectsDynamicHedge(t *testing.T) {
	y, x := meanRevertingPair(150)
	cfg := DefaultConfig()
	cfg.UseDynamicHedge = true

	_, err := Run(y, x, "1h", cfg)
	if err == nil || !backterr.Is(err, backterr.InvalidInput) {
		t.Fatalf("expected InvalidInput error for use_dynamic_hedge, got %v", err)
	}
}

func TestRunRejectsLengthMismatch(t *testing.T) {
	y := []float64{1, 2, 3}
	x := []float64{1, 2}
	_, err := Run(y, x, "1h", DefaultConfig())
	if err == nil || !backterr.Is(err, backterr.InvalidInput) {
		t.Fatalf("expected InvalidInput error for length mismatch, got %v", err)
	}
}
