package batch

import (
	"context"
	"sync"
	"testing"

	"github.com/sawpanic/statarb-backtester/internal/backtest"
)

func syntheticSeries(n int, seed float64) []float64 {
	out := make([]float64, n)
	x := seed
	for i := range out {
		x = x*1.0001 + 0.5
		out[i] = 100 + x*0.01
	}
	return out
}

func TestRunnerProcessesAllPairs(t *testing.T) {
	cfg := backtest.DefaultConfig()
	pairs := []Pair{
		{Name: "A/B", PricesY: syntheticSeries(60, 1), PricesX: syntheticSeries(60, 1.1)},
		{Name: "C/D", PricesY: syntheticSeries(60, 2), PricesX: syntheticSeries(60, 2.1)},
		{Name: "E/F", PricesY: syntheticSeries(60, 3), PricesX: syntheticSeries(60, 3.1)},
	}

	r := NewRunner(cfg, "1h", WithMaxWorkers(2), WithRateLimit(1000, 10))
	results := r.Run(context.Background(), pairs)

	if len(results) != len(pairs) {
		t.Fatalf("got %d results, want %d", len(results), len(pairs))
	}
	for i, res := range results {
		if res.Pair != pairs[i].Name {
			t.Errorf("result %d pair = %q, want %q", i, res.Pair, pairs[i].Name)
		}
	}
}

func TestRunnerReportsProgress(t *testing.T) {
	cfg := backtest.DefaultConfig()
	pairs := []Pair{
		{Name: "A/B", PricesY: syntheticSeries(60, 1), PricesX: syntheticSeries(60, 1.1)},
		{Name: "C/D", PricesY: syntheticSeries(60, 2), PricesX: syntheticSeries(60, 2.1)},
	}

	var mu sync.Mutex
	var calls int
	r := NewRunner(cfg, "1h", WithMaxWorkers(2), WithRateLimit(1000, 10), WithProgress(func(pair string, completed, total int) {
		mu.Lock()
		calls++
		mu.Unlock()
		if total != len(pairs) {
			t.Errorf("total = %d, want %d", total, len(pairs))
		}
	}))

	r.Run(context.Background(), pairs)

	mu.Lock()
	defer mu.Unlock()
	if calls != len(pairs) {
		t.Errorf("progress callback called %d times, want %d", calls, len(pairs))
	}
}

func TestRunnerRespectsCancelledContext(t *testing.T) {
	cfg := backtest.DefaultConfig()
	pairs := []Pair{
		{Name: "A/B", PricesY: syntheticSeries(60, 1), PricesX: syntheticSeries(60, 1.1)},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(cfg, "1h", WithRateLimit(1, 1))
	results := r.Run(ctx, pairs)

	if results[0].Err == nil {
		t.Error("expected rate limiter wait to fail on cancelled context")
	}
}
