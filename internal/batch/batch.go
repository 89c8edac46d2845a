// Package batch runs a backtest across many pairs concurrently, bounded by
// a token-bucket rate limiter and a worker cap so a large batch does not
// start an unbounded number of runs at once.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/sawpanic/statarb-backtester/internal/backtest"
)

// Pair identifies one symbol pair submitted to a batch run.
type Pair struct {
	Name    string
	PricesY []float64
	PricesX []float64
}

// PairResult is the outcome of backtesting a single pair.
type PairResult struct {
	Pair   string
	Result backtest.Result
	Err    error
}

// Runner executes backtest.Run across many pairs with bounded concurrency
// and a shared rate limit on how many runs start per second.
type Runner struct {
	cfg         backtest.Config
	interval    string
	limiter     *rate.Limiter
	maxWorkers  int
	onProgress  func(pair string, completed, total int)
}

// Option configures a Runner.
type Option func(*Runner)

// WithRateLimit caps how many pair runs may start per second, with burst
// allowing short bursts above the steady rate.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(r *Runner) {
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithMaxWorkers bounds the number of pairs processed concurrently.
func WithMaxWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxWorkers = n
		}
	}
}

// WithProgress registers a callback invoked after each pair completes.
func WithProgress(fn func(pair string, completed, total int)) Option {
	return func(r *Runner) { r.onProgress = fn }
}

// NewRunner builds a batch Runner. Defaults to 5 runs/sec, burst 5, and 4
// concurrent workers absent overriding Options.
func NewRunner(cfg backtest.Config, interval string, opts ...Option) *Runner {
	r := &Runner{
		cfg:        cfg,
		interval:   interval,
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		maxWorkers: 4,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run backtests every pair, respecting the rate limiter and worker cap, and
// returns results in submission order. It stops launching new pairs (but
// waits for in-flight ones) if ctx is cancelled.
func (r *Runner) Run(ctx context.Context, pairs []Pair) []PairResult {
	results := make([]PairResult, len(pairs))
	sem := make(chan struct{}, r.maxWorkers)
	var wg sync.WaitGroup
	var completed int
	var mu sync.Mutex

	for i, pair := range pairs {
		if err := r.limiter.Wait(ctx); err != nil {
			results[i] = PairResult{Pair: pair.Name, Err: err}
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(i int, pair Pair) {
			defer wg.Done()
			defer func() { <-sem }()

			start := time.Now()
			result, err := backtest.Run(pair.PricesY, pair.PricesX, r.interval, r.cfg)
			results[i] = PairResult{Pair: pair.Name, Result: result, Err: err}

			log.Debug().
				Str("pair", pair.Name).
				Dur("duration", time.Since(start)).
				Err(err).
				Msg("batch pair run completed")

			mu.Lock()
			completed++
			n := completed
			mu.Unlock()

			if r.onProgress != nil {
				r.onProgress(pair.Name, n, len(pairs))
			}
		}(i, pair)
	}

	wg.Wait()
	return results
}
