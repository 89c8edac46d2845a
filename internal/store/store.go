// Package store persists completed backtest runs — trades, hedge ratio,
// intercept and metrics — to Postgres for later audit and cross-run
// comparison. The equity curve and per-bar returns are not stored. It is a
// pure archival sink: the engine itself never reads it back.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/sawpanic/statarb-backtester/internal/backtest"
)

// Store wraps a Postgres connection used to archive backtest runs.
type Store struct {
	db *sqlx.DB
}

// Connect opens a Postgres connection pool using the given DSN.
func Connect(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// runRow is the persisted shape of a single backtest invocation.
type runRow struct {
	RunID      string `db:"run_id"`
	Interval   string `db:"interval"`
	HedgeRatio float64 `db:"hedge_ratio"`
	Intercept  float64 `db:"intercept"`
	TradesJSON []byte `db:"trades_json"`
	MetricsJSON []byte `db:"metrics_json"`
}

// SaveRun inserts a completed run into the backtest_runs table.
func (s *Store) SaveRun(ctx context.Context, runID, interval string, result backtest.Result) error {
	tradesJSON, err := json.Marshal(result.Trades)
	if err != nil {
		return fmt.Errorf("marshal trades: %w", err)
	}
	metricsJSON, err := json.Marshal(result.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	row := runRow{
		RunID:       runID,
		Interval:    interval,
		HedgeRatio:  result.HedgeRatio,
		Intercept:   result.Intercept,
		TradesJSON:  tradesJSON,
		MetricsJSON: metricsJSON,
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO backtest_runs (run_id, interval, hedge_ratio, intercept, trades_json, metrics_json)
		VALUES (:run_id, :interval, :hedge_ratio, :intercept, :trades_json, :metrics_json)
	`, row)
	if err != nil {
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
