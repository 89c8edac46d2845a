package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/statarb-backtester/internal/backtest"
	"github.com/sawpanic/statarb-backtester/internal/metrics"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return &Store{db: sqlx.NewDb(db, "postgres")}, mock
}

func TestSaveRunInsertsRow(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec("INSERT INTO backtest_runs").WillReturnResult(sqlmock.NewResult(1, 1))

	result := backtest.Result{
		HedgeRatio: 1.5,
		Intercept:  0.2,
		Trades:     []backtest.Trade{},
		Metrics:    metrics.Metrics{TotalTrades: 0},
	}

	err := s.SaveRun(context.Background(), "run-1", "1h", result)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRunPropagatesDBError(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec("INSERT INTO backtest_runs").WillReturnError(context.DeadlineExceeded)

	result := backtest.Result{Trades: []backtest.Trade{}, Metrics: metrics.Metrics{}}
	err := s.SaveRun(context.Background(), "run-2", "1h", result)
	require.Error(t, err)
}
