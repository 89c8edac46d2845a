package resultcache

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/statarb-backtester/internal/backtest"
)

func testBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "test"})
}

func TestCacheGetHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := &Cache{client: db, breaker: testBreaker()}

	want := backtest.Result{HedgeRatio: 2.0, Intercept: 10.0}
	payload, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}

	mock.ExpectGet("some-key").SetVal(string(payload))

	got, ok := cache.Get(context.Background(), "some-key")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.HedgeRatio != want.HedgeRatio || got.Intercept != want.Intercept {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("redis expectations not met: %v", err)
	}
}

func TestCacheGetMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := &Cache{client: db, breaker: testBreaker()}

	mock.ExpectGet("missing-key").RedisNil()

	_, ok := cache.Get(context.Background(), "missing-key")
	if ok {
		t.Fatal("expected cache miss")
	}
}

func TestKeyIsStableAndSensitiveToInputs(t *testing.T) {
	cfg := backtest.DefaultConfig()
	y := []float64{1, 2, 3, 4}
	x := []float64{1, 2, 3, 4}

	k1 := Key(y, x, "1h", cfg)
	k2 := Key(y, x, "1h", cfg)
	if k1 != k2 {
		t.Error("Key should be deterministic for identical inputs")
	}

	k3 := Key(y, x, "1d", cfg)
	if k1 == k3 {
		t.Error("Key should differ when interval differs")
	}
}
