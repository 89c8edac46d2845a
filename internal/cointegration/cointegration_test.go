package cointegration

import (
	"math"
	"testing"

	"github.com/sawpanic/statarb-backtester/internal/backterr"
)

func syntheticPair(n int) (y, x []float64) {
	y = make([]float64, n)
	x = make([]float64, n)
	eps := 0.0
	for i := 0; i < n; i++ {
		x[i] = 100 + math.Sin(2*math.Pi*float64(i)/50.0)
		// mean-reverting noise term so the spread is stationary
		eps = 0.5*eps + 0.1*math.Sin(float64(i)*1.7)
		y[i] = 2*x[i] + 10 + eps
	}
	return y, x
}

func TestTestRecoversHedgeRatio(t *testing.T) {
	y, x := syntheticPair(300)
	res, err := Test(y, x)
	if err != nil {
		t.Fatalf("Test returned error: %v", err)
	}
	if math.Abs(res.Beta-2.0) > 0.05 {
		t.Errorf("beta = %v, want ~2.0", res.Beta)
	}
	if math.Abs(res.Alpha-10.0) > 0.5 {
		t.Errorf("alpha = %v, want ~10.0", res.Alpha)
	}
	if len(res.Residuals) != len(y) {
		t.Errorf("residuals length = %d, want %d", len(res.Residuals), len(y))
	}
	if res.CriticalValues["5%"] != CriticalValue5pct {
		t.Errorf("critical values not wired correctly")
	}
}

func TestTestZeroVarianceIsDegenerate(t *testing.T) {
	n := 200
	y := make([]float64, n)
	x := make([]float64, n)
	for i := range y {
		y[i] = 100
		x[i] = 100
	}
	_, err := Test(y, x)
	if err == nil {
		t.Fatal("expected Degenerate error for zero-variance X")
	}
	if !backterr.Is(err, backterr.Degenerate) {
		t.Errorf("expected Degenerate kind, got %v", err)
	}
}

func TestTestTooFewObservationsIsInvalidInput(t *testing.T) {
	y := []float64{1, 2, 3}
	x := []float64{1, 2, 3}
	_, err := Test(y, x)
	if !backterr.Is(err, backterr.InvalidInput) {
		t.Errorf("expected InvalidInput kind, got %v", err)
	}
}

func TestTestLengthMismatchIsInvalidInput(t *testing.T) {
	y := make([]float64, 25)
	x := make([]float64, 24)
	_, err := Test(y, x)
	if !backterr.Is(err, backterr.InvalidInput) {
		t.Errorf("expected InvalidInput kind, got %v", err)
	}
}

func TestTestNonFiniteIsInvalidInput(t *testing.T) {
	y, x := syntheticPair(30)
	y[5] = math.NaN()
	_, err := Test(y, x)
	if !backterr.Is(err, backterr.InvalidInput) {
		t.Errorf("expected InvalidInput kind, got %v", err)
	}
}

func TestCointegrationPValueMonotoneNonDecreasing(t *testing.T) {
	prev := cointegrationPValue(-10.0)
	for tstat := -9.9; tstat <= 2.0; tstat += 0.1 {
		p := cointegrationPValue(tstat)
		if p < prev-1e-9 {
			t.Fatalf("p-value decreased at t=%.1f: prev=%v cur=%v", tstat, prev, p)
		}
		prev = p
	}
}
