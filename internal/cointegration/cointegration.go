// Package cointegration implements the Engle-Granger two-step cointegration
// test used to derive a hedge ratio between two price series.
package cointegration

import "github.com/sawpanic/statarb-backtester/internal/backterr"

// MacKinnon (1991) critical values for a two-variable cointegrating
// regression, more conservative than plain ADF critical values.
const (
	CriticalValue1pct  = -3.90
	CriticalValue5pct  = -3.34
	CriticalValue10pct = -3.04
)

// Result is the full Engle-Granger fit: hedge ratio, intercept, residual
// diagnostics, and the cointegration decision.
type Result struct {
	Alpha           float64
	Beta            float64
	Residuals       []float64
	R2              float64
	ADFStatistic    float64
	PValue          float64
	CriticalValues  map[string]float64
	IsCointegrated  bool
	ADFLagsUsed     int
}

// Test performs the Engle-Granger two-step test: an OLS fit of Y on X,
// followed by an ADF test on the residuals with AIC-selected lag order.
func Test(y, x []float64) (Result, error) {
	ols, err := fitOLS(y, x)
	if err != nil {
		return Result{}, err
	}

	adf, ok := adfTest(ols.Residuals, 0)
	if !ok {
		return Result{}, backterr.New(backterr.Degenerate, "ADF regression could not be solved on residuals")
	}

	criticalValues := map[string]float64{
		"1%":  CriticalValue1pct,
		"5%":  CriticalValue5pct,
		"10%": CriticalValue10pct,
	}

	return Result{
		Alpha:          ols.Alpha,
		Beta:           ols.Beta,
		Residuals:      ols.Residuals,
		R2:             ols.R2,
		ADFStatistic:   adf.Statistic,
		PValue:         cointegrationPValue(adf.Statistic),
		CriticalValues: criticalValues,
		IsCointegrated: adf.Statistic < CriticalValue5pct,
		ADFLagsUsed:    adf.UsedLag,
	}, nil
}

// cointegrationPValue piecewise-linearly interpolates an approximate
// cointegration p-value across the MacKinnon critical-value bands. It is
// informational only — the is_cointegrated decision uses the 5% critical
// value directly.
func cointegrationPValue(t float64) float64 {
	switch {
	case t <= CriticalValue1pct:
		p := 0.001 - (CriticalValue1pct-t)*0.0001
		if p < 0.0001 {
			p = 0.0001
		}
		return p
	case t <= CriticalValue5pct:
		position := (CriticalValue1pct - t) / (CriticalValue1pct - CriticalValue5pct)
		return 0.01 + position*0.04
	case t <= CriticalValue10pct:
		position := (CriticalValue5pct - t) / (CriticalValue5pct - CriticalValue10pct)
		return 0.05 + position*0.05
	case t <= 0:
		position := (CriticalValue10pct - t) / CriticalValue10pct
		p := 0.10 + position*0.40
		if p > 0.50 {
			p = 0.50
		}
		return p
	default:
		p := 0.5 + t*0.1
		if p > 0.99 {
			return 0.99
		}
		return p
	}
}
