package cointegration

import (
	"math"

	"github.com/sawpanic/statarb-backtester/internal/backterr"
)

// OLSResult is the fitted cointegrating regression Y = alpha + beta*X + u.
type OLSResult struct {
	Alpha     float64
	Beta      float64
	Residuals []float64
	R2        float64
}

// fitOLS estimates Y = alpha + beta*X + u using centered normal equations.
// Centering both series on their means before forming the normal equations
// is equivalent to orthogonalizing against the intercept column, which is
// the standard remedy for the ill-conditioning that plain X^T X suffers
// when X carries large, weakly-varying price levels.
func fitOLS(y, x []float64) (OLSResult, error) {
	n := len(y)
	if n != len(x) {
		return OLSResult{}, backterr.New(backterr.InvalidInput, "y and x length mismatch")
	}
	if n < 20 {
		return OLSResult{}, backterr.New(backterr.InvalidInput, "need at least 20 observations")
	}
	for i := 0; i < n; i++ {
		if !isFinite(y[i]) || !isFinite(x[i]) {
			return OLSResult{}, backterr.New(backterr.InvalidInput, "non-finite price observed")
		}
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var sxx, sxy, syy float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}

	if math.Abs(sxx) < 1e-12 {
		return OLSResult{}, backterr.New(backterr.Degenerate, "zero-variance independent series: singular design matrix")
	}

	beta := sxy / sxx
	alpha := meanY - beta*meanX

	residuals := make([]float64, n)
	var ssRes float64
	for i := 0; i < n; i++ {
		fitted := alpha + beta*x[i]
		residuals[i] = y[i] - fitted
		ssRes += residuals[i] * residuals[i]
	}

	r2 := 1.0
	if syy > 1e-12 {
		r2 = 1 - ssRes/syy
	}

	return OLSResult{Alpha: alpha, Beta: beta, Residuals: residuals, R2: r2}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
