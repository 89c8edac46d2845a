package cointegration

import "math"

// ADFResult holds the augmented Dickey-Fuller test outcome on the residual
// series, with the lag order chosen by minimum AIC.
type ADFResult struct {
	Statistic float64
	PValue    float64
	UsedLag   int
}

// adfTest runs a no-constant ADF regression (residuals are zero-mean by
// construction of the cointegrating fit) with automatic lag selection by
// AIC, searching lag orders 0..maxLag.
//
// Delta y_t = rho*y_{t-1} + sum_i delta_i * Delta y_{t-i} + e_t
func adfTest(residuals []float64, maxLag int) (ADFResult, bool) {
	n := len(residuals)
	if n < 4 {
		return ADFResult{}, false
	}
	if maxLag <= 0 {
		maxLag = schwertMaxLag(n)
	}

	diffs := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		diffs[i] = residuals[i+1] - residuals[i]
	}

	bestAIC := math.Inf(1)
	var best ADFResult
	found := false

	for p := 0; p <= maxLag; p++ {
		// diffs index i (0-based) is Delta y at original time i+1; the
		// regression observation at diffs-index i needs level y_{t-1}=residuals[i]
		// and p lagged diffs diffs[i-1]..diffs[i-p].
		start := p
		nObs := (n - 1) - start
		k := 1 + p
		if nObs < k+2 {
			continue
		}

		design := make([][]float64, nObs)
		response := make([]float64, nObs)
		for row := 0; row < nObs; row++ {
			i := start + row
			reg := make([]float64, k)
			reg[0] = residuals[i]
			for lag := 1; lag <= p; lag++ {
				reg[lag] = diffs[i-lag]
			}
			design[row] = reg
			response[row] = diffs[i]
		}

		beta, xtxInv, ok := solveLeastSquares(design, response)
		if !ok {
			continue
		}

		var rss float64
		for row := 0; row < nObs; row++ {
			var fitted float64
			for j := 0; j < k; j++ {
				fitted += design[row][j] * beta[j]
			}
			resid := response[row] - fitted
			rss += resid * resid
		}

		dof := nObs - k
		if dof <= 0 {
			continue
		}
		sigma2 := rss / float64(dof)
		aic := float64(nObs)*math.Log(rss/float64(nObs)) + 2*float64(k)

		seRho := math.Sqrt(sigma2 * xtxInv[0][0])
		var tStat float64
		if seRho > 1e-15 {
			tStat = beta[0] / seRho
		}

		if aic < bestAIC {
			bestAIC = aic
			best = ADFResult{Statistic: tStat, UsedLag: p}
			found = true
		}
	}

	if !found {
		return ADFResult{}, false
	}
	best.PValue = approxADFPValue(best.Statistic)
	return best, true
}

// schwertMaxLag is the common rule-of-thumb ceiling on ADF lag search depth.
func schwertMaxLag(n int) int {
	l := int(12 * math.Pow(float64(n)/100.0, 0.25))
	if l < 0 {
		return 0
	}
	return l
}

// approxADFPValue is a coarse response-surface approximation of the
// no-constant ADF p-value, informational only: the engine's cointegration
// decision uses the MacKinnon critical values directly, not this value.
func approxADFPValue(t float64) float64 {
	switch {
	case t <= -2.58:
		return 0.01
	case t <= -1.95:
		return 0.01 + ((-1.95)-t)/((-1.95)-(-2.58))*0.04
	case t <= -1.6:
		return 0.05 + ((-1.6)-t)/((-1.6)-(-1.95))*0.05
	case t <= 0:
		return 0.10 + ((0.0)-t)/2.58*0.40
	default:
		return math.Min(0.99, 0.5+t*0.1)
	}
}
