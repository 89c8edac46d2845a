package cointegration

import "math"

// symInvert inverts a small symmetric positive-definite matrix using
// Gauss-Jordan elimination with partial pivoting on an augmented copy. It
// returns the inverse as a new matrix; the original is left untouched. Used for the ADF lag-selection regression,
// whose design matrices are small (a handful of lagged-difference columns).
func symInvert(a [][]float64) ([][]float64, bool) {
	n := len(a)
	aug := make([][]float64, n)
	for i := range a {
		aug[i] = make([]float64, 2*n)
		copy(aug[i], a[i])
		aug[i][n+i] = 1
	}

	for col := 0; col < n; col++ {
		pivot := col
		best := math.Abs(aug[col][col])
		for r := col + 1; r < n; r++ {
			if v := math.Abs(aug[r][col]); v > best {
				best = v
				pivot = r
			}
		}
		if best < 1e-12 {
			return nil, false
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		pv := aug[col][col]
		for c := 0; c < 2*n; c++ {
			aug[col][c] /= pv
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := aug[r][col]
			if factor == 0 {
				continue
			}
			for c := 0; c < 2*n; c++ {
				aug[r][c] -= factor * aug[col][c]
			}
		}
	}

	inv := make([][]float64, n)
	for i := range inv {
		inv[i] = make([]float64, n)
		copy(inv[i], aug[i][n:])
	}
	return inv, true
}

// matVecMul returns a*x for a dense matrix a and vector x.
func matVecMul(a [][]float64, x []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		var s float64
		for j := range x {
			s += a[i][j] * x[j]
		}
		out[i] = s
	}
	return out
}

// solveLeastSquares solves beta = (X^T X)^-1 X^T y for a dense design
// matrix X (rows = observations, cols = regressors) and response y. It also
// returns (X^T X)^-1 so callers can derive standard errors.
func solveLeastSquares(x [][]float64, y []float64) (beta []float64, xtxInv [][]float64, ok bool) {
	nObs := len(x)
	if nObs == 0 {
		return nil, nil, false
	}
	k := len(x[0])

	xtx := make([][]float64, k)
	for i := range xtx {
		xtx[i] = make([]float64, k)
	}
	xty := make([]float64, k)

	for row := 0; row < nObs; row++ {
		for i := 0; i < k; i++ {
			xty[i] += x[row][i] * y[row]
			for j := 0; j < k; j++ {
				xtx[i][j] += x[row][i] * x[row][j]
			}
		}
	}

	inv, ok := symInvert(xtx)
	if !ok {
		return nil, nil, false
	}
	return matVecMul(inv, xty), inv, true
}
