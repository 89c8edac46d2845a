package backtest

import "math"

// tradePnL computes the beta-neutral fractional gross return of a single
// closed pair trade. Each leg's weight is proportional to its share of the
// hedge ratio and the two weights sum to one, which keeps total notional
// bounded to a single unit of capital regardless of how large |beta| is.
func tradePnL(side Side, entryY, entryX, exitY, exitX, hedgeRatio float64) float64 {
	returnY := (exitY - entryY) / entryY
	returnX := (exitX - entryX) / entryX

	absBeta := math.Abs(hedgeRatio)
	weightY := 1 / (1 + absBeta)
	weightX := absBeta / (1 + absBeta)

	if side == LongSpread {
		return weightY*returnY - weightX*returnX
	}
	return weightX*returnX - weightY*returnY
}
