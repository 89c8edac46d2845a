// Package execution models round-trip transaction costs for a closed pair
// trade: commission plus slippage, symmetric across entry and exit, with
// no partial fills or market-impact modeling beyond the fixed slippage.
package execution

// Costs are the inputs to the round-trip cost model.
type Costs struct {
	CommissionPct float64 // e.g. 0.0004 = 4 bps per fill
	SlippageBps   float64 // e.g. 3.0 = 3 bps per fill
}

// BinanceFuturesCosts mirrors Binance Futures taker fees plus typical
// slippage for liquid pairs — a sensible default preset.
var BinanceFuturesCosts = Costs{CommissionPct: 0.0004, SlippageBps: 3.0}

// ConservativeCosts is a more pessimistic preset for stress-testing a
// strategy's sensitivity to execution quality.
var ConservativeCosts = Costs{CommissionPct: 0.001, SlippageBps: 10.0}

// RoundTripCost returns the total fractional cost of opening and closing a
// position: 2*commission + 2*(slippage in bps / 10000).
func RoundTripCost(c Costs) float64 {
	return 2*c.CommissionPct + 2*(c.SlippageBps/10000.0)
}

// BreakEvenPnL is the minimum gross PnL a trade must clear to be profitable
// net of round-trip costs — identical to RoundTripCost, named for callers
// screening candidate pairs by typical trade size.
func BreakEvenPnL(c Costs) float64 {
	return RoundTripCost(c)
}
