// Package metrics computes risk-adjusted performance statistics from a
// closed-trade list and a per-bar return stream.
package metrics

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/sawpanic/statarb-backtester/internal/interval"
)

// TradeSummary is the minimal trade shape the metrics calculator needs.
type TradeSummary struct {
	NetPnL        float64
	HoldingPeriod int
}

// Metrics is the full set of backtest performance statistics. JSON field
// names follow spec.md §6's metrics wire shape verbatim. ProfitFactor and
// SortinoRatio carry their own MarshalJSON/UnmarshalJSON (see below) since
// both may legitimately be +Inf, which encoding/json otherwise rejects.
type Metrics struct {
	TotalReturn         float64 `json:"total_return"`
	TotalTrades         int     `json:"total_trades"`
	WinningTrades       int     `json:"winning_trades"`
	LosingTrades        int     `json:"losing_trades"`
	WinRate             float64 `json:"win_rate"`
	ProfitFactor        float64 `json:"profit_factor"` // math.Inf(1) when there is at least one trade and no losing trades
	AvgWin              float64 `json:"avg_win"`
	AvgLoss             float64 `json:"avg_loss"`
	MaxWin              float64 `json:"max_win"`
	MaxLoss             float64 `json:"max_loss"`
	AvgHoldingPeriod    float64 `json:"avg_holding_period"`
	SharpeRatio         float64 `json:"sharpe_ratio"`
	SortinoRatio        float64 `json:"sortino_ratio"` // may be math.Inf(1)
	CalmarRatio         float64 `json:"calmar_ratio"`
	MaxDrawdown         float64 `json:"max_drawdown"`
	MaxDrawdownDuration int     `json:"max_drawdown_duration"`
}

// infinitySentinel is the wire encoding for +Inf, per spec.md §9's
// requirement that infinities be encoded explicitly rather than coerced.
const infinitySentinel = "Infinity"

// metricsWire mirrors Metrics but widens ProfitFactor/SortinoRatio so they
// can carry either a number or the infinity sentinel string.
type metricsWire struct {
	TotalReturn         float64     `json:"total_return"`
	TotalTrades         int         `json:"total_trades"`
	WinningTrades       int         `json:"winning_trades"`
	LosingTrades        int         `json:"losing_trades"`
	WinRate             float64     `json:"win_rate"`
	ProfitFactor        interface{} `json:"profit_factor"`
	AvgWin              float64     `json:"avg_win"`
	AvgLoss             float64     `json:"avg_loss"`
	MaxWin              float64     `json:"max_win"`
	MaxLoss             float64     `json:"max_loss"`
	AvgHoldingPeriod    float64     `json:"avg_holding_period"`
	SharpeRatio         float64     `json:"sharpe_ratio"`
	SortinoRatio        interface{} `json:"sortino_ratio"`
	CalmarRatio         float64     `json:"calmar_ratio"`
	MaxDrawdown         float64     `json:"max_drawdown"`
	MaxDrawdownDuration int         `json:"max_drawdown_duration"`
}

func encodeMaybeInf(v float64) interface{} {
	if math.IsInf(v, 1) {
		return infinitySentinel
	}
	return v
}

func decodeMaybeInf(v interface{}) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return t, nil
	case string:
		if t == infinitySentinel {
			return math.Inf(1), nil
		}
		return 0, fmt.Errorf("unexpected string %q for numeric metrics field", t)
	default:
		return 0, fmt.Errorf("unexpected type %T for numeric metrics field", v)
	}
}

// MarshalJSON encodes Metrics with ProfitFactor/SortinoRatio as the
// infinity sentinel string when they are +Inf, instead of failing the way
// encoding/json does on a bare float64 infinity.
func (m Metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(metricsWire{
		TotalReturn:         m.TotalReturn,
		TotalTrades:         m.TotalTrades,
		WinningTrades:       m.WinningTrades,
		LosingTrades:        m.LosingTrades,
		WinRate:             m.WinRate,
		ProfitFactor:        encodeMaybeInf(m.ProfitFactor),
		AvgWin:              m.AvgWin,
		AvgLoss:             m.AvgLoss,
		MaxWin:              m.MaxWin,
		MaxLoss:             m.MaxLoss,
		AvgHoldingPeriod:    m.AvgHoldingPeriod,
		SharpeRatio:         m.SharpeRatio,
		SortinoRatio:        encodeMaybeInf(m.SortinoRatio),
		CalmarRatio:         m.CalmarRatio,
		MaxDrawdown:         m.MaxDrawdown,
		MaxDrawdownDuration: m.MaxDrawdownDuration,
	})
}

// UnmarshalJSON reverses MarshalJSON, recovering +Inf from the sentinel.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	var wire metricsWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	profitFactor, err := decodeMaybeInf(wire.ProfitFactor)
	if err != nil {
		return fmt.Errorf("profit_factor: %w", err)
	}
	sortino, err := decodeMaybeInf(wire.SortinoRatio)
	if err != nil {
		return fmt.Errorf("sortino_ratio: %w", err)
	}

	*m = Metrics{
		TotalReturn:         wire.TotalReturn,
		TotalTrades:         wire.TotalTrades,
		WinningTrades:       wire.WinningTrades,
		LosingTrades:        wire.LosingTrades,
		WinRate:             wire.WinRate,
		ProfitFactor:        profitFactor,
		AvgWin:              wire.AvgWin,
		AvgLoss:             wire.AvgLoss,
		MaxWin:              wire.MaxWin,
		MaxLoss:             wire.MaxLoss,
		AvgHoldingPeriod:    wire.AvgHoldingPeriod,
		SharpeRatio:         wire.SharpeRatio,
		SortinoRatio:        sortino,
		CalmarRatio:         wire.CalmarRatio,
		MaxDrawdown:         wire.MaxDrawdown,
		MaxDrawdownDuration: wire.MaxDrawdownDuration,
	}
	return nil
}

// Calculate derives all metrics from the closed trades and the per-bar
// return stream. interval is used purely for annualization.
func Calculate(trades []TradeSummary, returns []float64, rawInterval string) Metrics {
	m := Metrics{
		TotalReturn: totalReturn(returns),
	}
	m.SharpeRatio = sharpeRatio(returns, rawInterval)
	m.SortinoRatio = sortinoRatio(returns, rawInterval)
	m.MaxDrawdown, m.MaxDrawdownDuration = maxDrawdown(returns)
	m.CalmarRatio = calmarRatio(returns, m.MaxDrawdown, rawInterval)

	m.TotalTrades = len(trades)
	if m.TotalTrades == 0 {
		return m
	}

	var winSum, lossSum float64
	var maxWin, maxLoss float64
	var holdingSum int

	for _, t := range trades {
		holdingSum += t.HoldingPeriod
		switch {
		case t.NetPnL > 0:
			m.WinningTrades++
			winSum += t.NetPnL
			if t.NetPnL > maxWin {
				maxWin = t.NetPnL
			}
		case t.NetPnL < 0:
			m.LosingTrades++
			lossSum += t.NetPnL
			if t.NetPnL < maxLoss {
				maxLoss = t.NetPnL
			}
		}
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	m.AvgHoldingPeriod = float64(holdingSum) / float64(m.TotalTrades)

	if m.WinningTrades > 0 {
		m.AvgWin = winSum / float64(m.WinningTrades)
		m.MaxWin = maxWin
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = lossSum / float64(m.LosingTrades)
		m.MaxLoss = maxLoss
	}

	grossLoss := math.Abs(lossSum)
	if grossLoss > 0 {
		m.ProfitFactor = winSum / grossLoss
	} else {
		m.ProfitFactor = math.Inf(1)
	}

	return m
}

func totalReturn(returns []float64) float64 {
	product := 1.0
	for _, r := range returns {
		product *= 1 + r
	}
	return product - 1
}

func meanStdSample(values []float64) (mean, std float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)
	if n < 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(n-1))
}

func sharpeRatio(returns []float64, rawInterval string) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, std := meanStdSample(returns)
	// Identical returns can leave a few ulps of rounding noise in std; treat
	// that as zero rather than dividing by it.
	if std < 1e-12 {
		return 0
	}
	a := interval.AnnFactor(rawInterval)
	return (mean * a) / (std * math.Sqrt(a))
}

func sortinoRatio(returns []float64, rawInterval string) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, _ := meanStdSample(returns)

	downside := make([]float64, 0, len(returns))
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		if mean > 0 {
			return math.Inf(1)
		}
		return 0
	}

	_, downsideStd := meanStdSample(downside)
	if downsideStd == 0 {
		return 0
	}
	a := interval.AnnFactor(rawInterval)
	return (mean * a) / (downsideStd * math.Sqrt(a))
}

func maxDrawdown(returns []float64) (float64, int) {
	if len(returns) == 0 {
		return 0, 0
	}

	equity := 1.0
	runningMax := 1.0
	maxDD := 0.0
	curDuration := 0
	maxDuration := 0

	for _, r := range returns {
		equity *= 1 + r
		if equity > runningMax {
			runningMax = equity
		}
		dd := (equity - runningMax) / runningMax
		if dd < 0 {
			curDuration++
			if curDuration > maxDuration {
				maxDuration = curDuration
			}
			if -dd > maxDD {
				maxDD = -dd
			}
		} else {
			curDuration = 0
		}
	}

	return maxDD, maxDuration
}

func calmarRatio(returns []float64, maxDD float64, rawInterval string) float64 {
	if maxDD == 0 {
		return 0
	}
	periods := len(returns)
	if periods == 0 {
		return 0
	}

	total := totalReturn(returns)
	a := interval.AnnFactor(rawInterval)
	annualizedReturn := math.Pow(1+total, a/float64(periods)) - 1
	return annualizedReturn / maxDD
}
