package backtest

import (
	"encoding/json"
	"fmt"

	"github.com/sawpanic/statarb-backtester/internal/execution"
)

// Side is the simulation kernel's position state, modeled as a closed sum
// type rather than a bool-plus-optional-fields struct: a position's entry
// snapshot is only ever read when Side != Flat, so there's no path where
// is_open is false but the fields are stale and mistakenly consulted.
type Side int

const (
	Flat Side = iota
	LongSpread
	ShortSpread
)

func (s Side) String() string {
	switch s {
	case LongSpread:
		return "long_spread"
	case ShortSpread:
		return "short_spread"
	default:
		return "flat"
	}
}

// MarshalJSON encodes Side as the spec's wire string, not its int code.
func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes Side from the spec's wire string.
func (s *Side) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "long_spread":
		*s = LongSpread
	case "short_spread":
		*s = ShortSpread
	case "flat":
		*s = Flat
	default:
		return fmt.Errorf("unknown side %q", str)
	}
	return nil
}

// ExitReason records why a trade closed.
type ExitReason int

const (
	MeanReversion ExitReason = iota
	StopLoss
	EndOfData
)

func (r ExitReason) String() string {
	switch r {
	case StopLoss:
		return "stop_loss"
	case EndOfData:
		return "end_of_data"
	default:
		return "mean_reversion"
	}
}

// MarshalJSON encodes ExitReason as the spec's wire string, not its int code.
func (r ExitReason) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes ExitReason from the spec's wire string.
func (r *ExitReason) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "mean_reversion":
		*r = MeanReversion
	case "stop_loss":
		*r = StopLoss
	case "end_of_data":
		*r = EndOfData
	default:
		return fmt.Errorf("unknown exit reason %q", str)
	}
	return nil
}

// entrySnapshot captures the state needed to close a position later. It is
// only meaningful while the owning positionState.Side != Flat.
type entrySnapshot struct {
	bar        int
	z          float64
	priceY     float64
	priceX     float64
	hedgeRatio float64
}

type positionState struct {
	side Side
	entrySnapshot
}

func flatPosition() positionState { return positionState{side: Flat} }

// Trade is an immutable record of a closed pair trade. JSON field names and
// the Side/ExitReason string encodings follow the wire shape of spec.md §6:
// entry_time/exit_time are bar indices, price1/price2 map to Y/X.
type Trade struct {
	EntryBar      int        `json:"entry_time"`
	ExitBar       int        `json:"exit_time"`
	Side          Side       `json:"side"`
	EntryZ        float64    `json:"entry_z_score"`
	ExitZ         float64    `json:"exit_z_score"`
	EntryPriceY   float64    `json:"entry_price1"`
	EntryPriceX   float64    `json:"entry_price2"`
	ExitPriceY    float64    `json:"exit_price1"`
	ExitPriceX    float64    `json:"exit_price2"`
	GrossPnL      float64    `json:"pnl_gross"`
	NetPnL        float64    `json:"pnl_net"`
	HoldingPeriod int        `json:"holding_period"`
	ExitReason    ExitReason `json:"exit_reason"`
}

// Config is the immutable strategy/execution configuration for a single
// backtest invocation.
type Config struct {
	EntryThreshold  float64  `json:"entry_threshold" yaml:"entry_threshold"`
	ExitThreshold   float64  `json:"exit_threshold" yaml:"exit_threshold"`
	StopLoss        float64  `json:"stop_loss" yaml:"stop_loss"`
	CommissionPct   float64  `json:"commission_pct" yaml:"commission_pct"`
	SlippageBps     float64  `json:"slippage_bps" yaml:"slippage_bps"`
	LookbackHours   *float64 `json:"lookback_hours,omitempty" yaml:"lookback_hours,omitempty"`
	ForceHedgeRatio *float64 `json:"force_hedge_ratio,omitempty" yaml:"force_hedge_ratio,omitempty"`
	ForceIntercept  *float64 `json:"force_intercept,omitempty" yaml:"force_intercept,omitempty"`
	// UseDynamicHedge is accepted for wire compatibility with callers that
	// still send it, but Run rejects it with InvalidInput: the core never
	// guesses at the Kalman-filter semantics the spec withholds.
	UseDynamicHedge bool `json:"use_dynamic_hedge,omitempty" yaml:"use_dynamic_hedge,omitempty"`
}

// DefaultConfig returns the spec's default strategy configuration.
func DefaultConfig() Config {
	lookback := 24.0
	return Config{
		EntryThreshold: 2.0,
		ExitThreshold:  0.0,
		StopLoss:       3.0,
		CommissionPct:  0.0004,
		SlippageBps:    3.0,
		LookbackHours:  &lookback,
	}
}

func (c Config) costs() execution.Costs {
	return execution.Costs{CommissionPct: c.CommissionPct, SlippageBps: c.SlippageBps}
}

// hasForcedHedge reports whether both override fields are present. A lone
// override is treated as "no override" — forcing is all-or-nothing.
func (c Config) hasForcedHedge() bool {
	return c.ForceHedgeRatio != nil && c.ForceIntercept != nil
}
