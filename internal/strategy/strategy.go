package strategy

import (
	"fmt"
	"math"

	"perpsim/internal/models"
)

// Mode selects the signal rule set. The set is closed; ParseMode rejects
// anything else.
type Mode string

const (
	ModeAdaptive      Mode = "adaptive"
	ModeMomentum      Mode = "momentum"
	ModeMeanReversion Mode = "mean_reversion"
	ModePullback      Mode = "pullback"
	ModeBearMarket    Mode = "bear_market"
)

// ParseMode validates a configured strategy mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAdaptive, ModeMomentum, ModeMeanReversion, ModePullback, ModeBearMarket:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown strategy mode %q", s)
	}
}

// minHistory is the earliest bar index a strategy may signal on: the 200-period
// EMA baseline must be fully formed.
const minHistory = 200

// atrGateWindow and atrGateRatio define the volatility gate: a signal is kept
// only while current ATR is at least 80% of its trailing 50-bar mean.
const (
	atrGateWindow = 50
	atrGateRatio  = 0.8
)

// Context is the per-bar view a rule sees: the current candle, trailing
// extremes of the previous 20 bars, indicator values and the market regime.
// Rules are pure functions of it.
type Context struct {
	Candle     models.Candle
	PrevCandle models.Candle
	Index      int

	High20 float64 // highest high of the previous 20 bars
	Low20  float64 // lowest low of the previous 20 bars

	ATR     float64
	ATRMean float64 // trailing 50-bar mean ATR, for the volatility gate
	RSI     float64
	PrevRSI float64

	EMA20     float64
	PrevEMA20 float64
	EMA50     float64
	EMA200    float64

	Regime models.Regime
}

// rule is one strategy variant: a pure function from the bar context to a
// long/short decision. Long and short are mutually exclusive by construction
// inside each rule, never by post-filtering.
type rule func(ctx Context) (long, short bool)

// Evaluate runs the selected strategy on one bar and applies the volatility
// gate. Bars inside the indicator warm-up never signal.
func Evaluate(mode Mode, ctx Context) models.Signal {
	sig := models.Signal{
		ATR:    ctx.ATR,
		RSI:    ctx.RSI,
		EMA20:  ctx.EMA20,
		EMA50:  ctx.EMA50,
		EMA200: ctx.EMA200,
		Regime: ctx.Regime,
	}

	if ctx.Index < minHistory || !ctx.ready() {
		return sig
	}

	var r rule
	switch mode {
	case ModeMeanReversion:
		r = meanReversionRule
	case ModeMomentum:
		r = momentumRule
	case ModePullback:
		r = pullbackRule
	case ModeBearMarket:
		r = bearMarketRule
	case ModeAdaptive:
		r = adaptiveRule
	default:
		return sig
	}

	long, short := r(ctx)

	// Volatility gate: skip low-volatility chop.
	if math.IsNaN(ctx.ATRMean) || ctx.ATR <= atrGateRatio*ctx.ATRMean {
		return sig
	}

	sig.Long = long
	sig.Short = short
	return sig
}

// ready reports whether every indicator the rules consult is out of warm-up.
func (ctx Context) ready() bool {
	for _, v := range []float64{
		ctx.ATR, ctx.RSI, ctx.PrevRSI,
		ctx.EMA20, ctx.PrevEMA20, ctx.EMA50, ctx.EMA200,
		ctx.High20, ctx.Low20,
	} {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}
