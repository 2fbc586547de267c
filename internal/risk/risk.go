package risk

import (
	"math"
	"time"

	"perpsim/internal/models"
)

// Tier is one rung of the profit-protection ladder: once unrealized profit
// (in ATR units) reaches ProfitThreshold, the trail tightens to TrailATR
// ATR-multiples. Tiers are ordered ascending and the last satisfied tier wins.
type Tier struct {
	ProfitThreshold float64
	TrailATR        float64
}

// RegimeMultiplier scales stop distances per market regime, independently for
// the initial (pre-profit) stage and the profit-protection stage.
type RegimeMultiplier struct {
	Initial float64
	Profit  float64
}

// Params is the full risk tuning surface. It is injected into the model so
// concurrent simulations can run with different tables without interference.
type Params struct {
	BaseSlippage          float64 // flat slippage fraction on entries
	VolMultiplier         float64 // weight of ATR/price in entry slippage
	StopSlippageATR       float64 // ATR multiple by which stop fills are worse
	MaintenanceMarginRate float64
	FundingRate           float64 // per 8-hour funding interval
	FeeRate               float64 // taker fee on notional, charged per side
	InitialStopATR        float64 // ATR multiple of the pre-profit stop
	ProfitThreshold       float64 // profitATR at which protection starts
	Tiers                 []Tier
	RegimeMultipliers     map[models.Regime]RegimeMultiplier
}

// DefaultParams returns the stock tuning. The tier table is one
// self-consistent ladder; callers are expected to override it when tuning.
func DefaultParams() Params {
	return Params{
		BaseSlippage:          0.0005,
		VolMultiplier:         0.1,
		StopSlippageATR:       0.1,
		MaintenanceMarginRate: 0.005,
		FundingRate:           0.0001,
		FeeRate:               0.0004,
		InitialStopATR:        2.5,
		ProfitThreshold:       0.2,
		Tiers: []Tier{
			{ProfitThreshold: 0.2, TrailATR: 2.0},
			{ProfitThreshold: 1.0, TrailATR: 1.5},
			{ProfitThreshold: 2.0, TrailATR: 1.0},
			{ProfitThreshold: 3.0, TrailATR: 0.6},
		},
		RegimeMultipliers: map[models.Regime]RegimeMultiplier{
			models.Bull:  {Initial: 1.2, Profit: 1.25},
			models.Bear:  {Initial: 1.2, Profit: 1.25},
			models.Range: {Initial: 1.0, Profit: 0.8},
		},
	}
}

// Model is the stateless risk calculator. All methods are pure functions of
// the current market state and position state.
type Model struct {
	params Params
}

// NewModel creates a risk model from an injected parameter set.
func NewModel(params Params) *Model {
	return &Model{params: params}
}

// Params returns the model's tuning.
func (m *Model) Params() Params {
	return m.params
}

// EntryFill returns the slip-adjusted entry price: buys pay up, sells receive
// less. The slippage fraction widens with current volatility.
func (m *Model) EntryFill(price, atr float64, dir models.Direction) float64 {
	slip := m.params.BaseSlippage
	if price > 0 && !math.IsNaN(atr) {
		slip += (atr / price) * m.params.VolMultiplier
	}
	if dir == models.Long {
		return price * (1 + slip)
	}
	return price * (1 - slip)
}

// StopFill returns the executed price of a stop order, offset against the
// position because stops fill worse than the nominal trigger.
func (m *Model) StopFill(stop, atr float64, dir models.Direction) float64 {
	offset := atr * m.params.StopSlippageATR
	if dir == models.Long {
		return stop - offset
	}
	return stop + offset
}

// LiquidationPrice returns the adverse price at which the position's margin is
// fully consumed at the given leverage.
func (m *Model) LiquidationPrice(entry float64, dir models.Direction, leverage float64) float64 {
	if leverage <= 0 {
		leverage = 1
	}
	if dir == models.Long {
		return entry * (1 - 1/leverage + m.params.MaintenanceMarginRate)
	}
	return entry * (1 + 1/leverage - m.params.MaintenanceMarginRate)
}

// FundingCost returns the cumulative funding charge for a position held for
// the given duration. Funding accrues only at completed 8-hour boundaries.
func (m *Model) FundingCost(notional float64, held time.Duration) float64 {
	intervals := math.Floor(held.Hours() / 8)
	if intervals <= 0 {
		return 0
	}
	return notional * m.params.FundingRate * intervals
}

// ProfitATR expresses the position's unrealized profit in ATR units, signed so
// favorable moves are positive for both directions.
func (m *Model) ProfitATR(dir models.Direction, entry, current, atr float64) float64 {
	if atr <= 0 || math.IsNaN(atr) {
		return 0
	}
	if dir == models.Long {
		return (current - entry) / atr
	}
	return (entry - current) / atr
}

// TrailingStop computes the dynamic stop for the current bar. Below the profit
// threshold the stop is wide and noise-tolerant; past it, the tightest reached
// tier governs. Regime multipliers scale each stage independently. The result
// is a candidate only: Tighten enforces that stops never loosen.
func (m *Model) TrailingStop(dir models.Direction, entry, current, atr float64, r models.Regime) float64 {
	mult, ok := m.params.RegimeMultipliers[r]
	if !ok {
		mult = RegimeMultiplier{Initial: 1, Profit: 1}
	}

	profitATR := m.ProfitATR(dir, entry, current, atr)

	var distance float64
	if profitATR < m.params.ProfitThreshold {
		distance = m.params.InitialStopATR * atr * mult.Initial
	} else {
		trail := m.params.InitialStopATR
		for _, tier := range m.params.Tiers {
			if profitATR >= tier.ProfitThreshold {
				trail = tier.TrailATR
			}
		}
		distance = trail * mult.Profit * atr
	}

	if dir == models.Long {
		return current - distance
	}
	return current + distance
}

// Tighten applies the monotonicity invariant: a stop only ever moves in the
// favorable direction — up for longs, down for shorts. A candidate that would
// loosen the existing stop is discarded.
func Tighten(dir models.Direction, existing, candidate float64) float64 {
	if dir == models.Long {
		return math.Max(existing, candidate)
	}
	return math.Min(existing, candidate)
}
