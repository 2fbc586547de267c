package models

import "time"

// Candle is one OHLCV bar. Sequences are ordered by strictly increasing
// OpenTime and immutable once produced by the data layer.
type Candle struct {
	OpenTime  time.Time `json:"open_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	CloseTime time.Time `json:"close_time"`
}

// Direction of a position.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Regime classifies recent market behavior. Exactly one regime holds per bar;
// Range is the default when neither trend condition triggers.
type Regime string

const (
	Bull  Regime = "bull"
	Bear  Regime = "bear"
	Range Regime = "range"
)

// Signal is the strategy output for one bar together with the indicator
// snapshot it was derived from. Long and Short are never both true.
type Signal struct {
	Long   bool
	Short  bool
	ATR    float64
	RSI    float64
	EMA20  float64
	EMA50  float64
	EMA200 float64
	Regime Regime
}

// Position is the state of the single open trade. It exists only between an
// entry and the matching exit and is owned exclusively by the simulation loop.
type Position struct {
	Direction        Direction
	EntryPrice       float64
	EntryTime        time.Time
	EntryIndex       int
	Quantity         float64
	TrailingStop     float64
	LiquidationPrice float64
	MaxProfitATR     float64
}

// ExitReason explains why a position was closed.
type ExitReason string

const (
	ExitInitialStop      ExitReason = "initial_stop"
	ExitProfitProtection ExitReason = "profit_protection"
	ExitLiquidation      ExitReason = "liquidation"
	ExitEndOfData        ExitReason = "end_of_data"
	ExitManualShutdown   ExitReason = "manual_shutdown"
)

// Trade is the immutable record appended when a position closes.
type Trade struct {
	EntryTime    time.Time  `json:"entry_time"`
	ExitTime     time.Time  `json:"exit_time"`
	Direction    Direction  `json:"direction"`
	EntryPrice   float64    `json:"entry_price"`
	ExitPrice    float64    `json:"exit_price"`
	BarsHeld     int        `json:"bars_held"`
	PnL          float64    `json:"pnl"`
	ReturnPct    float64    `json:"return_pct"`
	ExitReason   ExitReason `json:"exit_reason"`
	RegimeAtExit Regime     `json:"regime_at_exit"`
	FundingCost  float64    `json:"funding_cost"`
	Slippage     float64    `json:"slippage"`
	MaxProfitATR float64    `json:"max_profit_atr"`
}

// Result is the sole output contract of both execution modes.
type Result struct {
	Trades      []Trade   `json:"trades"`
	EquityCurve []float64 `json:"equity_curve"`
	RegimeLog   []Regime  `json:"regime_log"`
}
