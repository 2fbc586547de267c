package engine

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"perpsim/internal/indicators"
	"perpsim/internal/models"
	"perpsim/internal/regime"
	"perpsim/internal/risk"
	"perpsim/internal/strategy"
)

const (
	atrPeriod     = 14
	rsiPeriod     = 14
	emaFastPeriod = 20
	emaMidPeriod  = 50
	emaSlowPeriod = 200
	rangeWindow   = 20 // trailing high/low window for breakout rules
	atrMeanWindow = 50 // volatility-gate baseline
)

// Config is the simulation tuning surface.
type Config struct {
	Symbol          string
	Mode            strategy.Mode
	InitialCapital  float64
	Leverage        float64
	UseRegimeSizing bool
	// RegimeSizeFactors scales the committed margin per regime when
	// UseRegimeSizing is on. Missing regimes default to 1.
	RegimeSizeFactors map[models.Regime]float64
}

// DefaultRegimeSizeFactors commits full capital in trends and scales down in
// chop.
func DefaultRegimeSizeFactors() map[models.Regime]float64 {
	return map[models.Regime]float64{
		models.Bull:  1.0,
		models.Bear:  0.7,
		models.Range: 0.5,
	}
}

// Status is a point-in-time snapshot of the simulation, safe to hand to
// observers because it copies the position.
type Status struct {
	Bars     int
	Capital  float64
	Trades   int
	Position *models.Position
}

// Simulator is the single owner of all position and capital state. It consumes
// candles strictly sequentially; the same instance drives both the batch and
// the live mode. It is not safe for concurrent use — confine it to one
// goroutine.
type Simulator struct {
	cfg      Config
	risk     *risk.Model
	detector *regime.Detector
	logger   zerolog.Logger

	candles []models.Candle
	atr     []float64
	rsi     []float64
	ema20   []float64
	ema50   []float64
	ema200  []float64
	regimes []models.Regime

	ema20State  *indicators.EMAState
	ema50State  *indicators.EMAState
	ema200State *indicators.EMAState

	capital       float64
	position      *models.Position
	entrySlippage float64 // quote-currency slippage paid on the open position's entry
	trades        []models.Trade
	equity        []float64
}

// New creates a simulator. The risk model and regime detector are injected so
// concurrent simulations can carry independent tuning.
func New(cfg Config, riskModel *risk.Model, detector *regime.Detector, logger zerolog.Logger) *Simulator {
	if cfg.Leverage <= 0 {
		cfg.Leverage = 1
	}
	if cfg.RegimeSizeFactors == nil {
		cfg.RegimeSizeFactors = DefaultRegimeSizeFactors()
	}
	return &Simulator{
		cfg:         cfg,
		risk:        riskModel,
		detector:    detector,
		logger:      logger.With().Str("component", "simulator").Logger(),
		ema20State:  indicators.NewEMAState(emaFastPeriod),
		ema50State:  indicators.NewEMAState(emaMidPeriod),
		ema200State: indicators.NewEMAState(emaSlowPeriod),
		capital:     cfg.InitialCapital,
	}
}

// Run executes a batch simulation over a historical candle sequence and
// force-closes any position left open at the end of data.
func (s *Simulator) Run(candles []models.Candle) (*models.Result, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("empty candle sequence")
	}
	for i := 1; i < len(candles); i++ {
		if !candles[i].OpenTime.After(candles[i-1].OpenTime) {
			return nil, fmt.Errorf("candle sequence not strictly increasing at index %d", i)
		}
	}
	for _, c := range candles {
		s.Step(c)
	}
	s.Finalize(models.ExitEndOfData)
	return s.Result(), nil
}

// Step consumes one candle: appends indicators and regime, runs the per-bar
// decision logic, and extends the equity curve. Exactly one equity entry is
// appended per candle, warm-up bars included.
func (s *Simulator) Step(c models.Candle) {
	s.appendCandle(c)
	i := len(s.candles) - 1

	if s.position != nil {
		s.manage(i)
	} else {
		s.maybeEnter(i)
	}

	s.equity = append(s.equity, s.capital)
}

// Finalize force-closes an open position at the last seen price. Safe to call
// with no position or no data.
func (s *Simulator) Finalize(reason models.ExitReason) {
	if s.position == nil || len(s.candles) == 0 {
		return
	}
	i := len(s.candles) - 1
	s.closeTrade(i, s.candles[i].Close, reason)
}

// Result returns the accumulated output contract.
func (s *Simulator) Result() *models.Result {
	return &models.Result{
		Trades:      s.trades,
		EquityCurve: s.equity,
		RegimeLog:   s.regimes,
	}
}

// Snapshot copies the current state for observers.
func (s *Simulator) Snapshot() Status {
	st := Status{
		Bars:    len(s.candles),
		Capital: s.capital,
		Trades:  len(s.trades),
	}
	if s.position != nil {
		pos := *s.position
		st.Position = &pos
	}
	return st
}

// Capital returns the current realized capital.
func (s *Simulator) Capital() float64 {
	return s.capital
}

// LastTrade returns the most recent trade record, if any.
func (s *Simulator) LastTrade() (models.Trade, bool) {
	if len(s.trades) == 0 {
		return models.Trade{}, false
	}
	return s.trades[len(s.trades)-1], true
}

func (s *Simulator) appendCandle(c models.Candle) {
	s.candles = append(s.candles, c)
	i := len(s.candles) - 1

	s.ema20 = append(s.ema20, s.ema20State.Update(c.Close))
	s.ema50 = append(s.ema50, s.ema50State.Update(c.Close))
	s.ema200 = append(s.ema200, s.ema200State.Update(c.Close))
	s.atr = append(s.atr, indicators.ATRAt(s.candles, i, atrPeriod))
	s.rsi = append(s.rsi, indicators.RSIAt(s.candles, i, rsiPeriod))
	s.regimes = append(s.regimes, s.detector.Classify(s.candles, i))
}

// manage applies the open-position exit logic for bar i, in strict priority
// order: liquidation, trailing-stop update, stop hit.
func (s *Simulator) manage(i int) {
	c := s.candles[i]
	pos := s.position
	atr := s.atr[i]

	// Liquidation outranks every other exit on the bar.
	if breached(pos.Direction, c.Close, pos.LiquidationPrice) {
		s.closeTrade(i, pos.LiquidationPrice, models.ExitLiquidation)
		return
	}

	if !math.IsNaN(atr) && atr > 0 {
		profitATR := s.risk.ProfitATR(pos.Direction, pos.EntryPrice, c.Close, atr)
		if profitATR > pos.MaxProfitATR {
			pos.MaxProfitATR = profitATR
		}
		candidate := s.risk.TrailingStop(pos.Direction, pos.EntryPrice, c.Close, atr, s.regimes[i])
		pos.TrailingStop = risk.Tighten(pos.Direction, pos.TrailingStop, candidate)
	}

	if breached(pos.Direction, c.Close, pos.TrailingStop) {
		fill := s.risk.StopFill(pos.TrailingStop, s.validATR(i), pos.Direction)
		reason := models.ExitInitialStop
		if pos.MaxProfitATR > s.risk.Params().ProfitThreshold {
			reason = models.ExitProfitProtection
		}
		s.closeTrade(i, fill, reason)
	}
}

// maybeEnter evaluates the strategy on bar i and opens a position on a signal.
func (s *Simulator) maybeEnter(i int) {
	sig := strategy.Evaluate(s.cfg.Mode, s.contextAt(i))
	if !sig.Long && !sig.Short {
		return
	}
	if s.capital <= 0 {
		return
	}

	dir := models.Long
	if sig.Short {
		dir = models.Short
	}
	c := s.candles[i]
	atr := s.atr[i]

	margin := s.capital
	if s.cfg.UseRegimeSizing {
		if f, ok := s.cfg.RegimeSizeFactors[s.regimes[i]]; ok {
			margin *= f
		}
	}

	fill := s.risk.EntryFill(c.Close, atr, dir)
	entryFee := margin * s.cfg.Leverage * s.risk.Params().FeeRate
	committed := margin - entryFee
	if fill <= 0 || committed <= 0 {
		return
	}
	qty := committed / fill
	s.capital -= entryFee

	pos := &models.Position{
		Direction:        dir,
		EntryPrice:       fill,
		EntryTime:        c.CloseTime,
		EntryIndex:       i,
		Quantity:         qty,
		LiquidationPrice: s.risk.LiquidationPrice(fill, dir, s.cfg.Leverage),
	}
	pos.TrailingStop = s.risk.TrailingStop(dir, fill, c.Close, atr, s.regimes[i])
	s.position = pos
	s.entrySlippage = math.Abs(fill-c.Close) * qty

	s.logger.Debug().
		Str("direction", string(dir)).
		Float64("entry", fill).
		Float64("stop", pos.TrailingStop).
		Float64("liquidation", pos.LiquidationPrice).
		Str("regime", string(s.regimes[i])).
		Msg("position opened")
}

// closeTrade realizes the position at the given exit price and appends the
// trade record. Liquidation wipes exactly the committed margin; every other
// exit nets out the exit fee and the accrued funding.
func (s *Simulator) closeTrade(i int, exitPrice float64, reason models.ExitReason) {
	pos := s.position
	c := s.candles[i]

	margin := pos.EntryPrice * pos.Quantity
	notional := margin * s.cfg.Leverage
	held := c.CloseTime.Sub(pos.EntryTime)
	funding := s.risk.FundingCost(notional, held)

	var pnl float64
	if reason == models.ExitLiquidation {
		pnl = -margin
		funding = 0
	} else {
		move := exitPrice - pos.EntryPrice
		if pos.Direction == models.Short {
			move = -move
		}
		gross := move * pos.Quantity * s.cfg.Leverage
		exitFee := exitPrice * pos.Quantity * s.cfg.Leverage * s.risk.Params().FeeRate
		pnl = gross - exitFee - funding
	}
	// A leveraged loss can exceed the margin between bars; the exchange caps
	// it at liquidation.
	if pnl < -margin {
		pnl = -margin
	}

	s.capital += pnl

	trade := models.Trade{
		EntryTime:    pos.EntryTime,
		ExitTime:     c.CloseTime,
		Direction:    pos.Direction,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    exitPrice,
		BarsHeld:     i - pos.EntryIndex,
		PnL:          pnl,
		ReturnPct:    pnl / margin,
		ExitReason:   reason,
		RegimeAtExit: s.regimes[i],
		FundingCost:  funding,
		Slippage:     s.entrySlippage,
		MaxProfitATR: pos.MaxProfitATR,
	}
	s.trades = append(s.trades, trade)
	s.position = nil
	s.entrySlippage = 0

	s.logger.Debug().
		Str("reason", string(reason)).
		Float64("pnl", pnl).
		Float64("capital", s.capital).
		Msg("position closed")
}

// contextAt assembles the strategy view of bar i.
func (s *Simulator) contextAt(i int) strategy.Context {
	ctx := strategy.Context{
		Candle:  s.candles[i],
		Index:   i,
		ATR:     s.atr[i],
		ATRMean: indicators.TrailingMean(s.atr, i, atrMeanWindow),
		RSI:     s.rsi[i],
		EMA20:   s.ema20[i],
		EMA50:   s.ema50[i],
		EMA200:  s.ema200[i],
		Regime:  s.regimes[i],
	}
	if i > 0 {
		ctx.PrevCandle = s.candles[i-1]
		ctx.PrevRSI = s.rsi[i-1]
		ctx.PrevEMA20 = s.ema20[i-1]
	} else {
		ctx.PrevRSI = math.NaN()
		ctx.PrevEMA20 = math.NaN()
	}
	ctx.High20, ctx.Low20 = s.trailingRange(i)
	return ctx
}

// trailingRange returns the extremes of the rangeWindow bars before i.
func (s *Simulator) trailingRange(i int) (high, low float64) {
	if i < rangeWindow {
		return math.NaN(), math.NaN()
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for j := i - rangeWindow; j < i; j++ {
		high = math.Max(high, s.candles[j].High)
		low = math.Min(low, s.candles[j].Low)
	}
	return high, low
}

// validATR returns the bar's ATR, or zero when it is undefined so stop fills
// degrade to the nominal trigger instead of NaN.
func (s *Simulator) validATR(i int) float64 {
	if !math.IsNaN(s.atr[i]) {
		return s.atr[i]
	}
	return 0
}

// breached reports whether the close price crossed the adverse level.
func breached(dir models.Direction, close, level float64) bool {
	if dir == models.Long {
		return close <= level
	}
	return close >= level
}
