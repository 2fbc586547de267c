package strategy

// momentumRule trades 20-bar breakouts confirmed by RSI, the 200 EMA trend
// filter and a fast/slow EMA alignment.
func momentumRule(ctx Context) (bool, bool) {
	close := ctx.Candle.Close

	long := close > ctx.High20 &&
		ctx.RSI > 50 &&
		close > ctx.EMA200 &&
		ctx.EMA20 > ctx.EMA50

	short := close < ctx.Low20 &&
		ctx.RSI < 50 &&
		close < ctx.EMA200 &&
		ctx.EMA20 < ctx.EMA50

	return long, short
}
