package strategy

// bearMarketRule is tuned for downtrending markets: it buys capitulation
// bounces and shorts on any of three independent breakdown setups. The bounce
// check runs first so the two sides never fire together.
func bearMarketRule(ctx Context) (bool, bool) {
	if bearOversoldBounce(ctx) {
		return true, false
	}

	overboughtInDowntrend := ctx.RSI > 60 && ctx.Candle.Close < ctx.EMA200
	return false, overboughtInDowntrend || bearBreakdown(ctx)
}

// bearOversoldBounce is a capitulation reversal: deeply oversold RSI with both
// price and volume turning up on the current bar.
func bearOversoldBounce(ctx Context) bool {
	return ctx.RSI < 25 &&
		ctx.Candle.Close > ctx.PrevCandle.Close &&
		ctx.Candle.Volume > ctx.PrevCandle.Volume
}

// bearBreakdown fires when price loses the 20 EMA from above while under the
// 200 EMA, or prints a fresh 20-bar low.
func bearBreakdown(ctx Context) bool {
	emaBreak := ctx.PrevCandle.Close >= ctx.PrevEMA20 &&
		ctx.Candle.Close < ctx.EMA20 &&
		ctx.Candle.Close < ctx.EMA200
	newLow := ctx.Candle.Close < ctx.Low20
	return emaBreak || newLow
}
