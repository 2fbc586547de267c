package strategy

// pullbackRule buys dips inside an uptrend: price above the 200 EMA but pulled
// below the 20 EMA, with RSI recovering through the 40-60 band. Mirrored for
// rallies inside a downtrend.
func pullbackRule(ctx Context) (bool, bool) {
	close := ctx.Candle.Close

	long := close > ctx.EMA200 &&
		close < ctx.EMA20 &&
		ctx.RSI >= 40 && ctx.RSI <= 60 &&
		ctx.RSI > ctx.PrevRSI

	short := close < ctx.EMA200 &&
		close > ctx.EMA20 &&
		ctx.RSI >= 40 && ctx.RSI <= 60 &&
		ctx.RSI < ctx.PrevRSI

	return long, short
}
