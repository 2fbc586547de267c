package strategy

// meanReversionRule fades RSI extremes in the direction of the long-term
// trend: oversold above the 200 EMA is bought, overbought below it is sold.
// The EMA200 location makes the two sides mutually exclusive.
func meanReversionRule(ctx Context) (bool, bool) {
	long := ctx.RSI < 30 && ctx.Candle.Close > ctx.EMA200
	short := ctx.RSI > 70 && ctx.Candle.Close < ctx.EMA200
	return long, short
}
