package strategy

import (
	"math"
	"testing"

	"perpsim/internal/models"
)

// baseContext is a neutral, fully warmed-up context that no rule fires on.
// Tests override the handful of fields their setup needs.
func baseContext() Context {
	return Context{
		Candle:     models.Candle{Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000},
		PrevCandle: models.Candle{Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000},
		Index:      300,
		High20:     105,
		Low20:      95,
		ATR:        2.0,
		ATRMean:    2.0,
		RSI:        50,
		PrevRSI:    50,
		EMA20:      100,
		PrevEMA20:  100,
		EMA50:      100,
		EMA200:     100,
		Regime:     models.Range,
	}
}

func TestMeanReversion(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Context)
		wantLong  bool
		wantShort bool
	}{
		{
			name: "oversold above EMA200 goes long",
			mutate: func(c *Context) {
				c.RSI = 25
				c.Candle.Close = 110
			},
			wantLong: true,
		},
		{
			name: "overbought below EMA200 goes short",
			mutate: func(c *Context) {
				c.RSI = 75
				c.Candle.Close = 90
			},
			wantShort: true,
		},
		{
			name: "oversold below EMA200 stays flat",
			mutate: func(c *Context) {
				c.RSI = 25
				c.Candle.Close = 90
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := baseContext()
			tt.mutate(&ctx)
			sig := Evaluate(ModeMeanReversion, ctx)
			if sig.Long != tt.wantLong || sig.Short != tt.wantShort {
				t.Errorf("got long=%v short=%v, want long=%v short=%v",
					sig.Long, sig.Short, tt.wantLong, tt.wantShort)
			}
		})
	}
}

func TestMomentumBreakout(t *testing.T) {
	ctx := baseContext()
	ctx.Candle.Close = 106 // above the 20-bar high
	ctx.RSI = 60
	ctx.EMA200 = 100
	ctx.EMA20 = 102
	ctx.EMA50 = 101
	sig := Evaluate(ModeMomentum, ctx)
	if !sig.Long || sig.Short {
		t.Fatalf("breakout long: got long=%v short=%v", sig.Long, sig.Short)
	}

	// Mirror breakdown.
	ctx = baseContext()
	ctx.Candle.Close = 94
	ctx.RSI = 40
	ctx.EMA200 = 100
	ctx.EMA20 = 98
	ctx.EMA50 = 99
	sig = Evaluate(ModeMomentum, ctx)
	if sig.Long || !sig.Short {
		t.Fatalf("breakdown short: got long=%v short=%v", sig.Long, sig.Short)
	}

	// Breakout without fast/slow EMA alignment stays flat.
	ctx = baseContext()
	ctx.Candle.Close = 106
	ctx.RSI = 60
	ctx.EMA200 = 100
	ctx.EMA20, ctx.EMA50 = 99, 101
	sig = Evaluate(ModeMomentum, ctx)
	if sig.Long || sig.Short {
		t.Fatalf("signal fired without EMA alignment: long=%v short=%v", sig.Long, sig.Short)
	}
}

func TestPullbackNeedsRecoveringRSI(t *testing.T) {
	ctx := baseContext()
	ctx.Candle.Close = 101 // above EMA200=100, below EMA20=102
	ctx.EMA20 = 102
	ctx.EMA200 = 100
	ctx.RSI = 45
	ctx.PrevRSI = 42
	sig := Evaluate(ModePullback, ctx)
	if !sig.Long {
		t.Fatalf("pullback long did not fire")
	}

	ctx.PrevRSI = 48 // falling RSI: no recovery, no entry
	sig = Evaluate(ModePullback, ctx)
	if sig.Long {
		t.Fatalf("pullback long fired on falling RSI")
	}
}

func TestBearMarketSides(t *testing.T) {
	// Capitulation bounce wins over any short setup on the same bar.
	ctx := baseContext()
	ctx.RSI = 20
	ctx.PrevCandle.Close = 90
	ctx.Candle.Close = 91
	ctx.PrevCandle.Volume = 1000
	ctx.Candle.Volume = 2000
	ctx.Low20 = 92 // new low would also be a short setup
	ctx.EMA200 = 120
	sig := Evaluate(ModeBearMarket, ctx)
	if !sig.Long || sig.Short {
		t.Fatalf("bounce long: got long=%v short=%v", sig.Long, sig.Short)
	}

	// Overbought in a downtrend shorts.
	ctx = baseContext()
	ctx.RSI = 65
	ctx.Candle.Close = 90
	ctx.EMA200 = 100
	sig = Evaluate(ModeBearMarket, ctx)
	if !sig.Short {
		t.Fatalf("overbought-in-downtrend short did not fire")
	}

	// EMA20 breakdown shorts.
	ctx = baseContext()
	ctx.PrevCandle.Close = 100
	ctx.PrevEMA20 = 99
	ctx.Candle.Close = 95
	ctx.EMA20 = 96
	ctx.EMA200 = 110
	sig = Evaluate(ModeBearMarket, ctx)
	if !sig.Short {
		t.Fatalf("EMA20 breakdown short did not fire")
	}

	// Fresh 20-bar low shorts.
	ctx = baseContext()
	ctx.Candle.Close = 94
	ctx.Low20 = 95
	sig = Evaluate(ModeBearMarket, ctx)
	if !sig.Short {
		t.Fatalf("new-low breakdown short did not fire")
	}
}

func TestAdaptiveRegimeGating(t *testing.T) {
	// Bull regime: pullback long only.
	ctx := baseContext()
	ctx.Regime = models.Bull
	ctx.Candle.Close = 101
	ctx.EMA20 = 102
	ctx.EMA200 = 100
	ctx.RSI = 45
	ctx.PrevRSI = 42
	sig := Evaluate(ModeAdaptive, ctx)
	if !sig.Long || sig.Short {
		t.Fatalf("bull pullback: got long=%v short=%v", sig.Long, sig.Short)
	}

	// Bear regime: breakdown short.
	ctx = baseContext()
	ctx.Regime = models.Bear
	ctx.Candle.Close = 94
	ctx.Low20 = 95
	sig = Evaluate(ModeAdaptive, ctx)
	if !sig.Short {
		t.Fatalf("bear breakdown short did not fire")
	}

	// Bear regime: oversold bounce long beats the breakdown short.
	ctx = baseContext()
	ctx.Regime = models.Bear
	ctx.RSI = 20
	ctx.PrevCandle.Close = 90
	ctx.Candle.Close = 91
	ctx.Candle.Volume = 2000
	ctx.Low20 = 92
	sig = Evaluate(ModeAdaptive, ctx)
	if !sig.Long || sig.Short {
		t.Fatalf("bear bounce: got long=%v short=%v", sig.Long, sig.Short)
	}

	// Range regime: mean reversion.
	ctx = baseContext()
	ctx.Regime = models.Range
	ctx.RSI = 25
	ctx.Candle.Close = 110
	ctx.EMA200 = 100
	sig = Evaluate(ModeAdaptive, ctx)
	if !sig.Long {
		t.Fatalf("range mean-reversion long did not fire")
	}
}

func TestVolatilityGateSuppression(t *testing.T) {
	ctx := baseContext()
	ctx.RSI = 25
	ctx.Candle.Close = 110
	ctx.EMA200 = 100
	ctx.ATR = 1.0
	ctx.ATRMean = 2.0 // ATR is only 50% of its recent mean
	sig := Evaluate(ModeMeanReversion, ctx)
	if sig.Long || sig.Short {
		t.Fatalf("signal survived the volatility gate")
	}

	ctx.ATR = 1.7 // 85% of mean: gate opens
	sig = Evaluate(ModeMeanReversion, ctx)
	if !sig.Long {
		t.Fatalf("signal missing with sufficient volatility")
	}
}

func TestWarmupNeverSignals(t *testing.T) {
	ctx := baseContext()
	ctx.RSI = 25
	ctx.Candle.Close = 110
	ctx.EMA200 = 100
	ctx.Index = 199
	if sig := Evaluate(ModeMeanReversion, ctx); sig.Long || sig.Short {
		t.Fatalf("signal fired before the 200-bar baseline")
	}

	ctx.Index = 300
	ctx.EMA200 = math.NaN()
	if sig := Evaluate(ModeMeanReversion, ctx); sig.Long || sig.Short {
		t.Fatalf("signal fired on a NaN indicator")
	}
}

func TestMutualExclusionAcrossModes(t *testing.T) {
	modes := []Mode{ModeAdaptive, ModeMomentum, ModeMeanReversion, ModePullback, ModeBearMarket}
	contexts := []Context{}

	// Sweep a grid of contexts and assert no mode ever emits both sides.
	for _, close := range []float64{90, 94, 100, 101, 106, 110} {
		for _, rsi := range []float64{20, 45, 55, 65, 75} {
			for _, reg := range []models.Regime{models.Bull, models.Bear, models.Range} {
				ctx := baseContext()
				ctx.Candle.Close = close
				ctx.RSI = rsi
				ctx.Regime = reg
				contexts = append(contexts, ctx)
			}
		}
	}
	for _, mode := range modes {
		for _, ctx := range contexts {
			sig := Evaluate(mode, ctx)
			if sig.Long && sig.Short {
				t.Fatalf("mode %s emitted long and short together (close=%v rsi=%v regime=%v)",
					mode, ctx.Candle.Close, ctx.RSI, ctx.Regime)
			}
		}
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"adaptive", "momentum", "mean_reversion", "pullback", "bear_market"} {
		if _, err := ParseMode(s); err != nil {
			t.Errorf("ParseMode(%q) unexpected error: %v", s, err)
		}
	}
	if _, err := ParseMode("martingale"); err == nil {
		t.Errorf("ParseMode accepted an unknown mode")
	}
}
