package indicators

import (
	"math"

	"perpsim/internal/models"
)

// All series here are strictly causal: the value at index i depends only on
// candles[0..i]. Warm-up entries are NaN and must never gate a trade.

// ATR returns the Average True Range series. True range is the greatest of
// high-low, |high-prevClose| and |low-prevClose|; ATR[i] is the simple mean of
// the trailing `period` true ranges, defined for i >= period.
func ATR(candles []models.Candle, period int) []float64 {
	out := nanSeries(len(candles))
	if len(candles) < 2 || period < 1 {
		return out
	}

	tr := make([]float64, len(candles))
	for i := 1; i < len(candles); i++ {
		highLow := candles[i].High - candles[i].Low
		highPrevClose := math.Abs(candles[i].High - candles[i-1].Close)
		lowPrevClose := math.Abs(candles[i].Low - candles[i-1].Close)
		tr[i] = math.Max(highLow, math.Max(highPrevClose, lowPrevClose))
	}

	var sum float64
	for i := 1; i < len(candles); i++ {
		sum += tr[i]
		if i > period {
			sum -= tr[i-period]
		}
		if i >= period {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// ATRAt returns the ATR value for a single bar index, same semantics as the
// series form. Used on streaming appends where only the newest bar is missing.
func ATRAt(candles []models.Candle, i, period int) float64 {
	if i < period || i >= len(candles) || period < 1 {
		return math.NaN()
	}
	var sum float64
	for j := i - period + 1; j <= i; j++ {
		highLow := candles[j].High - candles[j].Low
		highPrevClose := math.Abs(candles[j].High - candles[j-1].Close)
		lowPrevClose := math.Abs(candles[j].Low - candles[j-1].Close)
		sum += math.Max(highLow, math.Max(highPrevClose, lowPrevClose))
	}
	return sum / float64(period)
}

// RSI returns the Relative Strength Index series over trailing one-bar close
// changes, defined for i >= period. A zero average loss is RSI=100, not a
// division fault.
func RSI(candles []models.Candle, period int) []float64 {
	out := nanSeries(len(candles))
	if len(candles) < period+1 || period < 1 {
		return out
	}

	for i := period; i < len(candles); i++ {
		var gains, losses float64
		for j := i - period + 1; j <= i; j++ {
			change := candles[j].Close - candles[j-1].Close
			if change > 0 {
				gains += change
			} else {
				losses -= change
			}
		}
		avgGain := gains / float64(period)
		avgLoss := losses / float64(period)

		if avgLoss == 0 {
			out[i] = 100.0
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100.0 - (100.0 / (1.0 + rs))
	}
	return out
}

// RSIAt returns the RSI value for a single bar index, same semantics as the
// series form.
func RSIAt(candles []models.Candle, i, period int) float64 {
	if i < period || i >= len(candles) || period < 1 {
		return math.NaN()
	}
	var gains, losses float64
	for j := i - period + 1; j <= i; j++ {
		change := candles[j].Close - candles[j-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// EMAState is a running exponential-average accumulator: an explicit fold over
// closes instead of recomputation, O(1) per bar.
type EMAState struct {
	k      float64
	value  float64
	seeded bool
}

// NewEMAState creates an accumulator with smoothing 2/(period+1).
func NewEMAState(period int) *EMAState {
	return &EMAState{k: 2.0 / float64(period+1)}
}

// Update folds the next close into the average and returns the new value.
// The first close seeds the average.
func (e *EMAState) Update(close float64) float64 {
	if !e.seeded {
		e.value = close
		e.seeded = true
		return e.value
	}
	e.value = (close-e.value)*e.k + e.value
	return e.value
}

// Value returns the current average, NaN before the first update.
func (e *EMAState) Value() float64 {
	if !e.seeded {
		return math.NaN()
	}
	return e.value
}

// EMA returns the exponential moving average series, seeded with the first
// close and defined for every bar after it.
func EMA(candles []models.Candle, period int) []float64 {
	out := nanSeries(len(candles))
	state := NewEMAState(period)
	for i, c := range candles {
		out[i] = state.Update(c.Close)
	}
	return out
}

// TrailingMean returns the arithmetic mean of values[i-window+1..i], clamped
// to the available range, skipping NaN entries. NaN when nothing valid is in
// range.
func TrailingMean(values []float64, i, window int) float64 {
	start := i - window + 1
	if start < 0 {
		start = 0
	}
	var sum float64
	var n int
	for j := start; j <= i && j < len(values); j++ {
		if math.IsNaN(values[j]) {
			continue
		}
		sum += values[j]
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
