package regime

import "perpsim/internal/models"

// Config holds the classification thresholds. They are tuning parameters, not
// constants baked into the detector.
type Config struct {
	Lookback    int     // bars of trailing price history
	SlopeOffset int     // how far back the comparison SMA window is shifted
	BullChange  float64 // minimum relative price change for a bull call
	BearChange  float64 // maximum (negative) relative change for a bear call
	SlopeUp     float64 // minimum SMA slope for a bull call
	SlopeDown   float64 // maximum (negative) SMA slope for a bear call
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		Lookback:    50,
		SlopeOffset: 5,
		BullChange:  0.10,
		BearChange:  -0.10,
		SlopeUp:     0.001,
		SlopeDown:   -0.001,
	}
}

// Detector classifies each bar into bull, bear or range using trailing price
// change and moving-average slope.
type Detector struct {
	cfg Config
}

// New creates a detector with the given thresholds.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Classify returns the regime at bar i. Bars inside the lookback warm-up are
// always range.
func (d *Detector) Classify(candles []models.Candle, i int) models.Regime {
	lb := d.cfg.Lookback
	if i < lb || i >= len(candles) {
		return models.Range
	}

	prev := candles[i-lb].Close
	if prev == 0 {
		return models.Range
	}
	priceChange := (candles[i].Close - prev) / prev

	recent := d.meanClose(candles, i)
	earlier := d.meanClose(candles, i-d.cfg.SlopeOffset)
	if earlier == 0 {
		return models.Range
	}
	smaSlope := (recent - earlier) / earlier

	switch {
	case priceChange > d.cfg.BullChange && smaSlope > d.cfg.SlopeUp:
		return models.Bull
	case priceChange < d.cfg.BearChange && smaSlope < d.cfg.SlopeDown:
		return models.Bear
	default:
		return models.Range
	}
}

// Series classifies every bar.
func (d *Detector) Series(candles []models.Candle) []models.Regime {
	out := make([]models.Regime, len(candles))
	for i := range candles {
		out[i] = d.Classify(candles, i)
	}
	return out
}

// meanClose is the average close over the trailing lookback window ending at
// bar i, clamped to the available history.
func (d *Detector) meanClose(candles []models.Candle, i int) float64 {
	start := i - d.cfg.Lookback + 1
	if start < 0 {
		start = 0
	}
	if i >= len(candles) || i < start {
		return 0
	}
	var sum float64
	for j := start; j <= i; j++ {
		sum += candles[j].Close
	}
	return sum / float64(i-start+1)
}
