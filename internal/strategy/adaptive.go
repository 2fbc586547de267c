package strategy

import "perpsim/internal/models"

// adaptiveRule is the default mode: a regime-gated union of the sub-rules.
// Bull regimes take pullback longs, bear regimes take breakdown shorts and
// capitulation-bounce longs, range regimes fall back to mean reversion.
func adaptiveRule(ctx Context) (bool, bool) {
	switch ctx.Regime {
	case models.Bull:
		long, _ := pullbackRule(ctx)
		return long, false
	case models.Bear:
		if bearOversoldBounce(ctx) {
			return true, false
		}
		return false, bearBreakdown(ctx)
	default:
		return meanReversionRule(ctx)
	}
}
