package live

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"perpsim/internal/engine"
	"perpsim/internal/metrics"
	"perpsim/internal/models"
	"perpsim/internal/notify"
)

// Fetcher supplies the latest candles, ending with the still-forming bar.
type Fetcher interface {
	FetchLatest(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
}

// Options configures the polling loop.
type Options struct {
	Symbol       string
	Interval     string
	PollInterval time.Duration
	// FetchLimit is how many bars each poll requests. It must cover the
	// 200-bar indicator baseline so the very first poll can warm up.
	FetchLimit int
}

// Runner drives the simulator over live data. All simulator state is owned by
// the goroutine inside Run; status reads go through a request channel instead
// of a second timer touching shared state.
type Runner struct {
	sim      *engine.Simulator
	fetcher  Fetcher
	notifier notify.Notifier
	metrics  *metrics.Collectors
	opts     Options

	lastClose time.Time
	statusCh  chan chan engine.Status
	logger    zerolog.Logger
}

// NewRunner wires a live runner. notifier and collectors may be nil.
func NewRunner(sim *engine.Simulator, fetcher Fetcher, notifier notify.Notifier, collectors *metrics.Collectors, opts Options) *Runner {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Minute
	}
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = 400
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Runner{
		sim:      sim,
		fetcher:  fetcher,
		notifier: notifier,
		metrics:  collectors,
		opts:     opts,
		statusCh: make(chan chan engine.Status),
		logger:   log.With().Str("component", "live_runner").Logger(),
	}
}

// Run polls until the context is cancelled, then force-closes any open
// position at the latest seen price and returns the accumulated result. It
// must be called from exactly one goroutine.
func (r *Runner) Run(ctx context.Context) *models.Result {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.finalize()
			return r.sim.Result()
		case req := <-r.statusCh:
			req <- r.sim.Snapshot()
		case <-timer.C:
			r.iterate(ctx)
			timer.Reset(r.opts.PollInterval)
		}
	}
}

// Status requests a snapshot from the loop goroutine. It fails once the loop
// has stopped accepting requests.
func (r *Runner) Status(ctx context.Context) (engine.Status, error) {
	reply := make(chan engine.Status, 1)
	select {
	case r.statusCh <- reply:
	case <-ctx.Done():
		return engine.Status{}, ctx.Err()
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return engine.Status{}, ctx.Err()
	}
}

// iterate is one poll: fetch, trim the forming bar, feed unseen bars to the
// simulator. A failure or panic costs only this iteration, never the loop.
func (r *Runner) iterate(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Msg("recovered from iteration panic")
			r.countPollError()
		}
	}()

	candles, err := r.fetcher.FetchLatest(ctx, r.opts.Symbol, r.opts.Interval, r.opts.FetchLimit)
	if err != nil {
		r.logger.Warn().Err(err).Msg("fetch failed, retrying next poll")
		r.countPollError()
		return
	}
	if len(candles) < 2 {
		return
	}
	// The last bar is still forming; never evaluate signals on it.
	candles = candles[:len(candles)-1]

	for _, c := range candles {
		if !c.CloseTime.After(r.lastClose) {
			continue
		}
		tradesBefore := len(r.sim.Result().Trades)
		r.sim.Step(c)
		r.lastClose = c.CloseTime
		r.observe(tradesBefore)
	}
}

// observe publishes metrics and notifications after a step.
func (r *Runner) observe(tradesBefore int) {
	st := r.sim.Snapshot()
	if r.metrics != nil {
		r.metrics.Equity.Set(st.Capital)
		open := 0.0
		if st.Position != nil {
			open = 1
		}
		r.metrics.OpenPositions.Set(open)
	}

	if st.Trades == tradesBefore {
		return
	}
	trade, ok := r.sim.LastTrade()
	if !ok {
		return
	}
	if r.metrics != nil {
		r.metrics.TradesTotal.WithLabelValues(string(trade.ExitReason)).Inc()
	}
	r.notifier.Notify(fmt.Sprintf("%s %s closed (%s): pnl %.2f, capital %.2f",
		r.opts.Symbol, trade.Direction, trade.ExitReason, trade.PnL, st.Capital))
}

// finalize performs the graceful-shutdown close. It runs on the loop goroutine
// strictly after the last iteration, so it cannot race position state.
func (r *Runner) finalize() {
	tradesBefore := len(r.sim.Result().Trades)
	r.sim.Finalize(models.ExitManualShutdown)
	if len(r.sim.Result().Trades) > tradesBefore {
		trade, _ := r.sim.LastTrade()
		if r.metrics != nil {
			r.metrics.TradesTotal.WithLabelValues(string(trade.ExitReason)).Inc()
		}
		r.notifier.Notify(fmt.Sprintf("%s shutdown close: pnl %.2f", r.opts.Symbol, trade.PnL))
	}
	r.logger.Info().Float64("capital", r.sim.Capital()).Msg("live run finalized")
}

func (r *Runner) countPollError() {
	if r.metrics != nil {
		r.metrics.PollErrors.Inc()
	}
}
