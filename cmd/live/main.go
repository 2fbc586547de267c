package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"perpsim/internal/config"
	"perpsim/internal/engine"
	"perpsim/internal/live"
	"perpsim/internal/market"
	"perpsim/internal/metrics"
	"perpsim/internal/notify"
	"perpsim/internal/regime"
	"perpsim/internal/report"
	"perpsim/internal/risk"
	"perpsim/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	lvl, _ := zerolog.ParseLevel(cfg.LogLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := market.NewClient(time.Duration(cfg.RequestTimeout) * time.Second)

	params := risk.DefaultParams()
	params.BaseSlippage = cfg.BaseSlippage
	params.FundingRate = cfg.FundingRate
	params.FeeRate = cfg.FeeRate

	sim := engine.New(engine.Config{
		Symbol:          cfg.Symbol,
		Mode:            cfg.StrategyMode,
		InitialCapital:  cfg.InitialCapital,
		Leverage:        cfg.Leverage,
		UseRegimeSizing: cfg.UseRegimeSizing,
	}, risk.NewModel(params), regime.New(regime.DefaultConfig()), log.Logger)

	var notifier notify.Notifier = notify.Nop{}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Fatal().Err(err).Msg("telegram notifier setup failed")
		}
		notifier = tg
	}

	var collectors *metrics.Collectors
	if cfg.MetricsAddr != "" {
		collectors = metrics.NewCollectors()
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", collectors.Handler())
			log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics endpoint up")
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	runner := live.NewRunner(sim, client, notifier, collectors, live.Options{
		Symbol:       cfg.Symbol,
		Interval:     cfg.Interval,
		PollInterval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		FetchLimit:   cfg.FetchLimit,
	})

	// Periodic status logging goes through the runner's snapshot channel, so
	// the loop goroutine stays the only owner of position state.
	go logStatus(ctx, runner)

	log.Info().
		Str("symbol", cfg.Symbol).
		Str("interval", cfg.Interval).
		Str("mode", string(cfg.StrategyMode)).
		Int("poll_seconds", cfg.PollIntervalSeconds).
		Msg("live polling started")

	result := runner.Run(ctx)

	summary := report.Summarize(result, cfg.InitialCapital)
	fmt.Printf("\n=== %s %s [%s] live session ===\n", cfg.Symbol, cfg.Interval, cfg.StrategyMode)
	summary.Render(os.Stdout)

	if cfg.DatabaseURL != "" {
		db, err := store.New(cfg.DatabaseURL)
		if err != nil {
			log.Error().Err(err).Msg("connecting trade store failed")
			return
		}
		defer db.Close()

		runID := fmt.Sprintf("live-%s-%d", cfg.Symbol, time.Now().Unix())
		if err := db.SaveResult(runID, cfg.Symbol, result); err != nil {
			log.Error().Err(err).Msg("persisting result failed")
		}
	}
}

func logStatus(ctx context.Context, runner *live.Runner) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st, err := runner.Status(ctx)
			if err != nil {
				return
			}
			evt := log.Info().
				Int("bars", st.Bars).
				Float64("capital", st.Capital).
				Int("trades", st.Trades)
			if st.Position != nil {
				evt = evt.
					Str("direction", string(st.Position.Direction)).
					Float64("entry", st.Position.EntryPrice).
					Float64("stop", st.Position.TrailingStop)
			}
			evt.Msg("status")
		}
	}
}
