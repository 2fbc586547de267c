package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"perpsim/internal/config"
	"perpsim/internal/engine"
	"perpsim/internal/market"
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

	log.Info().
		Str("symbol", cfg.Symbol).
		Str("interval", cfg.Interval).
		Str("mode", string(cfg.StrategyMode)).
		Time("start", cfg.StartDate).
		Time("end", cfg.EndDate).
		Msg("running batch simulation")

	client := market.NewClient(time.Duration(cfg.RequestTimeout) * time.Second)
	ctx := context.Background()

	candles, err := client.FetchRange(ctx, cfg.Symbol, cfg.Interval, cfg.StartDate, cfg.EndDate)
	if err != nil {
		log.Fatal().Err(err).Msg("fetching historical candles failed")
	}
	log.Info().Int("count", len(candles)).Msg("candles fetched")

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

	result, err := sim.Run(candles)
	if err != nil {
		log.Fatal().Err(err).Msg("simulation failed")
	}

	summary := report.Summarize(result, cfg.InitialCapital)
	fmt.Printf("\n=== %s %s [%s] ===\n", cfg.Symbol, cfg.Interval, cfg.StrategyMode)
	summary.Render(os.Stdout)

	if cfg.DatabaseURL != "" {
		db, err := store.New(cfg.DatabaseURL)
		if err != nil {
			log.Error().Err(err).Msg("connecting trade store failed")
			return
		}
		defer db.Close()

		runID := fmt.Sprintf("backtest-%s-%d", cfg.Symbol, time.Now().Unix())
		if err := db.SaveResult(runID, cfg.Symbol, result); err != nil {
			log.Error().Err(err).Msg("persisting result failed")
			return
		}
		log.Info().Str("run_id", runID).Int("trades", len(result.Trades)).Msg("result persisted")
	}
}
