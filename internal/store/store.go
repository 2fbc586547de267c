package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"perpsim/internal/models"
)

// DB persists the trade ledger and equity snapshots.
type DB struct {
	*sql.DB
}

// New opens a PostgreSQL connection and makes sure the schema exists.
func New(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &DB{db}, nil
}

// createTables creates the necessary tables if they don't exist.
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			direction TEXT NOT NULL,
			entry_time TIMESTAMPTZ NOT NULL,
			exit_time TIMESTAMPTZ NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			exit_price DOUBLE PRECISION NOT NULL,
			bars_held INT NOT NULL,
			pnl DOUBLE PRECISION NOT NULL,
			return_pct DOUBLE PRECISION NOT NULL,
			exit_reason TEXT NOT NULL,
			regime_at_exit TEXT NOT NULL,
			funding_cost DOUBLE PRECISION NOT NULL,
			slippage DOUBLE PRECISION NOT NULL,
			max_profit_atr DOUBLE PRECISION NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS equity_snapshots (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			bar_index INT NOT NULL,
			capital DOUBLE PRECISION NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

// SaveResult appends all trades and the final equity point of a run.
func (db *DB) SaveResult(runID, symbol string, result *models.Result) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO trades (
			run_id, symbol, direction, entry_time, exit_time,
			entry_price, exit_price, bars_held, pnl, return_pct,
			exit_reason, regime_at_exit, funding_cost, slippage, max_profit_atr
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range result.Trades {
		if _, err := stmt.Exec(
			runID, symbol, string(t.Direction), t.EntryTime, t.ExitTime,
			t.EntryPrice, t.ExitPrice, t.BarsHeld, t.PnL, t.ReturnPct,
			string(t.ExitReason), string(t.RegimeAtExit), t.FundingCost, t.Slippage, t.MaxProfitATR,
		); err != nil {
			return fmt.Errorf("inserting trade: %w", err)
		}
	}

	if n := len(result.EquityCurve); n > 0 {
		if _, err := tx.Exec(`
			INSERT INTO equity_snapshots (run_id, symbol, bar_index, capital, recorded_at)
			VALUES ($1,$2,$3,$4,$5)
		`, runID, symbol, n-1, result.EquityCurve[n-1], time.Now().UTC()); err != nil {
			return fmt.Errorf("inserting equity snapshot: %w", err)
		}
	}

	return tx.Commit()
}
