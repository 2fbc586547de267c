package report

import (
	"math"
	"strings"
	"testing"

	"perpsim/internal/models"
)

func TestSummarize(t *testing.T) {
	result := &models.Result{
		Trades: []models.Trade{
			{PnL: 100, FundingCost: 2, Slippage: 1, RegimeAtExit: models.Bull, ExitReason: models.ExitProfitProtection},
			{PnL: -50, FundingCost: 1, Slippage: 1, RegimeAtExit: models.Range, ExitReason: models.ExitInitialStop},
			{PnL: 30, FundingCost: 0, Slippage: 0.5, RegimeAtExit: models.Bull, ExitReason: models.ExitEndOfData},
		},
		EquityCurve: []float64{1000, 1100, 1050, 1080},
	}

	s := Summarize(result, 1000)
	if s.TotalTrades != 3 || s.Wins != 2 || s.Losses != 1 {
		t.Fatalf("counts = %d/%d/%d", s.TotalTrades, s.Wins, s.Losses)
	}
	if math.Abs(s.WinRate-2.0/3.0) > 1e-12 {
		t.Errorf("win rate = %v", s.WinRate)
	}
	if s.NetPnL != 80 {
		t.Errorf("net pnl = %v, want 80", s.NetPnL)
	}
	if math.Abs(s.ProfitFactor-130.0/50.0) > 1e-12 {
		t.Errorf("profit factor = %v", s.ProfitFactor)
	}
	if math.Abs(s.MaxDrawdown-50.0/1100.0) > 1e-12 {
		t.Errorf("max drawdown = %v", s.MaxDrawdown)
	}
	if s.RegimePnL[models.Bull] != 130 {
		t.Errorf("bull pnl = %v", s.RegimePnL[models.Bull])
	}
	if s.ExitReasons[models.ExitInitialStop] != 1 {
		t.Errorf("initial_stop count = %d", s.ExitReasons[models.ExitInitialStop])
	}
	if math.Abs(s.ReturnPct-0.08) > 1e-12 {
		t.Errorf("return = %v, want 0.08", s.ReturnPct)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(&models.Result{}, 1000)
	if s.TotalTrades != 0 || s.WinRate != 0 || s.ProfitFactor != 0 {
		t.Fatalf("empty summary not zeroed: %+v", s)
	}
}

func TestRenderMentionsKeyFigures(t *testing.T) {
	result := &models.Result{
		Trades:      []models.Trade{{PnL: 10, RegimeAtExit: models.Range, ExitReason: models.ExitProfitProtection}},
		EquityCurve: []float64{1000, 1010},
	}
	var sb strings.Builder
	Summarize(result, 1000).Render(&sb)
	out := sb.String()
	for _, want := range []string{"Trades:", "Net PnL:", "Max drawdown:", "profit_protection", "range"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}
