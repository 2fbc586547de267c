package report

import (
	"fmt"
	"io"
	"sort"

	"perpsim/internal/models"
)

// Summary aggregates a simulation result for human consumption.
type Summary struct {
	TotalTrades  int
	Wins         int
	Losses       int
	WinRate      float64
	NetPnL       float64
	AvgWin       float64
	AvgLoss      float64
	ProfitFactor float64
	MaxDrawdown  float64
	TotalFunding float64
	TotalSlip    float64

	FinalCapital float64
	ReturnPct    float64

	RegimePnL   map[models.Regime]float64
	ExitReasons map[models.ExitReason]int
}

// Summarize computes the aggregate statistics of one run.
func Summarize(result *models.Result, initialCapital float64) Summary {
	s := Summary{
		RegimePnL:   make(map[models.Regime]float64),
		ExitReasons: make(map[models.ExitReason]int),
	}

	var grossWin, grossLoss float64
	for _, t := range result.Trades {
		s.TotalTrades++
		s.NetPnL += t.PnL
		s.TotalFunding += t.FundingCost
		s.TotalSlip += t.Slippage
		s.RegimePnL[t.RegimeAtExit] += t.PnL
		s.ExitReasons[t.ExitReason]++
		if t.PnL > 0 {
			s.Wins++
			grossWin += t.PnL
		} else {
			s.Losses++
			grossLoss -= t.PnL
		}
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalTrades)
	}
	if s.Wins > 0 {
		s.AvgWin = grossWin / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = grossLoss / float64(s.Losses)
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossWin / grossLoss
	}

	s.MaxDrawdown = maxDrawdown(result.EquityCurve)
	if n := len(result.EquityCurve); n > 0 {
		s.FinalCapital = result.EquityCurve[n-1]
	}
	if initialCapital > 0 {
		s.ReturnPct = (s.FinalCapital - initialCapital) / initialCapital
	}
	return s
}

// maxDrawdown is the largest peak-to-trough decline of the equity curve,
// expressed as a fraction of the peak.
func maxDrawdown(equity []float64) float64 {
	var peak, dd float64
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if d := (peak - v) / peak; d > dd {
				dd = d
			}
		}
	}
	return dd
}

// Render writes a fixed-width console report.
func (s Summary) Render(w io.Writer) {
	fmt.Fprintf(w, "Trades:        %d (%d wins / %d losses, %.1f%% win rate)\n",
		s.TotalTrades, s.Wins, s.Losses, s.WinRate*100)
	fmt.Fprintf(w, "Net PnL:       %.2f\n", s.NetPnL)
	fmt.Fprintf(w, "Final capital: %.2f (%.2f%%)\n", s.FinalCapital, s.ReturnPct*100)
	fmt.Fprintf(w, "Avg win/loss:  %.2f / %.2f (profit factor %.2f)\n", s.AvgWin, s.AvgLoss, s.ProfitFactor)
	fmt.Fprintf(w, "Max drawdown:  %.2f%%\n", s.MaxDrawdown*100)
	fmt.Fprintf(w, "Funding paid:  %.2f, entry slippage: %.2f\n", s.TotalFunding, s.TotalSlip)

	if len(s.ExitReasons) > 0 {
		fmt.Fprintf(w, "Exit reasons:\n")
		for _, reason := range sortedReasons(s.ExitReasons) {
			fmt.Fprintf(w, "  %-18s %d\n", reason, s.ExitReasons[reason])
		}
	}
	if len(s.RegimePnL) > 0 {
		fmt.Fprintf(w, "PnL by regime:\n")
		for _, r := range sortedRegimes(s.RegimePnL) {
			fmt.Fprintf(w, "  %-18s %.2f\n", r, s.RegimePnL[r])
		}
	}
}

func sortedReasons(m map[models.ExitReason]int) []models.ExitReason {
	keys := make([]models.ExitReason, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedRegimes(m map[models.Regime]float64) []models.Regime {
	keys := make([]models.Regime, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
