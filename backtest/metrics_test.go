package backtest

import (
	"math"
	"testing"
	"time"

	"papertrader/execution"
	"papertrader/portfolio"
)

func curveOf(balances ...float64) []EquityPoint {
	curve := make([]EquityPoint, len(balances))
	for i, b := range balances {
		curve[i] = EquityPoint{
			Timestamp:   btStart.Add(time.Duration(i) * time.Minute),
			CashBalance: b,
		}
	}
	return curve
}

func TestCalculateMetrics(t *testing.T) {
	t.Run("should compute return and counts", func(t *testing.T) {
		res := &Result{
			Config:     Config{InitialCapital: 1_000_000},
			FinalState: portfolio.NewAccountState(1_050_000),
			Trades: []execution.OrderResult{
				{Status: execution.StatusFilled},
				{Status: execution.StatusFilled},
				{Status: execution.StatusRejected},
				{Status: execution.StatusPending},
			},
			Legs: []LegTrade{
				{PnL: 60},
				{PnL: -20},
				{PnL: 0},
			},
			EquityCurve: curveOf(1_000_000, 1_050_000),
		}

		m := CalculateMetrics(res)

		if math.Abs(m.TotalReturn-0.05) > 1e-9 {
			t.Errorf("expected return 0.05, got %f", m.TotalReturn)
		}
		if m.FinalEquity != 1_050_000 {
			t.Errorf("expected final equity 1050000, got %f", m.FinalEquity)
		}
		if m.TradeCount != 4 || m.FilledCount != 2 || m.RejectedCount != 1 {
			t.Errorf("counts mismatch: trades=%d filled=%d rejected=%d", m.TradeCount, m.FilledCount, m.RejectedCount)
		}
		if m.LegCount != 3 || m.WinningLegs != 1 {
			t.Errorf("leg counts mismatch: legs=%d winning=%d", m.LegCount, m.WinningLegs)
		}
	})

	t.Run("should skip return when initial capital is zero", func(t *testing.T) {
		res := &Result{
			Config:     Config{},
			FinalState: portfolio.NewAccountState(1_000_000),
		}
		if m := CalculateMetrics(res); m.TotalReturn != 0 {
			t.Errorf("expected zero return, got %f", m.TotalReturn)
		}
	})
}

func TestMaxDrawdownPct(t *testing.T) {
	t.Run("should be zero for monotonically rising curve", func(t *testing.T) {
		if dd := maxDrawdownPct(curveOf(100, 110, 120)); dd != 0 {
			t.Errorf("expected 0, got %f", dd)
		}
	})

	t.Run("should measure the deepest drop from peak", func(t *testing.T) {
		dd := maxDrawdownPct(curveOf(100, 120, 90, 110, 99))
		if math.Abs(dd-25) > 1e-9 {
			t.Errorf("expected 25%% drawdown from 120 to 90, got %f", dd)
		}
	})

	t.Run("should be zero for empty curve", func(t *testing.T) {
		if dd := maxDrawdownPct(nil); dd != 0 {
			t.Errorf("expected 0, got %f", dd)
		}
	})
}

func TestSharpeRatio(t *testing.T) {
	t.Run("should be zero for short or flat curves", func(t *testing.T) {
		if s := sharpeRatio(curveOf(100)); s != 0 {
			t.Errorf("single point: expected 0, got %f", s)
		}
		if s := sharpeRatio(curveOf(100, 100, 100)); s != 0 {
			t.Errorf("flat curve: expected 0, got %f", s)
		}
	})

	t.Run("should be positive when returns are mostly positive", func(t *testing.T) {
		if s := sharpeRatio(curveOf(100, 102, 104, 103, 106)); s <= 0 {
			t.Errorf("expected positive sharpe, got %f", s)
		}
	})

	t.Run("should be negative when returns are mostly negative", func(t *testing.T) {
		if s := sharpeRatio(curveOf(100, 98, 96, 97, 94)); s >= 0 {
			t.Errorf("expected negative sharpe, got %f", s)
		}
	})
}
