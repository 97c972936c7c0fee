package backtest

import (
	"math"

	"papertrader/execution"
)

// Metrics 在 Result 的原始序列之上计算的汇总指标，
// 供 API 层展示；不属于模拟核心。
type Metrics struct {
	TotalReturn    float64 `json:"total_return"`
	FinalEquity    float64 `json:"final_equity"`
	TradeCount     int     `json:"trade_count"`
	FilledCount    int     `json:"filled_count"`
	RejectedCount  int     `json:"rejected_count"`
	LegCount       int     `json:"leg_count"`
	WinningLegs    int     `json:"winning_legs"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
}

// CalculateMetrics 从回测结果计算汇总指标。
// 夏普比率基于逐样本收益率，不做年化（采样间隔由数据源决定）。
func CalculateMetrics(result *Result) Metrics {
	m := Metrics{
		TradeCount:  len(result.Trades),
		LegCount:    len(result.Legs),
		FinalEquity: result.FinalState.CashBalance,
	}

	if result.Config.InitialCapital > 0 {
		m.TotalReturn = (m.FinalEquity - result.Config.InitialCapital) / result.Config.InitialCapital
	}

	for _, tr := range result.Trades {
		switch tr.Status {
		case execution.StatusFilled:
			m.FilledCount++
		case execution.StatusRejected:
			m.RejectedCount++
		}
	}

	for _, leg := range result.Legs {
		if leg.PnL > 0 {
			m.WinningLegs++
		}
	}

	m.MaxDrawdownPct = maxDrawdownPct(result.EquityCurve)
	m.SharpeRatio = sharpeRatio(result.EquityCurve)
	return m
}

func maxDrawdownPct(curve []EquityPoint) float64 {
	peak := math.Inf(-1)
	maxDD := 0.0
	for _, pt := range curve {
		if pt.CashBalance > peak {
			peak = pt.CashBalance
		}
		if peak > 0 {
			dd := (peak - pt.CashBalance) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func sharpeRatio(curve []EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].CashBalance
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].CashBalance-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, ret := range returns {
		mean += ret
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, ret := range returns {
		variance += (ret - mean) * (ret - mean)
	}
	variance /= float64(len(returns) - 1)

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std
}
