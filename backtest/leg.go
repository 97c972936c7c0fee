package backtest

import "time"

// 退出原因。判定顺序固定：目标价 > 止损 > 追踪止损(点数) > 追踪止损(百分比) > 时间退出。
const (
	ExitReasonTarget        = "TARGET"
	ExitReasonStopLoss      = "STOP_LOSS"
	ExitReasonTrailingStop  = "TRAILING_STOP"
	ExitReasonTimeBased     = "TIME_BASED"
	ExitReasonEndOfBacktest = "END_OF_BACKTEST"
)

// LegConfig 一条策略腿的入场与退出规则配置。
// 除 Symbol/Side/Quantity 外均为可选；指针为 nil 表示未配置。
type LegConfig struct {
	Symbol                  string   `json:"symbol"`
	Side                    string   `json:"side"` // BUY / SELL
	Quantity                int64    `json:"quantity"`
	ExitTarget              *float64 `json:"exit_target,omitempty"`
	ExitStopLoss            *float64 `json:"exit_stop_loss,omitempty"`
	TrailingStopPoints      *float64 `json:"trailing_stop_points,omitempty"`
	TrailingStopPercent     *float64 `json:"trailing_stop_percent,omitempty"`
	PartialSquareOffPercent *float64 `json:"partial_square_off_percent,omitempty"` // 0–100
	TimeBasedExitMinutes    *int     `json:"time_based_exit_minutes,omitempty"`
}

// legState 一条已激活腿的运行时状态。
// 生命周期：首条该 symbol 行情入场（立即市价单，无条件入场）→
// 每条后续行情评估退出 → remaining 归零即退出 →
// 回测结束仍持有则以最后观察到的有利极值强制平仓。
type legState struct {
	LegConfig

	// seq 入场序号，入场/平仓订单 ID 都带上它，重复入场的腿互不混淆。
	seq int

	EntryPrice float64
	EntryTime  time.Time

	// 入场后观察到的最高/最低价，两个方向都跟踪（追踪止损对称）。
	HighestPrice float64
	LowestPrice  float64

	RemainingQuantity int64
	ExitPrice         float64
	ExitReason        string
	ExitTime          time.Time
}

func newLegState(cfg LegConfig, entryPrice float64, entryTime time.Time) *legState {
	return &legState{
		LegConfig:         cfg,
		EntryPrice:        entryPrice,
		EntryTime:         entryTime,
		HighestPrice:      entryPrice,
		LowestPrice:       entryPrice,
		RemainingQuantity: cfg.Quantity,
	}
}

func (l *legState) active() bool {
	return l.RemainingQuantity > 0
}

// updatePrice 刷新运行极值，追踪止损以此为基准。
func (l *legState) updatePrice(price float64) {
	if price > l.HighestPrice {
		l.HighestPrice = price
	}
	if price < l.LowestPrice {
		l.LowestPrice = price
	}
}

// shouldExit 按固定优先级评估退出条件，首个命中者生效。
// 返回 (是否退出, 原因, 退出价)。退出价恒为当前价：部分平仓百分比
// 只作为触发护栏（算出的数量必须 > 0），实际退出仍是全部剩余数量，
// 与原实现保持一致（见 DESIGN.md 的开放问题决议）。
func (l *legState) shouldExit(price float64, now time.Time) (bool, string, float64) {
	diff := price - l.EntryPrice
	if l.Side == "SELL" {
		diff = -diff
	}

	if l.ExitTarget != nil && diff >= *l.ExitTarget {
		exitQty := l.RemainingQuantity
		if l.PartialSquareOffPercent != nil {
			exitQty = int64(float64(l.RemainingQuantity) * (*l.PartialSquareOffPercent / 100.0))
		}
		if exitQty > 0 {
			return true, ExitReasonTarget, price
		}
	}

	if l.ExitStopLoss != nil && diff <= -*l.ExitStopLoss {
		return true, ExitReasonStopLoss, price
	}

	if l.TrailingStopPoints != nil {
		if l.Side == "BUY" && price <= l.HighestPrice-*l.TrailingStopPoints {
			return true, ExitReasonTrailingStop, price
		}
		if l.Side == "SELL" && price >= l.LowestPrice+*l.TrailingStopPoints {
			return true, ExitReasonTrailingStop, price
		}
	}

	if l.TrailingStopPercent != nil {
		if l.Side == "BUY" && price <= l.HighestPrice*(1-*l.TrailingStopPercent/100.0) {
			return true, ExitReasonTrailingStop, price
		}
		if l.Side == "SELL" && price >= l.LowestPrice*(1+*l.TrailingStopPercent/100.0) {
			return true, ExitReasonTrailingStop, price
		}
	}

	if l.TimeBasedExitMinutes != nil {
		elapsed := now.Sub(l.EntryTime).Minutes()
		if elapsed >= float64(*l.TimeBasedExitMinutes) {
			return true, ExitReasonTimeBased, price
		}
	}

	return false, "", 0
}

// pnl 以配置数量计算盈亏：BUY 腿 (exit-entry)*qty，SELL 腿取反。
func (l *legState) pnl(exitPrice float64) float64 {
	if l.Side == "SELL" {
		return (l.EntryPrice - exitPrice) * float64(l.Quantity)
	}
	return (exitPrice - l.EntryPrice) * float64(l.Quantity)
}

// forcedExitPrice 强制平仓参考价：多头取最高价、空头取最低价，
// 没有更新过极值时退回入场价。
func (l *legState) forcedExitPrice() float64 {
	if l.Side == "SELL" {
		return l.LowestPrice
	}
	return l.HighestPrice
}

// LegTrade 一条腿的完整回合记录，随回测结果返回。
type LegTrade struct {
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Quantity   int64     `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	ExitPrice  float64   `json:"exit_price"`
	ExitTime   time.Time `json:"exit_time"`
	ExitReason string    `json:"exit_reason"`
	PnL        float64   `json:"pnl"`
}
