package strategy

import (
	"fmt"

	"papertrader/execution"
	"papertrader/market"
)

// RSIReversal RSI 反转策略：超卖买入、超买卖出。
// 阈值按惯例 30/70，可在构造时覆盖。
type RSIReversal struct {
	Period     int
	Qty        int64
	Oversold   float64
	Overbought float64

	prices []float64
}

func NewRSIReversal(period int, qty int64) *RSIReversal {
	if period <= 0 {
		period = 14
	}
	if qty <= 0 {
		qty = 1
	}
	return &RSIReversal{Period: period, Qty: qty, Oversold: 30, Overbought: 70}
}

func (s *RSIReversal) OnInit(_ *Context) {
	s.prices = s.prices[:0]
}

func (s *RSIReversal) OnTick(ctx *Context, event market.Event) []execution.Order {
	s.prices = append(s.prices, event.Price)
	// 保留 3 倍窗口，足够 Wilder 平滑收敛
	if max := s.Period * 3; len(s.prices) > max {
		s.prices = s.prices[len(s.prices)-max:]
	}

	if len(s.prices) <= s.Period {
		return nil
	}
	rsi := market.RSI(s.prices, s.Period)

	var side execution.OrderSide
	switch {
	case rsi <= s.Oversold:
		side = execution.SideBuy
	case rsi >= s.Overbought:
		side = execution.SideSell
	default:
		return nil
	}

	ts := event.Timestamp
	price := event.Price
	return []execution.Order{{
		ID:         fmt.Sprintf("RSI-%s-%d", ctx.StrategyID, event.Timestamp.UnixNano()),
		Symbol:     event.Symbol,
		Side:       side,
		Type:       execution.TypeMarket,
		Quantity:   s.Qty,
		Price:      &price,
		Timestamp:  &ts,
		StrategyID: ctx.StrategyID,
	}}
}

func (s *RSIReversal) OnSignal(_ *Context, _ map[string]any) []execution.Order {
	return nil
}
