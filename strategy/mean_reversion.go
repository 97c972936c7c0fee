package strategy

import (
	"fmt"

	"papertrader/execution"
	"papertrader/market"
)

// MeanReversion 均值回归示例策略：价格偏离滚动均值 ±0.5% 时反向下单。
type MeanReversion struct {
	Lookback int
	Qty      int64

	prices []float64
}

func NewMeanReversion(lookback int, qty int64) *MeanReversion {
	if lookback <= 0 {
		lookback = 20
	}
	if qty <= 0 {
		qty = 1
	}
	return &MeanReversion{Lookback: lookback, Qty: qty}
}

func (s *MeanReversion) OnInit(_ *Context) {
	s.prices = s.prices[:0]
}

func (s *MeanReversion) OnTick(ctx *Context, event market.Event) []execution.Order {
	s.prices = append(s.prices, event.Price)
	if len(s.prices) > s.Lookback {
		s.prices = s.prices[len(s.prices)-s.Lookback:]
	}
	if len(s.prices) < s.Lookback {
		return nil
	}

	sum := 0.0
	for _, p := range s.prices {
		sum += p
	}
	avg := sum / float64(len(s.prices))

	var side execution.OrderSide
	switch {
	case event.Price < avg*0.995:
		side = execution.SideBuy
	case event.Price > avg*1.005:
		side = execution.SideSell
	default:
		return nil
	}

	ts := event.Timestamp
	price := event.Price
	return []execution.Order{{
		ID:         fmt.Sprintf("MR-%s-%d", ctx.StrategyID, event.Timestamp.UnixNano()),
		Symbol:     event.Symbol,
		Side:       side,
		Type:       execution.TypeMarket,
		Quantity:   s.Qty,
		Price:      &price,
		Timestamp:  &ts,
		StrategyID: ctx.StrategyID,
	}}
}

func (s *MeanReversion) OnSignal(_ *Context, _ map[string]any) []execution.Order {
	return nil
}
