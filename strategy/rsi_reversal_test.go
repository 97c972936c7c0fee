package strategy

import (
	"testing"
	"time"

	"papertrader/execution"
	"papertrader/market"
)

func TestRSIReversal(t *testing.T) {
	ctx := &Context{StrategyID: "rsi-test"}
	base := time.Date(2024, 6, 3, 9, 15, 0, 0, time.UTC)

	tick := func(s *RSIReversal, i int, price float64) []execution.Order {
		return s.OnTick(ctx, market.Event{
			Symbol:    "NIFTY",
			Price:     price,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}

	t.Run("should stay quiet until period fills", func(t *testing.T) {
		s := NewRSIReversal(5, 1)
		for i := 0; i < 5; i++ {
			if orders := tick(s, i, 100+float64(i)); orders != nil {
				t.Fatalf("tick %d: expected no orders before period fills", i)
			}
		}
	})

	t.Run("should sell into a pure uptrend", func(t *testing.T) {
		s := NewRSIReversal(5, 3)
		var orders []execution.Order
		for i := 0; i < 10; i++ {
			orders = tick(s, i, 100+float64(i))
		}
		if len(orders) != 1 {
			t.Fatalf("expected 1 order at rsi 100, got %d", len(orders))
		}
		if orders[0].Side != execution.SideSell {
			t.Errorf("expected SELL at overbought, got %s", orders[0].Side)
		}
		if orders[0].Quantity != 3 {
			t.Errorf("expected qty 3, got %d", orders[0].Quantity)
		}
	})

	t.Run("should buy into a pure downtrend", func(t *testing.T) {
		s := NewRSIReversal(5, 1)
		var orders []execution.Order
		for i := 0; i < 10; i++ {
			orders = tick(s, i, 100-float64(i))
		}
		if len(orders) != 1 || orders[0].Side != execution.SideBuy {
			t.Fatalf("expected one BUY at oversold, got %v", orders)
		}
	})

	t.Run("should hold in a balanced market", func(t *testing.T) {
		s := NewRSIReversal(5, 1)
		for i := 0; i < 20; i++ {
			price := 100.0
			if i%2 == 1 {
				price = 101
			}
			if orders := tick(s, i, price); len(orders) != 0 {
				t.Fatalf("tick %d: balanced rsi must not trade", i)
			}
		}
	})

	t.Run("should apply defaults for bad constructor args", func(t *testing.T) {
		s := NewRSIReversal(0, 0)
		if s.Period != 14 || s.Qty != 1 {
			t.Errorf("expected defaults 14/1, got %d/%d", s.Period, s.Qty)
		}
		if s.Oversold != 30 || s.Overbought != 70 {
			t.Errorf("expected 30/70 thresholds, got %f/%f", s.Oversold, s.Overbought)
		}
	})
}
