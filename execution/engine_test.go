package execution

import (
	"testing"
	"time"

	"papertrader/market"
	"papertrader/portfolio"
)

func newTestEngine() *Engine {
	return NewEngine(portfolio.NewManager(portfolio.NewAccountState(1_000_000)))
}

func ptr(v float64) *float64 { return &v }

func TestEngine_SubmitOrder(t *testing.T) {
	t.Run("should fill market order at current price", func(t *testing.T) {
		e := newTestEngine()

		res := e.SubmitOrder(Order{
			ID: "O-1", Symbol: "RELIANCE", Side: SideBuy, Type: TypeMarket, Quantity: 10,
		}, 2500)

		if res.Status != StatusFilled {
			t.Fatalf("expected FILLED, got %s (%s)", res.Status, res.Message)
		}
		if len(res.Fills) != 1 {
			t.Fatalf("expected exactly one fill, got %d", len(res.Fills))
		}
		if res.Fills[0].FillPrice != 2500 {
			t.Errorf("expected fill at 2500, got %f", res.Fills[0].FillPrice)
		}
		if res.Fills[0].Quantity != 10 {
			t.Errorf("expected full quantity 10, got %d", res.Fills[0].Quantity)
		}
		if got := e.Portfolio().State().CashBalance; got != 975_000 {
			t.Errorf("expected cash 975000, got %f", got)
		}
	})

	t.Run("should reject zero or negative quantity", func(t *testing.T) {
		e := newTestEngine()

		for _, qty := range []int64{0, -5} {
			res := e.SubmitOrder(Order{
				ID: "O-bad", Symbol: "X", Side: SideBuy, Type: TypeMarket, Quantity: qty,
			}, 100)
			if res.Status != StatusRejected {
				t.Errorf("qty=%d: expected REJECTED, got %s", qty, res.Status)
			}
			if len(res.Fills) != 0 {
				t.Errorf("qty=%d: expected no fills, got %d", qty, len(res.Fills))
			}
		}
		if e.PendingCount() != 0 {
			t.Errorf("rejected orders must not enter the book, pending=%d", e.PendingCount())
		}
	})

	t.Run("should park limit buy below market", func(t *testing.T) {
		e := newTestEngine()

		res := e.SubmitOrder(Order{
			ID: "O-2", Symbol: "X", Side: SideBuy, Type: TypeLimit, Quantity: 10, Price: ptr(95),
		}, 100)

		if res.Status != StatusPending {
			t.Fatalf("expected PENDING, got %s", res.Status)
		}
		if e.PendingCount() != 1 {
			t.Errorf("expected 1 pending order, got %d", e.PendingCount())
		}
		if got := e.Portfolio().State().CashBalance; got != 1_000_000 {
			t.Errorf("pending order must not touch cash, got %f", got)
		}

		fills := e.ProcessMarketData(market.Event{Symbol: "X", Price: 94, Timestamp: time.Now()})
		if len(fills) != 1 {
			t.Fatalf("expected fill once market crosses the limit, got %d", len(fills))
		}
		if fills[0].Fills[0].FillPrice != 95 {
			t.Errorf("limit fills at limit price, got %f", fills[0].Fills[0].FillPrice)
		}
	})

	t.Run("should fill limit buy at limit price when marketable", func(t *testing.T) {
		e := newTestEngine()

		res := e.SubmitOrder(Order{
			ID: "O-3", Symbol: "X", Side: SideBuy, Type: TypeLimit, Quantity: 10, Price: ptr(105),
		}, 100)

		if res.Status != StatusFilled {
			t.Fatalf("expected FILLED, got %s", res.Status)
		}
		if res.Fills[0].FillPrice != 105 {
			t.Errorf("limit orders fill at the limit price, got %f", res.Fills[0].FillPrice)
		}
	})

	t.Run("should fill limit sell at limit price when market above", func(t *testing.T) {
		e := newTestEngine()

		res := e.SubmitOrder(Order{
			ID: "O-4", Symbol: "X", Side: SideSell, Type: TypeLimit, Quantity: 5, Price: ptr(98),
		}, 100)

		if res.Status != StatusFilled {
			t.Fatalf("expected FILLED, got %s", res.Status)
		}
		if res.Fills[0].FillPrice != 98 {
			t.Errorf("expected fill at limit 98, got %f", res.Fills[0].FillPrice)
		}
	})

	t.Run("should park stop buy until trigger then fill at market", func(t *testing.T) {
		e := newTestEngine()

		res := e.SubmitOrder(Order{
			ID: "O-5", Symbol: "X", Side: SideBuy, Type: TypeStop, Quantity: 10, Price: ptr(110),
		}, 100)
		if res.Status != StatusPending {
			t.Fatalf("expected PENDING below trigger, got %s", res.Status)
		}

		fills := e.ProcessMarketData(market.Event{Symbol: "X", Price: 112, Timestamp: time.Now()})
		if len(fills) != 1 {
			t.Fatalf("expected 1 fill on trigger, got %d", len(fills))
		}
		if fills[0].Fills[0].FillPrice != 112 {
			t.Errorf("stop orders fill at market price, got %f", fills[0].Fills[0].FillPrice)
		}
		if e.PendingCount() != 0 {
			t.Errorf("filled order must leave the book, pending=%d", e.PendingCount())
		}
	})

	t.Run("should fill stop sell when market at or below trigger", func(t *testing.T) {
		e := newTestEngine()

		res := e.SubmitOrder(Order{
			ID: "O-6", Symbol: "X", Side: SideSell, Type: TypeStop, Quantity: 10, Price: ptr(95),
		}, 95)
		if res.Status != StatusFilled {
			t.Fatalf("expected immediate fill at trigger, got %s", res.Status)
		}
		if res.Fills[0].FillPrice != 95 {
			t.Errorf("expected fill at market 95, got %f", res.Fills[0].FillPrice)
		}
	})

	t.Run("should use order timestamp on fills when provided", func(t *testing.T) {
		e := newTestEngine()
		ts := time.Date(2024, 6, 1, 9, 15, 0, 0, time.UTC)

		res := e.SubmitOrder(Order{
			ID: "O-7", Symbol: "X", Side: SideBuy, Type: TypeMarket, Quantity: 1, Timestamp: &ts,
		}, 100)

		if !res.Fills[0].Timestamp.Equal(ts) {
			t.Errorf("expected fill timestamp %v, got %v", ts, res.Fills[0].Timestamp)
		}
	})
}

func TestEngine_ProcessMarketData(t *testing.T) {
	t.Run("should only match orders for the event symbol", func(t *testing.T) {
		e := newTestEngine()

		e.SubmitOrder(Order{ID: "A", Symbol: "AAA", Side: SideBuy, Type: TypeLimit, Quantity: 1, Price: ptr(90)}, 100)
		e.SubmitOrder(Order{ID: "B", Symbol: "BBB", Side: SideBuy, Type: TypeLimit, Quantity: 1, Price: ptr(90)}, 100)

		results := e.ProcessMarketData(market.Event{Symbol: "AAA", Price: 85, Timestamp: time.Now()})
		if len(results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(results))
		}
		if results[0].Order.ID != "A" {
			t.Errorf("expected order A to fill, got %s", results[0].Order.ID)
		}
		if e.PendingCount() != 1 {
			t.Errorf("order B must stay pending, pending=%d", e.PendingCount())
		}
	})

	t.Run("should match pending orders in insertion order", func(t *testing.T) {
		e := newTestEngine()

		for _, id := range []string{"first", "second", "third"} {
			e.SubmitOrder(Order{ID: id, Symbol: "X", Side: SideBuy, Type: TypeLimit, Quantity: 1, Price: ptr(90)}, 100)
		}

		results := e.ProcessMarketData(market.Event{Symbol: "X", Price: 80, Timestamp: time.Now()})
		if len(results) != 3 {
			t.Fatalf("expected 3 fills, got %d", len(results))
		}
		for i, want := range []string{"first", "second", "third"} {
			if results[i].Order.ID != want {
				t.Errorf("position %d: expected %s, got %s", i, want, results[i].Order.ID)
			}
		}
	})

	t.Run("should keep untriggered orders indefinitely", func(t *testing.T) {
		e := newTestEngine()
		e.SubmitOrder(Order{ID: "O", Symbol: "X", Side: SideBuy, Type: TypeLimit, Quantity: 1, Price: ptr(50)}, 100)

		for i := 0; i < 10; i++ {
			if res := e.ProcessMarketData(market.Event{Symbol: "X", Price: 100, Timestamp: time.Now()}); len(res) != 0 {
				t.Fatalf("tick %d: expected no fill, got %d", i, len(res))
			}
		}
		if e.PendingCount() != 1 {
			t.Errorf("order must never expire, pending=%d", e.PendingCount())
		}
	})
}

func TestEngine_Reset(t *testing.T) {
	t.Run("should behave like a fresh engine after reset", func(t *testing.T) {
		e := newTestEngine()
		e.SubmitOrder(Order{ID: "P", Symbol: "X", Side: SideBuy, Type: TypeLimit, Quantity: 1, Price: ptr(50)}, 100)

		e.Reset(portfolio.NewAccountState(portfolio.DefaultInitialCapital))

		if e.PendingCount() != 0 {
			t.Errorf("expected empty book after reset, got %d", e.PendingCount())
		}

		res := e.SubmitOrder(Order{ID: "Q", Symbol: "X", Side: SideBuy, Type: TypeMarket, Quantity: 10}, 100)
		if res.Status != StatusFilled {
			t.Fatalf("expected FILLED, got %s", res.Status)
		}
		want := portfolio.DefaultInitialCapital - 1000
		if got := e.Portfolio().State().CashBalance; got != want {
			t.Errorf("expected cash %f, got %f", want, got)
		}
	})

	t.Run("should leave account untouched when state is nil", func(t *testing.T) {
		e := newTestEngine()
		e.SubmitOrder(Order{ID: "P", Symbol: "X", Side: SideBuy, Type: TypeMarket, Quantity: 10}, 100)

		e.Reset(nil)

		if got := e.Portfolio().State().CashBalance; got != 999_000 {
			t.Errorf("nil reset must not touch cash, got %f", got)
		}
	})
}

func TestOrderResult_AvgFillPrice(t *testing.T) {
	t.Run("should return false with no fills", func(t *testing.T) {
		r := OrderResult{Status: StatusPending}
		if _, ok := r.AvgFillPrice(); ok {
			t.Error("expected no average for empty fills")
		}
	})

	t.Run("should weight by quantity", func(t *testing.T) {
		r := OrderResult{Fills: []Fill{
			{FillPrice: 100, Quantity: 10},
			{FillPrice: 110, Quantity: 30},
		}}
		avg, ok := r.AvgFillPrice()
		if !ok {
			t.Fatal("expected average")
		}
		if avg != 107.5 {
			t.Errorf("expected 107.5, got %f", avg)
		}
	})
}
