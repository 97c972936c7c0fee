package execution

import (
	"fmt"
	"time"

	"papertrader/market"
	"papertrader/portfolio"
)

// Engine 模拟撮合引擎：按订单类型决定成交价，维护挂单簿，
// 成交后把现金/持仓变化记入 portfolio.Manager。
//
// 非并发安全：一个 Engine 只服务一条同步的调用链（见 DESIGN.md）。
type Engine struct {
	portfolio *portfolio.Manager

	// 挂单簿。pendingIDs 维护插入顺序，保证 ProcessMarketData
	// 的撮合顺序确定（map 自身的遍历顺序是随机的）。
	pendingOrders map[string]Order
	pendingIDs    []string
}

func NewEngine(pm *portfolio.Manager) *Engine {
	return &Engine{
		portfolio:     pm,
		pendingOrders: make(map[string]Order),
	}
}

// Portfolio 返回引擎绑定的账户管理器。
func (e *Engine) Portfolio() *portfolio.Manager {
	return e.portfolio
}

// PendingCount 当前挂单数量。
func (e *Engine) PendingCount() int {
	return len(e.pendingOrders)
}

// SubmitOrder 同步提交一笔订单并立即尝试成交。
//
//   - quantity <= 0 直接返回 REJECTED（数据错误不抛异常，调用方查状态）
//   - 能定出成交价则整单成交、更新账户，返回 FILLED
//   - LIMIT/STOP 未触发则入挂单簿，返回 PENDING
func (e *Engine) SubmitOrder(order Order, marketPrice float64) OrderResult {
	if order.Quantity <= 0 {
		return OrderResult{
			Order:   order,
			Status:  StatusRejected,
			Fills:   []Fill{},
			Message: "quantity must be positive",
		}
	}

	execPrice, ok := determineFillPrice(order, marketPrice)
	if !ok {
		e.park(order)
		return OrderResult{
			Order:   order,
			Status:  StatusPending,
			Fills:   []Fill{},
			Message: "order parked in book awaiting trigger",
		}
	}

	ts := time.Now().UTC()
	if order.Timestamp != nil {
		ts = *order.Timestamp
	}
	fill := Fill{
		ID:        fmt.Sprintf("%s-1", order.ID),
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		FillPrice: execPrice,
		Quantity:  order.Quantity,
		Timestamp: ts,
	}
	e.portfolio.ApplyFill(fill.Symbol, fill.FillPrice, fill.Quantity, order.Side == SideBuy)

	return OrderResult{
		Order:  order,
		Status: StatusFilled,
		Fills:  []Fill{fill},
	}
}

// ProcessMarketData 用一条行情重新评估该 symbol 的全部挂单，
// 按挂入顺序逐一撮合。成交的订单移出挂单簿；未触发的无限期保留。
func (e *Engine) ProcessMarketData(event market.Event) []OrderResult {
	var results []OrderResult
	var removed []string

	for _, id := range e.pendingIDs {
		order, ok := e.pendingOrders[id]
		if !ok || order.Symbol != event.Symbol {
			continue
		}
		execPrice, ok := determineFillPrice(order, event.Price)
		if !ok {
			continue
		}
		fill := Fill{
			ID:        fmt.Sprintf("%s-%d", order.ID, len(results)+1),
			OrderID:   order.ID,
			Symbol:    order.Symbol,
			FillPrice: execPrice,
			Quantity:  order.Quantity,
			Timestamp: event.Timestamp,
		}
		e.portfolio.ApplyFill(fill.Symbol, fill.FillPrice, fill.Quantity, order.Side == SideBuy)
		results = append(results, OrderResult{
			Order:  order,
			Status: StatusFilled,
			Fills:  []Fill{fill},
		})
		removed = append(removed, id)
	}

	for _, id := range removed {
		e.unpark(id)
	}
	return results
}

// Reset 清空挂单簿；state 非 nil 时同时整体替换账户状态。
func (e *Engine) Reset(state *portfolio.AccountState) {
	e.pendingOrders = make(map[string]Order)
	e.pendingIDs = nil
	if state != nil {
		e.portfolio.Reset(state)
	}
}

func (e *Engine) park(order Order) {
	if _, exists := e.pendingOrders[order.ID]; !exists {
		e.pendingIDs = append(e.pendingIDs, order.ID)
	}
	e.pendingOrders[order.ID] = order
}

func (e *Engine) unpark(id string) {
	delete(e.pendingOrders, id)
	for i, pid := range e.pendingIDs {
		if pid == id {
			e.pendingIDs = append(e.pendingIDs[:i], e.pendingIDs[i+1:]...)
			break
		}
	}
}

// determineFillPrice 订单类型 → 成交价策略（完全确定，无随机量）：
//
//	MARKET       任何时候以现价成交
//	LIMIT  BUY   限价 >= 现价 时以限价成交
//	LIMIT  SELL  限价 <= 现价 时以限价成交
//	STOP   BUY   现价 >= 触发价 时以现价成交
//	STOP   SELL  现价 <= 触发价 时以现价成交
func determineFillPrice(order Order, marketPrice float64) (float64, bool) {
	switch order.Type {
	case TypeMarket:
		return marketPrice, true
	case TypeLimit:
		if order.Price == nil {
			return 0, false
		}
		if order.Side == SideBuy && *order.Price >= marketPrice {
			return *order.Price, true
		}
		if order.Side == SideSell && *order.Price <= marketPrice {
			return *order.Price, true
		}
		return 0, false
	case TypeStop:
		if order.Price == nil {
			return 0, false
		}
		if order.Side == SideBuy && marketPrice >= *order.Price {
			return marketPrice, true
		}
		if order.Side == SideSell && marketPrice <= *order.Price {
			return marketPrice, true
		}
		return 0, false
	}
	return marketPrice, true
}
