package execution

import "time"

// OrderSide 买卖方向。
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderType 订单类型。
type OrderType string

const (
	TypeMarket OrderType = "MARKET"
	TypeLimit  OrderType = "LIMIT"
	TypeStop   OrderType = "STOP"
)

// OrderStatus 订单状态。REJECTED 为终态；PENDING 的订单留在挂单簿中
// 等待后续行情触发。
type OrderStatus string

const (
	StatusPending  OrderStatus = "PENDING"
	StatusFilled   OrderStatus = "FILLED"
	StatusRejected OrderStatus = "REJECTED"
)

// Order 模拟订单，提交后不可变。
// Price 对 LIMIT 单是限价、对 STOP 单是触发价，MARKET 单忽略。
type Order struct {
	ID         string     `json:"order_id"`
	Symbol     string     `json:"symbol"`
	Side       OrderSide  `json:"side"`
	Type       OrderType  `json:"order_type"`
	Quantity   int64      `json:"quantity"`
	Price      *float64   `json:"price,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	StrategyID string     `json:"strategy_id,omitempty"`
}

// Fill 一笔完整成交。当前引擎按整单成交，不拆分。
type Fill struct {
	ID        string    `json:"fill_id"`
	OrderID   string    `json:"order_id"`
	Symbol    string    `json:"symbol"`
	FillPrice float64   `json:"fill_price"`
	Quantity  int64     `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderResult 订单执行结果。
type OrderResult struct {
	Order   Order       `json:"order"`
	Status  OrderStatus `json:"status"`
	Fills   []Fill      `json:"fills"`
	Message string      `json:"message,omitempty"`
}

// FilledQuantity 已成交总量。
func (r OrderResult) FilledQuantity() int64 {
	var total int64
	for _, f := range r.Fills {
		total += f.Quantity
	}
	return total
}

// AvgFillPrice 成交量加权均价；无成交时返回 0 和 false。
func (r OrderResult) AvgFillPrice() (float64, bool) {
	qty := r.FilledQuantity()
	if qty == 0 {
		return 0, false
	}
	var notional float64
	for _, f := range r.Fills {
		notional += f.FillPrice * float64(f.Quantity)
	}
	return notional / float64(qty), true
}
