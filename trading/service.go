package trading

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"papertrader/execution"
	"papertrader/portfolio"
	"papertrader/strategy"
)

// OrderRequest API 层传入的下单请求。
type OrderRequest struct {
	Symbol     string              `json:"symbol" binding:"required"`
	Side       execution.OrderSide `json:"side" binding:"required"`
	OrderType  execution.OrderType `json:"order_type"`
	Quantity   int64               `json:"quantity" binding:"required"`
	Price      *float64            `json:"price,omitempty"`
	StrategyID string              `json:"strategy_id,omitempty"`
}

// OrderResponse 下单结果摘要。
type OrderResponse struct {
	OrderID        string                `json:"order_id"`
	Status         execution.OrderStatus `json:"status"`
	FilledQuantity int64                 `json:"filled_quantity"`
	AvgFillPrice   *float64              `json:"avg_fill_price,omitempty"`
	Message        string                `json:"message,omitempty"`
	Timestamp      time.Time             `json:"timestamp"`
}

// WebhookEvent 外部信号源（chartink / tradingview）推来的一次事件。
type WebhookEvent struct {
	Source     string         `json:"source"`
	Payload    map[string]any `json:"payload"`
	ReceivedAt time.Time      `json:"received_at"`
}

const recentEventsCap = 50

// Service 纸面交易服务：持有一个长生命周期的模拟引擎，
// 接收 API 下单与 webhook 信号。引擎本身非并发安全，
// 所有入口在这里用互斥锁串行化。
type Service struct {
	mu       sync.Mutex
	engine   *execution.Engine
	registry *strategy.Registry
	log      zerolog.Logger

	events []WebhookEvent
}

func NewService(engine *execution.Engine, registry *strategy.Registry, log zerolog.Logger) *Service {
	return &Service{engine: engine, registry: registry, log: log}
}

// SubmitOrder 构造订单并以请求价作为市场价同步提交。
// 未给价格时按 0 处理（与原实现一致：市价单照常成交，限价单会挂起）。
func (s *Service) SubmitOrder(req OrderRequest) OrderResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	orderType := req.OrderType
	if orderType == "" {
		orderType = execution.TypeMarket
	}

	order := execution.Order{
		ID:         "ORD-" + uuid.NewString(),
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       orderType,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Timestamp:  &now,
		StrategyID: req.StrategyID,
	}

	marketPrice := 0.0
	if req.Price != nil {
		marketPrice = *req.Price
	}

	result := s.engine.SubmitOrder(order, marketPrice)
	s.log.Info().
		Str("order_id", order.ID).
		Str("symbol", order.Symbol).
		Str("status", string(result.Status)).
		Msg("order submitted")

	resp := OrderResponse{
		OrderID:        order.ID,
		Status:         result.Status,
		FilledQuantity: result.FilledQuantity(),
		Message:        result.Message,
		Timestamp:      now,
	}
	if avg, ok := result.AvgFillPrice(); ok {
		resp.AvgFillPrice = &avg
	}
	return resp
}

// AccountSnapshot 在服务锁内拷贝账户状态，供 API 层只读展示。
// 引擎与账户本身非并发安全，任何跨协程读取都必须走这里。
func (s *Service) AccountSnapshot() portfolio.AccountState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.engine.Portfolio().State()
	out := portfolio.AccountState{
		CashBalance: state.CashBalance,
		MarginUsed:  state.MarginUsed,
		Positions:   make(map[string]*portfolio.Position, len(state.Positions)),
	}
	for symbol, pos := range state.Positions {
		p := *pos
		out.Positions[symbol] = &p
	}
	return out
}

// IngestWebhook 记录事件；payload 带 strategy 字段且该策略已注册时，
// 把信号转给策略的 OnSignal 并提交其产出的订单。
func (s *Service) IngestWebhook(source string, payload map[string]any) WebhookEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	event := WebhookEvent{
		Source:     source,
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	}
	s.events = append(s.events, event)
	if len(s.events) > recentEventsCap {
		s.events = s.events[len(s.events)-recentEventsCap:]
	}

	name, _ := payload["strategy"].(string)
	if name == "" || s.registry == nil {
		return event
	}
	strat, err := s.registry.Get(name)
	if err != nil {
		s.log.Warn().Str("source", source).Str("strategy", name).Msg("webhook for unknown strategy")
		return event
	}

	ctx := &strategy.Context{StrategyID: name}
	for _, order := range strat.OnSignal(ctx, payload) {
		marketPrice := 0.0
		if order.Price != nil {
			marketPrice = *order.Price
		}
		result := s.engine.SubmitOrder(order, marketPrice)
		s.log.Info().
			Str("source", source).
			Str("strategy", name).
			Str("order_id", order.ID).
			Str("status", string(result.Status)).
			Msg("webhook signal order")
	}
	return event
}

// RecentEvents 最近的 webhook 事件（最多 recentEventsCap 条）。
func (s *Service) RecentEvents() []WebhookEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WebhookEvent, len(s.events))
	copy(out, s.events)
	return out
}
