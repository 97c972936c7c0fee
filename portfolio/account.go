package portfolio

// Position 单个合约/股票的净持仓。Quantity 为带符号数量，负数表示空头。
type Position struct {
	Symbol   string  `json:"symbol"`
	Quantity int64   `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
}

// AccountState 账户快照：现金、已用保证金与持仓表。
type AccountState struct {
	CashBalance float64              `json:"cash_balance"`
	MarginUsed  float64              `json:"margin_used"`
	Positions   map[string]*Position `json:"positions"`
}

// DefaultInitialCapital 默认初始资金（10 lakh，沿用原始平台的默认值）。
const DefaultInitialCapital = 1_000_000.0

// NewAccountState 构造一个空账户。
func NewAccountState(cashBalance float64) *AccountState {
	return &AccountState{
		CashBalance: cashBalance,
		Positions:   make(map[string]*Position),
	}
}

// Manager 管理账户状态、持仓与现金流。
// 非并发安全：一次回测/交易会话独占一个 Manager。
type Manager struct {
	state *AccountState
}

func NewManager(state *AccountState) *Manager {
	if state == nil {
		state = NewAccountState(DefaultInitialCapital)
	}
	return &Manager{state: state}
}

// Reset 整体替换账户状态，回测运行之间使用。
func (m *Manager) Reset(state *AccountState) {
	if state == nil {
		state = NewAccountState(DefaultInitialCapital)
	}
	m.state = state
}

// State 返回当前账户状态（调用方只读）。
func (m *Manager) State() *AccountState {
	return m.state
}

// Position 返回某个 symbol 的持仓，没有持仓时返回 nil。
func (m *Manager) Position(symbol string) *Position {
	return m.state.Positions[symbol]
}

// ApplyFill 把一笔成交记入持仓与现金。buy 为 true 表示买入。
//
// 均价规则：
//   - 回到零仓位：数量与均价都清零
//   - 同向加仓或开仓：均价按成本加权
//   - 反向减仓：数量变化、均价不变
//   - 穿仓翻向：视为先平后开，剩余部分以本次成交价为新成本基准
//
// 不做任何合法性校验，默认允许裸卖空。
func (m *Manager) ApplyFill(symbol string, fillPrice float64, quantity int64, buy bool) {
	pos, ok := m.state.Positions[symbol]
	if !ok {
		pos = &Position{Symbol: symbol}
		m.state.Positions[symbol] = pos
	}

	signed := quantity
	if !buy {
		signed = -quantity
	}

	newTotal := pos.Quantity + signed
	switch {
	case newTotal == 0:
		pos.Quantity = 0
		pos.AvgPrice = 0
	case (pos.Quantity >= 0 && signed >= 0) || (pos.Quantity <= 0 && signed <= 0):
		totalCost := pos.AvgPrice*absFloat(pos.Quantity) + fillPrice*float64(quantity)
		pos.Quantity = newTotal
		pos.AvgPrice = totalCost / absFloat(pos.Quantity)
	case (pos.Quantity > 0) != (newTotal > 0):
		pos.Quantity = newTotal
		pos.AvgPrice = fillPrice
	default:
		pos.Quantity = newTotal
	}

	cashDelta := fillPrice * float64(quantity)
	if buy {
		m.state.CashBalance -= cashDelta
	} else {
		m.state.CashBalance += cashDelta
	}
}

func absFloat(v int64) float64 {
	if v < 0 {
		return float64(-v)
	}
	return float64(v)
}
