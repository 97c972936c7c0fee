package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"papertrader/execution"
	"papertrader/market"
	"papertrader/portfolio"
)

// Config 单次回测的全部输入。
type Config struct {
	StrategyID     string      `json:"strategy_id"`
	Symbols        []string    `json:"symbols"`
	Start          time.Time   `json:"start"`
	End            time.Time   `json:"end"`
	InitialCapital float64     `json:"initial_capital"`
	Legs           []LegConfig `json:"legs,omitempty"`

	// OrderGenerator 旁路通道：历史数据处理完后按 market price 0
	// 直接提交的预构造订单序列，只用于合成/单测场景。
	OrderGenerator []execution.Order `json:"-"`
}

// EquityPoint 每处理一条行情采样一次的资金曲线点（现金余额）。
type EquityPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	CashBalance float64   `json:"cash_balance"`
}

// Result 回测产出：资金曲线、按序的订单结果、腿回合与期末账户。
// 收益率/夏普/回撤等汇总指标由 Metrics 在此原始输出之上计算。
type Result struct {
	Config      Config                  `json:"config"`
	EquityCurve []EquityPoint           `json:"equity_curve"`
	Trades      []execution.OrderResult `json:"trades"`
	Legs        []LegTrade              `json:"legs,omitempty"`
	FinalState  *portfolio.AccountState `json:"final_state"`
}

// Progress 运行期进度快照，供 API 层推送。
type Progress struct {
	Processed   int       `json:"processed_events"`
	Timestamp   time.Time `json:"timestamp"`
	CashBalance float64   `json:"cash_balance"`
}

// Runner 把历史行情按 symbol 依次回放进模拟引擎，驱动腿状态机。
// 每次 Run 都新建账户与引擎，运行之间互不串状态。
type Runner struct {
	provider market.Provider
	log      zerolog.Logger

	// OnProgress 可选进度回调，在每条行情处理完后同步调用。
	OnProgress func(Progress)
}

func NewRunner(provider market.Provider, log zerolog.Logger) *Runner {
	return &Runner{provider: provider, log: log}
}

// Run 执行一次完整回测。行情源的错误不捕获、直接上抛，
// 不会返回半截结果。
//
// 多 symbol 按配置顺序逐个回放完整窗口（非时间戳归并），
// 资金曲线的时间戳因此不保证跨 symbol 全局单调——与原实现一致，
// 见 DESIGN.md。
func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.InitialCapital == 0 {
		cfg.InitialCapital = portfolio.DefaultInitialCapital
	}

	pm := portfolio.NewManager(portfolio.NewAccountState(cfg.InitialCapital))
	engine := execution.NewEngine(pm)

	trades := make([]execution.OrderResult, 0)
	equity := make([]EquityPoint, 0)
	var activeLegs []*legState
	var legRounds []LegTrade
	legSeq := 0
	processed := 0

	for _, symbol := range cfg.Symbols {
		symbol = market.Normalize(symbol)
		events, err := r.provider.Historical(ctx, symbol, cfg.Start, cfg.End)
		if err != nil {
			return nil, fmt.Errorf("historical %s: %w", symbol, err)
		}
		r.log.Debug().Str("symbol", symbol).Int("events", len(events)).Msg("replaying symbol window")

		for _, event := range events {
			// 1) 先撮合挂单
			trades = append(trades, engine.ProcessMarketData(event)...)

			// 2) 腿入场/退出评估
			if len(cfg.Legs) > 0 {
				r.processLegs(event, cfg, &activeLegs, &legRounds, &legSeq, engine, &trades)
			}

			// 3) 资金采样
			equity = append(equity, EquityPoint{
				Timestamp:   event.Timestamp,
				CashBalance: pm.State().CashBalance,
			})

			processed++
			if r.OnProgress != nil {
				r.OnProgress(Progress{
					Processed:   processed,
					Timestamp:   event.Timestamp,
					CashBalance: pm.State().CashBalance,
				})
			}
		}
	}

	// 窗口结束仍持有的腿按有利极值强平
	for _, leg := range activeLegs {
		if leg.active() {
			r.exitLeg(leg, leg.forcedExitPrice(), ExitReasonEndOfBacktest, cfg.End, engine, &trades, &legRounds)
		}
	}

	// 旁路订单：market price 0 直接提交
	for _, order := range cfg.OrderGenerator {
		trades = append(trades, engine.SubmitOrder(order, 0))
	}

	return &Result{
		Config:      cfg,
		EquityCurve: equity,
		Trades:      trades,
		Legs:        legRounds,
		FinalState:  pm.State(),
	}, nil
}

// processLegs 按行情驱动腿状态机。
// absent → active：该 symbol 第一条行情、且没有同 symbol+side 的活跃腿时，
// 立即按配置数量提交市价入场单（本核心不做条件入场评估）。
func (r *Runner) processLegs(
	event market.Event,
	cfg Config,
	activeLegs *[]*legState,
	legRounds *[]LegTrade,
	legSeq *int,
	engine *execution.Engine,
	trades *[]execution.OrderResult,
) {
	for _, legCfg := range cfg.Legs {
		if market.Normalize(legCfg.Symbol) != event.Symbol {
			continue
		}
		// 腿状态统一持有规范化后的 symbol，退出评估与平仓单都以它为准
		legCfg.Symbol = event.Symbol

		alreadyActive := false
		for _, leg := range *activeLegs {
			if leg.Symbol == legCfg.Symbol && leg.Side == legCfg.Side && leg.active() {
				alreadyActive = true
				break
			}
		}
		if alreadyActive {
			continue
		}

		*legSeq++
		leg := newLegState(legCfg, event.Price, event.Timestamp)
		leg.seq = *legSeq
		*activeLegs = append(*activeLegs, leg)

		ts := event.Timestamp
		entry := execution.Order{
			ID:         fmt.Sprintf("LEG-%d-ENTRY", *legSeq),
			Symbol:     event.Symbol,
			Side:       execution.OrderSide(legCfg.Side),
			Type:       execution.TypeMarket,
			Quantity:   legCfg.Quantity,
			Timestamp:  &ts,
			StrategyID: cfg.StrategyID,
		}
		*trades = append(*trades, engine.SubmitOrder(entry, event.Price))
	}

	// 退出评估：先刷新极值再判定，判定顺序见 legState.shouldExit。
	for _, leg := range *activeLegs {
		if leg.Symbol != event.Symbol || !leg.active() {
			continue
		}
		leg.updatePrice(event.Price)
		if exit, reason, price := leg.shouldExit(event.Price, event.Timestamp); exit {
			r.exitLeg(leg, price, reason, event.Timestamp, engine, trades, legRounds)
		}
	}
}

// exitLeg 提交反向市价单平掉剩余数量并记录回合盈亏。
func (r *Runner) exitLeg(
	leg *legState,
	exitPrice float64,
	reason string,
	ts time.Time,
	engine *execution.Engine,
	trades *[]execution.OrderResult,
	legRounds *[]LegTrade,
) {
	if !leg.active() {
		return
	}

	exitSide := execution.SideSell
	if leg.Side == "SELL" {
		exitSide = execution.SideBuy
	}
	order := execution.Order{
		ID:         fmt.Sprintf("LEG-%d-EXIT", leg.seq),
		Symbol:     leg.Symbol,
		Side:       exitSide,
		Type:       execution.TypeMarket,
		Quantity:   leg.RemainingQuantity,
		Timestamp:  &ts,
		StrategyID: "leg-strategy",
	}
	*trades = append(*trades, engine.SubmitOrder(order, exitPrice))

	leg.ExitPrice = exitPrice
	leg.ExitReason = reason
	leg.ExitTime = ts
	leg.RemainingQuantity = 0

	*legRounds = append(*legRounds, LegTrade{
		Symbol:     leg.Symbol,
		Side:       leg.Side,
		Quantity:   leg.Quantity,
		EntryPrice: leg.EntryPrice,
		EntryTime:  leg.EntryTime,
		ExitPrice:  exitPrice,
		ExitTime:   ts,
		ExitReason: reason,
		PnL:        leg.pnl(exitPrice),
	})

	r.log.Debug().
		Str("symbol", leg.Symbol).
		Str("side", leg.Side).
		Str("reason", reason).
		Float64("exit_price", exitPrice).
		Msg("leg exited")
}
