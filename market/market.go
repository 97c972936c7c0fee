package market

import (
	"context"
	"strings"
	"time"
)

// Event 一条价格事件。
type Event struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Provider 历史行情数据源。实现方保证单个 symbol 的返回序列
// 时间戳单调不减；错误原样抛给调用方，回测不做重试。
type Provider interface {
	Historical(ctx context.Context, symbol string, start, end time.Time) ([]Event, error)
}

// Normalize 统一 symbol 写法（大写、去空格）。
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
