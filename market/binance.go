package market

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
)

// BinanceProvider 用币安现货 K 线作为历史行情源，
// 把每根 K 线的收盘价映射为一条价格事件。
type BinanceProvider struct {
	client   *binance.Client
	interval string
}

// NewBinanceProvider 行情接口不需要签名，key/secret 可以为空。
func NewBinanceProvider(apiKey, secretKey, interval string) *BinanceProvider {
	if interval == "" {
		interval = "1m"
	}
	return &BinanceProvider{
		client:   binance.NewClient(apiKey, secretKey),
		interval: interval,
	}
}

// Historical 拉取 [start, end] 的 K 线并转成事件序列。
// 币安按开盘时间升序返回，天然满足 Provider 的单调时间戳约定。
func (p *BinanceProvider) Historical(ctx context.Context, symbol string, start, end time.Time) ([]Event, error) {
	symbol = Normalize(symbol)
	klines, err := p.client.NewKlinesService().
		Symbol(symbol).
		Interval(p.interval).
		StartTime(start.UnixMilli()).
		EndTime(end.UnixMilli()).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s: %w", symbol, err)
	}

	events := make([]Event, 0, len(klines))
	for _, k := range klines {
		price, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			return nil, fmt.Errorf("binance klines %s: bad close %q: %w", symbol, k.Close, err)
		}
		events = append(events, Event{
			Symbol:    symbol,
			Price:     price,
			Timestamp: time.UnixMilli(k.CloseTime).UTC(),
		})
	}
	return events, nil
}
