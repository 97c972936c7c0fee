package market

// =============================================================================
// 技术指标计算函数
// 这些函数是纯计算函数，不依赖任何外部状态；输入为收盘价序列（时间升序）。
// 数据不足时返回 0，调用方自行判断窗口是否就绪。
// =============================================================================

// SMA 简单移动平均。
func SMA(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period {
		return 0
	}
	sum := 0.0
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period)
}

// EMA 指数移动平均，以 SMA 作为初始值。
func EMA(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period {
		return 0
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
	}
	return ema
}

// MACD 快慢 EMA 之差（12/26）。
func MACD(prices []float64) float64 {
	if len(prices) < 26 {
		return 0
	}
	return EMA(prices, 12) - EMA(prices, 26)
}

// RSI 相对强弱指标，Wilder 平滑。
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) <= period {
		return 0
	}

	gains := 0.0
	losses := 0.0
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain = (avgGain*float64(period-1) + change) / float64(period)
			avgLoss = (avgLoss * float64(period-1)) / float64(period)
		} else {
			avgGain = (avgGain * float64(period-1)) / float64(period)
			avgLoss = (avgLoss*float64(period-1) + (-change)) / float64(period)
		}
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Closes 从事件序列提取价格序列，供指标函数使用。
func Closes(events []Event) []float64 {
	out := make([]float64, len(events))
	for i, evt := range events {
		out[i] = evt.Price
	}
	return out
}
