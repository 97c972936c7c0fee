package market

import (
	"math"
	"testing"
)

func TestSMA(t *testing.T) {
	t.Run("should average the trailing window", func(t *testing.T) {
		prices := []float64{1, 2, 3, 4, 5}
		if got := SMA(prices, 3); got != 4 {
			t.Errorf("expected 4, got %f", got)
		}
	})

	t.Run("should return zero on short input", func(t *testing.T) {
		if got := SMA([]float64{1, 2}, 3); got != 0 {
			t.Errorf("expected 0, got %f", got)
		}
		if got := SMA(nil, 5); got != 0 {
			t.Errorf("expected 0 for nil, got %f", got)
		}
	})
}

func TestEMA(t *testing.T) {
	t.Run("should equal SMA when series length equals period", func(t *testing.T) {
		prices := []float64{10, 20, 30}
		if got := EMA(prices, 3); got != 20 {
			t.Errorf("expected 20, got %f", got)
		}
	})

	t.Run("should weight recent prices more than SMA", func(t *testing.T) {
		prices := []float64{100, 100, 100, 100, 200}
		ema := EMA(prices, 4)
		sma := SMA(prices, 5)
		if ema <= sma {
			t.Errorf("expected ema %f above sma %f after a spike", ema, sma)
		}
	})

	t.Run("should return zero on short input", func(t *testing.T) {
		if got := EMA([]float64{1}, 2); got != 0 {
			t.Errorf("expected 0, got %f", got)
		}
	})
}

func TestMACD(t *testing.T) {
	t.Run("should be zero below 26 samples", func(t *testing.T) {
		prices := make([]float64, 25)
		if got := MACD(prices); got != 0 {
			t.Errorf("expected 0, got %f", got)
		}
	})

	t.Run("should be positive in an uptrend", func(t *testing.T) {
		prices := make([]float64, 40)
		for i := range prices {
			prices[i] = 100 + float64(i)
		}
		if got := MACD(prices); got <= 0 {
			t.Errorf("expected positive macd, got %f", got)
		}
	})
}

func TestRSI(t *testing.T) {
	t.Run("should be 100 with only gains", func(t *testing.T) {
		prices := []float64{1, 2, 3, 4, 5, 6, 7, 8}
		if got := RSI(prices, 5); got != 100 {
			t.Errorf("expected 100, got %f", got)
		}
	})

	t.Run("should be near zero with only losses", func(t *testing.T) {
		prices := []float64{8, 7, 6, 5, 4, 3, 2, 1}
		if got := RSI(prices, 5); got > 1 {
			t.Errorf("expected near 0, got %f", got)
		}
	})

	t.Run("should be near 50 for alternating moves", func(t *testing.T) {
		prices := make([]float64, 30)
		for i := range prices {
			prices[i] = 100
			if i%2 == 1 {
				prices[i] = 101
			}
		}
		got := RSI(prices, 14)
		if math.Abs(got-50) > 15 {
			t.Errorf("expected roughly balanced rsi, got %f", got)
		}
	})

	t.Run("should return zero on short input", func(t *testing.T) {
		if got := RSI([]float64{1, 2}, 5); got != 0 {
			t.Errorf("expected 0, got %f", got)
		}
	})
}

func TestCloses(t *testing.T) {
	events := []Event{{Price: 1.5}, {Price: 2.5}}
	closes := Closes(events)
	if len(closes) != 2 || closes[0] != 1.5 || closes[1] != 2.5 {
		t.Errorf("unexpected closes %v", closes)
	}
}
