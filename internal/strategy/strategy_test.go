package strategy

import (
	"context"
	"strings"
	"testing"
	"time"

	"quant-core/internal/stock"
	"quant-core/pkg/cache"
)

func flatBars(n int, start time.Time) []stock.Bar {
	bars := make([]stock.Bar, n)
	for i := range bars {
		bars[i] = stock.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   100,
			Close:  100,
			High:   101,
			Low:    99,
			Volume: 1000,
		}
	}
	return bars
}

func testEnv(bars []stock.Bar) Env {
	return Env{
		Ctx:    context.Background(),
		Bars:   bars,
		Code:   "600000",
		Name:   "Test",
		Growth: NewGrowthChecker(newFakeGrowthStore(), cache.NewShardedCache()),
	}
}

func TestRegistryCoversAllTypes(t *testing.T) {
	got := Types()
	want := []int{1, 2, 3, 4, 5, 6, 7}
	if len(got) != len(want) {
		t.Fatalf("types = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("types = %v, want %v", got, want)
		}
	}
	for _, id := range got {
		r, ok := Lookup(id)
		if !ok || r.Buy == nil || r.Sell == nil {
			t.Errorf("strategy %d incomplete", id)
		}
	}
}

func TestUnknownTypeIsError(t *testing.T) {
	e := testEnv(flatBars(30, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	if s := EvaluateBuy(99, e); s.Kind != KindError {
		t.Errorf("buy kind = %v, want error", s.Kind)
	}
	if s := EvaluateSell(99, e, Position{}); s.Kind != KindError {
		t.Errorf("sell kind = %v, want error", s.Kind)
	}
}

func TestFlatDaysYieldNoVolumeContractionBuy(t *testing.T) {
	// 30 flat days: open == close, so the last-day-up check fails first.
	e := testEnv(flatBars(30, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	s := EvaluateBuy(1, e)
	if s.Kind != KindNone {
		t.Fatalf("kind = %v (%s), want none", s.Kind, s.Reason)
	}
	if s.Reason == "" {
		t.Error("no-signal result should carry the failed condition")
	}
}

func TestGrowthSuppressionBlocksBuy(t *testing.T) {
	// Quiet history plus one 30/9 month within three years (monthly
	// high/low ratio >= 3), with a green decision day. No rule set
	// may buy a suppressed stock, whatever its other conditions say.
	var bars []stock.Bar
	bars = append(bars, monthOfBars(2023, time.June, 30, 9)...)
	bars = append(bars, monthOfBars(2023, time.July, 10, 9)...)
	bars[len(bars)-1].Open = 9
	bars[len(bars)-1].Close = 9.5

	for _, id := range Types() {
		e := testEnv(bars)
		s := EvaluateBuy(id, e)
		if s.Kind != KindNone {
			t.Fatalf("type %d: kind = %v (%s), want none", id, s.Kind, s.Reason)
		}
		if !strings.Contains(s.Reason, "extreme growth") {
			t.Errorf("type %d: reason = %q, want a suppression reason", id, s.Reason)
		}
	}
}

func TestGrowthSuppressionBlocksBreakoutRebound(t *testing.T) {
	// A history that satisfies every breakout-rebound condition: a
	// doubling inside the trailing window, a fresh peak, and a deep
	// pullback below 60% of it. The doubling month itself trips the
	// extreme-growth memo, so the buy must not fire.
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]stock.Bar, 26)
	for i := range bars {
		bars[i] = stock.Bar{
			Date: start.AddDate(0, 0, i),
			Open: 10, Close: 10, High: 10.2, Low: 9.8,
			Volume: 1000,
		}
	}
	// Peak three bars from the end, then a collapse under 60% of it.
	bars[23].High = 30
	bars[23].Close = 28
	bars[24].Open = 12
	bars[24].Close = 10
	bars[25].Open = 9
	bars[25].Close = 9.1
	bars[25].Low = 9

	e := testEnv(bars)
	s := EvaluateBuy(2, e)
	if s.Kind != KindNone {
		t.Fatalf("kind = %v (price %.2f), want none", s.Kind, s.Price)
	}
	if !strings.Contains(s.Reason, "extreme growth") {
		t.Errorf("reason = %q, want a suppression reason", s.Reason)
	}

	// The same shape without the memo hit (ratio stays under 3)
	// still produces a breakout-rebound buy, so the suppression is
	// what blocked it above.
	for i := range bars {
		bars[i].Low = 12
		if bars[i].Close < 12 {
			bars[i].Close = 12.5
		}
		if bars[i].Open < 12 {
			bars[i].Open = 12
		}
		if bars[i].High < 12.5 {
			bars[i].High = 12.7
		}
	}
	bars[23].High = 30
	bars[23].Close = 28
	bars[25].Open = 12
	bars[25].Close = 12.5
	e = testEnv(bars)
	if s := EvaluateBuy(2, e); s.Kind != KindBuy {
		t.Fatalf("unsuppressed kind = %v (%s), want buy", s.Kind, s.Reason)
	}
}

func TestRSIReversionBuySell(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// A steady decline drives RSI toward zero.
	decline := make([]stock.Bar, 30)
	price := 100.0
	for i := range decline {
		price -= 1
		decline[i] = stock.Bar{
			Date: start.AddDate(0, 0, i),
			Open: price + 0.5, Close: price, High: price + 1, Low: price - 1,
			Volume: 1000,
		}
	}
	e := testEnv(decline)
	if s := EvaluateBuy(5, e); s.Kind != KindBuy {
		t.Fatalf("buy kind = %v (%s)", s.Kind, s.Reason)
	}

	// Small declines then a strong run-up push RSI above 75.
	rally := make([]stock.Bar, 0, 40)
	price = 100.0
	for i := 0; i < 20; i++ {
		price -= 0.1
		rally = append(rally, stock.Bar{
			Date: start.AddDate(0, 0, i),
			Open: price + 0.05, Close: price, High: price + 0.2, Low: price - 0.2,
			Volume: 1000,
		})
	}
	for i := 20; i < 40; i++ {
		price += 5
		rally = append(rally, stock.Bar{
			Date: start.AddDate(0, 0, i),
			Open: price - 4, Close: price, High: price + 1, Low: price - 5,
			Volume: 1000,
		})
	}
	e = testEnv(rally)
	s := EvaluateSell(5, e, Position{BuyPrice: 10, BuyDate: start})
	if s.Kind != KindSell {
		t.Fatalf("sell kind = %v (%s)", s.Kind, s.Reason)
	}
	if s.Price != rally[len(rally)-1].Close {
		t.Errorf("sell price = %.2f, want last close", s.Price)
	}
}

func TestThreeRedNeverFiresOnFlatBars(t *testing.T) {
	e := testEnv(flatBars(60, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	if s := EvaluateBuy(4, e); s.Kind != KindNone {
		t.Errorf("kind = %v", s.Kind)
	}
}

func TestThreeRedSellRules(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := flatBars(30, start)
	last := &bars[len(bars)-1]

	tests := []struct {
		name     string
		close    float64
		buyDate  time.Time
		wantSell bool
	}{
		{"profit target", 115, start, true},
		{"stop loss", 94, start, true},
		{"hold period cap", 100, start.AddDate(0, 0, -120), true},
		{"no exit", 100, start.AddDate(0, 0, 10), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			last.Close = tt.close
			s := EvaluateSell(4, testEnv(bars), Position{BuyPrice: 100, BuyDate: tt.buyDate})
			if got := s.Kind == KindSell; got != tt.wantSell {
				t.Errorf("sell = %v (%s), want %v", got, s.Reason, tt.wantSell)
			}
		})
	}
}

func TestBreakoutReboundSellNeedsStall(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Closes keep sliding after the buy, finishing on a red day.
	bars := make([]stock.Bar, 10)
	price := 20.0
	for i := range bars {
		price -= 0.5
		bars[i] = stock.Bar{
			Date: start.AddDate(0, 0, i),
			Open: price + 0.4, Close: price, High: price + 1, Low: price - 1,
			Volume: 1000,
		}
	}
	s := EvaluateSell(2, testEnv(bars), Position{BuyPrice: 20, BuyDate: start})
	if s.Kind != KindSell {
		t.Fatalf("kind = %v (%s)", s.Kind, s.Reason)
	}

	// One day-over-day rise since the buy blocks the exit.
	bars[5].Close = bars[4].Close + 2
	s = EvaluateSell(2, testEnv(bars), Position{BuyPrice: 20, BuyDate: start})
	if s.Kind != KindNone {
		t.Errorf("kind = %v, want none after a rise", s.Kind)
	}
}

func TestLimitUpDetection(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := flatBars(2, start)
	bars[1].Close = 110 // +10% on a 100 close
	if !isLimitUp(bars) {
		t.Error("ten percent day should read as limit-up")
	}
	bars[1].Close = 105
	if isLimitUp(bars) {
		t.Error("five percent day should not read as limit-up")
	}
}
