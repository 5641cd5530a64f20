package recommend

import (
	"context"
	"testing"
	"time"

	"quant-core/internal/events"
	"quant-core/internal/stock"
	"quant-core/internal/store"
)

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

// decline emits n bars falling by 1 per day, ending at the given date.
// A pure decline pins RSI at zero, which satisfies the mean-reversion
// entry rule.
func decline(n int, start float64, end time.Time) []stock.Bar {
	bars := make([]stock.Bar, 0, n)
	first := end.AddDate(0, 0, -(n - 1))
	for i := 0; i < n; i++ {
		price := start - float64(i)
		bars = append(bars, stock.Bar{
			Date: first.AddDate(0, 0, i), Open: price, High: price + 1,
			Low: price - 1, Close: price, Volume: 1_000_000,
		})
	}
	return bars
}

func flat(n int, price float64, end time.Time) []stock.Bar {
	bars := make([]stock.Bar, 0, n)
	first := end.AddDate(0, 0, -(n - 1))
	for i := 0; i < n; i++ {
		bars = append(bars, stock.Bar{
			Date: first.AddDate(0, 0, i), Open: price, High: price,
			Low: price, Close: price, Volume: 1_000_000,
		})
	}
	return bars
}

type memBars struct {
	data map[string][]stock.Bar
}

func (m *memBars) ListBars(_ context.Context, code string) ([]stock.Bar, error) {
	return m.data[code], nil
}

type memSink struct {
	date         string
	strategyType int
	recs         []store.Recommendation
	calls        int
}

func (m *memSink) ReplaceRecommendations(_ context.Context, date string, strategyType int, recs []store.Recommendation) error {
	m.date = date
	m.strategyType = strategyType
	m.recs = recs
	m.calls++
	return nil
}

func TestScanFindsEntrySignals(t *testing.T) {
	asOf := day(40)
	src := &memBars{data: map[string][]stock.Bar{
		"600001": decline(30, 100, asOf), // RSI at zero, should hit
		"600002": flat(30, 50, asOf),     // no pattern
	}}
	sink := &memSink{}
	s := NewScanner(src, sink, nil, nil, nil)

	stocks := []stock.Ref{
		{Code: "600001", Name: "Alpha"},
		{Code: "600002", Name: "Beta"},
	}
	hits, err := s.Scan(context.Background(), stocks, 5, asOf)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	h := hits[0]
	if h.Code != "600001" || h.StrategyType != 5 {
		t.Errorf("hit = %+v", h)
	}
	if h.Price != 71 {
		t.Errorf("price = %.2f, want the last close 71.00", h.Price)
	}

	if sink.calls != 1 || sink.date != asOf.Format(stock.DateLayout) || sink.strategyType != 5 {
		t.Errorf("sink got date=%q strategy=%d calls=%d", sink.date, sink.strategyType, sink.calls)
	}
	if len(sink.recs) != 1 {
		t.Errorf("sink stored %d recs, want 1", len(sink.recs))
	}
}

func TestScanSkipsStaleHistories(t *testing.T) {
	asOf := day(40)
	src := &memBars{data: map[string][]stock.Bar{
		"600001": decline(30, 100, day(20)), // 20 days stale
		"600002": {},                        // no data at all
	}}
	sink := &memSink{}
	s := NewScanner(src, sink, nil, nil, nil)

	hits, err := s.Scan(context.Background(), []stock.Ref{
		{Code: "600001", Name: "Alpha"},
		{Code: "600002", Name: "Beta"},
	}, 5, asOf)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("got %d hits, want 0", len(hits))
	}
	if sink.calls != 1 {
		t.Errorf("empty scan must still replace the stored hit list, calls = %d", sink.calls)
	}
}

func TestScanRejectsUnknownStrategy(t *testing.T) {
	s := NewScanner(&memBars{}, &memSink{}, nil, nil, nil)
	if _, err := s.Scan(context.Background(), nil, 99, day(0)); err == nil {
		t.Fatal("want error for unknown strategy type")
	}
}

func TestScanPublishesHits(t *testing.T) {
	asOf := day(40)
	src := &memBars{data: map[string][]stock.Bar{
		"600001": decline(30, 100, asOf),
	}}
	bus := events.NewBus()
	ch, unsub := bus.Subscribe(events.EventRecommendFound, 4)
	defer unsub()

	s := NewScanner(src, &memSink{}, nil, bus, nil)
	if _, err := s.Scan(context.Background(), []stock.Ref{{Code: "600001", Name: "Alpha"}}, 5, asOf); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	select {
	case msg := <-ch:
		p, ok := msg.(events.RecommendPayload)
		if !ok {
			t.Fatalf("payload type %T", msg)
		}
		if p.Code != "600001" || p.StrategyType != 5 {
			t.Errorf("payload = %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("no recommend event published")
	}
}
