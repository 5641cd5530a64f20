package strategy

import (
	"context"
	"testing"
	"time"

	"quant-core/internal/stock"
	"quant-core/internal/store"
	"quant-core/pkg/cache"
)

type fakeGrowthStore struct {
	months      map[string]store.GrowthMonth
	ranges      map[string]store.PriceRange
	monthSaves  int
	rangeSaves  int
}

func newFakeGrowthStore() *fakeGrowthStore {
	return &fakeGrowthStore{
		months: map[string]store.GrowthMonth{},
		ranges: map[string]store.PriceRange{},
	}
}

func (f *fakeGrowthStore) ListGrowthMonths(_ context.Context, code string) ([]store.GrowthMonth, error) {
	var out []store.GrowthMonth
	for _, g := range f.months {
		if g.Code == code {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeGrowthStore) InsertGrowthMonth(_ context.Context, g store.GrowthMonth) error {
	if _, dup := f.months[g.ID]; !dup {
		f.months[g.ID] = g
		f.monthSaves++
	}
	return nil
}

func (f *fakeGrowthStore) ListPriceRanges(_ context.Context, code string) ([]store.PriceRange, error) {
	var out []store.PriceRange
	for _, r := range f.ranges {
		if r.Code == code {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeGrowthStore) UpsertPriceRange(_ context.Context, r store.PriceRange) error {
	f.ranges[r.ID] = r
	f.rangeSaves++
	return nil
}

// monthOfBars generates flat daily bars for one calendar month.
func monthOfBars(year int, month time.Month, high, low float64) []stock.Bar {
	var bars []stock.Bar
	for day := 1; day <= 28; day++ {
		bars = append(bars, stock.Bar{
			Date:   time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
			Open:   low,
			Close:  low * 1.01,
			High:   high,
			Low:    low,
			Volume: 1000,
		})
	}
	return bars
}

func TestGrowthSuppression(t *testing.T) {
	fs := newFakeGrowthStore()
	g := NewGrowthChecker(fs, cache.NewShardedCache())

	// One month with a 30/9 spread inside an otherwise quiet history.
	var bars []stock.Bar
	bars = append(bars, monthOfBars(2023, time.May, 10, 9)...)
	bars = append(bars, monthOfBars(2023, time.June, 30, 9)...)
	bars = append(bars, monthOfBars(2023, time.July, 10, 9)...)

	err := g.Check(context.Background(), bars, "600000", "Test")
	if err == nil {
		t.Fatal("expected suppression")
	}
	if !IsCondition(err) {
		t.Fatalf("suppression should be a condition, got %v", err)
	}
	if len(fs.months) != 1 {
		t.Errorf("persisted months = %d, want 1", len(fs.months))
	}
	if _, ok := fs.months["600000-2023-06"]; !ok {
		t.Errorf("missing growth record, have %v", fs.months)
	}
}

func TestGrowthIdempotent(t *testing.T) {
	fs := newFakeGrowthStore()

	var bars []stock.Bar
	bars = append(bars, monthOfBars(2023, time.June, 30, 9)...)
	bars = append(bars, monthOfBars(2023, time.July, 10, 9)...)

	// Two checkers sharing the store but not the cache, as two
	// processes would.
	for i := 0; i < 2; i++ {
		g := NewGrowthChecker(fs, cache.NewShardedCache())
		if err := g.Check(context.Background(), bars, "600000", "Test"); err == nil || !IsCondition(err) {
			t.Fatalf("pass %d: err = %v", i, err)
		}
	}
	if fs.monthSaves != 1 {
		t.Errorf("month saves = %d, want 1", fs.monthSaves)
	}
}

func TestGrowthSuppressionExpires(t *testing.T) {
	fs := newFakeGrowthStore()
	// A growth month more than three years before the decision day.
	fs.months["600000-2020-01"] = store.GrowthMonth{
		ID: "600000-2020-01", Code: "600000", Month: "2020-01", Ratio: 3,
	}
	g := NewGrowthChecker(fs, cache.NewShardedCache())

	bars := monthOfBars(2024, time.June, 10, 9)
	if err := g.Check(context.Background(), bars, "600000", "Test"); err != nil {
		t.Errorf("expired suppression should not block: %v", err)
	}
}

func TestGrowthQuietHistoryPasses(t *testing.T) {
	fs := newFakeGrowthStore()
	g := NewGrowthChecker(fs, cache.NewShardedCache())

	var bars []stock.Bar
	bars = append(bars, monthOfBars(2023, time.May, 10, 9)...)
	bars = append(bars, monthOfBars(2023, time.June, 10, 9)...)

	if err := g.Check(context.Background(), bars, "600000", "Test"); err != nil {
		t.Errorf("quiet history should pass: %v", err)
	}
	// The closed month is memoized, the running month is not.
	if _, ok := fs.ranges["600000-2023-05"]; !ok {
		t.Error("closed month range not memoized")
	}
	if _, ok := fs.ranges["600000-2023-06"]; ok {
		t.Error("running month must not be memoized")
	}
}
