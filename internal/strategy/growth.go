package strategy

import (
	"context"
	"fmt"
	"time"

	"quant-core/internal/indicators"
	"quant-core/internal/stock"
	"quant-core/internal/store"
	"quant-core/pkg/cache"
)

// GrowthStore is the persistence the extreme-growth memo needs.
type GrowthStore interface {
	ListGrowthMonths(ctx context.Context, code string) ([]store.GrowthMonth, error)
	InsertGrowthMonth(ctx context.Context, g store.GrowthMonth) error
	ListPriceRanges(ctx context.Context, code string) ([]store.PriceRange, error)
	UpsertPriceRange(ctx context.Context, r store.PriceRange) error
}

// GrowthChecker suppresses buys for three years after any calendar
// month in which a stock's high/low ratio reached monthGrowthRatio.
// Monthly extremes are memoized per (stock, month) since a closed
// month's data never changes.
type GrowthChecker struct {
	store GrowthStore
	cache *cache.ShardedCache
}

// NewGrowthChecker builds the memo around its store and process cache.
func NewGrowthChecker(s GrowthStore, c *cache.ShardedCache) *GrowthChecker {
	return &GrowthChecker{store: s, cache: c}
}

func growthMonthsKey(code string) string { return "growth:months:" + code }
func priceRangeKey(code string) string   { return "growth:ranges:" + code }

// Check returns a condition error when the stock is under suppression,
// a plain error on store failure, and nil when buying is permitted.
// Newly discovered extreme months are persisted before returning so
// later evaluations short-circuit.
func (g *GrowthChecker) Check(ctx context.Context, bars []stock.Bar, code, name string) error {
	if len(bars) == 0 {
		return condf("%s (%s): no bars to scan for extreme growth", name, code)
	}
	lastDate := bars[len(bars)-1].Date

	knownMonths, err := g.knownGrowthMonths(ctx, code)
	if err != nil {
		return fmt.Errorf("load growth months for %s: %w", code, err)
	}
	if month, hit := suppressedBy(knownMonths, lastDate); hit {
		return condf("%s (%s): extreme growth in %s within the last three years", name, code, month)
	}

	memoized, err := g.memoizedMonths(ctx, code)
	if err != nil {
		return fmt.Errorf("load price ranges for %s: %w", code, err)
	}

	// Partition the last three years of bars by calendar month,
	// skipping months whose extremes are already on record.
	byMonth := map[string][]stock.Bar{}
	var monthOrder []string
	for _, b := range stock.Since(bars, lastDate.Add(-threeYearDur)) {
		m := stock.YearMonth(b.Date)
		if memoized[m] {
			continue
		}
		if _, seen := byMonth[m]; !seen {
			monthOrder = append(monthOrder, m)
		}
		byMonth[m] = append(byMonth[m], b)
	}

	currentMonth := stock.YearMonth(lastDate)
	var grown []string
	for _, m := range monthOrder {
		monthBars := byMonth[m]
		r, _ := indicators.PriceRange(monthBars)

		// Only closed months are memoized; the running month's
		// extremes can still move.
		if m != currentMonth {
			pr := store.PriceRange{
				ID:       code + "-" + m,
				Code:     code,
				Month:    m,
				High:     r.High,
				Low:      r.Low,
				HighDate: monthBars[r.HighIdx].Date,
				LowDate:  monthBars[r.LowIdx].Date,
			}
			if err := g.store.UpsertPriceRange(ctx, pr); err != nil {
				return fmt.Errorf("memoize price range %s: %w", pr.ID, err)
			}
			memoized[m] = true
		}

		if r.Low > 0 && r.High/r.Low >= monthGrowthRatio {
			grown = append(grown, m)
		}
	}
	g.cache.Set(priceRangeKey(code), memoized, 0)

	if len(grown) == 0 {
		return nil
	}

	for _, m := range grown {
		gm := store.GrowthMonth{
			ID:    code + "-" + m,
			Code:  code,
			Month: m,
			Ratio: monthGrowthRatio,
		}
		if err := g.store.InsertGrowthMonth(ctx, gm); err != nil {
			return fmt.Errorf("record growth month %s: %w", gm.ID, err)
		}
	}
	g.cache.Set(growthMonthsKey(code), append(knownMonths, grown...), 0)

	return condf("%s (%s): extreme growth in %s within the last three years", name, code, grown[0])
}

func (g *GrowthChecker) knownGrowthMonths(ctx context.Context, code string) ([]string, error) {
	if v, ok := g.cache.Get(growthMonthsKey(code)); ok {
		return v.([]string), nil
	}
	records, err := g.store.ListGrowthMonths(ctx, code)
	if err != nil {
		return nil, err
	}
	months := make([]string, 0, len(records))
	for _, r := range records {
		months = append(months, r.Month)
	}
	g.cache.Set(growthMonthsKey(code), months, 0)
	return months, nil
}

func (g *GrowthChecker) memoizedMonths(ctx context.Context, code string) (map[string]bool, error) {
	if v, ok := g.cache.Get(priceRangeKey(code)); ok {
		return v.(map[string]bool), nil
	}
	records, err := g.store.ListPriceRanges(ctx, code)
	if err != nil {
		return nil, err
	}
	months := make(map[string]bool, len(records))
	for _, r := range records {
		months[r.Month] = true
	}
	g.cache.Set(priceRangeKey(code), months, 0)
	return months, nil
}

// suppressedBy reports the first recorded month that still covers
// asOf inside the rolling three-year window.
func suppressedBy(months []string, asOf time.Time) (string, bool) {
	for _, m := range months {
		start, err := stock.MonthStart(m)
		if err != nil {
			continue
		}
		if asOf.After(start) && asOf.Sub(start) < threeYearDur {
			return m, true
		}
	}
	return "", false
}
