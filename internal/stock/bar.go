// Package stock holds the shared market-data types for the quant core:
// daily OHLCV bars and the helpers for slicing them by calendar time.
package stock

import (
	"sort"
	"time"
)

// DateLayout is the canonical day format used across stores and the wire.
const DateLayout = "2006-01-02"

// Bar is one trading day of OHLCV data for a single stock.
// Bars for a stock are strictly ordered by ascending date with no
// duplicate dates.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Ref identifies one stock in the universe.
type Ref struct {
	Code string
	Name string
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a canonical day string.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// YearMonth formats t as "YYYY-MM", the key used by the monthly memo stores.
func YearMonth(t time.Time) string {
	return t.Format("2006-01")
}

// MonthStart parses a "YYYY-MM" key back into the first day of that month.
func MonthStart(yearMonth string) (time.Time, error) {
	return time.ParseInLocation("2006-01", yearMonth, time.UTC)
}

// SortBars orders bars ascending by date in place.
func SortBars(bars []Bar) {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
}

// Since returns the suffix of bars whose date is on or after cutoff.
// bars must be sorted ascending.
func Since(bars []Bar, cutoff time.Time) []Bar {
	i := sort.Search(len(bars), func(i int) bool { return !bars[i].Date.Before(cutoff) })
	return bars[i:]
}

// Before returns the prefix of bars whose date is strictly before cutoff.
func Before(bars []Bar, cutoff time.Time) []Bar {
	i := sort.Search(len(bars), func(i int) bool { return !bars[i].Date.Before(cutoff) })
	return bars[:i]
}

// Tail returns up to the last n bars.
func Tail(bars []Bar, n int) []Bar {
	if n >= len(bars) {
		return bars
	}
	return bars[len(bars)-n:]
}

// SplitAt partitions bars into those dated on or before pivot and those after.
func SplitAt(bars []Bar, pivot time.Time) (visible, future []Bar) {
	i := sort.Search(len(bars), func(i int) bool { return bars[i].Date.After(pivot) })
	return bars[:i], bars[i:]
}
