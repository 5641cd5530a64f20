package indicators

import "quant-core/internal/stock"

// Field selects one component of a bar for windowed scans.
type Field func(stock.Bar) float64

func ByOpen(b stock.Bar) float64   { return b.Open }
func ByHigh(b stock.Bar) float64   { return b.High }
func ByLow(b stock.Bar) float64    { return b.Low }
func ByClose(b stock.Bar) float64  { return b.Close }
func ByVolume(b stock.Bar) float64 { return b.Volume }

// MaxBar returns the index of the bar maximizing f, -1 for an empty window.
func MaxBar(bars []stock.Bar, f Field) int {
	best := -1
	for i := range bars {
		if best < 0 || f(bars[i]) > f(bars[best]) {
			best = i
		}
	}
	return best
}

// MinBar returns the index of the bar minimizing f, -1 for an empty window.
func MinBar(bars []stock.Bar, f Field) int {
	best := -1
	for i := range bars {
		if best < 0 || f(bars[i]) < f(bars[best]) {
			best = i
		}
	}
	return best
}

// Avg returns the mean of f over the window, 0 for an empty window.
func Avg(bars []stock.Bar, f Field) float64 {
	if len(bars) == 0 {
		return 0
	}
	sum := 0.0
	for i := range bars {
		sum += f(bars[i])
	}
	return sum / float64(len(bars))
}

// Closes extracts the close series from a bar window.
func Closes(bars []stock.Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close
	}
	return out
}

// Range holds the price extremes of a window together with where they
// occurred.
type Range struct {
	High    float64
	Low     float64
	HighIdx int
	LowIdx  int
}

// PriceRange scans a window for its highest high and lowest low.
// Ok is false for an empty window.
func PriceRange(bars []stock.Bar) (Range, bool) {
	if len(bars) == 0 {
		return Range{}, false
	}
	r := Range{High: bars[0].High, Low: bars[0].Low}
	for i := 1; i < len(bars); i++ {
		if bars[i].High > r.High {
			r.High = bars[i].High
			r.HighIdx = i
		}
		if bars[i].Low < r.Low {
			r.Low = bars[i].Low
			r.LowIdx = i
		}
	}
	return r, true
}
