package indicators

import "quant-core/internal/stock"

// Candle shape thresholds, expressed as fractions of the day's full
// high-low range.
const (
	dojiBodyMax   = 0.1
	dojiShadowMin = 0.3
	tBodyMax      = 0.2
	tShadowMin    = 0.7
)

func bodyAndShadows(b stock.Bar) (body, upper, lower, full float64) {
	full = b.High - b.Low
	body = b.Close - b.Open
	if body < 0 {
		body = -body
	}
	top, bottom := b.Open, b.Close
	if b.Close > b.Open {
		top, bottom = b.Close, b.Open
	}
	upper = b.High - top
	lower = bottom - b.Low
	return
}

// IsDoji reports a day whose open and close nearly coincide mid-range,
// with meaningful shadows on both sides.
func IsDoji(b stock.Bar) bool {
	body, upper, lower, full := bodyAndShadows(b)
	if full <= 0 {
		return false
	}
	return body <= dojiBodyMax*full &&
		upper >= dojiShadowMin*full &&
		lower >= dojiShadowMin*full
}

// IsUpT reports an inverted-T day: tiny body at the bottom of the range
// with the upper shadow dominating. Mutually exclusive with IsDownT
// since the dominant shadow exceeds half the range.
func IsUpT(b stock.Bar) bool {
	body, upper, _, full := bodyAndShadows(b)
	if full <= 0 {
		return false
	}
	return body <= tBodyMax*full && upper >= tShadowMin*full
}

// IsDownT reports a T-shaped day: tiny body at the top of the range
// with the lower shadow dominating.
func IsDownT(b stock.Bar) bool {
	body, _, lower, full := bodyAndShadows(b)
	if full <= 0 {
		return false
	}
	return body <= tBodyMax*full && lower >= tShadowMin*full
}
