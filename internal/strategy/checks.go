package strategy

import (
	"strings"
	"time"

	"quant-core/internal/indicators"
	"quant-core/internal/stock"
)

// Shared threshold constants. These are contract values the reference
// backtests depend on, not tuning knobs.
const (
	monthGrowthRatio      = 3.0
	threeMonthsLowPercent = 0.35
	volumeRatio           = 0.2
	lastDayVolumeLow      = 1.5
	lastDayVolumeHigh     = 4.0
	maxVolumeRangeDays    = 15
	limitUpThreshold      = 0.0995
)

const (
	dayDur        = 24 * time.Hour
	monthDur      = 30 * dayDur
	threeMonthDur = 3 * monthDur
	threeYearDur  = 3 * 365 * dayDur
)

// within returns the trailing bars dated inside the last d of the
// decision day.
func within(bars []stock.Bar, d time.Duration) []stock.Bar {
	last := bars[len(bars)-1]
	return stock.Since(bars, last.Date.Add(-d))
}

// withoutLast drops the decision-day bar from a window.
func withoutLast(bars []stock.Bar) []stock.Bar {
	if len(bars) == 0 {
		return bars
	}
	return bars[:len(bars)-1]
}

func checkLastDayUp(e Env) error {
	last := e.Last()
	if last.Open < last.Close {
		return nil
	}
	return condf("%s (%s): last day did not rise", e.Name, e.Code)
}

// checkPriceInLowPercent requires the decision close to sit in the
// bottom fraction of the trailing three-month price range.
func checkPriceInLowPercent(e Env) error {
	window := within(e.Bars, threeMonthDur)
	r, ok := indicators.PriceRange(window)
	if !ok {
		return condf("%s (%s): no bars in the three-month window", e.Name, e.Code)
	}
	if e.Last().Close < r.Low+(r.High-r.Low)*threeMonthsLowPercent {
		return nil
	}
	return condf("%s (%s): close not in the bottom %.0f%% of the three-month range",
		e.Name, e.Code, threeMonthsLowPercent*100)
}

// checkVolumeRatio requires the 5-day and 30-day average volumes to
// agree within volumeRatio, and hands back the 5-day average for the
// follow-up checks.
func checkVolumeRatio(e Env) (float64, error) {
	window := withoutLast(within(e.Bars, monthDur))
	if len(window) == 0 {
		return 0, condf("%s (%s): no bars in the one-month window", e.Name, e.Code)
	}
	tail5 := stock.Tail(window, 5)
	avg5 := indicators.Avg(tail5, indicators.ByVolume)
	avg30 := indicators.Avg(window, indicators.ByVolume)

	lo, hi := avg5, avg30
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo > 0 && (hi-lo)/lo < volumeRatio {
		return avg5, nil
	}
	return 0, condf("%s (%s): 5-day and 30-day average volumes differ beyond %.0f%%",
		e.Name, e.Code, volumeRatio*100)
}

func checkLastDayVolume(e Env, avg5 float64) error {
	v := e.Last().Volume
	if v < avg5*lastDayVolumeLow || v > avg5*lastDayVolumeHigh {
		return condf("%s (%s): last-day volume outside %.1fx-%.1fx of the 5-day average",
			e.Name, e.Code, lastDayVolumeLow, lastDayVolumeHigh)
	}
	return nil
}

// checkLastDayIsMaxVolume requires the decision-day volume to top the
// prior 15 days, with the previous day clearly below it.
func checkLastDayIsMaxVolume(e Env) error {
	window := withoutLast(within(e.Bars, maxVolumeRangeDays*dayDur))
	if len(window) == 0 {
		return condf("%s (%s): no bars in the %d-day window", e.Name, e.Code, maxVolumeRangeDays)
	}
	lastVol := e.Last().Volume
	if i := indicators.MaxBar(window, indicators.ByVolume); window[i].Volume >= lastVol {
		return condf("%s (%s): last-day volume is not the %d-day maximum",
			e.Name, e.Code, maxVolumeRangeDays)
	}
	if len(e.Bars) >= 2 && e.Bars[len(e.Bars)-2].Volume > lastVol*0.7 {
		return condf("%s (%s): previous-day volume above 70%% of the last day", e.Name, e.Code)
	}
	return nil
}

// checkPriceSpread requires the trailing window's high/low ratio to
// reach multiple, returning the window extremes.
func checkPriceSpread(e Env, multiple float64, days int) (indicators.Range, error) {
	window := within(e.Bars, time.Duration(days)*dayDur)
	r, ok := indicators.PriceRange(window)
	if !ok || r.Low <= 0 {
		return indicators.Range{}, condf("%s (%s): no usable bars in the %d-day window", e.Name, e.Code, days)
	}
	if r.High/r.Low >= multiple {
		return r, nil
	}
	return indicators.Range{}, condf("%s (%s): %d-day high/low spread below %.1fx", e.Name, e.Code, days, multiple)
}

// hasDayUpSince reports whether any day-over-day close rise occurred in
// bars dated on or after from.
func hasDayUpSince(bars []stock.Bar, from time.Time) bool {
	window := stock.Since(bars, from)
	if len(window) == 0 {
		return false
	}
	prev := window[0].Close
	for _, b := range window {
		if b.Close > prev {
			return true
		}
		prev = b.Close
	}
	return false
}

// isLimitUp reports a close at or beyond the daily limit versus the
// previous close.
func isLimitUp(bars []stock.Bar) bool {
	if len(bars) < 2 {
		return false
	}
	prev := bars[len(bars)-2].Close
	if prev <= 0 {
		return false
	}
	return (bars[len(bars)-1].Close-prev)/prev >= limitUpThreshold
}

// countUpT counts Up-T days in the trailing days window.
func countUpT(bars []stock.Bar, days int) int {
	n := 0
	for _, b := range within(bars, time.Duration(days)*dayDur) {
		if indicators.IsUpT(b) {
			n++
		}
	}
	return n
}

func isSTName(name string) bool {
	return strings.Contains(strings.ToUpper(name), "ST")
}

// rsiAt evaluates RSI on the full close history. Short histories fail
// as a condition rather than an error.
func rsiAt(e Env) (float64, error) {
	v, err := indicators.RSI(indicators.Closes(e.Bars), indicators.DefaultRSIPeriod)
	if err != nil {
		if err == indicators.ErrInsufficientData {
			return 0, condf("%s (%s): not enough bars for RSI", e.Name, e.Code)
		}
		return 0, err
	}
	return v, nil
}
