package strategy

import (
	"quant-core/internal/indicators"
	"quant-core/internal/stock"
)

// Strategy 3 thresholds.
const (
	s3LowMultiple      = 1.25 // close vs 30-day low
	s3LongAvgDiscount  = 0.7  // close vs 500-day average
	s3RangeCapMultiple = 1.45 // 120-day high vs low
	s3ExpansionLow     = 1.5
	s3ExpansionHigh    = 2.0
)

// Strategy 3: low-volume expansion. Buys the first moderate volume
// expansion off a long base, with the price still pinned near its lows.
func init() {
	register(Rules{
		ID:   3,
		Name: "volume-expansion",
		Buy:  buyVolumeExpansion,
		Sell: sellVolumeExpansion,
	})
}

func buyVolumeExpansion(e Env) Signal {
	if isSTName(e.Name) {
		return None("ST-flagged stock")
	}
	last := e.Last()

	win30 := within(e.Bars, 30*dayDur)
	if i := indicators.MinBar(win30, indicators.ByLow); i < 0 || last.Close > win30[i].Low*s3LowMultiple {
		return None("close above 1.25x the 30-day low")
	}
	if avg5 := indicators.Avg(within(e.Bars, 5*dayDur), indicators.ByClose); last.Close <= avg5 {
		return None("close not above the 5-day average")
	}

	win20 := within(e.Bars, 20*dayDur)
	if i := indicators.MaxBar(win20, indicators.ByVolume); i < 0 || win20[i].Volume != last.Volume {
		return None("last-day volume is not the 20-day maximum")
	}
	if last.Close <= last.Open {
		return None("last day is not green")
	}

	avg20 := indicators.Avg(win20, indicators.ByVolume)
	if last.Volume < s3ExpansionLow*avg20 || last.Volume > s3ExpansionHigh*avg20 {
		return None("last-day volume outside 1.5x-2x of the 20-day average")
	}
	// First such expansion: no earlier day in the window qualifies.
	for _, b := range withoutLast(win20) {
		if b.Volume >= s3ExpansionLow*avg20 && b.Volume <= s3ExpansionHigh*avg20 {
			return None("an earlier volume expansion already occurred")
		}
	}

	win500 := within(e.Bars, 500*dayDur)
	if avg500 := indicators.Avg(win500, indicators.ByClose); last.Close > avg500*s3LongAvgDiscount {
		return None("close above 70% of the 500-day average")
	}

	win120 := within(e.Bars, 120*dayDur)
	r, ok := indicators.PriceRange(win120)
	if !ok || r.LowIdx >= r.HighIdx {
		return None("120-day low does not precede the high")
	}
	if r.High > r.Low*s3RangeCapMultiple {
		return None("120-day high exceeds 1.45x the low")
	}

	return BuyAt(e.Code, e.Name, last.Close)
}

func sellVolumeExpansion(e Env, p Position) Signal {
	last := e.Last()
	n := len(e.Bars)

	if indicators.IsDoji(last) && n >= 4 {
		base := e.Bars[n-4].Close
		if base > 0 && (last.Close-base)/base >= 0.25 {
			return SellAt(e.Code, e.Name, last.Close, "doji after a 25% three-day rise")
		}
	}

	if full := last.High - last.Low; full > 0 {
		body := last.Close - last.Open
		if body < 0 {
			body = -body
		}
		if body <= 0.2*full && full >= 0.05*last.Close {
			return SellAt(e.Code, e.Name, last.Close, "large shadow day")
		}
	}

	if avg3 := indicators.Avg(stock.Tail(e.Bars, 3), indicators.ByClose); last.Close < avg3 {
		return SellAt(e.Code, e.Name, last.Close, "close below the 3-day average")
	}

	if n >= 40 {
		recent := e.Bars[n-20:]
		prior := e.Bars[n-40 : n-20]
		ri := indicators.MaxBar(recent, indicators.ByVolume)
		pi := indicators.MaxBar(prior, indicators.ByVolume)
		if recent[ri].Volume > 2*prior[pi].Volume && !isLimitUp(e.Bars) {
			return SellAt(e.Code, e.Name, last.Close, "20-day volume peak doubled the prior window without a limit-up")
		}
	}

	if n >= 2 {
		prev := e.Bars[n-2].Close
		if prev > 0 && last.Close < prev*0.95 {
			return SellAt(e.Code, e.Name, last.Close, "day drop beyond 5%")
		}
	}
	if last.Open > 0 && (last.Close-last.Open)/last.Open >= 0.045 {
		return SellAt(e.Code, e.Name, last.Close, "intraday gain of 4.5% or more")
	}
	if n >= 3 {
		base := e.Bars[n-3].Close
		if base > 0 && last.Close < base*0.93 {
			return SellAt(e.Code, e.Name, last.Close, "close below 93% of the close two days ago")
		}
	}
	return None("no sell condition met")
}
