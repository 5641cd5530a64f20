package strategy

import "quant-core/internal/indicators"

// Strategy 2 constants: a doubling inside the trailing window, a deep
// pullback from the peak, and a peak that is still fresh.
const (
	s2SpreadMultiple = 2.0
	s2WindowDays     = 26
	s2PullbackMax    = 0.6
	s2PeakFreshBars  = 6
)

// Strategy 2: breakout rebound. Buys a stock that at least doubled
// inside the trailing window, has pulled back below 60% of that peak,
// and whose peak is no older than six trading days.
func init() {
	register(Rules{
		ID:   2,
		Name: "breakout-rebound",
		Buy:  buyBreakoutRebound,
		Sell: sellBreakoutRebound,
	})
}

func buyBreakoutRebound(e Env) Signal {
	r, err := checkPriceSpread(e, s2SpreadMultiple, s2WindowDays)
	if err != nil {
		return outcome(err)
	}
	last := e.Last()
	if last.Close > r.High*s2PullbackMax {
		return None("close above 60% of the recent peak")
	}

	window := within(e.Bars, s2WindowDays*dayDur)
	if len(window)-1-r.HighIdx >= s2PeakFreshBars {
		return None("breakout peak older than six trading days")
	}
	return BuyAt(e.Code, e.Name, last.Close)
}

func sellBreakoutRebound(e Env, p Position) Signal {
	if hasDayUpSince(e.Bars, p.BuyDate) {
		return None("price has risen day-over-day since the buy")
	}
	last := e.Last()
	if indicators.IsDoji(last) || last.Close < last.Open {
		return SellAt(e.Code, e.Name, last.Close, "no rebound since buy and a doji or red day")
	}
	return None("no sell condition met")
}
