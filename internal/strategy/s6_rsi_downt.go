package strategy

import "quant-core/internal/indicators"

// Strategy 6 thresholds.
const (
	s6BuyRSI      = 15.0
	s6SellRSI     = 75.0
	s6TakeProfit  = 1.15
	s6LowFraction = 0.2
	s6UpTDays     = 15
)

// Strategy 6: RSI with a Down-T reversal bar. Buys an oversold Down-T
// day sitting in the bottom of the three-year range, with no recent
// Up-T distribution days.
func init() {
	register(Rules{
		ID:   6,
		Name: "rsi-down-t",
		Buy:  buyRSIDownT,
		Sell: sellRSIDownT,
	})
}

func buyRSIDownT(e Env) Signal {
	rsi, err := rsiAt(e)
	if err != nil {
		return outcome(err)
	}
	if rsi > s6BuyRSI {
		return None("rsi above the oversold threshold")
	}
	last := e.Last()
	if !indicators.IsDownT(last) {
		return None("last bar is not a down-t")
	}

	win := within(e.Bars, threeYearDur)
	r, ok := indicators.PriceRange(win)
	if !ok || r.High <= r.Low {
		return None("no usable three-year range")
	}
	if last.Close > r.Low+(r.High-r.Low)*s6LowFraction {
		return None("close not in the bottom of the three-year range")
	}

	if countUpT(e.Bars, s6UpTDays) > 0 {
		return None("an up-t occurred in the last 15 days")
	}
	return BuyAt(e.Code, e.Name, last.Close)
}

func sellRSIDownT(e Env, p Position) Signal {
	rsi, err := rsiAt(e)
	if err != nil {
		return outcome(err)
	}
	last := e.Last()
	switch {
	case rsi >= s6SellRSI:
		return SellAt(e.Code, e.Name, last.Close, "rsi overbought")
	case last.Close >= p.BuyPrice*s6TakeProfit:
		return SellAt(e.Code, e.Name, last.Close, "profit target of 15% reached")
	case countUpT(e.Bars, s6UpTDays) >= 2:
		return SellAt(e.Code, e.Name, last.Close, "repeated up-t days in the last 15 days")
	}
	return None("no sell condition met")
}
