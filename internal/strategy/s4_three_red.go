package strategy

// Strategy 4 thresholds.
const (
	s4VolumeMultiple = 1.7
	s4AvgWindow      = 22
	s4TakeProfit     = 1.15
	s4StopLoss       = 0.95
	s4MaxHoldDays    = 120
)

// Strategy 4: three red days on volume. Buys after three consecutive
// green days, each trading more than 1.7x its prior 22-day average
// volume. Exits on a fixed profit target, stop, or holding-period cap.
func init() {
	register(Rules{
		ID:   4,
		Name: "three-red-volume",
		Buy:  buyThreeRed,
		Sell: sellThreeRed,
	})
}

func buyThreeRed(e Env) Signal {
	n := len(e.Bars)
	if n < s4AvgWindow+3 {
		return None("not enough bars for the three-red scan")
	}
	for i := n - 3; i < n; i++ {
		b := e.Bars[i]
		if b.Close <= b.Open {
			return None("a day in the last three was not green")
		}
		avg := 0.0
		for _, prior := range e.Bars[i-s4AvgWindow : i] {
			avg += prior.Volume
		}
		avg /= s4AvgWindow
		if b.Volume <= s4VolumeMultiple*avg {
			return None("a green day lacked the 1.7x volume expansion")
		}
	}
	return BuyAt(e.Code, e.Name, e.Last().Close)
}

func sellThreeRed(e Env, p Position) Signal {
	last := e.Last()
	switch {
	case last.Close >= p.BuyPrice*s4TakeProfit:
		return SellAt(e.Code, e.Name, last.Close, "profit target of 15% reached")
	case last.Close <= p.BuyPrice*s4StopLoss:
		return SellAt(e.Code, e.Name, last.Close, "stop loss of 5% reached")
	case last.Date.Sub(p.BuyDate) >= s4MaxHoldDays*dayDur:
		return SellAt(e.Code, e.Name, last.Close, "holding period beyond 120 days")
	}
	return None("no sell condition met")
}
