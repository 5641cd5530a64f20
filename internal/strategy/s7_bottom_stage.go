package strategy

import "quant-core/internal/indicators"

// Strategy 7 thresholds.
const (
	s7BuyRSI         = 15.0
	s7SellRSI        = 75.0
	s7TakeProfit     = 1.25
	s7DeclineWindows = 8
	s7DeclineDown    = 6
	s7WindowLen      = 5
	s7Stages         = 10
	s7BottomStages   = 2
	s7BottomShare    = 0.2
	s7UpTDays        = 15
)

// Strategy 7: bottom-stage RSI. Buys an oversold Down-T day on a stock
// that has spent enough time in the bottom of its historical price
// bands without being in a persistent decline.
func init() {
	register(Rules{
		ID:   7,
		Name: "bottom-stage",
		Buy:  buyBottomStage,
		Sell: sellBottomStage,
	})
}

// inPersistentDecline splits the trailing bars into five-day windows
// and counts the falling ones.
func inPersistentDecline(e Env) bool {
	n := len(e.Bars)
	need := s7DeclineWindows * s7WindowLen
	if n < need {
		return false
	}
	down := 0
	for w := 0; w < s7DeclineWindows; w++ {
		end := n - w*s7WindowLen
		start := end - s7WindowLen
		if e.Bars[end-1].Close < e.Bars[start].Close {
			down++
		}
	}
	return down >= s7DeclineDown
}

// bottomStageShare returns the fraction of closes inside the bottom
// price stages when the full history is cut into s7Stages equal bands.
func bottomStageShare(e Env) float64 {
	r, ok := indicators.PriceRange(e.Bars)
	if !ok || r.High <= r.Low {
		return 0
	}
	stageHeight := (r.High - r.Low) / s7Stages
	cutoff := r.Low + stageHeight*s7BottomStages
	inBottom := 0
	for _, b := range e.Bars {
		if b.Close <= cutoff {
			inBottom++
		}
	}
	return float64(inBottom) / float64(len(e.Bars))
}

func buyBottomStage(e Env) Signal {
	if inPersistentDecline(e) {
		return None("persistent decline across the recent five-day windows")
	}
	if bottomStageShare(e) < s7BottomShare {
		return None("price has not dwelt in the bottom stages long enough")
	}
	last := e.Last()
	if !indicators.IsDownT(last) {
		return None("last bar is not a down-t")
	}
	if countUpT(e.Bars, s7UpTDays) > 0 {
		return None("an up-t occurred in the last 15 days")
	}
	rsi, err := rsiAt(e)
	if err != nil {
		return outcome(err)
	}
	if rsi > s7BuyRSI {
		return None("rsi above the oversold threshold")
	}
	return BuyAt(e.Code, e.Name, last.Close)
}

func sellBottomStage(e Env, p Position) Signal {
	rsi, err := rsiAt(e)
	if err != nil {
		return outcome(err)
	}
	last := e.Last()
	if rsi >= s7SellRSI && !isLimitUp(e.Bars) {
		return SellAt(e.Code, e.Name, last.Close, "rsi overbought without a limit-up")
	}
	if last.Close >= p.BuyPrice*s7TakeProfit {
		return SellAt(e.Code, e.Name, last.Close, "profit target of 25% reached")
	}
	return None("no sell condition met")
}
