package strategy

// Strategy 5 thresholds.
const (
	s5BuyRSI  = 5.0
	s5SellRSI = 75.0
)

// Strategy 5: RSI mean reversion. The simplest rule set: buy deeply
// oversold, sell overbought.
func init() {
	register(Rules{
		ID:   5,
		Name: "rsi-reversion",
		Buy:  buyRSIReversion,
		Sell: sellRSIReversion,
	})
}

func buyRSIReversion(e Env) Signal {
	rsi, err := rsiAt(e)
	if err != nil {
		return outcome(err)
	}
	if rsi > s5BuyRSI {
		return None("rsi above the oversold threshold")
	}
	return BuyAt(e.Code, e.Name, e.Last().Close)
}

func sellRSIReversion(e Env, p Position) Signal {
	rsi, err := rsiAt(e)
	if err != nil {
		return outcome(err)
	}
	if rsi < s5SellRSI {
		return None("rsi below the overbought threshold")
	}
	return SellAt(e.Code, e.Name, e.Last().Close, "rsi overbought")
}
