package strategy

// Strategy 1: baseline volume contraction. Buys a rising day near the
// bottom of the recent range when volume has been flat for a month and
// then spikes into a 15-day maximum.
func init() {
	register(Rules{
		ID:   1,
		Name: "volume-contraction",
		Buy:  buyVolumeContraction,
		Sell: sellVolumeContraction,
	})
}

func buyVolumeContraction(e Env) Signal {
	if err := checkLastDayUp(e); err != nil {
		return outcome(err)
	}
	if err := checkPriceInLowPercent(e); err != nil {
		return outcome(err)
	}
	avg5, err := checkVolumeRatio(e)
	if err != nil {
		return outcome(err)
	}
	if err := checkLastDayVolume(e, avg5); err != nil {
		return outcome(err)
	}
	if err := checkLastDayIsMaxVolume(e); err != nil {
		return outcome(err)
	}
	return BuyAt(e.Code, e.Name, e.Last().Close)
}

func sellVolumeContraction(e Env, p Position) Signal {
	if len(e.Bars) < 6 {
		return None("not enough bars for the 5-day volume average")
	}
	tail := e.Bars[len(e.Bars)-6 : len(e.Bars)-1]
	avg5 := 0.0
	for _, b := range tail {
		avg5 += b.Volume
	}
	avg5 /= float64(len(tail))

	last := e.Last()
	switch {
	case last.Close < last.Open && last.Volume > 1.5*avg5:
		return SellAt(e.Code, e.Name, last.Close, "down day on 1.5x the 5-day volume")
	case last.Close > last.Open && last.Volume > 4*avg5:
		return SellAt(e.Code, e.Name, last.Close, "up day on 4x the 5-day volume")
	case last.Close < p.BuyPrice*0.93:
		return SellAt(e.Code, e.Name, last.Close, "close below 93% of the buy price")
	}
	return None("no sell condition met")
}
