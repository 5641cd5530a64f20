package indicators

import "errors"

// ErrInsufficientData is returned when a series is shorter than an
// indicator needs.
var ErrInsufficientData = errors.New("insufficient data for indicator")

// DefaultRSIPeriod is the lookback the daily strategies evaluate RSI with.
const DefaultRSIPeriod = 12

// RSI computes a Wilder-smoothed Relative Strength Index over the whole
// series and returns the value for the final point. It needs at least
// period+1 values. A series with no average loss yields 0.
func RSI(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("rsi period must be positive")
	}
	if len(values) < period+1 {
		return 0, ErrInsufficientData
	}

	// Seed with the simple average of the first period changes.
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder smoothing for the remainder of the series.
	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 0, nil
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), nil
}
