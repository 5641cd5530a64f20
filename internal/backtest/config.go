// Package backtest replays daily bar histories through the strategy
// engine one simulated day at a time, maintaining a shared cash and
// holdings ledger under capacity constraints.
package backtest

import (
	"errors"
	"time"
)

// Lot is the minimum tradable share increment.
const Lot = 100

// DefaultFeeRate applies when a run does not override it.
const DefaultFeeRate = 0.001

// Config describes one backtest run.
type Config struct {
	StartDate      time.Time
	EndDate        time.Time // zero means run until the data is exhausted
	MaxStocksHolds int
	FeeRate        float64
	MinRemaining   float64 // minimum cash floor before buys stop
	StartBalance   float64

	// AllowPyramiding permits opening a second position in a stock
	// that already has an open holding. Off by default.
	AllowPyramiding bool
}

// Validate normalizes defaults and rejects unusable configs.
func (c *Config) Validate() error {
	if c.StartDate.IsZero() {
		return errors.New("start date is required")
	}
	if c.MaxStocksHolds <= 0 {
		return errors.New("max stock holds must be positive")
	}
	if c.StartBalance <= 0 {
		return errors.New("start balance must be positive")
	}
	if c.MinRemaining < 0 {
		return errors.New("min remaining balance must not be negative")
	}
	if c.FeeRate == 0 {
		c.FeeRate = DefaultFeeRate
	}
	if c.FeeRate < 0 || c.FeeRate >= 1 {
		return errors.New("fee rate out of range")
	}
	if !c.EndDate.IsZero() && c.EndDate.Before(c.StartDate) {
		return errors.New("end date before start date")
	}
	return nil
}
