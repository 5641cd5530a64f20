// Package strategy implements the rule-based buy/sell predicates that the
// backtest simulator and the live recommendation scan evaluate against
// daily bar histories. Each strategy is a conjunction of independent
// checks; the first failing check turns the evaluation into a no-signal
// result carrying the reason.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quant-core/internal/stock"
)

// Kind tags the outcome of one evaluation.
type Kind int

const (
	KindNone Kind = iota
	KindBuy
	KindSell
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindBuy:
		return "buy"
	case KindSell:
		return "sell"
	case KindError:
		return "error"
	default:
		return "none"
	}
}

// Signal is the tagged result of a strategy evaluation. A no-signal
// outcome is expected and carries the failed condition in Reason; only
// KindError marks an unexpected failure.
type Signal struct {
	Kind   Kind
	Code   string
	Name   string
	Price  float64
	Reason string
	Err    error
}

// None builds an expected no-signal result.
func None(reason string) Signal {
	return Signal{Kind: KindNone, Reason: reason}
}

// BuyAt builds a buy signal at the given price.
func BuyAt(code, name string, price float64) Signal {
	return Signal{Kind: KindBuy, Code: code, Name: name, Price: price}
}

// SellAt builds a sell signal at the given price.
func SellAt(code, name string, price float64, reason string) Signal {
	return Signal{Kind: KindSell, Code: code, Name: name, Price: price, Reason: reason}
}

// Fail wraps an unexpected evaluation failure.
func Fail(err error) Signal {
	return Signal{Kind: KindError, Err: err}
}

// condition marks an expected failed check, as opposed to a real error.
type condition struct{ msg string }

func (c *condition) Error() string { return c.msg }

func condf(format string, args ...any) error {
	return &condition{msg: fmt.Sprintf(format, args...)}
}

// IsCondition reports whether err is an expected failed check.
func IsCondition(err error) bool {
	var c *condition
	return errors.As(err, &c)
}

// outcome converts a check-chain error into the matching Signal.
func outcome(err error) Signal {
	if IsCondition(err) {
		return None(err.Error())
	}
	return Fail(err)
}

// Env is the input to one evaluation: the ascending bar history up to
// the decision day plus the stock identity and shared services.
type Env struct {
	Ctx    context.Context
	Bars   []stock.Bar
	Code   string
	Name   string
	Growth *GrowthChecker
}

// Last returns the decision-day bar.
func (e Env) Last() stock.Bar { return e.Bars[len(e.Bars)-1] }

// Position carries the open-holding context a sell evaluation needs.
type Position struct {
	BuyPrice float64
	BuyDate  time.Time
}
