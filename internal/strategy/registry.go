package strategy

import (
	"fmt"
	"sort"
)

// Rules pairs the buy and sell predicates for one strategy type.
type Rules struct {
	ID   int
	Name string
	Buy  func(Env) Signal
	Sell func(Env, Position) Signal
}

var registry = map[int]Rules{}

// register wires a rule set under its stable integer id at package
// init. Duplicate ids are a programming error.
func register(r Rules) {
	if _, dup := registry[r.ID]; dup {
		panic(fmt.Sprintf("strategy %d registered twice", r.ID))
	}
	registry[r.ID] = r
}

// Types returns the registered strategy ids in ascending order.
func Types() []int {
	ids := make([]int, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Lookup returns the rule set for id.
func Lookup(id int) (Rules, bool) {
	r, ok := registry[id]
	return r, ok
}

// EvaluateBuy runs the buy predicate of the chosen strategy. Unknown
// ids and empty bar histories are evaluation errors, not panics. The
// extreme-growth memo is consulted before any rule set may buy; a nil
// checker skips the gate.
func EvaluateBuy(id int, e Env) Signal {
	r, ok := registry[id]
	if !ok {
		return Fail(fmt.Errorf("unknown strategy type %d", id))
	}
	if len(e.Bars) == 0 {
		return Fail(fmt.Errorf("no bars for %s", e.Code))
	}
	if e.Growth != nil {
		if err := e.Growth.Check(e.Ctx, e.Bars, e.Code, e.Name); err != nil {
			return outcome(err)
		}
	}
	return r.Buy(e)
}

// EvaluateSell runs the sell predicate of the chosen strategy against
// an open position.
func EvaluateSell(id int, e Env, p Position) Signal {
	r, ok := registry[id]
	if !ok {
		return Fail(fmt.Errorf("unknown strategy type %d", id))
	}
	if len(e.Bars) == 0 {
		return Fail(fmt.Errorf("no bars for %s", e.Code))
	}
	return r.Sell(e, p)
}
