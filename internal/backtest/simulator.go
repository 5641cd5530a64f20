package backtest

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"quant-core/internal/events"
	"quant-core/internal/monitor"
	"quant-core/internal/stock"
	"quant-core/internal/store"
	"quant-core/internal/strategy"
	"quant-core/pkg/i18n"
)

// BarSource loads the full ascending bar history for one stock.
type BarSource interface {
	ListBars(ctx context.Context, code string) ([]stock.Bar, error)
}

// Ledger is the persisted holdings record a run writes into.
type Ledger interface {
	MaxHoldingID(ctx context.Context) (int64, error)
	CreateHolding(ctx context.Context, h store.Holding) error
	CloseHolding(ctx context.Context, id int64, sellDate string, sellPrice, profit, profitRate, fee float64) error
	InsertBacktestResult(ctx context.Context, r store.BacktestResult) error
}

// RunCounter hands out monotonic run generation numbers.
type RunCounter interface {
	NextRun(ctx context.Context) (int64, error)
}

// Summary is what a finished run reports.
type Summary struct {
	Run           int64   `json:"run"`
	StrategyType  int     `json:"strategy_type"`
	StartBalance  float64 `json:"start_balance"`
	FinalCash     float64 `json:"final_cash"`
	TotalProfit   float64 `json:"total_profit"`
	TotalFees     float64 `json:"total_fees"`
	MaxProfit     float64 `json:"max_profit"`
	MinProfit     float64 `json:"min_profit"`
	Transactions  int     `json:"transactions"`
	MaxConcurrent int     `json:"max_concurrent"`
	DaysSimulated int     `json:"days_simulated"`
	OpenHoldings  int     `json:"open_holdings"`
}

// Simulator drives strategy evaluation across a calendar range. One
// Simulator instance runs one backtest at a time; the day loop is
// deliberately single-threaded since every decision mutates the shared
// ledger.
type Simulator struct {
	bars    BarSource
	ledger  Ledger
	counter RunCounter
	growth  *strategy.GrowthChecker
	bus     *events.Bus
	metrics *monitor.SystemMetrics
}

// NewSimulator wires a simulator. bus and metrics may be nil.
func NewSimulator(bars BarSource, ledger Ledger, counter RunCounter, growth *strategy.GrowthChecker, bus *events.Bus, metrics *monitor.SystemMetrics) *Simulator {
	return &Simulator{
		bars:    bars,
		ledger:  ledger,
		counter: counter,
		growth:  growth,
		bus:     bus,
		metrics: metrics,
	}
}

// stockState is the per-stock windowing for lookahead-safe evaluation.
type stockState struct {
	ref       stock.Ref
	visible   []stock.Bar
	future    []stock.Bar
	exhausted bool
}

// holding is the in-memory view of an open position.
type holding struct {
	id       int64
	code     string
	name     string
	buyPrice float64
	amount   int64
	buyDate  time.Time
}

// Run executes one backtest over the given universe. Store failures
// abort the run; per-stock evaluation errors only skip that stock for
// the day.
func (s *Simulator) Run(ctx context.Context, stocks []stock.Ref, strategyType int, cfg Config) (Summary, error) {
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}
	if _, ok := strategy.Lookup(strategyType); !ok {
		return Summary{}, fmt.Errorf("unknown strategy type %d", strategyType)
	}
	if len(stocks) == 0 {
		return Summary{}, fmt.Errorf("empty stock universe")
	}

	run, err := s.counter.NextRun(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("acquire run number: %w", err)
	}

	states := make([]*stockState, 0, len(stocks))
	for _, ref := range stocks {
		bars, err := s.bars.ListBars(ctx, ref.Code)
		if err != nil {
			return Summary{}, fmt.Errorf("load bars for %s: %w", ref.Code, err)
		}
		if len(bars) == 0 {
			return Summary{}, fmt.Errorf("no bar data for %s", ref.Code)
		}
		if s.metrics != nil {
			s.metrics.AddBars(len(bars))
		}
		visible, future := stock.SplitAt(bars, cfg.StartDate)
		states = append(states, &stockState{ref: ref, visible: visible, future: future})
	}

	maxID, err := s.ledger.MaxHoldingID(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("read max holding id: %w", err)
	}

	log.Printf(i18n.M().BacktestStarted, run, strategyType, len(stocks))
	s.publish(events.EventBacktestStarted, events.RunPayload{Run: run, StrategyType: strategyType})

	r := &runState{
		run:          run,
		strategyType: strategyType,
		cfg:          cfg,
		cash:         cfg.StartBalance,
		totalValue:   cfg.StartBalance,
		nextID:       maxID,
		marks:        map[string]dayMark{},
	}

	day := stock.Day(cfg.StartDate)
	for {
		if r.exhausted >= len(states) {
			break
		}
		if !cfg.EndDate.IsZero() && day.After(cfg.EndDate) {
			break
		}

		s.releaseBars(states, day, r)
		if err := s.sellPass(ctx, states, day, r); err != nil {
			return Summary{}, err
		}
		if err := s.buyPass(ctx, states, day, r); err != nil {
			return Summary{}, err
		}

		r.days++
		if s.metrics != nil {
			s.metrics.IncrementDays()
		}
		s.publish(events.EventBacktestProgress, events.ProgressPayload{
			Run: run, Date: day, Cash: r.cash,
			Open: len(r.holds), Exhausted: r.exhausted, Total: len(states),
		})

		if r.totalValue <= cfg.MinRemaining {
			break
		}
		day = day.AddDate(0, 0, 1)
	}

	sum := Summary{
		Run:           run,
		StrategyType:  strategyType,
		StartBalance:  cfg.StartBalance,
		FinalCash:     r.cash,
		TotalProfit:   r.totalProfit,
		TotalFees:     r.totalFees,
		MaxProfit:     r.maxProfit,
		MinProfit:     r.minProfit,
		Transactions:  r.trades,
		MaxConcurrent: r.maxConcurrent,
		DaysSimulated: r.days,
		OpenHoldings:  len(r.holds),
	}

	result := store.BacktestResult{
		Run:           run,
		StrategyType:  strategyType,
		StartBalance:  cfg.StartBalance,
		FinalCash:     r.cash,
		TotalProfit:   r.totalProfit,
		MaxProfit:     r.maxProfit,
		MinProfit:     r.minProfit,
		Transactions:  r.trades,
		MaxConcurrent: r.maxConcurrent,
		StartedAt:     stock.Day(cfg.StartDate),
		FinishedAt:    day,
	}
	if err := s.ledger.InsertBacktestResult(ctx, result); err != nil {
		return Summary{}, fmt.Errorf("persist run summary: %w", err)
	}

	log.Printf(i18n.M().BacktestFinished, run, sum.Transactions, sum.TotalProfit)
	s.publish(events.EventBacktestFinished, events.RunPayload{
		Run: run, StrategyType: strategyType,
		Transactions: sum.Transactions, TotalProfit: sum.TotalProfit,
	})
	return sum, nil
}

// runState is the mutable ledger for one run.
type runState struct {
	run          int64
	strategyType int
	cfg          Config

	cash        float64 // spendable balance
	totalValue  float64 // start balance net of fees and realized losses
	totalFees   float64
	totalProfit float64
	maxProfit   float64
	minProfit   float64

	holds         []*holding
	nextID        int64
	trades        int
	days          int
	maxConcurrent int
	exhausted     int

	// Per-stock processing markers guaranteeing one fill per day
	// across both passes.
	marks map[string]dayMark
}

// dayMark records the last processed data date for a stock and which
// pass touched it.
type dayMark struct {
	date time.Time
	pass string
}

// releaseBars moves future bars dated on or before day into the
// visible window, counting stocks whose history has run out.
func (s *Simulator) releaseBars(states []*stockState, day time.Time, r *runState) {
	for _, st := range states {
		if len(st.future) == 0 {
			if !st.exhausted {
				st.exhausted = true
				r.exhausted++
				log.Printf(i18n.M().BacktestExhausted, r.run, st.ref.Code)
			}
			continue
		}
		for len(st.future) > 0 && !st.future[0].Date.After(day) {
			st.visible = append(st.visible, st.future[0])
			st.future = st.future[1:]
		}
	}
}

func (s *Simulator) sellPass(ctx context.Context, states []*stockState, day time.Time, r *runState) error {
	if len(r.holds) > r.maxConcurrent {
		r.maxConcurrent = len(r.holds)
	}

	byCode := map[string]*stockState{}
	for _, st := range states {
		byCode[st.ref.Code] = st
	}

	open := append([]*holding(nil), r.holds...)
	for _, h := range open {
		st := byCode[h.code]
		if st == nil || len(st.visible) == 0 {
			continue
		}
		lastDate := st.visible[len(st.visible)-1].Date
		if mark, seen := r.marks[h.code]; seen && !mark.date.Before(lastDate) {
			continue
		}
		r.marks[h.code] = dayMark{date: lastDate, pass: "sell"}

		env := strategy.Env{Ctx: ctx, Bars: st.visible, Code: h.code, Name: h.name, Growth: s.growth}
		timer := monitor.NewTimer(s.evalHistogram())
		sig := strategy.EvaluateSell(r.strategyType, env, strategy.Position{BuyPrice: h.buyPrice, BuyDate: h.buyDate})
		timer.Stop()
		if s.metrics != nil {
			s.metrics.IncrementSignals()
		}

		switch sig.Kind {
		case strategy.KindSell:
			if err := s.executeSell(ctx, h, sig, lastDate, r); err != nil {
				return err
			}
		case strategy.KindError:
			if s.metrics != nil {
				s.metrics.IncrementErrors()
			}
			log.Printf(i18n.M().StrategyEvalFailed, r.strategyType, h.code, sig.Err)
		}
	}
	return nil
}

func (s *Simulator) executeSell(ctx context.Context, h *holding, sig strategy.Signal, lastDate time.Time, r *runState) error {
	amount := float64(h.amount)
	sellValue := sig.Price * amount
	buyValue := h.buyPrice * amount
	fee := r.cfg.FeeRate
	profit := sellValue - buyValue - fee*sellValue - fee*buyValue
	tradeFee := fee*sellValue + fee*buyValue
	profitRate := 0.0
	if buyValue > 0 {
		profitRate = profit / buyValue * 100
	}

	r.totalValue += sellValue - buyValue - fee*sellValue
	r.cash += sellValue - fee*sellValue
	r.totalFees += fee * sellValue
	r.totalProfit += profit
	if r.totalProfit > r.maxProfit {
		r.maxProfit = r.totalProfit
	}
	if r.totalProfit < r.minProfit {
		r.minProfit = r.totalProfit
	}

	for i, held := range r.holds {
		if held.id == h.id {
			r.holds = append(r.holds[:i], r.holds[i+1:]...)
			break
		}
	}
	r.trades++
	if s.metrics != nil {
		s.metrics.IncrementTrades()
	}

	dateStr := lastDate.Format(stock.DateLayout)
	if err := s.ledger.CloseHolding(ctx, h.id, dateStr, sig.Price, profit, profitRate, tradeFee); err != nil {
		return fmt.Errorf("close holding %d: %w", h.id, err)
	}

	log.Printf(i18n.M().BacktestSold, r.run, h.code, h.amount, sig.Price, dateStr, profit)
	s.publish(events.EventBacktestTrade, events.TradePayload{
		Run: r.run, StrategyType: r.strategyType, Side: "sell",
		Code: h.code, Name: h.name, Date: lastDate,
		Price: sig.Price, Amount: h.amount, Profit: profit, Cash: r.cash,
	})
	return nil
}

func (s *Simulator) buyPass(ctx context.Context, states []*stockState, day time.Time, r *runState) error {
	cfg := r.cfg
	if len(r.holds) >= cfg.MaxStocksHolds || r.cash < cfg.MinRemaining {
		return nil
	}

	for _, st := range states {
		if st.exhausted {
			continue
		}
		openSlots := cfg.MaxStocksHolds - len(r.holds)
		if openSlots <= 0 {
			break
		}
		if r.cash < cfg.MinRemaining*float64(openSlots) {
			log.Printf(i18n.M().BacktestInsufficient, r.run)
			break
		}
		if len(st.visible) == 0 {
			continue
		}
		code := st.ref.Code
		lastDate := st.visible[len(st.visible)-1].Date

		// A stock touched already on this data date is done for the day.
		// With pyramiding on, a sell-pass touch does not block a re-entry.
		if mark, seen := r.marks[code]; seen && !mark.date.Before(lastDate) {
			if !cfg.AllowPyramiding || mark.pass == "buy" {
				continue
			}
		}

		env := strategy.Env{Ctx: ctx, Bars: st.visible, Code: code, Name: st.ref.Name, Growth: s.growth}
		timer := monitor.NewTimer(s.evalHistogram())
		sig := strategy.EvaluateBuy(r.strategyType, env)
		timer.Stop()
		if s.metrics != nil {
			s.metrics.IncrementSignals()
		}
		r.marks[code] = dayMark{date: day, pass: "buy"}

		switch sig.Kind {
		case strategy.KindBuy:
			if err := s.executeBuy(ctx, st, sig, lastDate, r); err != nil {
				return err
			}
		case strategy.KindError:
			if s.metrics != nil {
				s.metrics.IncrementErrors()
			}
			log.Printf(i18n.M().StrategyEvalFailed, r.strategyType, code, sig.Err)
		}
	}
	return nil
}

func (s *Simulator) executeBuy(ctx context.Context, st *stockState, sig strategy.Signal, lastDate time.Time, r *runState) error {
	cfg := r.cfg
	openSlots := cfg.MaxStocksHolds - len(r.holds)

	// Equal weight across the remaining open slots, floored to whole
	// lots. Freed capital concentrates into later fills.
	canUse := r.cash / float64(openSlots)
	amount := int64(math.Floor(canUse/(sig.Price*Lot))) * Lot
	if amount <= 0 {
		return nil
	}

	buyValue := sig.Price * float64(amount)
	fee := buyValue * cfg.FeeRate
	r.totalValue -= fee
	r.totalFees += fee
	r.cash -= buyValue + fee

	r.nextID++
	h := &holding{
		id:       r.nextID,
		code:     st.ref.Code,
		name:     st.ref.Name,
		buyPrice: sig.Price,
		amount:   amount,
		buyDate:  lastDate,
	}
	r.holds = append(r.holds, h)
	r.trades++
	if s.metrics != nil {
		s.metrics.IncrementTrades()
	}

	if err := s.ledger.CreateHolding(ctx, store.Holding{
		ID: h.id, Run: r.run, StrategyType: r.strategyType,
		Code: h.code, Name: h.name,
		BuyDate: lastDate, BuyPrice: sig.Price, Amount: amount,
		Reason: sig.Reason,
	}); err != nil {
		return fmt.Errorf("create holding %d: %w", h.id, err)
	}

	dateStr := lastDate.Format(stock.DateLayout)
	log.Printf(i18n.M().BacktestBought, r.run, h.code, amount, sig.Price, dateStr)
	s.publish(events.EventBacktestTrade, events.TradePayload{
		Run: r.run, StrategyType: r.strategyType, Side: "buy",
		Code: h.code, Name: h.name, Date: lastDate,
		Price: sig.Price, Amount: amount, Cash: r.cash,
	})
	return nil
}

func (s *Simulator) evalHistogram() *monitor.LatencyHistogram {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.EvalLatency
}

func (s *Simulator) publish(e events.Event, payload any) {
	if s.bus != nil {
		s.bus.Publish(e, payload)
	}
}
