// Package recommend scans the stored bar histories for stocks whose
// latest session satisfies a strategy's entry rules, without running a
// simulation.
package recommend

import (
	"context"
	"fmt"
	"log"
	"time"

	"quant-core/internal/events"
	"quant-core/internal/monitor"
	"quant-core/internal/stock"
	"quant-core/internal/store"
	"quant-core/internal/strategy"
	"quant-core/pkg/i18n"
)

// DefaultStaleAfter skips stocks whose newest bar is older than this.
// Suspended and delisted codes keep stale histories around.
const DefaultStaleAfter = 7 * 24 * time.Hour

// BarSource loads the ascending bar history for one stock.
type BarSource interface {
	ListBars(ctx context.Context, code string) ([]stock.Bar, error)
}

// Sink persists the scan result for one (date, strategy) pair.
type Sink interface {
	ReplaceRecommendations(ctx context.Context, date string, strategyType int, recs []store.Recommendation) error
}

// Scanner evaluates entry rules across the whole universe.
type Scanner struct {
	bars       BarSource
	sink       Sink
	growth     *strategy.GrowthChecker
	bus        *events.Bus
	metrics    *monitor.SystemMetrics
	StaleAfter time.Duration
}

// NewScanner wires a scanner. bus and metrics may be nil.
func NewScanner(bars BarSource, sink Sink, growth *strategy.GrowthChecker, bus *events.Bus, metrics *monitor.SystemMetrics) *Scanner {
	return &Scanner{
		bars:       bars,
		sink:       sink,
		growth:     growth,
		bus:        bus,
		metrics:    metrics,
		StaleAfter: DefaultStaleAfter,
	}
}

// Scan runs one strategy's buy rules over every stock, persists the
// hits under asOf's date and returns them. Per-stock evaluation
// failures are logged and skipped; store failures abort the scan.
func (s *Scanner) Scan(ctx context.Context, stocks []stock.Ref, strategyType int, asOf time.Time) ([]store.Recommendation, error) {
	if _, ok := strategy.Lookup(strategyType); !ok {
		return nil, fmt.Errorf("unknown strategy type %d", strategyType)
	}

	log.Printf(i18n.M().RecommendStarted, strategyType, len(stocks))
	day := stock.Day(asOf)

	var hits []store.Recommendation
	for _, ref := range stocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars, err := s.bars.ListBars(ctx, ref.Code)
		if err != nil {
			return nil, fmt.Errorf("load bars for %s: %w", ref.Code, err)
		}
		if len(bars) == 0 {
			continue
		}
		if s.StaleAfter > 0 && day.Sub(bars[len(bars)-1].Date) > s.StaleAfter {
			continue
		}

		env := strategy.Env{Ctx: ctx, Bars: bars, Code: ref.Code, Name: ref.Name, Growth: s.growth}
		timer := monitor.NewTimer(s.evalHistogram())
		sig := strategy.EvaluateBuy(strategyType, env)
		timer.Stop()
		if s.metrics != nil {
			s.metrics.IncrementSignals()
		}

		switch sig.Kind {
		case strategy.KindBuy:
			hits = append(hits, store.Recommendation{
				Date:         day,
				StrategyType: strategyType,
				Code:         ref.Code,
				Name:         ref.Name,
				Price:        sig.Price,
				Reason:       sig.Reason,
			})
			log.Printf(i18n.M().RecommendHit, ref.Code, ref.Name, sig.Price, sig.Reason)
			s.publish(events.RecommendPayload{
				StrategyType: strategyType,
				Code:         ref.Code,
				Name:         ref.Name,
				Price:        sig.Price,
				Reason:       sig.Reason,
			})
		case strategy.KindError:
			if s.metrics != nil {
				s.metrics.IncrementErrors()
			}
			log.Printf(i18n.M().StrategyEvalFailed, strategyType, ref.Code, sig.Err)
		}
	}

	dateStr := day.Format(stock.DateLayout)
	if err := s.sink.ReplaceRecommendations(ctx, dateStr, strategyType, hits); err != nil {
		return nil, fmt.Errorf("persist recommendations: %w", err)
	}

	log.Printf(i18n.M().RecommendFinished, len(hits))
	return hits, nil
}

func (s *Scanner) evalHistogram() *monitor.LatencyHistogram {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.EvalLatency
}

func (s *Scanner) publish(payload events.RecommendPayload) {
	if s.bus != nil {
		s.bus.Publish(events.EventRecommendFound, payload)
	}
}
