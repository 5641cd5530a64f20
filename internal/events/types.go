package events

import "time"

// Event enumerates high-level topics inside the quant core.
type Event string

const (
	EventBacktestStarted  Event = "backtest.started"
	EventBacktestTrade    Event = "backtest.trade"
	EventBacktestProgress Event = "backtest.progress"
	EventBacktestFinished Event = "backtest.finished"
	EventRecommendFound   Event = "recommend.found"
	EventTaskState        Event = "task.state"
)

// StreamTopics are the events relayed to websocket clients.
var StreamTopics = []Event{
	EventBacktestStarted,
	EventBacktestTrade,
	EventBacktestProgress,
	EventBacktestFinished,
	EventRecommendFound,
	EventTaskState,
}

// TradePayload is published for every buy and sell a backtest makes.
type TradePayload struct {
	Run          int64     `json:"run"`
	StrategyType int       `json:"strategy_type"`
	Side         string    `json:"side"` // "buy" or "sell"
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Date         time.Time `json:"date"`
	Price        float64   `json:"price"`
	Amount       int64     `json:"amount"`
	Profit       float64   `json:"profit,omitempty"`
	Cash         float64   `json:"cash"`
}

// ProgressPayload is published as the simulated clock advances.
type ProgressPayload struct {
	Run       int64     `json:"run"`
	Date      time.Time `json:"date"`
	Cash      float64   `json:"cash"`
	Open      int       `json:"open_positions"`
	Exhausted int       `json:"exhausted"`
	Total     int       `json:"total_stocks"`
}

// RunPayload is published when a backtest starts or finishes.
type RunPayload struct {
	Run          int64   `json:"run"`
	StrategyType int     `json:"strategy_type"`
	Transactions int     `json:"transactions,omitempty"`
	TotalProfit  float64 `json:"total_profit,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// RecommendPayload is published per recommendation hit.
type RecommendPayload struct {
	StrategyType int     `json:"strategy_type"`
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	Reason       string  `json:"reason"`
}

// TaskStatePayload announces long-running task transitions.
type TaskStatePayload struct {
	Task  string `json:"task"`  // "backtest" or "recommend"
	State string `json:"state"` // "started", "finished", "failed"
	Error string `json:"error,omitempty"`
}
