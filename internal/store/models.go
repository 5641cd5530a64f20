package store

import "time"

// GrowthMonth marks one calendar month in which a stock satisfied the
// monthly growth condition. ID is "<code>-<YYYY-MM>".
type GrowthMonth struct {
	ID        string
	Code      string
	Month     string
	Ratio     float64
	CreatedAt time.Time
}

// PriceRange memoizes the monthly high/low extremes used by the growth
// scan. ID is "<code>-<YYYY-MM>".
type PriceRange struct {
	ID       string
	Code     string
	Month    string
	High     float64
	Low      float64
	HighDate time.Time
	LowDate  time.Time
}

// Holding is one position in a backtest run ledger. An open position
// has SellDate nil; closing it fills SellDate, SellPrice and Profit.
type Holding struct {
	ID           int64
	Run          int64
	StrategyType int
	Code         string
	Name         string
	BuyDate      time.Time
	BuyPrice     float64
	Amount       int64
	SellDate     *time.Time
	SellPrice    *float64
	Profit       *float64
	ProfitRate   *float64
	Fee          *float64
	Reason       string
}

// Recommendation is one live-scan hit for a (date, strategy) pair.
type Recommendation struct {
	ID           int64
	Date         time.Time
	StrategyType int
	Code         string
	Name         string
	Price        float64
	Reason       string
}

// BacktestResult is the summary row written when a run finishes.
type BacktestResult struct {
	ID            int64
	Run           int64
	StrategyType  int
	StartBalance  float64
	FinalCash     float64
	TotalProfit   float64
	MaxProfit     float64
	MinProfit     float64
	Transactions  int
	MaxConcurrent int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// User is an API account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Meta is the singleton row holding quote credentials and the run counter.
type Meta struct {
	Cookie string
	Token  string
	Times  int64
}
