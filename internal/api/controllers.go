package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"quant-core/internal/app"
	"quant-core/internal/backtest"
	"quant-core/internal/stock"
	"quant-core/internal/strategy"

	"github.com/gin-gonic/gin"
)

type startBacktestRequest struct {
	StrategyType    int     `json:"strategy_type" binding:"required"`
	StartDate       string  `json:"start_date" binding:"required"`
	EndDate         string  `json:"end_date"`
	MaxStocksHolds  int     `json:"max_stocks_holds"`
	StartBalance    float64 `json:"start_balance"`
	MinRemaining    float64 `json:"min_remaining"`
	FeeRate         float64 `json:"fee_rate"`
	AllowPyramiding *bool   `json:"allow_pyramiding"`
}

type startRecommendRequest struct {
	StrategyType int `json:"strategy_type" binding:"required"`
}

type credentialsRequest struct {
	Cookie string `json:"cookie" binding:"required"`
	Token  string `json:"token" binding:"required"`
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

// getStrategyTypes lists the registered strategy ids with their names.
func (s *Server) getStrategyTypes(c *gin.Context) {
	type entry struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	var out []entry
	for _, id := range strategy.Types() {
		r, _ := strategy.Lookup(id)
		out = append(out, entry{ID: r.ID, Name: r.Name})
	}
	c.JSON(http.StatusOK, gin.H{"types": out})
}

// startBacktest launches a background backtest run.
func (s *Server) startBacktest(c *gin.Context) {
	var req startBacktestRequest
	if err := c.BindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}

	start, err := stock.ParseDate(req.StartDate)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_DATE", "start_date must be YYYY-MM-DD")
		return
	}
	cfg := backtest.Config{
		StartDate:       start,
		MaxStocksHolds:  req.MaxStocksHolds,
		StartBalance:    req.StartBalance,
		MinRemaining:    req.MinRemaining,
		FeeRate:         req.FeeRate,
		AllowPyramiding: s.Cfg.BacktestAllowPyramiding,
	}
	if req.EndDate != "" {
		if cfg.EndDate, err = stock.ParseDate(req.EndDate); err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_DATE", "end_date must be YYYY-MM-DD")
			return
		}
	}
	if cfg.MaxStocksHolds == 0 {
		cfg.MaxStocksHolds = s.Cfg.BacktestMaxPositions
	}
	if cfg.StartBalance == 0 {
		cfg.StartBalance = s.Cfg.BacktestStartBalance
	}
	if cfg.MinRemaining == 0 {
		cfg.MinRemaining = s.Cfg.BacktestMinRemaining
	}
	if cfg.FeeRate == 0 {
		cfg.FeeRate = s.Cfg.BacktestFeeRate
	}
	if req.AllowPyramiding != nil {
		cfg.AllowPyramiding = *req.AllowPyramiding
	}

	if err := s.Service.StartBacktest(c.Request.Context(), req.StrategyType, cfg); err != nil {
		var conflict *app.TaskConflictError
		if errors.As(err, &conflict) {
			respondError(c, http.StatusConflict, "TASK_RUNNING", err.Error())
			return
		}
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// getResults returns the most recent run summaries.
func (s *Server) getResults(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	results, err := s.Service.Results(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// getTimes returns the current run generation counter.
func (s *Server) getTimes(c *gin.Context) {
	times, err := s.Service.Times(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"times": times})
}

// getHoldings returns the trade ledger of one run generation.
func (s *Server) getHoldings(c *gin.Context) {
	raw := c.Query("times")
	if raw == "" {
		respondError(c, http.StatusBadRequest, "MISSING_TIMES", "times query parameter is required")
		return
	}
	run, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || run <= 0 {
		respondError(c, http.StatusBadRequest, "INVALID_TIMES", "times must be a positive integer")
		return
	}

	current, err := s.Service.Times(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if run > current {
		respondError(c, http.StatusBadRequest, "UNKNOWN_GENERATION", "that run generation has not started yet")
		return
	}

	holdings, err := s.Service.HoldingsByRun(c.Request.Context(), run)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "holdings": holdings})
}

// clearHoldings wipes the mock ledger across all runs.
func (s *Server) clearHoldings(c *gin.Context) {
	if err := s.Service.ClearHoldings(c.Request.Context()); err != nil {
		var conflict *app.TaskConflictError
		if errors.As(err, &conflict) {
			respondError(c, http.StatusConflict, "TASK_RUNNING", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// startRecommend launches a background recommendation scan.
func (s *Server) startRecommend(c *gin.Context) {
	var req startRecommendRequest
	if err := c.BindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	if err := s.Service.StartRecommend(c.Request.Context(), req.StrategyType); err != nil {
		var conflict *app.TaskConflictError
		if errors.As(err, &conflict) {
			respondError(c, http.StatusConflict, "TASK_RUNNING", err.Error())
			return
		}
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// getRecommendations returns the stored hit list for one day. Before
// the session opens at ten the previous day's list is still the
// current one.
func (s *Server) getRecommendations(c *gin.Context) {
	strategyType, err := strconv.Atoi(c.Query("type"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_TYPE", "type query parameter is required")
		return
	}

	date := c.Query("date")
	if date == "" {
		date = recommendDate(time.Now())
	}

	recs, err := s.Service.Recommendations(c.Request.Context(), date, strategyType)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "recommendations": recs})
}

func recommendDate(now time.Time) string {
	if now.Hour() < 10 {
		now = now.AddDate(0, 0, -1)
	}
	return now.Format(stock.DateLayout)
}

// getStatus reports the currently running background task, if any.
func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"task": s.Service.ActiveTask()})
}

// putCredentials stores fresh quote session material.
func (s *Server) putCredentials(c *gin.Context) {
	var req credentialsRequest
	if err := c.BindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "cookie and token are required")
		return
	}
	if err := s.Service.SetCredentials(c.Request.Context(), req.Cookie, req.Token); err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// startSync launches a background bar history refresh for the whole
// universe.
func (s *Server) startSync(c *gin.Context) {
	if err := s.Service.StartSync(c.Request.Context()); err != nil {
		var conflict *app.TaskConflictError
		if errors.As(err, &conflict) {
			respondError(c, http.StatusConflict, "TASK_RUNNING", err.Error())
			return
		}
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// getMetrics exposes the monitor snapshot.
func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}
