// Package api exposes the quant core over HTTP and websocket.
package api

import (
	"net/http"
	"time"

	"quant-core/internal/app"
	"quant-core/internal/events"
	"quant-core/internal/monitor"
	"quant-core/internal/store"
	"quant-core/pkg/config"

	"github.com/gin-gonic/gin"
)

// Server wires HTTP endpoints around the service layer.
type Server struct {
	Router    *gin.Engine
	Service   *app.Service
	Store     *store.Store
	Bus       *events.Bus
	Metrics   *monitor.SystemMetrics
	Cfg       *config.Config
	JWTSecret string
}

func NewServer(service *app.Service, st *store.Store, bus *events.Bus, metrics *monitor.SystemMetrics, cfg *config.Config) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(metrics))
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Service:   service,
		Store:     st,
		Bus:       bus,
		Metrics:   metrics,
		Cfg:       cfg,
		JWTSecret: cfg.JWTSecret,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.GET("/metrics", s.getMetrics)

		// Auth endpoints (no auth required)
		auth := api.Group("/auth")
		{
			auth.POST("/register", s.registerUser)
			auth.POST("/login", s.loginUser)
		}

		// Protected API
		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/backtest/types", s.getStrategyTypes)
			protected.POST("/backtest/start", s.startBacktest)
			protected.GET("/backtest/results", s.getResults)
			protected.GET("/backtest/times", s.getTimes)
			protected.GET("/holdings", s.getHoldings)
			protected.DELETE("/holdings", s.clearHoldings)

			protected.POST("/recommend/start", s.startRecommend)
			protected.GET("/recommend", s.getRecommendations)

			protected.PUT("/credentials", s.putCredentials)
			protected.POST("/sync", s.startSync)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
