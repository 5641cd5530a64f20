package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"quant-core/internal/monitor"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Per-IP limiter settings. The registry is wiped every resetInterval
// instead of tracking per-entry age; idle clients simply start with a
// fresh bucket.
const (
	perIPRate     = 20
	perIPBurst    = 50
	resetInterval = 5 * time.Minute
)

type limiterRegistry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

var clientLimiters = newLimiterRegistry()

func newLimiterRegistry() *limiterRegistry {
	r := &limiterRegistry{limiters: make(map[string]*rate.Limiter)}
	go func() {
		ticker := time.NewTicker(resetInterval)
		defer ticker.Stop()
		for range ticker.C {
			r.mu.Lock()
			r.limiters = make(map[string]*rate.Limiter)
			r.mu.Unlock()
		}
	}()
	return r
}

func (r *limiterRegistry) get(ip string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[ip]
	if !ok {
		l = rate.NewLimiter(rate.Limit(perIPRate), perIPBurst)
		r.limiters[ip] = l
	}
	return l
}

// CORSMiddleware lets the browser dashboard call the API from another
// origin.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With")
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestIDMiddleware tags each request with an id, honoring one the
// caller already carries.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("RequestID", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// RateLimitMiddleware throttles each client IP independently.
func RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !clientLimiters.get(ip).Allow() {
			log.Printf("rate limit exceeded for %s", ip)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":  "RATE_LIMITED",
				"error": "too many requests",
			})
			return
		}
		c.Next()
	}
}

// TimeoutMiddleware bounds request handling. Quote syncs and backtests
// run in the background, so no handler should legitimately exceed this.
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		finished := make(chan struct{})
		panicked := make(chan any, 1)
		go func() {
			defer func() {
				if p := recover(); p != nil {
					panicked <- p
				}
			}()
			c.Next()
			close(finished)
		}()

		select {
		case <-finished:
		case p := <-panicked:
			log.Printf("handler panic on %s %s: %v", c.Request.Method, c.Request.URL.Path, p)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":  "INTERNAL_ERROR",
				"error": "internal server error",
			})
		case <-ctx.Done():
			log.Printf("request timeout on %s %s", c.Request.Method, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusRequestTimeout, gin.H{
				"code":  "TIMEOUT",
				"error": "request took too long",
			})
		}
	}
}

// RequestLogger logs every request with timing and feeds the API
// latency histogram. metrics may be nil.
func RequestLogger(metrics *monitor.SystemMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		if metrics != nil {
			metrics.APILatency.RecordDuration(latency)
			if status >= 500 {
				metrics.IncrementErrors()
			}
		}

		id := c.GetString("RequestID")
		if len(id) > 8 {
			id = id[:8]
		}
		log.Printf("[API] %s | %s %s | %d | %v | %s",
			id, method, path, status, latency, c.ClientIP())
	}
}
