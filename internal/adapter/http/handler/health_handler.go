package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
)

const checkTimeout = 2 * time.Second

type checkResult struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthCheck handles GET /health. Dependencies are checked in parallel and
// any failure turns the whole report into a 503 so load balancers stop
// routing ledger writes to this instance.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
		defer cancel()

		var (
			mu      sync.Mutex
			wg      sync.WaitGroup
			healthy = true
			report  = make(map[string]checkResult, len(checkers))
		)
		for _, hc := range checkers {
			wg.Add(1)
			go func(hc ports.HealthChecker) {
				defer wg.Done()
				start := time.Now()
				err := hc.Ping(ctx)
				res := checkResult{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
				if err != nil {
					res.Status = "unhealthy"
					res.Error = err.Error()
				}

				mu.Lock()
				defer mu.Unlock()
				report[hc.Name()] = res
				if err != nil {
					healthy = false
				}
			}(hc)
		}
		wg.Wait()

		code, overall := http.StatusOK, "healthy"
		if !healthy {
			code, overall = http.StatusServiceUnavailable, "degraded"
		}
		c.JSON(code, gin.H{"status": overall, "dependencies": report})
	}
}
