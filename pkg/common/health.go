package common

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

var startedAt = time.Now()

// HealthResponse is the body of the liveness and readiness probes
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version"`
	Uptime  string            `json:"uptime"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthCheck is the liveness probe. It never touches dependencies.
func HealthCheck(serviceName, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status:  statusHealthy,
			Service: serviceName,
			Version: version,
			Uptime:  time.Since(startedAt).Round(time.Second).String(),
		})
	}
}

// HealthCheckWithDeps is the readiness probe. Checks run concurrently and any
// failure turns the probe into a 503 naming the failing dependency.
func HealthCheckWithDeps(serviceName, version string, checks map[string]func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		results := make(map[string]string, len(checks))
		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for name, check := range checks {
			wg.Add(1)
			go func(name string, check func() error) {
				defer wg.Done()
				res := statusHealthy
				if err := check(); err != nil {
					res = statusUnhealthy + ": " + err.Error()
				}
				mu.Lock()
				results[name] = res
				mu.Unlock()
			}(name, check)
		}
		wg.Wait()

		status, code := statusHealthy, http.StatusOK
		for _, res := range results {
			if res != statusHealthy {
				status, code = statusUnhealthy, http.StatusServiceUnavailable
				break
			}
		}

		c.JSON(code, HealthResponse{
			Status:  status,
			Service: serviceName,
			Version: version,
			Uptime:  time.Since(startedAt).Round(time.Second).String(),
			Checks:  results,
		})
	}
}
