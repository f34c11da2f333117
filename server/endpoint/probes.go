package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/streamfetch/component"
)

// HealthChecker returns health status for registered components.
type HealthChecker func(ctx context.Context) []component.Health

// probe is the body of /health, /livez and /readyz.
type probe struct {
	Status     string             `json:"status"`
	Service    string             `json:"service"`
	Timestamp  string             `json:"timestamp"`
	Components []component.Health `json:"components,omitempty"`
	Unhealthy  []string           `json:"unhealthy,omitempty"`
}

func newProbe(service, status string) probe {
	return probe{Status: status, Service: service, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

// aggregate folds component states: unhealthy beats degraded beats healthy.
// It also returns the names of unhealthy components.
func aggregate(components []component.Health) (component.HealthStatus, []string) {
	status := component.StatusHealthy
	var down []string
	for _, h := range components {
		switch h.Status {
		case component.StatusUnhealthy:
			status = component.StatusUnhealthy
			down = append(down, h.Name)
		case component.StatusDegraded:
			if status == component.StatusHealthy {
				status = component.StatusDegraded
			}
		}
	}
	return status, down
}

func check(ctx context.Context, checker HealthChecker) []component.Health {
	if checker == nil {
		return nil
	}
	return checker(ctx)
}

// Health reports every component. It answers 503 when any is unhealthy; a
// degraded plugin at stream capacity is reported but still 200.
func Health(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		components := check(c.Request.Context(), checker)
		status, _ := aggregate(components)

		body := newProbe(serviceName, string(status))
		body.Components = components
		code := http.StatusOK
		if status == component.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, body)
	}
}

// Liveness only confirms the process serves HTTP.
func Liveness(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, newProbe(serviceName, "alive"))
	}
}

// Readiness answers 503 naming the unhealthy components. Degraded counts
// as ready.
func Readiness(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, down := aggregate(check(c.Request.Context(), checker))
		if status == component.StatusUnhealthy {
			body := newProbe(serviceName, "not_ready")
			body.Unhealthy = down
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		c.JSON(http.StatusOK, newProbe(serviceName, "ready"))
	}
}
