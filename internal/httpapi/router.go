// Package httpapi exposes the orchestrator process's liveness and
// readiness probes. It deliberately carries no other route: the
// auto-bet pipeline has no CRUD surface to expose.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ReadinessChecker reports whether the orchestrator's most recent tick,
// which calls the race calendar and the schedule store, succeeded recently
// enough.
type ReadinessChecker interface {
	Ready() error
}

// SetupRouter builds the health/readiness gin engine.
func SetupRouter(ready ReadinessChecker, prod bool) *gin.Engine {
	if prod {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/readyz", func(c *gin.Context) {
		if err := ready.Ready(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "reason": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	return r
}
