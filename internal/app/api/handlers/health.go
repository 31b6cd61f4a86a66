package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studygenius/billing/pkg/response"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// @Summary      Health check
// @Description  Returns service status; "degraded" with 503 when the database is unreachable
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /healthz [get]
func ApiHealthz(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, response.ErrorT(response.APIResponseCodeError, map[string]string{"status": "degraded", "database": err.Error()}))
				return
			}
		}
		c.JSON(http.StatusOK, response.OKT(map[string]string{"status": "ok"}))
	}
}

// RegisterHealthRoutes mounts /healthz. db may be nil for a liveness-only check.
func RegisterHealthRoutes(r gin.IRouter, db Pinger) {
	r.GET("/healthz", ApiHealthz(db))
}
