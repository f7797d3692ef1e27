// internal/api/info_handlers.go
package api

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/lco77/netops-portal/internal/models"
)

// @Summary Liveness
// @Description Reports that the process is up.
// @Tags Health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /healthz [get]
func (h *Handlers) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		StartTime: h.startTime,
		Version:   h.deps.Version,
	})
}

// @Summary Readiness
// @Description Checks the job queue and the result store.
// @Tags Health
// @Produce json
// @Success 200 {object} models.ReadinessResponse
// @Failure 503 {object} models.ReadinessResponse
// @Router /readyz [get]
func (h *Handlers) ReadinessHandler(c *gin.Context) {
	resp := models.ReadinessResponse{Status: "ready", Checks: map[string]string{}}
	code := http.StatusOK
	for name, err := range h.deps.Tasks.Ping(c.Request.Context()) {
		if err != nil {
			log.Warnf("Readiness check '%s' failed: %v", name, err)
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	c.JSON(code, resp)
}
