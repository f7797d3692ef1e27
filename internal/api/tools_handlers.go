// internal/api/tools_handlers.go
package api

import (
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/lco77/netops-portal/internal/models"
)

// @Summary Resolve hostname
// @Description Resolves a hostname to its first IPv4 address (or first address when there is none).
// @Tags Tools
// @Accept json
// @Produce json
// @Param request body models.ResolveRequest true "Hostname to resolve"
// @Success 200 {object} models.ResolveResponse
// @Failure 400 {object} models.ErrorResponse "Invalid input or hostname not resolvable"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Router /api/resolve [post]
func (h *Handlers) ResolveHandler(c *gin.Context) {
	username := c.GetString(ctxUsername)

	var req models.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Resolve failed for user '%s': Invalid request body: %v", username, err)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	ip, err := h.deps.Resolver.Resolve(c.Request.Context(), req.Hostname)
	if err != nil {
		writeResolveError(c, username, req.Hostname, err)
		return
	}

	log.Debugf("Resolve user '%s': '%s' -> %s", username, req.Hostname, ip)
	c.JSON(http.StatusOK, models.ResolveResponse{IP: ip})
}

// @Summary Device lookup
// @Description Looks a device up by hostname and returns the address jobs should target.
// @Tags Devices
// @Produce json
// @Param hostname query string true "Device hostname"
// @Success 200 {object} models.DeviceLookupResponse
// @Failure 400 {object} models.ErrorResponse "Missing or unresolvable hostname"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Router /api/devices/lookup [get]
func (h *Handlers) DeviceLookupHandler(c *gin.Context) {
	username := c.GetString(ctxUsername)
	hostname := strings.TrimSpace(c.Query("hostname"))
	if hostname == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Query parameter 'hostname' is required"})
		return
	}

	ip, err := h.deps.Resolver.Resolve(c.Request.Context(), hostname)
	if err != nil {
		writeResolveError(c, username, hostname, err)
		return
	}

	log.Infof("DeviceLookup user '%s': '%s' -> %s", username, hostname, ip)
	c.JSON(http.StatusOK, models.DeviceLookupResponse{Hostname: hostname, IPAddress: ip})
}
