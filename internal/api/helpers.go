// internal/api/helpers.go
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/lco77/netops-portal/internal/models"
	"github.com/lco77/netops-portal/internal/resolver"
	"github.com/lco77/netops-portal/internal/session"
	"github.com/lco77/netops-portal/internal/tasks"
)

// currentSession returns the session loaded by SessionMiddleware, or nil.
func currentSession(c *gin.Context) *session.Session {
	v, ok := c.Get(ctxSession)
	if !ok {
		return nil
	}
	sess, _ := v.(*session.Session)
	return sess
}

// isJSONRequest reports whether the client posted JSON rather than a form.
func isJSONRequest(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), gin.MIMEJSON)
}

func (h *Handlers) setSessionCookie(c *gin.Context, id string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.deps.CookieName, id, int(h.deps.Sessions.Timeout().Seconds()), "/", "", h.deps.CookieSecure, true)
}

func (h *Handlers) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.deps.CookieName, "", -1, "/", "", h.deps.CookieSecure, true)
}

// writeTaskError maps job pipeline errors to HTTP responses in one place.
func writeTaskError(c *gin.Context, username string, err error) {
	switch {
	case errors.Is(err, tasks.ErrMissingField), errors.Is(err, tasks.ErrUnsupportedTaskType):
		log.Infof("CreateTask rejected for user '%s': %v", username, err)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, tasks.ErrForbidden):
		log.Warnf("CreateTask denied for user '%s': missing device role", username)
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "Forbidden"})
	default:
		log.Errorf("CreateTask failed for user '%s': %v", username, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to queue task"})
	}
}

// writeResolveError maps resolver errors; anything unresolvable is the caller's problem.
func writeResolveError(c *gin.Context, username, hostname string, err error) {
	if errors.Is(err, resolver.ErrNotResolvable) {
		log.Infof("Resolve for user '%s' failed for '%s': %v", username, hostname, err)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	log.Errorf("Resolve for user '%s' failed for '%s': %v", username, hostname, err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Resolver failure"})
}
