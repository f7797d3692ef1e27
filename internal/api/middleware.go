package api

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/lco77/netops-portal/internal/auth"
	"github.com/lco77/netops-portal/internal/metrics"
	"github.com/lco77/netops-portal/internal/models"
	"github.com/lco77/netops-portal/internal/session"
)

// Context keys set by SessionMiddleware.
const (
	ctxSession  = "session"
	ctxUsername = "username"
)

// AuthMode selects how RequireAuth rejects anonymous callers.
type AuthMode int

const (
	// APIMode answers 401 with a JSON error.
	APIMode AuthMode = iota
	// PageMode redirects to the login page.
	PageMode
)

// SessionMiddleware loads the caller's session and slides its expiry. An expired
// session is deleted as a whole and its cookie cleared; the request continues
// anonymously.
func (h *Handlers) SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(h.deps.CookieName)
		if err != nil || id == "" {
			c.Next()
			return
		}

		sess, err := h.deps.Sessions.Refresh(c.Request.Context(), id)
		switch {
		case err == nil:
			c.Set(ctxSession, sess)
			c.Set(ctxUsername, sess.Username)
			h.setSessionCookie(c, sess.ID)
		case errors.Is(err, session.ErrExpired):
			log.Debug("Expired session cleared")
			metrics.SessionsExpired.Inc()
			h.clearSessionCookie(c)
		case errors.Is(err, session.ErrNotFound):
			h.clearSessionCookie(c)
		default:
			log.Errorf("Session refresh failed: %v", err)
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a live session.
func RequireAuth(mode AuthMode) gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentSession(c) != nil {
			c.Next()
			return
		}
		if mode == PageMode {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
	}
}

// RequireRoles admits only sessions holding at least one of allowed.
// With no roles given every authenticated caller is admitted.
func RequireRoles(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		if sess == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
			return
		}
		if !auth.HasAnyRole(sess.Roles, allowed) {
			log.Warnf("User '%s' with roles %v denied access to %s (requires one of %v)", sess.Username, sess.Roles, c.FullPath(), allowed)
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{Error: "Forbidden"})
			return
		}
		c.Next()
	}
}
