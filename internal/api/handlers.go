package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/lco77/netops-portal/internal/auth"
	"github.com/lco77/netops-portal/internal/metrics"
	"github.com/lco77/netops-portal/internal/models"
	"github.com/lco77/netops-portal/internal/resolver"
	"github.com/lco77/netops-portal/internal/session"
	"github.com/lco77/netops-portal/internal/tasks"
)

const accessDenied = "Access denied"

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Directory    auth.Directory
	Sessions     *session.Store
	Vault        *auth.Vault
	Tasks        *tasks.Client
	Resolver     *resolver.Resolver
	CookieName   string
	CookieSecure bool
	DeviceRoles  []string
	Version      string
}

// Handlers serves every route of the portal.
type Handlers struct {
	deps      Deps
	startTime time.Time
}

func NewHandlers(deps Deps) *Handlers {
	if deps.CookieName == "" {
		deps.CookieName = "portal_session"
	}
	return &Handlers{deps: deps, startTime: time.Now()}
}

// @Summary Login page
// @Description Shows the login form. Already authenticated users are sent to the home page.
// @Tags Auth
// @Produce html
// @Success 200 {string} string "Login form"
// @Success 302 {string} string "Redirect to /"
// @Router /login [get]
func (h *Handlers) LoginPageHandler(c *gin.Context) {
	if currentSession(c) != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.HTML(http.StatusOK, "login.html", gin.H{})
}

// @Summary Login
// @Description Authenticates against the directory and starts a new session (cookie). Accepts a form post or JSON.
// @Tags Auth
// @Accept json,x-www-form-urlencoded
// @Produce json,html
// @Param credentials body models.LoginRequest true "User Credentials"
// @Success 302 {string} string "Redirect to / with a session cookie"
// @Failure 401 {object} models.ErrorResponse "Access denied"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /login [post]
func (h *Handlers) LoginHandler(c *gin.Context) {
	if currentSession(c) != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}

	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		log.Warnf("Login failed: Invalid request body: %v", err)
	}
	req.Username = strings.TrimSpace(req.Username)

	user := h.deps.Directory.Authenticate(c.Request.Context(), req.Username, req.Password)
	if !user.Authenticated {
		metrics.LoginAttempts.WithLabelValues("denied").Inc()
		log.Infof("Login failed for user '%s'", req.Username)
		h.denyLogin(c, req.Username)
		return
	}

	sealed, err := h.deps.Vault.Seal(user.Password)
	if err != nil {
		log.Errorf("Login for user '%s' succeeded but sealing the credential failed: %v", user.Username, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to create session"})
		return
	}

	oldID, _ := c.Cookie(h.deps.CookieName)
	sess, err := h.deps.Sessions.Regenerate(c.Request.Context(), oldID, user, sealed)
	if err != nil {
		log.Errorf("Login for user '%s' succeeded but the session could not be stored: %v", user.Username, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to create session"})
		return
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	log.Infof("User '%s' logged in successfully with roles %v", user.Username, user.Roles)
	h.setSessionCookie(c, sess.ID)
	c.Redirect(http.StatusFound, "/")
}

func (h *Handlers) denyLogin(c *gin.Context, username string) {
	if isJSONRequest(c) {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: accessDenied})
		return
	}
	c.HTML(http.StatusUnauthorized, "login.html", gin.H{
		"Error":    accessDenied,
		"Username": username,
	})
}

// @Summary Logout
// @Description Deletes the session and returns to the login page.
// @Tags Auth
// @Success 302 {string} string "Redirect to /login"
// @Router /logout [get]
func (h *Handlers) LogoutHandler(c *gin.Context) {
	sess := currentSession(c)
	if err := h.deps.Sessions.Delete(c.Request.Context(), sess.ID); err != nil {
		log.Errorf("Logout for user '%s': failed to delete session: %v", sess.Username, err)
	}
	h.clearSessionCookie(c)
	log.Infof("User '%s' logged out", sess.Username)
	c.Redirect(http.StatusFound, "/login")
}

// @Summary Home
// @Description Entry point for logged-in users.
// @Tags Pages
// @Produce json
// @Success 200 {object} object "Portal information"
// @Router / [get]
func (h *Handlers) HomeHandler(c *gin.Context) {
	sess := currentSession(c)

	protocol := "http"
	if c.Request.TLS != nil || c.Request.Header.Get("X-Forwarded-Proto") == "https" {
		protocol = "https"
	}
	baseURL := fmt.Sprintf("%s://%s", protocol, c.Request.Host)

	c.JSON(http.StatusOK, gin.H{
		"message":       fmt.Sprintf("Welcome %s", displayName(sess)),
		"user":          sess.Profile(),
		"documentation": fmt.Sprintf("%s/swagger/index.html", baseURL),
		"api_base_path": fmt.Sprintf("%s/api", baseURL),
		"logout":        fmt.Sprintf("%s/logout", baseURL),
	})
}

// @Summary Current user
// @Description Returns the profile stored in the caller's session.
// @Tags Auth
// @Produce json
// @Success 200 {object} models.UserProfile
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Router /api/me [get]
func (h *Handlers) MeHandler(c *gin.Context) {
	c.JSON(http.StatusOK, currentSession(c).Profile())
}

func displayName(sess *session.Session) string {
	if sess.FullName != "" {
		return sess.FullName
	}
	return sess.Username
}
