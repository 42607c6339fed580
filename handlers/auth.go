package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/ojinta/portfolio/go-services/internal/activity"
	"github.com/ojinta/portfolio/go-services/internal/config"
	"github.com/ojinta/portfolio/go-services/internal/models"
	"github.com/ojinta/portfolio/go-services/internal/sessions"
	"github.com/ojinta/portfolio/go-services/internal/tokens"
	"github.com/ojinta/portfolio/go-services/internal/users"
	"github.com/ojinta/portfolio/go-services/pkg/logger"
	"github.com/ojinta/portfolio/go-services/pkg/metrics"
	"github.com/ojinta/portfolio/go-services/pkg/middleware"
)

// LoginRequest is the body of POST /api/auth/login, as JSON or as a form post.
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Authenticator verifies a username/password pair against the user store.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
}

// AuthHandler holds dependencies
type AuthHandler struct {
	codec  *tokens.Codec
	store  *sessions.CookieStore
	users  Authenticator
	events activity.Publisher
	routes config.RoutesConfig
}

func NewAuthHandler(codec *tokens.Codec, store *sessions.CookieStore, u Authenticator, events activity.Publisher, routes config.RoutesConfig) *AuthHandler {
	if events == nil {
		events = activity.Nop{}
	}
	return &AuthHandler{codec: codec, store: store, users: u, events: events, routes: routes}
}

// Register routes under /auth. limit wraps login only; gate guards /me.
func (h *AuthHandler) Register(rg *gin.RouterGroup, gate *middleware.Gate, limit gin.HandlerFunc) {
	a := rg.Group("/auth")
	login := []gin.HandlerFunc{h.Login}
	if limit != nil {
		login = append([]gin.HandlerFunc{limit}, login...)
	}
	a.POST("/login", login...)
	a.POST("/logout", h.Logout)
	a.GET("/me", gate.API(), h.Me)
}

func userBody(id tokens.Identity) gin.H {
	return gin.H{"id": id.UserID, "username": id.Username, "email": id.Email, "role": id.Role}
}

// formPost reports a browser form submission. Those callers get redirects
// instead of JSON bodies.
func formPost(c *gin.Context) bool {
	switch c.ContentType() {
	case binding.MIMEPOSTForm, binding.MIMEMultipartPOSTForm:
		return true
	}
	return false
}

func (h *AuthHandler) fail(c *gin.Context, form bool, status int, msg string) {
	if form {
		c.Redirect(http.StatusSeeOther, h.routes.LoginPath+"?failed=1")
		return
	}
	c.JSON(status, gin.H{"error": msg})
}

// Login verifies credentials, mints a session token and sets the cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	form := formPost(c)
	var req LoginRequest
	var err error
	if form {
		err = c.ShouldBindWith(&req, binding.Form)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil || strings.TrimSpace(req.Username) == "" || req.Password == "" {
		metrics.LoginAttempts.WithLabelValues("bad_request").Inc()
		h.fail(c, form, http.StatusBadRequest, "Username and password are required")
		return
	}

	u, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, users.ErrInvalidCredentials):
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		h.fail(c, form, http.StatusUnauthorized, "Invalid credentials")
		return
	case errors.Is(err, users.ErrAccountInactive):
		metrics.LoginAttempts.WithLabelValues("inactive").Inc()
		h.fail(c, form, http.StatusUnauthorized, "Account is deactivated")
		return
	case err != nil:
		logger.Errorf("login error: %v", err)
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		h.fail(c, form, http.StatusInternalServerError, "Internal server error")
		return
	}

	id := tokens.Identity{UserID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
	token, claims, err := h.codec.Mint(id)
	if err != nil {
		logger.Errorf("login: mint session for %s: %v", u.ID, err)
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		h.fail(c, form, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.store.Attach(c.Writer, c.Request, token)
	metrics.LoginAttempts.WithLabelValues("success").Inc()
	metrics.SessionsIssued.Inc()
	logger.Infow("session issued", "user", u.Username, "jti", claims.TokenID)
	h.record(c.Request.Context(), activity.ActionLogin, claims)

	if form {
		c.Redirect(http.StatusSeeOther, h.routes.LandingPath)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"user":          userBody(id),
		"sessionExpiry": claims.ExpiresAt,
	})
}

// Logout clears the cookie whether or not a session existed.
func (h *AuthHandler) Logout(c *gin.Context) {
	if raw, err := h.store.Extract(c.Request); err == nil {
		if claims, err := h.codec.Verify(raw); err == nil {
			h.record(c.Request.Context(), activity.ActionLogout, claims)
		}
	}
	h.store.Detach(c.Writer, c.Request)
	if formPost(c) {
		c.Redirect(http.StatusSeeOther, h.routes.LoginPath)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me returns the RequestIdentity and how long the session has left.
// Runs behind gate.API(), which already answered 401 for a missing or stale session.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"user":          userBody(claims.Identity()),
		"sessionExpiry": claims.ExpiresAt,
		"expiresIn":     int64(h.codec.Remaining(claims).Seconds()),
	})
}

func (h *AuthHandler) record(ctx context.Context, action string, claims tokens.SessionClaims) {
	err := h.events.Publish(ctx, activity.Activity{
		Action:   action,
		Item:     "session",
		UserID:   claims.UserID,
		Username: claims.Username,
	})
	if err != nil {
		logger.Warnf("activity %s for %s not published: %v", action, claims.UserID, err)
	}
}
