package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ojinta/portfolio/go-services/internal/config"
	"github.com/ojinta/portfolio/go-services/internal/sessions"
	"github.com/ojinta/portfolio/go-services/internal/tokens"
	"github.com/ojinta/portfolio/go-services/pkg/logger"
	"github.com/ojinta/portfolio/go-services/pkg/metrics"
)

// IdentityKey is the gin context key holding the verified tokens.SessionClaims.
const IdentityKey = "identity"

// Verifier is the part of tokens.Codec the gate depends on.
type Verifier interface {
	Decode(token string) (tokens.SessionClaims, error)
	IsExpired(claims tokens.SessionClaims) bool
}

// TokenSource extracts the raw session token from a request.
type TokenSource interface {
	Extract(r *http.Request) (string, error)
}

// pathClass is the gate's view of a request path.
type pathClass int

const (
	classPublic pathClass = iota
	classLogin
	classProtected
)

// never redirected by Pages
var passthroughPrefixes = []string{"/api/", "/static/", "/assets/", "/swagger/", "/favicon.ico"}

// Gate decides, per request, whether a session is required and present.
// Each request is verified on its own; nothing is cached between requests.
type Gate struct {
	verifier Verifier
	source   TokenSource
	routes   config.RoutesConfig
}

func NewGate(verifier Verifier, source TokenSource, routes config.RoutesConfig) *Gate {
	return &Gate{verifier: verifier, source: source, routes: routes}
}

func (g *Gate) classify(path string) pathClass {
	if path == g.routes.LoginPath {
		return classLogin
	}
	for _, p := range passthroughPrefixes {
		if strings.HasPrefix(path, p) {
			return classPublic
		}
	}
	prefix := strings.TrimSuffix(g.routes.AdminPrefix, "/")
	if prefix != "" && (path == prefix || strings.HasPrefix(path, prefix+"/")) {
		return classProtected
	}
	return classPublic
}

// Pages guards page routes. A protected path without a live session is
// redirected to the login path; the login path with a live session is
// redirected to the landing page. The reason for a denial is only logged.
func (g *Gate) Pages() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		switch g.classify(path) {
		case classLogin:
			if _, _, ok := g.authenticate(c.Request); ok {
				metrics.GateDecisions.WithLabelValues("redirect_landing").Inc()
				c.Redirect(http.StatusTemporaryRedirect, g.routes.LandingPath)
				c.Abort()
				return
			}
			metrics.GateDecisions.WithLabelValues("public").Inc()
			c.Next()
		case classProtected:
			claims, reason, ok := g.authenticate(c.Request)
			if !ok {
				logger.Debugw("gate denied", "path", path, "reason", reason)
				metrics.GateDecisions.WithLabelValues("redirect_login").Inc()
				c.Redirect(http.StatusTemporaryRedirect, g.routes.LoginPath)
				c.Abort()
				return
			}
			g.admit(c, claims)
		default:
			metrics.GateDecisions.WithLabelValues("public").Inc()
			c.Next()
		}
	}
}

// API guards JSON endpoints; a denial is 401 {"error":"Unauthorized"} whatever the cause.
func (g *Gate) API() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, reason, ok := g.authenticate(c.Request)
		if !ok {
			logger.Debugw("gate denied", "path", c.Request.URL.Path, "reason", reason)
			metrics.GateDecisions.WithLabelValues("unauthorized").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		g.admit(c, claims)
	}
}

func (g *Gate) admit(c *gin.Context, claims tokens.SessionClaims) {
	metrics.GateDecisions.WithLabelValues("allow").Inc()
	c.Set(IdentityKey, claims)
	c.Request = c.Request.WithContext(sessions.WithIdentity(c.Request.Context(), claims))
	c.Next()
}

// authenticate runs extract, decode and the expiry check. Any panic on the
// way is treated as an invalid token.
func (g *Gate) authenticate(r *http.Request) (claims tokens.SessionClaims, reason string, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Warnf("gate: recovered during verification: %v", rec)
			claims, reason, ok = tokens.SessionClaims{}, "invalid", false
		}
	}()

	raw, err := g.source.Extract(r)
	if err != nil {
		if errors.Is(err, sessions.ErrNoSession) {
			return tokens.SessionClaims{}, "absent", false
		}
		return tokens.SessionClaims{}, "invalid", false
	}
	claims, err = g.verifier.Decode(raw)
	if err != nil {
		return tokens.SessionClaims{}, "invalid", false
	}
	if g.verifier.IsExpired(claims) {
		return tokens.SessionClaims{}, "expired", false
	}
	return claims, "", true
}

// IdentityFrom returns the RequestIdentity the gate attached to c.
func IdentityFrom(c *gin.Context) (tokens.SessionClaims, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return tokens.SessionClaims{}, false
	}
	claims, ok := v.(tokens.SessionClaims)
	return claims, ok
}
