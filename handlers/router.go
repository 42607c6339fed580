package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ojinta/portfolio/go-services/internal/activity"
	"github.com/ojinta/portfolio/go-services/internal/config"
	"github.com/ojinta/portfolio/go-services/internal/sessions"
	"github.com/ojinta/portfolio/go-services/internal/tokens"
	"github.com/ojinta/portfolio/go-services/pkg/middleware"
)

// RouterDeps is everything NewRouter wires together. Limiter, Events,
// Probes and Metrics are optional.
type RouterDeps struct {
	Routes  config.RoutesConfig
	Codec   *tokens.Codec
	Store   *sessions.CookieStore
	Users   Authenticator
	Events  activity.Publisher
	Limiter gin.HandlerFunc
	Probes  map[string]Probe
	Metrics http.Handler
	Started time.Time
	// AccessLog installs gin.Logger.
	AccessLog bool
}

// NewRouter builds the engine: the access gate runs on every request, then
// the health, docs, metrics, auth API and page routes.
func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	if d.AccessLog {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	gate := middleware.NewGate(d.Codec, d.Store, d.Routes)
	r.Use(gate.Pages())

	if d.Started.IsZero() {
		d.Started = time.Now()
	}
	RegisterHealth(r, d.Started, d.Probes)
	RegisterSwagger(r)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	NewAuthHandler(d.Codec, d.Store, d.Users, d.Events, d.Routes).Register(r.Group("/api"), gate, d.Limiter)
	RegisterPages(r, d.Routes)
	return r
}
