package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "portfolio", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "portfolio", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	// GateDecisions counts access gate outcomes: allow, redirect_login, redirect_landing, unauthorized, public.
	GateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "portfolio", Subsystem: "session", Name: "gate_decisions_total", Help: "Access gate decisions by outcome."},
		[]string{"decision"},
	)
	// LoginAttempts counts login outcomes: success, invalid, inactive, bad_request, error.
	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "portfolio", Subsystem: "session", Name: "login_attempts_total", Help: "Login attempts by outcome."},
		[]string{"outcome"},
	)
	SessionsIssued = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "portfolio", Subsystem: "session", Name: "issued_total", Help: "Session tokens minted."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(GateDecisions)
	reg.MustRegister(LoginAttempts)
	reg.MustRegister(SessionsIssued)
}
