package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the auth collectors.
type Metrics struct {
	attempts *prometheus.CounterVec
	hashing  *prometheus.HistogramVec
}

// NewMetrics builds the auth collectors and registers them on reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collab",
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Registration and login attempts by action, outcome and reason.",
		}, []string{"action", "outcome", "reason"}),
		hashing: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "collab",
			Subsystem: "auth",
			Name:      "password_hash_seconds",
			Help:      "Time spent in Argon2id hashing and verification.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.hashing)
	}
	return m
}

func (m *Metrics) observeAttempt(e AuditEntry) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(string(e.Action), string(e.Outcome), e.Reason).Inc()
}

func (m *Metrics) observeHash(op string, start time.Time) {
	if m == nil {
		return
	}
	m.hashing.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
