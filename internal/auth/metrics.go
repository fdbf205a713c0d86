package auth

import "github.com/prometheus/client_golang/prometheus"

// Metrics receives auth outcome events from the service.
type Metrics interface {
	LoginAttempt(outcome string)
	Rotation(outcome string)
	Revocation()
}

type NopMetrics struct{}

func (NopMetrics) LoginAttempt(string) {}
func (NopMetrics) Rotation(string)     {}
func (NopMetrics) Revocation()         {}

type Collector struct {
	logins      *prometheus.CounterVec
	rotations   *prometheus.CounterVec
	revocations prometheus.Counter
}

var _ Metrics = (*Collector)(nil)

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "walletapi_login_attempts_total",
			Help: "Login attempts by outcome (ok, invalid, locked).",
		}, []string{"outcome"}),
		rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "walletapi_refresh_rotations_total",
			Help: "Refresh session rotations by outcome (ok, invalid, expired).",
		}, []string{"outcome"}),
		revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walletapi_session_revocations_total",
			Help: "Refresh sessions revoked via logout or revoke-all.",
		}),
	}

	reg.MustRegister(c.logins, c.rotations, c.revocations)

	return c
}

func (c *Collector) LoginAttempt(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

func (c *Collector) Rotation(outcome string) {
	c.rotations.WithLabelValues(outcome).Inc()
}

func (c *Collector) Revocation() {
	c.revocations.Inc()
}
