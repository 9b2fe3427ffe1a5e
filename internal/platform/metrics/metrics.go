package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	TokenAcquisitions  *prometheus.CounterVec
	SingleFlightShared prometheus.Counter
	RequestRetries     prometheus.Counter
	Logins             *prometheus.CounterVec
	SessionTransitions *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		TokenAcquisitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "assetgate_token_acquisitions_total",
			Help: "Token acquisitions by outcome (cached, silent, interactive, failed).",
		}, []string{"outcome"}),
		SingleFlightShared: promauto.NewCounter(prometheus.CounterOpts{
			Name: "assetgate_token_singleflight_shared_total",
			Help: "Token acquisitions that joined an in-flight request instead of issuing their own.",
		}),
		RequestRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "assetgate_api_request_retries_total",
			Help: "Resource requests retried once after a 401.",
		}),
		Logins: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "assetgate_logins_total",
			Help: "Login attempts by outcome (succeeded, failed, timeout).",
		}, []string{"outcome"}),
		SessionTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "assetgate_session_transitions_total",
			Help: "Session state machine transitions by target status.",
		}, []string{"to"}),
	}
}
