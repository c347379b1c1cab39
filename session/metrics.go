package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "umbra",
		Name:      "sessions_active",
		Help:      "The number of sessions per protocol state.",
	}, []string{"state"})

	loginDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "umbra",
		Name:      "login_duration_seconds",
		Help:      "Histogram of the time from handshake until the backend was connected.",
		Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"server", "online_mode"})

	sessionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "umbra",
		Name:      "session_errors_total",
		Help:      "The number of sessions that ended with an error, by error.",
	}, []string{"error"})
)
