package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests"},
		[]string{"route", "method", "status"},
	)
	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request duration seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	InFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "http_in_flight_requests", Help: "In-flight HTTP requests"},
	)

	// AuthAttempts counts login steps. stage: password, second_factor, oauth;
	// outcome: ok, challenge, rejected, limited, error.
	AuthAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "auth_attempts_total", Help: "Authentication attempts by stage and outcome"},
		[]string{"stage", "outcome"},
	)
	PendingSwept = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "auth_pending_swept_total", Help: "Expired challenges removed by the sweeper"},
	)
)

// PendingAuths reports outstanding second-factor challenges, read from count
// at scrape time.
func PendingAuths(count func() int) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: "auth_pending_challenges", Help: "Outstanding second-factor challenges"},
		func() float64 { return float64(count()) },
	)
}

func MustRegister(pending func() int) {
	prometheus.MustRegister(RequestsTotal, ReqDuration, InFlight, AuthAttempts, PendingSwept, PendingAuths(pending))
}
