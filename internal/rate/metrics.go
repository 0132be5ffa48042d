package rate

import "github.com/prometheus/client_golang/prometheus"

var (
	tokensGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gohome_rate_limit_tokens",
			Help: "Requests left in the provider rate-limit window",
		},
		[]string{"provider", "window"},
	)
	blockedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gohome_rate_limit_blocked_total",
			Help: "Requests refused by the rate-limit wrapper",
		},
		[]string{"provider", "reason"},
	)
	cacheHitCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gohome_rate_limit_cache_hits_total",
			Help: "Throttled requests answered from the response cache",
		},
		[]string{"provider"},
	)
	lastStatusGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gohome_rate_limit_last_status_code",
			Help: "Last HTTP status code observed by the rate-limit wrapper",
		},
		[]string{"provider"},
	)
)

// MetricsCollectors exposes shared rate-limit collectors.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		tokensGauge,
		blockedCounter,
		cacheHitCounter,
		lastStatusGauge,
	}
}
