package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce              sync.Once
	apiRequestsTotal          *prometheus.CounterVec
	apiLatencySeconds         *prometheus.HistogramVec
	apiErrorsTotal            *prometheus.CounterVec
	assetStatusTransitions    *prometheus.CounterVec
	checkoutsTotal            *prometheus.CounterVec
	lifecycleTransitionsTotal *prometheus.CounterVec
	planLookupFailuresTotal   prometheus.Counter
	dashboardCacheRequests    *prometheus.CounterVec
	activityStreamClients     prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors exposed by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "steward_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "steward_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "steward_api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		assetStatusTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "steward_asset_status_transitions_total",
			Help: "Asset status changes applied, by previous and new status.",
		}, []string{"from", "to"})

		checkoutsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "steward_checkouts_total",
			Help: "Checkout attempts by outcome.",
		}, []string{"result"})

		lifecycleTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "steward_lifecycle_transitions_total",
			Help: "Incidents advanced by the lifecycle sweep.",
		}, []string{"transition"})

		planLookupFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "steward_plan_lookup_failures_total",
			Help: "Billing lookups that failed and fell back to the Starter plan.",
		})

		dashboardCacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "steward_dashboard_cache_requests_total",
			Help: "Dashboard cache lookups by result.",
		}, []string{"result"})

		activityStreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "steward_activity_stream_clients",
			Help: "Currently connected activity stream subscribers.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			assetStatusTransitions,
			checkoutsTotal,
			lifecycleTransitionsTotal,
			planLookupFailuresTotal,
			dashboardCacheRequests,
			activityStreamClients,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// AssetStatusTransitions counts committed asset status changes.
func AssetStatusTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return assetStatusTransitions
}

// Checkouts counts checkout attempts.
func Checkouts() *prometheus.CounterVec {
	RegisterMetrics()
	return checkoutsTotal
}

// LifecycleTransitions counts automated incident transitions.
func LifecycleTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return lifecycleTransitionsTotal
}

// PlanLookupFailures counts billing lookups that fell back to Starter.
func PlanLookupFailures() prometheus.Counter {
	RegisterMetrics()
	return planLookupFailuresTotal
}

// DashboardCacheRequests counts dashboard cache hits and misses.
func DashboardCacheRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return dashboardCacheRequests
}

// ActivityStreamClients tracks connected activity stream subscribers.
func ActivityStreamClients() prometheus.Gauge {
	RegisterMetrics()
	return activityStreamClients
}
