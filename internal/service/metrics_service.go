package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry and the counters the fee
// engine reports on.
type MetricsService struct {
	registry *prometheus.Registry

	httpDuration  *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	paymentsTotal *prometheus.CounterVec
	plansBuilt    prometheus.Counter
	planCacheHits prometheus.Counter
	rowsEnsured   *prometheus.CounterVec
}

// NewMetricsService builds a registry with process collectors and the fee
// engine metrics registered.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &MetricsService{
		registry: registry,
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fees_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fees_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"method", "route", "status"}),
		paymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fees_payments_recorded_total",
			Help: "Payments recorded by mode.",
		}, []string{"mode"}),
		plansBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fees_monthly_plans_built_total",
			Help: "Monthly plans computed from the database.",
		}),
		planCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fees_monthly_plan_cache_hits_total",
			Help: "Monthly plans served from cache.",
		}),
		rowsEnsured: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fees_ledger_rows_ensured_total",
			Help: "Ledger rows ensured, labelled by whether a new row was created.",
		}, []string{"created"}),
	}
	registry.MustRegister(s.httpDuration, s.httpRequests, s.paymentsTotal, s.plansBuilt, s.planCacheHits, s.rowsEnsured)
	return s
}

// ObserveHTTP records one handled HTTP request.
func (s *MetricsService) ObserveHTTP(method, route string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	s.httpDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	s.httpRequests.WithLabelValues(method, route, code).Inc()
}

// CountPayment records one recorded payment.
func (s *MetricsService) CountPayment(mode string) {
	s.paymentsTotal.WithLabelValues(mode).Inc()
}

// CountPlanBuilt records a monthly plan computed from the database.
func (s *MetricsService) CountPlanBuilt() {
	s.plansBuilt.Inc()
}

// CountPlanCacheHit records a monthly plan served from cache.
func (s *MetricsService) CountPlanCacheHit() {
	s.planCacheHits.Inc()
}

// CountRowEnsured records an ensure-row call.
func (s *MetricsService) CountRowEnsured(created bool) {
	s.rowsEnsured.WithLabelValues(strconv.FormatBool(created)).Inc()
}

// Handler exposes the registry for the /metrics endpoint.
func (s *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
