package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"grid-keeper/internal/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	requestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_keeper_http_requests_total",
			Help: "Total HTTP requests served by the keeper",
		},
		[]string{"route"},
	)

	requestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_keeper_http_request_errors_total",
			Help: "HTTP requests answered with a status >= 400",
		},
		[]string{"route"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grid_keeper_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	bootstrapCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_keeper_bootstrap_services_total",
			Help: "Services handled by bootstrap, by resulting state",
		},
		[]string{"service", "state"},
	)

	teardownCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_keeper_teardown_services_total",
			Help: "Services handled by shutdown, by resulting state",
		},
		[]string{"service", "state"},
	)

	failureCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_keeper_failures_total",
			Help: "Service failures by kind",
		},
		[]string{"service", "kind"},
	)

	phaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grid_keeper_phase_duration_seconds",
			Help:    "Duration of download/extract/spawn/readiness/stop phases",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"service", "phase"},
	)

	totalRequests int64
	totalErrors   int64
)

func init() {
	prometheus.MustRegister(requestCount)
	prometheus.MustRegister(requestErrors)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(bootstrapCount)
	prometheus.MustRegister(teardownCount)
	prometheus.MustRegister(failureCount)
	prometheus.MustRegister(phaseDuration)
}

func IncrementRequestCount(route string) {
	requestCount.WithLabelValues(route).Inc()
	atomic.AddInt64(&totalRequests, 1)
}

func IncrementErrorCount(route string) {
	requestErrors.WithLabelValues(route).Inc()
	atomic.AddInt64(&totalErrors, 1)
}

func RecordRequestDuration(route string, seconds float64) {
	requestDuration.WithLabelValues(route).Observe(seconds)
}

// GetTotalRequestCount is kept locally, prometheus counters cannot be read back cheaply.
func GetTotalRequestCount() int64 {
	return atomic.LoadInt64(&totalRequests)
}

func GetTotalErrorCount() int64 {
	return atomic.LoadInt64(&totalErrors)
}

func observePhase(service, phase string, start time.Time) {
	phaseDuration.WithLabelValues(service, phase).Observe(time.Since(start).Seconds())
}

func recordBootstrap(service string, state ServiceState) {
	bootstrapCount.WithLabelValues(service, string(state)).Inc()
}

func recordTeardown(service string, state StopState) {
	teardownCount.WithLabelValues(service, string(state)).Inc()
}

func recordFailure(service string, err error) {
	failureCount.WithLabelValues(service, kindName(err)).Inc()
}

/**
 * Push the keeper metrics to a Prometheus pushgateway
 * @param {context.Context} ctx - Bounds the push request
 * @param {string} addr - Pushgateway URL, empty does nothing
 * @param {string} job - Job label of the pushed group
 * @description
 * - Used by the one-shot CLI commands, which exit before any scrape can happen
 */
func PushMetrics(ctx context.Context, addr, job string) error {
	if addr == "" {
		return nil
	}
	pusher := push.New(addr, job).
		Collector(bootstrapCount).
		Collector(teardownCount).
		Collector(failureCount).
		Collector(phaseDuration)
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to '%s': %w", addr, err)
	}
	logger.Debugf("Metrics pushed to '%s' (job %s)", addr, job)
	return nil
}

var serviceUpDesc = prometheus.NewDesc(
	"grid_keeper_service_up",
	"Whether the service port accepts connections (1) or not (0)",
	[]string{"service", "tier"}, nil,
)

// serviceCollector probes every registered service at scrape time.
type serviceCollector struct {
	sm *ServiceManager
}

func NewServiceCollector(sm *ServiceManager) prometheus.Collector {
	return &serviceCollector{sm: sm}
}

func (c *serviceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- serviceUpDesc
}

func (c *serviceCollector) Collect(ch chan<- prometheus.Metric) {
	for _, spec := range c.sm.registry.Services() {
		up := 0.0
		if c.sm.probe.IsOpen(spec.Port) {
			up = 1
		}
		ch <- prometheus.MustNewConstMetric(serviceUpDesc, prometheus.GaugeValue, up, spec.Name, string(spec.Tier))
	}
}

/**
 * Probe all services once and push their state to the pushgateway
 * @param {context.Context} ctx - Bounds the push
 * @param {*ServiceManager} sm - Services to probe
 * @param {string} addr - Pushgateway URL
 * @param {string} job - Job label
 */
func CollectAndPushMetrics(ctx context.Context, sm *ServiceManager, addr, job string) error {
	if addr == "" {
		return fmt.Errorf("no pushgateway address configured")
	}
	logger.Infof("Pushing service metrics to '%s'", addr)
	if err := push.New(addr, job).Collector(NewServiceCollector(sm)).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to '%s': %w", addr, err)
	}
	return nil
}
