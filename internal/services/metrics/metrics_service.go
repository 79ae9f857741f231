package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Service provides Prometheus metrics for the gateway.
type Service struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	authVerdictsTotal *prometheus.CounterVec

	registryLookupsTotal   *prometheus.CounterVec
	registryCacheHitsTotal prometheus.Counter
	registryCacheMissTotal prometheus.Counter

	idempotencyReplaysTotal prometheus.Counter

	callbacksDeliveredTotal *prometheus.CounterVec
	callbacksFailedTotal    *prometheus.CounterVec
	callbackRetriesTotal    prometheus.Counter
	callbackDuration        *prometheus.HistogramVec
	callbackQueueDepth      prometheus.Gauge
}

// NewService creates the metrics service, registering collectors on the
// given registerer. Pass prometheus.DefaultRegisterer in production; tests
// use a fresh registry to avoid duplicate registration.
func NewService(reg prometheus.Registerer) *Service {
	factory := promauto.With(reg)

	return &Service{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total inbound protocol requests by action and status",
		}, []string{"action", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Inbound request handling duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"action", "status"}),
		authVerdictsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_auth_verdicts_total",
			Help: "Authentication gate verdicts by outcome",
		}, []string{"outcome"}),
		registryLookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_registry_lookups_total",
			Help: "Registry lookup calls by result",
		}, []string{"result"}),
		registryCacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_registry_cache_hits_total",
			Help: "Subscriber resolutions served from cache",
		}),
		registryCacheMissTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_registry_cache_misses_total",
			Help: "Subscriber resolutions requiring a registry call",
		}),
		idempotencyReplaysTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_idempotency_replays_total",
			Help: "Duplicate inbound requests answered from the idempotency cache",
		}),
		callbacksDeliveredTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_callbacks_delivered_total",
			Help: "Callbacks delivered successfully by action",
		}, []string{"action"}),
		callbacksFailedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_callbacks_failed_total",
			Help: "Callbacks that exhausted delivery attempts by action",
		}, []string{"action"}),
		callbackRetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_callback_retries_total",
			Help: "Individual callback delivery retries",
		}),
		callbackDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_callback_duration_seconds",
			Help:    "Callback delivery attempt duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		callbackQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_callback_queue_depth",
			Help: "Tasks waiting in the callback dispatch queue",
		}),
	}
}

func (s *Service) RecordRequest(action, status string) {
	s.requestsTotal.WithLabelValues(action, status).Inc()
}

func (s *Service) RecordRequestDuration(action, status string, duration time.Duration) {
	s.requestDuration.WithLabelValues(action, status).Observe(duration.Seconds())
}

func (s *Service) RecordAuthVerdict(outcome string) {
	s.authVerdictsTotal.WithLabelValues(outcome).Inc()
}

func (s *Service) RecordRegistryLookup(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	s.registryLookupsTotal.WithLabelValues(result).Inc()
}

func (s *Service) RecordRegistryCacheHit() {
	s.registryCacheHitsTotal.Inc()
}

func (s *Service) RecordRegistryCacheMiss() {
	s.registryCacheMissTotal.Inc()
}

func (s *Service) RecordIdempotencyReplay() {
	s.idempotencyReplaysTotal.Inc()
}

func (s *Service) RecordCallbackDelivered(action string, duration time.Duration) {
	s.callbacksDeliveredTotal.WithLabelValues(action).Inc()
	s.callbackDuration.WithLabelValues(action).Observe(duration.Seconds())
}

func (s *Service) RecordCallbackFailed(action string) {
	s.callbacksFailedTotal.WithLabelValues(action).Inc()
}

func (s *Service) RecordCallbackRetry() {
	s.callbackRetriesTotal.Inc()
}

func (s *Service) SetCallbackQueueDepth(depth int) {
	s.callbackQueueDepth.Set(float64(depth))
}
