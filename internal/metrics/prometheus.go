package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is nil-safe: every helper is a no-op on a nil receiver so
// components can run without instrumentation in tests.
type Metrics struct {
	Submissions         *prometheus.CounterVec
	StageLatency        *prometheus.HistogramVec
	RedisOperations     *prometheus.CounterVec
	LimiterFallbacks    *prometheus.CounterVec
	IdempotencyFallback prometheus.Counter
	LeaderboardCache    *prometheus.CounterVec
	RewardFallbacks     *prometheus.CounterVec
	KafkaMessages       *prometheus.CounterVec
	ConnectionsTotal    prometheus.Gauge
	AuthFailures        prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "typing_submissions_total",
			Help: "Typing result submissions by pipeline outcome",
		}, []string{"outcome"}),
		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "typing_submission_stage_seconds",
			Help:    "Latency of each submission pipeline stage in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		RedisOperations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total number of Redis operations",
		}, []string{"operation", "status"}),
		LimiterFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limiter_fallback_total",
			Help: "Rate limit checks answered by the in-process fallback",
		}, []string{"policy"}),
		IdempotencyFallback: f.NewCounter(prometheus.CounterOpts{
			Name: "idempotency_fallback_total",
			Help: "Attempt claims answered by the in-process fallback",
		}),
		LeaderboardCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leaderboard_cache_events_total",
			Help: "Leaderboard cache reads and maintenance by result",
		}, []string{"event"}),
		RewardFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reward_fallback_total",
			Help: "Reward credits that left the atomic path",
		}, []string{"status"}),
		KafkaMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_messages_processed_total",
			Help: "Total number of Kafka messages produced or consumed",
		}, []string{"topic", "status"}),
		ConnectionsTotal: f.NewGauge(prometheus.GaugeOpts{
			Name: "ws_connections_total",
			Help: "Total number of active WebSocket connections",
		}),
		AuthFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Total number of authentication failures",
		}),
	}
}

func (m *Metrics) IncSubmission(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.StageLatency.WithLabelValues(stage).Observe(seconds)
}

func (m *Metrics) IncRedisOperation(operation, status string) {
	if m == nil {
		return
	}
	m.RedisOperations.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) IncLimiterFallback(policy string) {
	if m == nil {
		return
	}
	m.LimiterFallbacks.WithLabelValues(policy).Inc()
}

func (m *Metrics) IncIdempotencyFallback() {
	if m == nil {
		return
	}
	m.IdempotencyFallback.Inc()
}

func (m *Metrics) IncLeaderboardCache(event string) {
	if m == nil {
		return
	}
	m.LeaderboardCache.WithLabelValues(event).Inc()
}

func (m *Metrics) IncRewardFallback(status string) {
	if m == nil {
		return
	}
	m.RewardFallbacks.WithLabelValues(status).Inc()
}

func (m *Metrics) IncKafkaMessage(topic, status string) {
	if m == nil {
		return
	}
	m.KafkaMessages.WithLabelValues(topic, status).Inc()
}

func (m *Metrics) IncConnections() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
}

func (m *Metrics) DecConnections() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Dec()
}

func (m *Metrics) IncAuthFailures() {
	if m == nil {
		return
	}
	m.AuthFailures.Inc()
}
