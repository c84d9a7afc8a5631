package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	ProfilesVisited = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "agent_profiles_visited_total", Help: "Profiles visited, by outcome"}, []string{"outcome"})
	LikesTotal      = prometheus.NewCounter(prometheus.CounterOpts{Name: "agent_likes_total", Help: "Confirmed likes"})
	CommentsTotal   = prometheus.NewCounter(prometheus.CounterOpts{Name: "agent_comments_total", Help: "Confirmed comments"})
	OracleCalls     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "agent_oracle_calls_total", Help: "Classifier calls, by operation and result"}, []string{"operation", "result"})
	OracleLatency   = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "agent_oracle_latency_seconds", Help: "Classifier call latency", Buckets: prometheus.DefBuckets}, []string{"operation"})
	Batches         = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "agent_batches_total", Help: "Completed batches, by result"}, []string{"result"})
	TriggerRejects  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "agent_trigger_rejects_total", Help: "Rejected triggers, by reason"}, []string{"reason"})
	Processing      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "agent_processing", Help: "1 while a batch is running"})
	HTTPRequests    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "agent_http_requests_total", Help: "HTTP requests, by route and status"}, []string{"route", "status"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			ProfilesVisited,
			LikesTotal,
			CommentsTotal,
			OracleCalls,
			OracleLatency,
			Batches,
			TriggerRejects,
			Processing,
			HTTPRequests,
		)
	})
	return promhttp.Handler()
}

// ObserveOracle records one classifier call.
func ObserveOracle(operation string, elapsed time.Duration, result string) {
	OracleCalls.WithLabelValues(operation, result).Inc()
	OracleLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}
