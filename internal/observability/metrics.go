package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AccessDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "doorlock",
		Name:      "access_decisions_total",
		Help:      "Total access decisions by channel and outcome",
	}, []string{"channel", "outcome"})

	SessionsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "doorlock",
		Name:      "sessions_issued_total",
		Help:      "Total session tokens issued after QR validation",
	})

	GallerySize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "doorlock",
		Name:      "gallery_embeddings",
		Help:      "Number of face embeddings in the in-memory gallery",
	})

	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "doorlock",
		Name:      "audit_write_failures_total",
		Help:      "Access-log writes that failed and were swallowed",
	})

	MatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "doorlock",
		Name:      "match_duration_seconds",
		Help:      "Duration of vision and matching stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "doorlock",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "doorlock",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
