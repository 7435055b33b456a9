package server

import (
	"github.com/MeKo-Tech/pano/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pano_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pano_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Estimation metrics
	estimationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pano_estimations_total",
			Help: "Total number of estimation requests",
		},
		[]string{"endpoint", "status"}, // endpoint: estimate, sequence, websocket
	)

	estimationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pano_estimation_duration_seconds",
			Help:    "Estimation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"endpoint"},
	)

	ransacIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pano_ransac_iterations",
			Help:    "RANSAC iterations per estimated pair",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 1200},
		},
	)

	inlierRatio = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pano_inlier_ratio",
			Help:    "Inlier ratio per estimated pair",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	degenerateSamples = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pano_degenerate_samples",
			Help:    "Degenerate samples per estimated pair",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500},
		},
	)

	compositionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pano_composition_failures_total",
			Help: "Total number of failed chain compositions",
		},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pano_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour, requests, correspondences
	)

	requestBodyBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pano_request_body_bytes",
			Help:    "Size of request bodies in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pano_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pano_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

// observePair records the per-pair estimator statistics.
func observePair(p pipeline.PairResult) {
	ransacIterations.Observe(float64(p.Iterations))
	inlierRatio.Observe(p.InlierRatio)
	degenerateSamples.Observe(float64(p.Degenerate))
}
