package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filmdx_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filmdx_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Decode metrics
	decodeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filmdx_decode_requests_total",
			Help: "Total number of decode requests",
		},
		[]string{"type", "status"}, // type: image, pdf, batch, websocket
	)

	decodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filmdx_decode_duration_seconds",
			Help:    "Decode duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"type"},
	)

	codesDecoded = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filmdx_codes_per_request",
			Help:    "Number of DX edge codes found per request",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"type"},
	)

	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filmdx_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // minute, hour, requests, data
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filmdx_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filmdx_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filmdx_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // sent, received
	)
)

// observeDecode records the outcome of one decode request.
func observeDecode(kind string, seconds float64, codes int, err error) {
	if err != nil {
		decodeRequestsTotal.WithLabelValues(kind, "error").Inc()
		return
	}
	decodeRequestsTotal.WithLabelValues(kind, "success").Inc()
	decodeDuration.WithLabelValues(kind).Observe(seconds)
	codesDecoded.WithLabelValues(kind).Observe(float64(codes))
}
