package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Direction labels for frame metrics.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

var (
	registerOnce sync.Once

	connectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "aegis",
			Subsystem: "comms",
			Name:      "connections_active",
			Help:      "Connections with a live I/O loop.",
		},
	)
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Subsystem: "comms",
			Name:      "frames_total",
			Help:      "Complete frames moved across all connections.",
		},
		[]string{"direction"},
	)
	frameBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Subsystem: "comms",
			Name:      "frame_bytes_total",
			Help:      "Frame payload bytes moved across all connections.",
		},
		[]string{"direction"},
	)
	codecDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Subsystem: "comms",
			Name:      "codec_drops_total",
			Help:      "Messages dropped by per-message codec failures.",
		},
		[]string{"stage"},
	)
	acceptErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Subsystem: "comms",
			Name:      "accept_errors_total",
			Help:      "Transient accept-loop errors that did not stop a listener.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin-plane HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aegis",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin-plane HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			connectionsActive, framesTotal, frameBytes, codecDrops,
			acceptErrors, httpRequests, httpDuration,
		)
	})
}

func ConnectionOpened() {
	RegisterMetrics()
	connectionsActive.Inc()
}

func ConnectionClosed() {
	connectionsActive.Dec()
}

func RecordFrame(direction string, payloadBytes int) {
	RegisterMetrics()
	framesTotal.WithLabelValues(direction).Inc()
	frameBytes.WithLabelValues(direction).Add(float64(payloadBytes))
}

func RecordCodecDrop(stage string) {
	RegisterMetrics()
	codecDrops.WithLabelValues(stage).Inc()
}

func RecordAcceptError() {
	RegisterMetrics()
	acceptErrors.Inc()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
