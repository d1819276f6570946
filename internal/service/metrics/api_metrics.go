package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	EndpointLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "econdash",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of dashboard endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	EndpointErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "econdash",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by dashboard endpoint and code",
		},
		[]string{"endpoint", "code"},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "econdash",
			Subsystem: "api",
			Name:      "ws_connections",
			Help:      "Open dashboard WebSocket connections",
		},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(EndpointLatency, EndpointErrors, WSConnections)
	})
}
