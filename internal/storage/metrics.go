package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

var (
	queryLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "store",
		Name:      "query_seconds",
		Help:      "Latency of snippet store operations.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"operation"})

	storeTracer = otel.Tracer("github.com/example/snipsync/storage")
)

func init() {
	prometheus.MustRegister(queryLatency)
}
