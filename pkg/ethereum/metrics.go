package ethereum

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "node_provider_rpc_calls_total",
		Help: "Total number of RPC calls made to the execution node",
	}, []string{"node", "method", "status"})

	RPCCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "node_provider_rpc_call_duration_seconds",
		Help:    "Time taken for RPC calls to the execution node",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"node", "method", "status"})

	TraceRecordsStreamed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "node_provider_trace_records_streamed_total",
		Help: "Total number of trace records decoded from streaming RPC responses",
	}, []string{"node", "method"})

	DevNodeStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "node_provider_devnode_starts_total",
		Help: "Total number of dev node process launches",
	}, []string{"status"})
)

const (
	StatusError   = "error"
	StatusSuccess = "success"
)
