package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the pipeline's prometheus instruments. A single instance is
// meant to be shared by all queries of a process. Building new Metrics on a
// registry that already holds them resets the counters.
type Metrics struct {
	tasksSpawned  prometheus.Counter
	tasksRejected prometheus.Counter
	mixedStarts   prometheus.Counter
	blocksRouted  prometheus.Counter
	sendFailures  *prometheus.CounterVec
	partsScanned  prometheus.Counter
	partsPruned   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	reg = prometheus.WrapRegistererWithPrefix("frostpipe_", newReusableRegistry(reg))
	return &Metrics{
		tasksSpawned: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "tasks_spawned_total",
			Help: "Number of tasks spawned on query contexts",
		}),
		tasksRejected: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "tasks_rejected_total",
			Help: "Number of tasks rejected because the query context was closed",
		}),
		mixedStarts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "mixed_starts_total",
			Help: "Number of mixing stages whose fan-in and fan-out tasks were started",
		}),
		blocksRouted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "mixed_blocks_routed_total",
			Help: "Number of items routed by mixing stage distributors",
		}),
		sendFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "mixed_send_failures_total",
			Help: "Number of items a mixing stage could not push downstream",
		}, []string{"side"}),
		partsScanned: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "scan_parts_scanned_total",
			Help: "Number of parts read by scan stages",
		}),
		partsPruned: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "scan_parts_pruned_total",
			Help: "Number of parts skipped by scan stages thanks to pruning indexes",
		}),
	}
}
