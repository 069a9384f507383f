package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Reverse-index metrics
	UnassignedTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quarry_unassigned_tasks",
			Help: "Number of tasks not assigned to any executor",
		},
	)

	UnprocessedStateChanges = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quarry_unprocessed_state_changes",
			Help: "Number of state changes not yet marked processed",
		},
	)

	RegisteredExecutors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quarry_registered_executors",
			Help: "Number of live executors",
		},
	)

	RunningTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quarry_running_tasks",
			Help: "Number of tasks currently assigned to executors",
		},
	)

	// Apply-path metrics
	ApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quarry_apply_duration_seconds",
			Help:    "Time taken to apply one state machine request in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ApplyFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_apply_failures_total",
			Help: "Total number of failed state machine requests by payload kind",
		},
		[]string{"payload"},
	)

	// Raft metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quarry_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quarry_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)
)

func init() {
	prometheus.MustRegister(UnassignedTasks)
	prometheus.MustRegister(UnprocessedStateChanges)
	prometheus.MustRegister(RegisteredExecutors)
	prometheus.MustRegister(RunningTasks)
	prometheus.MustRegister(ApplyDuration)
	prometheus.MustRegister(ApplyFailuresTotal)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftAppliedIndex)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
