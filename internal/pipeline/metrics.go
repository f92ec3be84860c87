package pipeline

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the pipeline subsystem.
type Metrics struct {
	SignalsTotal     *prometheus.CounterVec
	ProcessTotal     *prometheus.CounterVec
	ProcessDuration  prometheus.Histogram
	EnqueuedTotal    *prometheus.CounterVec
	PriorityScore    prometheus.Histogram
	TransitionsTotal *prometheus.CounterVec
	CatchUpRuns      prometheus.Counter
	CatchUpRecovered prometheus.Counter
	NotifyTotal      *prometheus.CounterVec
}

// NewMetrics registers and returns pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_signals_total",
			Help: "Total ingested signals by source and dedup result.",
		}, []string{"source", "result"}),
		ProcessTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_signal_process_total",
			Help: "Total signal processing attempts by processor and outcome.",
		}, []string{"processor", "outcome"}),
		ProcessDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scout_signal_process_duration_seconds",
			Help:    "Duration of classify+score+enqueue per signal.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms .. ~16s
		}),
		EnqueuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_actions_enqueued_total",
			Help: "Total action items enqueued by action type.",
		}, []string{"action_type"}),
		PriorityScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scout_action_priority_score",
			Help:    "Distribution of composite priority scores at enqueue time.",
			Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 .. 100
		}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_action_transitions_total",
			Help: "Total action item status transitions by target and result.",
		}, []string{"to", "result"}),
		CatchUpRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scout_catchup_runs_total",
			Help: "Total catch-up batch runs.",
		}),
		CatchUpRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scout_catchup_recovered_total",
			Help: "Total signals recovered to a processed state by catch-up.",
		}),
		NotifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_notify_total",
			Help: "Total enqueue notifications by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.SignalsTotal,
		m.ProcessTotal,
		m.ProcessDuration,
		m.EnqueuedTotal,
		m.PriorityScore,
		m.TransitionsTotal,
		m.CatchUpRuns,
		m.CatchUpRecovered,
		m.NotifyTotal,
	)

	return m
}
