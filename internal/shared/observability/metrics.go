package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	RuntimeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mend_runtime_errors_total",
		Help: "Total number of runtime failures captured by the collector.",
	})

	RuntimeErrorsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mend_runtime_errors_dropped_total",
		Help: "Total number of runtime records dropped to honor the max_errors bound.",
	})

	HandlerPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mend_handler_panics_total",
		Help: "Total number of panics recovered from registered error handlers.",
	})

	ToolRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mend_tool_runs_total",
		Help: "Total number of external tool invocations by outcome.",
	}, []string{"tool", "status"})

	ToolRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mend_tool_run_seconds",
		Help:    "Wall time of one external tool invocation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})

	SyntaxCheckDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mend_syntax_check_seconds",
		Help:    "Time spent syntax-checking a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mend_scan_seconds",
		Help:    "Wall time of a full directory scan.",
		Buckets: prometheus.DefBuckets,
	})

	ScanFilesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mend_scan_files_total",
		Help: "Total number of files examined by directory scans.",
	})

	UnifiedErrors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mend_unified_errors",
		Help: "Number of unified errors known after the most recent aggregation.",
	})

	FixAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mend_fix_attempts_total",
		Help: "Total number of fix attempts by strategy and outcome.",
	}, []string{"strategy", "outcome"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mend_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
