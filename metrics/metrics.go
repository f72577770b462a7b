// Package metrics exposes Prometheus counters describing which branch the
// installer and the counter engine took.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the Prometheus registry for all dircount metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Counter engine branches.
const (
	PathUpdate        = "update"
	PathInsert        = "insert"
	PathUpsert        = "upsert"
	PathConflictRetry = "conflict_retry"
	PathDecrement     = "decrement"
	PathDelete        = "delete"
)

// Metrics holds all counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	InstallOutcomes *prometheus.CounterVec // labels: table, hook, outcome
	CounterPaths    *prometheus.CounterVec // labels: path
	UnitRetries     prometheus.Counter
	InvariantErrors prometheus.Counter
}

// New registers all metrics with reg. Each registerer can only hold one set.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		InstallOutcomes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dircount_install_outcomes_total",
			Help: "Hook installation attempts by outcome",
		}, []string{"table", "hook", "outcome"}),
		CounterPaths: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dircount_counter_paths_total",
			Help: "Counter maintenance branches taken",
		}, []string{"path"}),
		UnitRetries: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dircount_unit_retries_total",
			Help: "Units of work retried after a commit conflict",
		}),
		InvariantErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dircount_invariant_errors_total",
			Help: "Removal events for directories without a counter",
		}),
	}
}

func (m *Metrics) ObserveInstall(table, hook, outcome string) {
	if m == nil {
		return
	}
	m.InstallOutcomes.WithLabelValues(table, hook, outcome).Inc()
}

func (m *Metrics) ObservePath(path string) {
	if m == nil {
		return
	}
	m.CounterPaths.WithLabelValues(path).Inc()
}

func (m *Metrics) ObserveUnitRetry() {
	if m == nil {
		return
	}
	m.UnitRetries.Inc()
}

func (m *Metrics) ObserveInvariantError() {
	if m == nil {
		return
	}
	m.InvariantErrors.Inc()
}
