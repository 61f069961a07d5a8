// Package metrics exports fabric lifecycle metrics to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/frobware/go-dsa"
	"github.com/frobware/go-dsa/interpreter"
	"github.com/frobware/go-dsa/manager"
)

const namespace = "dsa"

// Label names
const (
	LabelOutcome = "outcome"
	LabelTree    = "tree"
)

// Fabric holds the lifecycle metrics. It implements manager.Observer.
type Fabric struct {
	Registrations      *prometheus.CounterVec
	ActiveTrees        prometheus.Gauge
	ActivationDuration prometheus.Histogram
	Rollbacks          *prometheus.CounterVec
	Deactivations      *prometheus.CounterVec
}

var _ manager.Observer = (*Fabric)(nil)

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Fabric {
	f := promauto.With(reg)
	return &Fabric{
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Switch registrations by outcome.",
		}, []string{LabelOutcome}),
		ActiveTrees: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_trees",
			Help:      "Number of trees currently applied.",
		}),
		ActivationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "activation_duration_seconds",
			Help:      "Time taken to apply a complete tree.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		Rollbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Activations rolled back after a failed step.",
		}, []string{LabelTree}),
		Deactivations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deactivations_total",
			Help:      "Trees taken down because a member left.",
		}, []string{LabelTree}),
	}
}

func (f *Fabric) Registration(outcome interpreter.EventKind) {
	f.Registrations.WithLabelValues(string(outcome)).Inc()
}

func (f *Fabric) TreeActivated(_ dsa.TreeID, took time.Duration) {
	f.ActiveTrees.Inc()
	f.ActivationDuration.Observe(took.Seconds())
}

func (f *Fabric) TreeDeactivated(id dsa.TreeID) {
	f.ActiveTrees.Dec()
	f.Deactivations.WithLabelValues(treeLabel(id)).Inc()
}

func (f *Fabric) RolledBack(id dsa.TreeID) {
	f.Rollbacks.WithLabelValues(treeLabel(id)).Inc()
}

func treeLabel(id dsa.TreeID) string {
	return strconv.FormatUint(uint64(id), 10)
}
