// Package metric exposes the client's sync and cache counters.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	FetchSegments     prometheus.Counter
	FetchFailures     prometheus.Counter
	ReconcileInserts  prometheus.Counter
	ReconcileMerges   prometheus.Counter
	ReconcileDeletes  prometheus.Counter
	MutationRollbacks prometheus.Counter
	SnapshotHits      prometheus.Counter
	SnapshotMisses    prometheus.Counter
	LoadedEvents      prometheus.Gauge
}

func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		FetchSegments: factory.NewCounter(prometheus.CounterOpts{
			Name: "daybook_fetch_segments_total",
			Help: "Remote list calls issued, one per contiguous month segment",
		}),
		FetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "daybook_fetch_failures_total",
			Help: "Remote list calls that failed and left their months unmarked",
		}),
		ReconcileInserts: factory.NewCounter(prometheus.CounterOpts{
			Name: "daybook_reconcile_inserts_total",
			Help: "Server entities inserted during reconciliation",
		}),
		ReconcileMerges: factory.NewCounter(prometheus.CounterOpts{
			Name: "daybook_reconcile_merges_total",
			Help: "Server entities merged over existing local entities",
		}),
		ReconcileDeletes: factory.NewCounter(prometheus.CounterOpts{
			Name: "daybook_reconcile_deletes_total",
			Help: "Confirmed entities removed because the server no longer returned them",
		}),
		MutationRollbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "daybook_mutation_rollbacks_total",
			Help: "Optimistic mutations reverted after a remote failure",
		}),
		SnapshotHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "daybook_snapshot_hits_total",
			Help: "Day queries answered from the snapshot tier",
		}),
		SnapshotMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "daybook_snapshot_misses_total",
			Help: "Day queries that had to hit the store",
		}),
		LoadedEvents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "daybook_loaded_events",
			Help: "Entities currently held in the in-memory store",
		}),
	}
}
