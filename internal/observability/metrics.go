// Package observability exposes Prometheus metrics for the indexer.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wallet_indexer"

// Metrics holds every collector the indexer emits.
type Metrics struct {
	PagesFetched      prometheus.Counter
	RawIngested       prometheus.Counter
	EventsIngested    prometheus.Counter
	ProviderRetries   prometheus.Counter
	BackfillDuration  prometheus.Histogram
	ReconcileRuns     *prometheus.CounterVec
	ReconcileRepaired prometheus.Counter
	OracleLookups     *prometheus.CounterVec
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Provider pages fetched across backfill and tail sync.",
		}),
		RawIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "raw_transactions_ingested_total",
			Help:      "Raw transactions upserted into the store.",
		}),
		EventsIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_events_ingested_total",
			Help:      "Wallet events upserted into the store.",
		}),
		ProviderRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retries_total",
			Help:      "Retried provider calls after transient failures.",
		}),
		BackfillDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backfill_duration_seconds",
			Help:      "Wall time of completed backfill runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		ReconcileRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Reconciliation chunks by outcome.",
		}, []string{"ok"}),
		ReconcileRepaired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_repaired_total",
			Help:      "Signatures re-ingested by reconciliation.",
		}),
		OracleLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_lookups_total",
			Help:      "Price oracle lookups by provider.",
		}, []string{"provider"}),
	}
}

// Default is the process-wide instance on the default registry.
var Default = New(prometheus.DefaultRegisterer)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordIngest folds one persisted page into the default metrics.
func RecordIngest(pages, raws, events, retries int) {
	Default.PagesFetched.Add(float64(pages))
	Default.RawIngested.Add(float64(raws))
	Default.EventsIngested.Add(float64(events))
	Default.ProviderRetries.Add(float64(retries))
}

// RecordBackfillDuration observes one completed backfill.
func RecordBackfillDuration(d time.Duration) {
	Default.BackfillDuration.Observe(d.Seconds())
}

// RecordReconcile folds one reconciliation chunk into the default metrics.
func RecordReconcile(ok bool, repaired int) {
	label := "false"
	if ok {
		label = "true"
	}
	Default.ReconcileRuns.WithLabelValues(label).Inc()
	Default.ReconcileRepaired.Add(float64(repaired))
}

// RecordOracleLookup counts one oracle call.
func RecordOracleLookup(provider string) {
	Default.OracleLookups.WithLabelValues(provider).Inc()
}
