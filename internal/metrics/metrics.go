// Package metrics exposes Prometheus instrumentation for the detection
// pipeline, plus a small HTTP server for /metrics and /healthz.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors tracked by the pipeline.
type Metrics struct {
	ListingsIngested    *prometheus.CounterVec
	PairsGenerated      prometheus.Counter
	PairsScored         *prometheus.CounterVec
	VerdictCacheHits    prometheus.Counter
	OracleFailures      prometheus.Counter
	GroupOps            *prometheus.CounterVec
	OpportunitiesFound  *prometheus.CounterVec
	OpportunitiesActive prometheus.Gauge
	PassDuration        prometheus.Histogram
	PassFailures        prometheus.Counter
}

// New creates and registers all collectors on the given registry. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry so
// there are no duplicate-registration panics.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ListingsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketfinder_listings_ingested_total",
			Help: "Normalized listings ingested, by venue.",
		}, []string{"venue"}),
		PairsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketfinder_pairs_generated_total",
			Help: "Candidate pairs emitted by the generator.",
		}),
		PairsScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketfinder_pairs_scored_total",
			Help: "Pairs scored, by scorer and outcome (equivalent or not).",
		}, []string{"scorer", "outcome"}),
		VerdictCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketfinder_verdict_cache_hits_total",
			Help: "Pairs resolved from the verdict cache without scoring.",
		}),
		OracleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketfinder_oracle_failures_total",
			Help: "Oracle calls that degraded to a non-equivalent verdict.",
		}),
		GroupOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketfinder_group_ops_total",
			Help: "Group manager operations, by op (create, join, merge, noop).",
		}, []string{"op"}),
		OpportunitiesFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketfinder_opportunities_total",
			Help: "Opportunities upserted, by kind and whether newly inserted.",
		}, []string{"kind", "inserted"}),
		OpportunitiesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketfinder_opportunities_active",
			Help: "Active opportunities after the most recent pass.",
		}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketfinder_pass_duration_seconds",
			Help:    "Wall time of a full detection pass.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		PassFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketfinder_pass_failures_total",
			Help: "Detection passes that aborted with an error.",
		}),
	}

	reg.MustRegister(
		m.ListingsIngested,
		m.PairsGenerated,
		m.PairsScored,
		m.VerdictCacheHits,
		m.OracleFailures,
		m.GroupOps,
		m.OpportunitiesFound,
		m.OpportunitiesActive,
		m.PassDuration,
		m.PassFailures,
	)
	return m
}
