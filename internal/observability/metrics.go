package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the counters and histograms exported at /metrics.
type Metrics struct {
	HoldsCreated    prometheus.Counter
	HoldsRejected   *prometheus.CounterVec
	LockWait        prometheus.Histogram
	OrdersPromoted  prometheus.Counter
	OrdersRejected  *prometheus.CounterVec
	WebhookOutcomes *prometheus.CounterVec
	HoldsExpired    prometheus.Counter
	SweepDuration   prometheus.Histogram
	SweepSkipped    prometheus.Counter
	LedgerCache     *prometheus.CounterVec
}

// NewMetrics registers all metrics on reg. Tests pass a fresh registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HoldsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "flashsale_holds_created_total",
			Help: "Holds successfully created",
		}),
		HoldsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flashsale_holds_rejected_total",
			Help: "Hold requests rejected, by reason",
		}, []string{"reason"}),
		LockWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "flashsale_product_lock_wait_seconds",
			Help:    "Time spent waiting for the per-product lock",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		OrdersPromoted: f.NewCounter(prometheus.CounterOpts{
			Name: "flashsale_orders_promoted_total",
			Help: "Holds converted into pending orders",
		}),
		OrdersRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flashsale_orders_rejected_total",
			Help: "Promotion attempts rejected, by reason",
		}, []string{"reason"}),
		WebhookOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flashsale_payment_webhooks_total",
			Help: "Payment events handled, by outcome",
		}, []string{"outcome"}),
		HoldsExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "flashsale_holds_expired_total",
			Help: "Holds transitioned to expired by the sweeper",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "flashsale_sweep_duration_seconds",
			Help:    "Duration of a single expiry sweep",
			Buckets: prometheus.DefBuckets,
		}),
		SweepSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "flashsale_sweeps_skipped_total",
			Help: "Scheduled sweeps skipped because another run held the lock",
		}),
		LedgerCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flashsale_ledger_cache_total",
			Help: "Available-stock cache lookups, by result",
		}, []string{"result"}),
	}
}

// NewDiscardMetrics returns metrics registered on a private registry.
func NewDiscardMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
