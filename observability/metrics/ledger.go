package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Batch outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomeAborted   = "aborted"
)

type LedgerMetrics struct {
	batches       *prometheus.CounterVec
	instructions  *prometheus.CounterVec
	batchDuration prometheus.Histogram
	errors        *prometheus.CounterVec
	vaultAssets   *prometheus.GaugeVec
	vaultBorrowed *prometheus.GaugeVec
}

var (
	ledgerOnce     sync.Once
	ledgerRegistry *LedgerMetrics
)

// Ledger returns the process-wide ledger metrics, registering them on first
// use.
func Ledger() *LedgerMetrics {
	ledgerOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			batches: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ledger_batches_total",
				Help: "Count of executed batches by outcome.",
			}, []string{"outcome"}),
			instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ledger_instructions_total",
				Help: "Count of applied instructions by name and batch outcome.",
			}, []string{"instruction", "outcome"}),
			batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "ledger_batch_duration_seconds",
				Help:    "Wall time spent executing a batch.",
				Buckets: prometheus.DefBuckets,
			}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ledger_errors_total",
				Help: "Count of aborted batches by error class.",
			}, []string{"kind"}),
			vaultAssets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "ledger_vault_total_assets",
				Help: "Committed total assets per vault.",
			}, []string{"asset"}),
			vaultBorrowed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "ledger_vault_total_borrowed",
				Help: "Committed outstanding principal per vault.",
			}, []string{"asset"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.batches,
			ledgerRegistry.instructions,
			ledgerRegistry.batchDuration,
			ledgerRegistry.errors,
			ledgerRegistry.vaultAssets,
			ledgerRegistry.vaultBorrowed,
		)
	})
	return ledgerRegistry
}

// ObserveBatch records one executed batch. Names are the instructions that
// were part of it.
func (m *LedgerMetrics) ObserveBatch(outcome string, names []string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.batches.WithLabelValues(outcome).Inc()
	for _, name := range names {
		m.instructions.WithLabelValues(name, outcome).Inc()
	}
	m.batchDuration.Observe(elapsed.Seconds())
}

func (m *LedgerMetrics) ObserveError(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.errors.WithLabelValues(kind).Inc()
}

func (m *LedgerMetrics) SetVault(asset string, totalAssets, totalBorrowed uint64) {
	if m == nil {
		return
	}
	m.vaultAssets.WithLabelValues(asset).Set(float64(totalAssets))
	m.vaultBorrowed.WithLabelValues(asset).Set(float64(totalBorrowed))
}

// Batches exposes the batch counter for tests and exporters.
func (m *LedgerMetrics) Batches() *prometheus.CounterVec {
	if m == nil {
		return nil
	}
	return m.batches
}

// Errors exposes the error counter for tests and exporters.
func (m *LedgerMetrics) Errors() *prometheus.CounterVec {
	if m == nil {
		return nil
	}
	return m.errors
}
