package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// StakeProcessorMetrics holds the Prometheus collectors exposed by the
// stake transaction processor. A single instance is shared by every
// processor in the process, registered exactly once regardless of how
// many times NewStakeProcessorMetrics is called.
type StakeProcessorMetrics struct {
	LastProcessedHeight prometheus.Gauge
	ChainTipHeight      prometheus.Gauge

	StakeTxCount              prometheus.Gauge
	DisqualificationV1Count   prometheus.Counter
	DisqualificationV2Count   prometheus.Counter
	RejectedMalformedTxCount  prometheus.Counter
	RejectedStaleHistoryCount prometheus.Counter
	RejectedCommitteeMismatch prometheus.Counter

	BBLHistoryDepth prometheus.Gauge

	StoreErrorCount   prometheus.Counter
	HandlerErrorCount prometheus.Counter

	SynchronizeDuration prometheus.Histogram
}

var (
	metricsRegisterOnce sync.Once
	metricsInstance     *StakeProcessorMetrics
)

// NewStakeProcessorMetrics initializes and registers the processor's
// collectors, using sync.Once so repeated construction (e.g. from
// tests that build multiple processors) doesn't panic on duplicate
// registration.
func NewStakeProcessorMetrics() *StakeProcessorMetrics {
	metricsRegisterOnce.Do(func() {
		metricsInstance = &StakeProcessorMetrics{
			LastProcessedHeight: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "stakeproc_last_processed_height",
				Help: "Height of the last block fully ingested by the stake transaction processor.",
			}),
			ChainTipHeight: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "stakeproc_chain_tip_height",
				Help: "Current blockchain height as last observed by the synchronizer.",
			}),
			StakeTxCount: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "stakeproc_stake_tx_count",
				Help: "Total number of accepted stake transactions held in storage.",
			}),
			DisqualificationV1Count: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "stakeproc_disqualification_v1_total",
				Help: "Total number of accepted disqualification-v1 transactions.",
			}),
			DisqualificationV2Count: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "stakeproc_disqualification_v2_total",
				Help: "Total number of accepted disqualification-v2 transactions.",
			}),
			RejectedMalformedTxCount: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "stakeproc_rejected_malformed_tx_total",
				Help: "Total number of transactions rejected as malformed.",
			}),
			RejectedStaleHistoryCount: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "stakeproc_rejected_stale_history_total",
				Help: "Total number of disqualifications rejected for targeting a block outside BBL history.",
			}),
			RejectedCommitteeMismatch: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "stakeproc_rejected_committee_mismatch_total",
				Help: "Total number of disqualifications rejected for any reason other than stale history (committee membership mismatch, target hash mismatch, or a failed chain or sampler query).",
			}),
			BBLHistoryDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "stakeproc_bbl_history_depth",
				Help: "Current depth of the blockchain-based list's retained history.",
			}),
			StoreErrorCount: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "stakeproc_store_errors_total",
				Help: "Total number of snapshot store failures.",
			}),
			HandlerErrorCount: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "stakeproc_handler_errors_total",
				Help: "Total number of errors raised by stakes/BBL update subscribers.",
			}),
			SynchronizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "stakeproc_synchronize_duration_seconds",
				Help:    "Duration of each Synchronize call.",
				Buckets: prometheus.DefBuckets,
			}),
		}

		prometheus.MustRegister(
			metricsInstance.LastProcessedHeight,
			metricsInstance.ChainTipHeight,
			metricsInstance.StakeTxCount,
			metricsInstance.DisqualificationV1Count,
			metricsInstance.DisqualificationV2Count,
			metricsInstance.RejectedMalformedTxCount,
			metricsInstance.RejectedStaleHistoryCount,
			metricsInstance.RejectedCommitteeMismatch,
			metricsInstance.BBLHistoryDepth,
			metricsInstance.StoreErrorCount,
			metricsInstance.HandlerErrorCount,
			metricsInstance.SynchronizeDuration,
		)
	})

	return metricsInstance
}
