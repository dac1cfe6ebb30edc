// internal/txmgr/metrics.go
package txmgr

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	submittedCounter  prometheus.Counter
	confirmedCounter  prometheus.Counter
	failedCounter     prometheus.Counter
	resubmitCounter   prometheus.Counter
	approveHistogram  prometheus.Histogram
	gateWaitHistogram prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submittedCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "txpilot_tx_submitted_total",
			Help: "Total number of transactions broadcast",
		}),
		confirmedCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "txpilot_tx_confirmed_total",
			Help: "Total number of transactions confirmed on chain",
		}),
		failedCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "txpilot_tx_failed_total",
			Help: "Total number of transactions that reached the failed status",
		}),
		resubmitCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "txpilot_tx_resubmit_total",
			Help: "Total number of re-broadcast attempts",
		}),
		approveHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "txpilot_approve_duration_seconds",
			Help:    "End-to-end approve call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		gateWaitHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "txpilot_nonce_gate_wait_seconds",
			Help:    "Time spent waiting for the nonce gate in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}

	reg.MustRegister(
		m.submittedCounter,
		m.confirmedCounter,
		m.failedCounter,
		m.resubmitCounter,
		m.approveHistogram,
		m.gateWaitHistogram,
	)
	return m
}

func (m *Metrics) TrackApprove(start time.Time) {
	m.approveHistogram.Observe(time.Since(start).Seconds())
}

func (m *Metrics) TrackGateWait(start time.Time) {
	m.gateWaitHistogram.Observe(time.Since(start).Seconds())
}
