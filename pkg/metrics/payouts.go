package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Payout attempt outcomes.
const (
	PayoutSucceeded = "success"
	PayoutFailed    = "failed"
	PayoutSkipped   = "skipped"
)

// PayoutMetrics tracks payout batch results.
type PayoutMetrics struct {
	attempts *prometheus.CounterVec
	amount   prometheus.Counter
}

// NewPayoutMetrics registers payout metrics on reg. A nil reg yields a no-op recorder.
func NewPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	if reg == nil {
		return &PayoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_payout_attempts_total",
		Help: "Vendor payout attempts by outcome.",
	}, []string{"outcome"})
	amount := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_payout_amount_total",
		Help: "Net amount transferred to vendors, in major currency units.",
	})
	reg.MustRegister(attempts, amount)
	return &PayoutMetrics{attempts: attempts, amount: amount}
}

// Observe counts one vendor outcome; amount only accrues on success.
func (m *PayoutMetrics) Observe(outcome string, amount decimal.Decimal) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
	if outcome == PayoutSucceeded {
		m.amount.Add(amount.InexactFloat64())
	}
}
