package metrics

import "github.com/prometheus/client_golang/prometheus"

// CarrierMetrics counts carrier quote lookups by outcome (ok, error, open, cached).
type CarrierMetrics struct {
	quotes *prometheus.CounterVec
}

func NewCarrierMetrics(reg prometheus.Registerer) *CarrierMetrics {
	if reg == nil {
		return &CarrierMetrics{}
	}
	quotes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_carrier_quotes_total",
		Help: "Carrier quote lookups by carrier and outcome.",
	}, []string{"carrier", "outcome"})
	reg.MustRegister(quotes)
	return &CarrierMetrics{quotes: quotes}
}

func (m *CarrierMetrics) Inc(carrier, outcome string) {
	if m == nil || m.quotes == nil {
		return
	}
	m.quotes.WithLabelValues(normalizeLabel(carrier), normalizeLabel(outcome)).Inc()
}
