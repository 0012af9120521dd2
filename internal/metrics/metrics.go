package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ledger collectors. All methods are safe on a nil receiver.
type Metrics struct {
	transfersTotal        *prometheus.CounterVec
	transferredMinorTotal *prometheus.CounterVec
	reversalsTotal        *prometheus.CounterVec
	pinVerificationsTotal *prometheus.CounterVec
	accountsCreatedTotal  prometheus.Counter
	unitOfWorkSeconds     *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		transfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "org_ledger",
				Subsystem: "transfers",
				Name:      "total",
				Help:      "Transfers attempted, partitioned by result.",
			},
			[]string{"result"},
		),
		transferredMinorTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "org_ledger",
				Subsystem: "transfers",
				Name:      "amount_minor_total",
				Help:      "Sum of successfully transferred amounts in minor units.",
			},
			[]string{"currency"},
		),
		reversalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "org_ledger",
				Subsystem: "reversals",
				Name:      "total",
				Help:      "Reversals attempted, partitioned by result.",
			},
			[]string{"result"},
		),
		pinVerificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "org_ledger",
				Subsystem: "pin",
				Name:      "verifications_total",
				Help:      "PIN verifications, partitioned by result.",
			},
			[]string{"result"},
		),
		accountsCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "org_ledger",
				Subsystem: "accounts",
				Name:      "created_total",
				Help:      "Accounts provisioned by find-or-create.",
			},
		),
		unitOfWorkSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "org_ledger",
				Subsystem: "unit_of_work",
				Name:      "duration_seconds",
				Help:      "Duration of ledger database transactions.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (m *Metrics) ObserveTransfer(result, currency string, amount int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.transfersTotal.WithLabelValues(result).Inc()
	m.unitOfWorkSeconds.WithLabelValues("transfer").Observe(elapsed.Seconds())
	if result == "ok" {
		m.transferredMinorTotal.WithLabelValues(currency).Add(float64(amount))
	}
}

func (m *Metrics) ObserveReversal(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reversalsTotal.WithLabelValues(result).Inc()
	m.unitOfWorkSeconds.WithLabelValues("reversal").Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePinVerification(result string) {
	if m == nil {
		return
	}
	m.pinVerificationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) AccountCreated() {
	if m == nil {
		return
	}
	m.accountsCreatedTotal.Inc()
}
