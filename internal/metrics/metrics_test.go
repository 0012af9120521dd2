package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Transfers(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveTransfer("ok", "USD", 300, 10*time.Millisecond)
	m.ObserveTransfer("ok", "USD", 200, 10*time.Millisecond)
	m.ObserveTransfer("insufficient_funds", "USD", 5000, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transfersTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transfersTotal.WithLabelValues("insufficient_funds")))
	assert.Equal(t, 500.0, testutil.ToFloat64(m.transferredMinorTotal.WithLabelValues("USD")))
}

func TestMetrics_ReversalsAndPins(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveReversal("ok", time.Millisecond)
	m.ObserveReversal("cannot_reverse_a_reversal", time.Millisecond)
	m.ObservePinVerification("invalid_pin")
	m.AccountCreated()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.reversalsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pinVerificationsTotal.WithLabelValues("invalid_pin")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.accountsCreatedTotal))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTransfer("ok", "USD", 1, time.Second)
		m.ObserveReversal("ok", time.Second)
		m.ObservePinVerification("ok")
		m.AccountCreated()
	})
}
