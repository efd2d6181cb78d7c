package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_ObserveRun(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.ObserveRun("vendor_settlement", 3, 1, 2, 2*time.Second, false)
	m.ObserveRun("vendor_settlement", 0, 0, 0, time.Second, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRunsTotal.WithLabelValues("vendor_settlement", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRunsTotal.WithLabelValues("vendor_settlement", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.JobUnitsTotal.WithLabelValues("vendor_settlement", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobUnitsTotal.WithLabelValues("vendor_settlement", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobUnitsTotal.WithLabelValues("vendor_settlement", "skipped")))
	assert.Greater(t, testutil.ToFloat64(m.JobLastSuccess.WithLabelValues("vendor_settlement")), 0.0)
}

func TestMetrics_BreakerStateChanged(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.BreakerStateChanged("processor", gobreaker.StateClosed, gobreaker.StateOpen)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("processor")))

	m.BreakerStateChanged("processor", gobreaker.StateOpen, gobreaker.StateHalfOpen)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("processor")))

	m.BreakerStateChanged("processor", gobreaker.StateHalfOpen, gobreaker.StateClosed)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("processor")))
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics("a", prometheus.NewRegistry())
		NewMetrics("a", prometheus.NewRegistry())
	})
}
