package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.ObserveTurn("code_check", nil, 120*time.Millisecond)
	m.ObserveTurn("code_check", nil, time.Second)
	m.ObserveTurn("", errors.New("provider down"), time.Second)
	m.IncRoutingFallback()
	m.IncHistoryFailure()
	m.IncDownload("403")

	assert.Equal(t, 2.0, counterValue(t, m.turns.WithLabelValues("code_check", OutcomeOK)))
	assert.Equal(t, 1.0, counterValue(t, m.turns.WithLabelValues("none", OutcomeError)))
	assert.Equal(t, 1.0, counterValue(t, m.routingFallback))
	assert.Equal(t, 1.0, counterValue(t, m.historyFailures))
	assert.Equal(t, 1.0, counterValue(t, m.downloads.WithLabelValues("403")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)
}

func TestMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTurn("fallback", nil, time.Second)
		m.IncRoutingFallback()
		m.IncHistoryFailure()
		m.IncDownload("200")
	})
}
