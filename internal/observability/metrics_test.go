package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_IsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.BacktestsTotal.WithLabelValues("turtle", StatusSuccess).Inc()
	m.PersistenceFailures.WithLabelValues("backtest_runs").Add(2)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.BacktestsTotal.WithLabelValues("turtle", StatusSuccess)), 1e-9)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.PersistenceFailures.WithLabelValues("backtest_runs")), 1e-9)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_backtest_runs_total")
	assert.Contains(t, names, "test_storage_persistence_failures_total")
}

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.CandidatesEvaluated.WithLabelValues("max_sharpe"))
	RecordOptimization("max_sharpe", StatusSuccess, 0.2, 500)
	after := testutil.ToFloat64(DefaultMetrics.CandidatesEvaluated.WithLabelValues("max_sharpe"))
	assert.InDelta(t, 500.0, after-before, 1e-9)

	rejected := testutil.ToFloat64(DefaultMetrics.EntriesRejected.WithLabelValues("support"))
	RecordEntriesRejected("support", 0)
	assert.InDelta(t, rejected, testutil.ToFloat64(DefaultMetrics.EntriesRejected.WithLabelValues("support")), 1e-9)
}

func TestHandler(t *testing.T) {
	RecordBacktest("turtle", StatusSuccess, 0.01)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "strategy_lab_backtest_runs_total"))
}
