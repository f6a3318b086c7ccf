package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pointcount"
)

func histogramSampleCount(t *testing.T, reg prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestCollectorRecordsOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.RecordInsert(time.Millisecond, nil)
	c.RecordInsert(time.Millisecond, errors.New("boom"))
	c.RecordCount(pointcount.ModeRecursive, 42, time.Millisecond, nil)
	c.RecordCount(pointcount.ModeBruteForce, 0, time.Millisecond, nil)
	c.RecordDelete(time.Millisecond, nil)
	c.RecordUpdate(time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Operations.WithLabelValues("insert", "", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Operations.WithLabelValues("insert", "", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Operations.WithLabelValues("count", "recursive", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Operations.WithLabelValues("count", "bruteforce", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Operations.WithLabelValues("delete", "", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Operations.WithLabelValues("update", "", "ok")))

	assert.Equal(t, uint64(1), histogramSampleCount(t, reg, "pointcount_count_nodes", map[string]string{"mode": "recursive"}))
	assert.Equal(t, uint64(2), histogramSampleCount(t, reg, "pointcount_operation_duration_seconds", map[string]string{"op": "insert"}))
}

func TestCollectorReRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	require.NoError(t, err)
	second, err := NewCollector(reg)
	require.NoError(t, err)

	first.RecordDelete(0, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(second.Operations.WithLabelValues("delete", "", "ok")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	h := c.Middleware("users", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/NN/users", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("users", "GET", "404")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "pointcount_http_requests_total"))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.RecordInsert(0, nil)
	c.RecordCount(pointcount.ModeRecursive, 1, 0, nil)

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.NotNil(t, c.Middleware("x", next))
}
