package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.IncrementOutcome(OutcomeSuccess)
	m.IncrementOutcome(OutcomeSuccess)
	m.IncrementOutcome("retrieval")
	m.AddCitationViolations("unknown", 3)
	m.AddCitationViolations("uncited", 0)
	m.ObserveStage(StageGenerate, 1500*time.Millisecond)
	m.ObserveEvidence(4, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunOutcome.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunOutcome.WithLabelValues("retrieval")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CitationViolations.WithLabelValues("unknown")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CitationViolations))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageLatency))
	assert.Equal(t, 2, testutil.CollectAndCount(m.EvidenceItems))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	m.IncrementOutcome(OutcomeSuccess)
	m.ObserveStage(StageTotal, time.Second)
	m.AddCitationViolations("unknown", 1)
	m.ObserveEvidence(1, 1)
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.IncrementOutcome(OutcomeSuccess)

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `persona_runs_total{outcome="success"} 1`)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()
	a.IncrementOutcome(OutcomeSuccess)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.RunOutcome.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RunOutcome.WithLabelValues(OutcomeSuccess)))
}
