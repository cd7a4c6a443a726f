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

func TestObserveAnalysis(t *testing.T) {
	before := testutil.ToFloat64(AnalysesTotal.WithLabelValues("summary", "ok"))
	ObserveAnalysis("summary", "ok", 3*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(AnalysesTotal.WithLabelValues("summary", "ok")))
}

func TestHandler(t *testing.T) {
	Init()
	Init()

	RiskAssessmentsTotal.WithLabelValues("High").Inc()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `microfinance_risk_assessments_total{category="High"}`)
}
