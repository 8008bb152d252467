package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordJobSubmitted("cut")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.JobsSubmitted.WithLabelValues("cut")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.JobsSubmitted.WithLabelValues("cut")))
}

func TestJobLifecycle(t *testing.T) {
	m := NewMetrics()

	m.RecordJobStarted()
	m.RecordJobStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobsRunning))

	m.RecordJobFinished("join", "COMPLETED", 1.5)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsRunning))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsFinished.WithLabelValues("join", "COMPLETED")))

	m.RecordChunks(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.ChunksProduced))
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.RecordHTTPRequest("GET", "/health", "200", 0.01)
	m.RecordArtifact("normalize", 4096)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `audiocards_http_requests_total{endpoint="/health",method="GET",status_code="200"} 1`)
	assert.Contains(t, string(body), "audiocards_artifact_size_bytes_bucket")
	assert.Contains(t, string(body), "go_goroutines")
}
