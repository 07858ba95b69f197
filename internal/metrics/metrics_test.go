package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picmigrate/picmigrate/internal/logging"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics("test")

	m.RecordSKUOutcome("succeeded")
	m.RecordSKUOutcome("succeeded")
	m.RecordSKUOutcome("transfer_error")
	m.ImagesDownloaded.Inc()
	m.DownloadCacheHits.Inc()
	m.RecordTokenRefresh("loja_a", "success")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SKUOutcomes.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SKUOutcomes.WithLabelValues("transfer_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImagesDownloaded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DownloadCacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenRefreshes.WithLabelValues("loja_a", "success")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("test")
	m.RecordSKUOutcome("succeeded")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	m.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_sku_outcomes_total")
}

func TestMiddleware_RecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics("test")
	logger := logging.NewLogger(logging.WithOutput(&bytes.Buffer{}))

	r := gin.New()
	r.Use(Middleware(m, logger))
	r.GET("/status", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/status", "GET", "200")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPRequestsInFlight))
}
