package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newMetricsTestRouter(t *testing.T) (*gin.Engine, *sdkmetric.ManualReader) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	r := gin.New()
	r.Use(HTTPMetricsWithMeter(provider.Meter("test"), true))
	return r, reader
}

func collectHTTPMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	byName := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			byName[m.Name] = m
		}
	}
	return byName
}

func TestHTTPMetrics_RecordsRequest(t *testing.T) {
	r, reader := newMetricsTestRouter(t)
	r.GET("/api/v1/orders/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord-1001", nil))
	require.Equal(t, http.StatusOK, w.Code)

	metrics := collectHTTPMetrics(t, reader)
	require.Contains(t, metrics, "http_server_request_total")
	require.Contains(t, metrics, "http_server_request_duration_seconds")
	require.Contains(t, metrics, "http_server_response_size_bytes")

	// The counter must carry the route pattern, never the concrete path.
	sum := metrics["http_server_request_total"].Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	dp := sum.DataPoints[0]
	assert.Equal(t, int64(1), dp.Value)
	route, ok := dp.Attributes.Value("http.route")
	require.True(t, ok)
	assert.Equal(t, "/api/v1/orders/:id", route.AsString())
	status, ok := dp.Attributes.Value("http.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(http.StatusOK), status.AsInt64())
}

func TestHTTPMetrics_UnmatchedRoute(t *testing.T) {
	r, reader := newMetricsTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/no/such/path", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	metrics := collectHTTPMetrics(t, reader)
	sum := metrics["http_server_request_total"].Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	route, ok := sum.DataPoints[0].Attributes.Value("http.route")
	require.True(t, ok)
	assert.Equal(t, "unknown", route.AsString())
}

func TestHTTPMetrics_MerchantLabelFromRoute(t *testing.T) {
	r, reader := newMetricsTestRouter(t)
	r.POST("/api/v1/merchants/:merchantId/sync", func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/merchants/mrc-42/sync",
		strings.NewReader(`{"source":"salla"}`))
	r.ServeHTTP(w, req)

	metrics := collectHTTPMetrics(t, reader)
	sum := metrics["http_server_request_total"].Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	merchant, ok := sum.DataPoints[0].Attributes.Value("merchant_id")
	require.True(t, ok)
	assert.Equal(t, "mrc-42", merchant.AsString())

	// The body had a Content-Length, so request size must be recorded too.
	assert.Contains(t, metrics, "http_server_request_size_bytes")
}

func TestHTTPMetrics_DurationOmitsStatusLabel(t *testing.T) {
	r, reader := newMetricsTestRouter(t)
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	metrics := collectHTTPMetrics(t, reader)
	hist := metrics["http_server_request_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.Len(t, hist.DataPoints, 1)
	_, hasStatus := hist.DataPoints[0].Attributes.Value("http.status_code")
	assert.False(t, hasStatus, "latency series keep only method and route")
	_, hasMethod := hist.DataPoints[0].Attributes.Value("http.method")
	assert.True(t, hasMethod)
}

func TestHTTPMetrics_CountsEveryStatus(t *testing.T) {
	r, reader := newMetricsTestRouter(t)
	r.GET("/orders", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/orders", "/orders", "/boom"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	metrics := collectHTTPMetrics(t, reader)
	sum := metrics["http_server_request_total"].Data.(metricdata.Sum[int64])
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)
}

func TestHTTPMetrics_DisabledIsPassthrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPMetrics(HTTPMetricsConfig{Enabled: false}))
	r.GET("/orders", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	start := time.Now()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.Less(t, time.Since(start), time.Second)
}

func TestHTTPMetrics_NilProviderIsPassthrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPMetrics(HTTPMetricsConfig{Enabled: true, MeterProvider: nil}))
	r.GET("/orders", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestMerchantID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("route parameter wins", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Params = gin.Params{{Key: "merchantId", Value: "mrc-7"}}
		c.Set(MerchantIDKey, "mrc-other")
		assert.Equal(t, "mrc-7", requestMerchantID(c))
	})

	t.Run("falls back to context key", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(MerchantIDKey, "mrc-9")
		assert.Equal(t, "mrc-9", requestMerchantID(c))
	})

	t.Run("empty when unauthenticated", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		assert.Equal(t, "", requestMerchantID(c))
	})
}
