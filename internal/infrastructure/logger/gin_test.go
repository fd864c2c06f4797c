package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func loggedRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)
	r := gin.New()
	r.Use(GinMiddleware(zap.New(core)))
	return r, logs
}

func entryField(entry observer.LoggedEntry, key string) (zapcore.Field, bool) {
	for _, f := range entry.Context {
		if f.Key == key {
			return f, true
		}
	}
	return zapcore.Field{}, false
}

func TestGinMiddleware_LogsRequestLine(t *testing.T) {
	r, logs := loggedRouter(t)
	r.GET("/api/v1/orders", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	assert.Equal(t, "HTTP Request", entry.Message)

	status, ok := entryField(entry, "status")
	require.True(t, ok)
	assert.Equal(t, int64(http.StatusOK), status.Integer)

	method, _ := entryField(entry, "method")
	assert.Equal(t, "GET", method.String)
	path, _ := entryField(entry, "path")
	assert.Equal(t, "/api/v1/orders", path.String)
	_, hasLatency := entryField(entry, "latency")
	assert.True(t, hasLatency)
}

func TestGinMiddleware_CarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)
	r := gin.New()
	// The RequestID middleware runs first in the real router.
	r.Use(func(c *gin.Context) { c.Set("request_id", "req-77") })
	r.Use(GinMiddleware(zap.New(core)))
	r.GET("/webhooks/salla", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks/salla", nil))

	require.Equal(t, 1, logs.Len())
	requestID, ok := entryField(logs.All()[0], "request_id")
	require.True(t, ok)
	assert.Equal(t, "req-77", requestID.String)
}

func TestGinMiddleware_WarnsOnClientError(t *testing.T) {
	r, logs := loggedRouter(t)
	r.GET("/api/v1/orders/:id", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/missing", nil))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
}

func TestGinMiddleware_ErrorsOnServerError(t *testing.T) {
	r, logs := loggedRouter(t)
	r.POST("/api/v1/sync", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	_, hasErrors := entryField(entry, "errors")
	assert.True(t, hasErrors)
}

func TestGinMiddleware_IncludesQueryString(t *testing.T) {
	r, logs := loggedRouter(t)
	r.GET("/api/v1/orders", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=shipped&page=2", nil))

	require.Equal(t, 1, logs.Len())
	query, ok := entryField(logs.All()[0], "query")
	require.True(t, ok)
	assert.Equal(t, "status=shipped&page=2", query.String)
}

func TestGinMiddleware_PlantsContextLogger(t *testing.T) {
	r, _ := loggedRouter(t)
	var fromRequestCtx *zap.Logger
	var fromGin *zap.Logger
	r.GET("/api/v1/orders", func(c *gin.Context) {
		fromRequestCtx = FromContext(c.Request.Context())
		fromGin = GetGinLogger(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))

	require.NotNil(t, fromRequestCtx)
	assert.Same(t, fromGin, fromRequestCtx)
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)
	r := gin.New()
	r.Use(Recovery(zap.New(core)))
	r.GET("/api/v1/orders", func(c *gin.Context) {
		panic("draft exploded")
	})

	w := httptest.NewRecorder()
	require.NotPanics(t, func() {
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Panic recovered", entry.Message)
	_, hasStack := entryField(entry, "stacktrace")
	assert.True(t, hasStack)
}

func TestGetGinLogger_Unset(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	log := GetGinLogger(c)
	require.NotNil(t, log)
	assert.NotPanics(t, func() { log.Info("no middleware installed") })
}
