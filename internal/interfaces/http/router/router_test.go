package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestNewRouterDefaultsToV1(t *testing.T) {
	r := NewRouter(gin.New())

	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestSetupMountsUnderVersionedPrefix(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))

	r.Register(RegisterFunc(func(rg *gin.RouterGroup) {
		rg.GET("/orders/:orderNumber", func(c *gin.Context) {
			c.String(http.StatusOK, c.Param("orderNumber"))
		})
	}))
	r.Setup()

	w := serve(engine, "GET", "/api/v1/orders/SA-1001")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SA-1001", w.Body.String())
}

func TestSetupEmptyVersionMountsUnderBareAPI(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion(""))

	r.Register(RegisterFunc(func(rg *gin.RouterGroup) {
		rg.GET("/system/health", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})
	}))
	r.Setup()

	assert.Equal(t, http.StatusOK, serve(engine, "GET", "/api/system/health").Code)
	assert.Equal(t, http.StatusNotFound, serve(engine, "GET", "/api/v1/system/health").Code)
}

func TestRegisterChainsMultipleRegistrars(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	sync := RegisterFunc(func(rg *gin.RouterGroup) {
		rg.POST("/merchants/:merchantId/sync", func(c *gin.Context) {
			c.String(http.StatusAccepted, "queued")
		})
	})
	instances := RegisterFunc(func(rg *gin.RouterGroup) {
		rg.GET("/merchants/:merchantId/instances", func(c *gin.Context) {
			c.String(http.StatusOK, "instances")
		})
	})

	r.Register(sync).Register(instances)
	r.Setup()

	merchant := "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	assert.Equal(t, http.StatusAccepted, serve(engine, "POST", "/api/v1/merchants/"+merchant+"/sync").Code)
	assert.Equal(t, http.StatusOK, serve(engine, "GET", "/api/v1/merchants/"+merchant+"/instances").Code)
}

func TestSetupLeavesUnregisteredPathsAlone(t *testing.T) {
	engine := gin.New()
	NewRouter(engine).Setup()

	assert.Equal(t, http.StatusNotFound, serve(engine, "GET", "/api/v1/orders").Code)
}
