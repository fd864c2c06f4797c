// Package router assembles the API route tree from handler-owned
// route registrations.
package router

import (
	"github.com/gin-gonic/gin"
)

// RouteRegistrar is implemented by handlers that mount their own routes.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RegisterFunc adapts a bare function to RouteRegistrar.
type RegisterFunc func(rg *gin.RouterGroup)

func (f RegisterFunc) RegisterRoutes(rg *gin.RouterGroup) { f(rg) }

// Router collects registrars and mounts them under a common API prefix.
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithAPIVersion sets the version segment of the prefix, e.g. "v1".
// An empty version mounts everything directly under /api.
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register queues a registrar; routes are mounted on Setup.
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup mounts every queued registrar under the API prefix.
func (r *Router) Setup() {
	prefix := "/api"
	if r.apiVersion != "" {
		prefix += "/" + r.apiVersion
	}
	api := r.engine.Group(prefix)

	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}
