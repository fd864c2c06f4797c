// Package middleware provides HTTP middleware for the Wasla backend.
package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wasla/backend/internal/infrastructure/telemetry"
)

// ProfilingConfig controls which requests get profiling labels.
type ProfilingConfig struct {
	Enabled bool
	// SkipPaths are matched exactly, SkipPathPrefixes by prefix.
	SkipPaths        []string
	SkipPathPrefixes []string
}

// DefaultProfilingConfig skips health probes and debug endpoints.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:          true,
		SkipPaths:        []string{"/health", "/healthz", "/ready", "/metrics"},
		SkipPathPrefixes: []string{"/debug"},
	}
}

// Profiling returns the profiling middleware with default configuration.
func Profiling() gin.HandlerFunc {
	return ProfilingWithConfig(DefaultProfilingConfig())
}

// ProfilingWithConfig attaches Pyroscope labels (controller, route, method,
// merchant_id) to each request so profiles can be sliced per merchant and
// per endpoint in the Pyroscope UI.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip {
				c.Next()
				return
			}
		}
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		telemetry.WithProfilingLabels(c.Request.Context(), requestProfilingLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// requestProfilingLabels builds the label set for one request. Every value
// here is low cardinality: the route pattern rather than the raw path, and
// the merchant count is bounded by the tenant base.
func requestProfilingLabels(c *gin.Context) map[string]string {
	labels := make(map[string]string, 4)

	if method := c.Request.Method; method != "" {
		labels[telemetry.ProfilingLabelMethod] = method
	}
	route := c.FullPath()
	if route != "" {
		labels[telemetry.ProfilingLabelRoute] = route
	}
	if controller := controllerFromRoute(route); controller != "" {
		labels[telemetry.ProfilingLabelController] = controller
	}
	if merchantID := profilingMerchantID(c); merchantID != "" {
		labels[telemetry.ProfilingLabelMerchantID] = merchantID
	}
	return labels
}

// controllerFromRoute picks the resource segment out of a route pattern,
// so "/api/v1/orders/:id" labels as "orders".
func controllerFromRoute(route string) string {
	for _, part := range strings.Split(route, "/") {
		if part == "" || part == "api" || isVersionSegment(part) {
			continue
		}
		if strings.HasPrefix(part, ":") || strings.HasPrefix(part, "{") {
			continue
		}
		return part
	}
	return ""
}

// isVersionSegment reports whether a path segment looks like "v1", "v2", ...
func isVersionSegment(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	for i := 1; i < len(segment); i++ {
		if segment[i] < '0' || segment[i] > '9' {
			return false
		}
	}
	return true
}

// profilingMerchantID prefers the route parameter, then whatever the
// merchant middleware resolved earlier in the chain.
func profilingMerchantID(c *gin.Context) string {
	if id := c.Param(MerchantParamKey); id != "" {
		return id
	}
	if v, exists := c.Get(MerchantIDKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
