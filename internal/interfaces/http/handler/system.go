package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wasla/backend/internal/interfaces/http/dto"
)

// Version and Commit are stamped by the build via -ldflags; the defaults
// identify a locally built binary.
var (
	Version = "dev"
	Commit  = "unknown"
)

// SystemHandler serves the version and liveness endpoints.
type SystemHandler struct {
	BaseHandler
	startedAt time.Time
}

// NewSystemHandler creates a SystemHandler anchored at the current time,
// which becomes the uptime baseline.
func NewSystemHandler() *SystemHandler {
	return &SystemHandler{startedAt: time.Now()}
}

// SystemInfoResponse describes the running binary.
// @name HandlerSystemInfoResponse
type SystemInfoResponse struct {
	Name      string `json:"name" example:"Wasla Backend API"`
	Version   string `json:"version" example:"dev"`
	Commit    string `json:"commit" example:"unknown"`
	GoVersion string `json:"go_version" example:"go1.25.5"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
}

// GetSystemInfo godoc
// @ID           getSystemSystemInfo
// @Summary      Get system information
// @Description  Returns the build version, commit, and uptime of the running server
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[SystemInfoResponse]
// @Failure      500 {object} ErrorResponse
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(SystemInfoResponse{
		Name:      "Wasla Backend API",
		Version:   Version,
		Commit:    Commit,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
	}))
}

// PingResponse is the liveness probe payload.
// @name HandlerPingResponse
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// Ping godoc
// @ID           pingSystem
// @Summary      Ping the API
// @Description  Liveness probe; answers without touching the database or Redis
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[PingResponse]
// @Router       /system/ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	}))
}

// RegisterRoutes mounts the system endpoints under /system.
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	system := rg.Group("/system")
	system.GET("/info", h.GetSystemInfo)
	system.GET("/ping", h.Ping)
}
