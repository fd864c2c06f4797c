package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	syncapp "github.com/wasla/backend/internal/application/sync"
	"github.com/wasla/backend/internal/domain/integration"
	"github.com/wasla/backend/internal/domain/order"
	"github.com/wasla/backend/internal/domain/shared"
	"github.com/wasla/backend/internal/interfaces/http/dto"
)

// SyncHandler exposes on-demand order synchronization for a merchant
type SyncHandler struct {
	BaseHandler
	syncService *syncapp.Service
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(syncService *syncapp.Service) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
	}
}

// SyncRequest represents a manual sync trigger
//
//	@Description	Manual order sync request
type SyncRequest struct {
	Source string `json:"source" binding:"required" example:"zid"`
}

// SyncRunResponse represents one synchronization run
//
//	@Description	Order synchronization run
type SyncRunResponse struct {
	ID           string     `json:"id" example:"7c9e6679-7425-40de-944b-e07fc1f90ae7"`
	Source       string     `json:"source" example:"zid"`
	Status       string     `json:"status" example:"succeeded"`
	Since        time.Time  `json:"since"`
	Watermark    time.Time  `json:"watermark"`
	CreatedCount int        `json:"created_count" example:"12"`
	UpdatedCount int        `json:"updated_count" example:"3"`
	SkippedCount int        `json:"skipped_count" example:"0"`
	FailedCount  int        `json:"failed_count" example:"0"`
	PagesFetched int        `json:"pages_fetched" example:"2"`
	Error        string     `json:"error,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

func toSyncRunResponse(run *integration.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:           run.ID.String(),
		Source:       run.SourceSystem.String(),
		Status:       string(run.Status),
		Since:        run.Since,
		Watermark:    run.Watermark,
		CreatedCount: run.CreatedCount,
		UpdatedCount: run.UpdatedCount,
		SkippedCount: run.SkippedCount,
		FailedCount:  run.FailedCount,
		PagesFetched: run.PagesFetched,
		Error:        run.Error,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
	}
}

// SyncNow godoc
//
//	@ID				syncMerchantOrders
//	@Summary		Trigger an order sync
//	@Description	Pull orders from the merchant's commerce platform and reconcile them now
//	@Tags			sync
//	@Accept			json
//	@Produce		json
//	@Param			merchantId	path		string		true	"Merchant ID"	format(uuid)
//	@Param			request		body		SyncRequest	true	"Sync parameters"
//	@Success		200			{object}	APIResponse[SyncRunResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		409			{object}	ErrorResponse	"A sync for this merchant and source is already running"
//	@Failure		500			{object}	ErrorResponse
//	@Router			/merchants/{merchantId}/sync [post]
func (h *SyncHandler) SyncNow(c *gin.Context) {
	merchantID, err := getMerchantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid merchant ID")
		return
	}

	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	source := order.SourceSystem(req.Source)
	if !source.IsValid() || source == order.SourceNative {
		h.BadRequest(c, "Unknown source system")
		return
	}

	run, err := h.syncService.SyncOrders(c.Request.Context(), merchantID, source)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toSyncRunResponse(run))
}

// ListRuns godoc
//
//	@ID				listMerchantSyncRuns
//	@Summary		List sync runs
//	@Description	Get a paginated history of synchronization runs for a merchant
//	@Tags			sync
//	@Produce		json
//	@Param			merchantId	path		string	true	"Merchant ID"	format(uuid)
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Items per page"	default(20)	maximum(100)
//	@Success		200			{object}	APIResponse[[]SyncRunResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/merchants/{merchantId}/sync/runs [get]
func (h *SyncHandler) ListRuns(c *gin.Context) {
	merchantID, err := getMerchantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid merchant ID")
		return
	}

	listReq := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	filter := shared.Filter{
		Page:     listReq.Page,
		PageSize: listReq.PageSize,
	}

	runs, err := h.syncService.ListRuns(c.Request.Context(), merchantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]SyncRunResponse, 0, len(runs))
	for i := range runs {
		responses = append(responses, toSyncRunResponse(&runs[i]))
	}
	h.Success(c, responses)
}

// RegisterRoutes registers all sync routes
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	merchants := rg.Group("/merchants/:merchantId")
	{
		merchants.POST("/sync", h.SyncNow)
		merchants.GET("/sync/runs", h.ListRuns)
	}
}
