package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wasla/backend/internal/application/event"
	"github.com/wasla/backend/internal/domain/shared"
)

// OutboxHandler exposes the event outbox to operators: inspecting
// entries, reading delivery stats, and requeueing dead letters.
type OutboxHandler struct {
	BaseHandler
	outbox *event.Service
}

// NewOutboxHandler creates a new OutboxHandler
func NewOutboxHandler(outbox *event.Service) *OutboxHandler {
	return &OutboxHandler{outbox: outbox}
}

// RegisterRoutes mounts the outbox admin routes under /system/outbox
func (h *OutboxHandler) RegisterRoutes(rg *gin.RouterGroup) {
	outbox := rg.Group("/system/outbox")
	{
		outbox.GET("/stats", h.GetStats)
		outbox.GET("/dead", h.ListDeadLetters)
		outbox.POST("/dead/retry-all", h.RetryAllDeadLetters)
		outbox.GET("/:id", h.GetEntry)
		outbox.POST("/:id/retry", h.RetryDeadLetter)
	}
}

// OutboxEntryResponse represents one outbox entry
//
//	@Description	Event outbox entry with delivery state
type OutboxEntryResponse struct {
	ID            string     `json:"id"`
	MerchantID    string     `json:"merchant_id"`
	EventID       string     `json:"event_id"`
	EventType     string     `json:"event_type" example:"order.status_changed"`
	AggregateID   string     `json:"aggregate_id"`
	AggregateType string     `json:"aggregate_type" example:"Order"`
	Status        string     `json:"status" example:"DEAD"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	LastError     string     `json:"last_error,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// DeadLetterListResponse is one page of the dead letter queue
type DeadLetterListResponse struct {
	Entries    []OutboxEntryResponse `json:"entries"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// OutboxStatsResponse counts outbox entries per status
type OutboxStatsResponse struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

// RetryAllResponse reports how many dead letters were requeued
type RetryAllResponse struct {
	Count int64 `json:"count"`
}

func toOutboxEntryResponse(entry *shared.OutboxEntry) OutboxEntryResponse {
	return OutboxEntryResponse{
		ID:            entry.ID.String(),
		MerchantID:    entry.MerchantID.String(),
		EventID:       entry.EventID.String(),
		EventType:     entry.EventType,
		AggregateID:   entry.AggregateID.String(),
		AggregateType: entry.AggregateType,
		Status:        string(entry.Status),
		RetryCount:    entry.RetryCount,
		MaxRetries:    entry.MaxRetries,
		LastError:     entry.LastError,
		NextRetryAt:   entry.NextRetryAt,
		ProcessedAt:   entry.ProcessedAt,
		CreatedAt:     entry.CreatedAt,
		UpdatedAt:     entry.UpdatedAt,
	}
}

// ListDeadLetters godoc
//
//	@ID				listOutboxDeadLetters
//	@Summary		List dead letters
//	@Description	Page through outbox entries whose retry budget ran out
//	@Tags			outbox
//	@Produce		json
//	@Param			page		query		int	false	"Page number"		default(1)
//	@Param			page_size	query		int	false	"Items per page"	default(20)	maximum(100)
//	@Success		200			{object}	APIResponse[DeadLetterListResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/system/outbox/dead [get]
func (h *OutboxHandler) ListDeadLetters(c *gin.Context) {
	var query event.DeadLetterQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	page, err := h.outbox.ListDeadLetters(c.Request.Context(), query)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	entries := make([]OutboxEntryResponse, 0, len(page.Entries))
	for _, entry := range page.Entries {
		entries = append(entries, toOutboxEntryResponse(entry))
	}
	h.Success(c, DeadLetterListResponse{
		Entries:    entries,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	})
}

// GetEntry godoc
//
//	@ID				getOutboxEntry
//	@Summary		Get an outbox entry
//	@Description	Retrieve a single outbox entry by ID, any status
//	@Tags			outbox
//	@Produce		json
//	@Param			id	path		string	true	"Outbox entry ID"	format(uuid)
//	@Success		200	{object}	APIResponse[OutboxEntryResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/system/outbox/{id} [get]
func (h *OutboxHandler) GetEntry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid entry ID")
		return
	}

	entry, err := h.outbox.GetEntry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toOutboxEntryResponse(entry))
}

// RetryDeadLetter godoc
//
//	@ID				retryOutboxDeadLetter
//	@Summary		Requeue one dead letter
//	@Description	Reset a dead entry so the processor delivers it again
//	@Tags			outbox
//	@Produce		json
//	@Param			id	path		string	true	"Outbox entry ID"	format(uuid)
//	@Success		200	{object}	APIResponse[OutboxEntryResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse	"Entry is not dead"
//	@Failure		500	{object}	ErrorResponse
//	@Router			/system/outbox/{id}/retry [post]
func (h *OutboxHandler) RetryDeadLetter(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid entry ID")
		return
	}

	entry, err := h.outbox.RequeueDeadLetter(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toOutboxEntryResponse(entry))
}

// RetryAllDeadLetters godoc
//
//	@ID				retryAllOutboxDeadLetters
//	@Summary		Requeue every dead letter
//	@Description	Reset all dead entries for redelivery
//	@Tags			outbox
//	@Produce		json
//	@Success		200	{object}	APIResponse[RetryAllResponse]
//	@Failure		500	{object}	ErrorResponse
//	@Router			/system/outbox/dead/retry-all [post]
func (h *OutboxHandler) RetryAllDeadLetters(c *gin.Context) {
	count, err := h.outbox.RequeueAllDeadLetters(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, RetryAllResponse{Count: count})
}

// GetStats godoc
//
//	@ID				getOutboxStats
//	@Summary		Outbox delivery stats
//	@Description	Count outbox entries per delivery status
//	@Tags			outbox
//	@Produce		json
//	@Success		200	{object}	APIResponse[OutboxStatsResponse]
//	@Failure		500	{object}	ErrorResponse
//	@Router			/system/outbox/stats [get]
func (h *OutboxHandler) GetStats(c *gin.Context) {
	stats, err := h.outbox.GetStats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, OutboxStatsResponse{
		Pending:    stats.Pending,
		Processing: stats.Processing,
		Sent:       stats.Sent,
		Failed:     stats.Failed,
		Dead:       stats.Dead,
		Total:      stats.Total,
	})
}
