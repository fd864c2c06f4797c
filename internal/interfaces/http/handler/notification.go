package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wasla/backend/internal/application/dispatch"
	"github.com/wasla/backend/internal/domain/notification"
)

// NotificationHandler exposes the notification history for an order
type NotificationHandler struct {
	BaseHandler
	dispatchService *dispatch.Service
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(dispatchService *dispatch.Service) *NotificationHandler {
	return &NotificationHandler{
		dispatchService: dispatchService,
	}
}

// NotificationAttemptResponse represents one delivery attempt
//
//	@Description	Notification delivery attempt
type NotificationAttemptResponse struct {
	InstanceID    string     `json:"instance_id" example:"1101123456"`
	AttemptNumber int        `json:"attempt_number" example:"1"`
	Result        string     `json:"result" example:"success"`
	FailureKind   string     `json:"failure_kind,omitempty" example:"transient"`
	FailureReason string     `json:"failure_reason,omitempty"`
	ScheduledAt   time.Time  `json:"scheduled_at"`
	ExecutedAt    *time.Time `json:"executed_at,omitempty"`
}

// NotificationResponse represents one outbound notification
//
//	@Description	Outbound WhatsApp notification
type NotificationResponse struct {
	ID            string                        `json:"id" example:"7c9e6679-7425-40de-944b-e07fc1f90ae7"`
	OrderID       string                        `json:"order_id" example:"9b2d8c1a-3f4e-4b5c-8d6e-7f8a9b0c1d2e"`
	EventType     string                        `json:"event_type" example:"order.shipped"`
	TemplateID    string                        `json:"template_id" example:"order_shipped_ar"`
	CustomerPhone string                        `json:"customer_phone" example:"966501234567"`
	Message       string                        `json:"message"`
	Status        string                        `json:"status" example:"sent"`
	SentAt        *time.Time                    `json:"sent_at,omitempty"`
	NextAttemptAt *time.Time                    `json:"next_attempt_at,omitempty"`
	LastError     string                        `json:"last_error,omitempty"`
	Attempts      []NotificationAttemptResponse `json:"attempts"`
	CreatedAt     time.Time                     `json:"created_at"`
}

func toNotificationResponse(n *notification.Notification) NotificationResponse {
	attempts := make([]NotificationAttemptResponse, 0, len(n.Attempts))
	for i := range n.Attempts {
		a := &n.Attempts[i]
		attempts = append(attempts, NotificationAttemptResponse{
			InstanceID:    a.InstanceID,
			AttemptNumber: a.AttemptNumber,
			Result:        string(a.Result),
			FailureKind:   string(a.FailureKind),
			FailureReason: a.FailureReason,
			ScheduledAt:   a.ScheduledAt,
			ExecutedAt:    a.ExecutedAt,
		})
	}
	return NotificationResponse{
		ID:            n.ID.String(),
		OrderID:       n.OrderID.String(),
		EventType:     n.EventType,
		TemplateID:    n.TemplateID,
		CustomerPhone: n.CustomerPhone,
		Message:       n.Message,
		Status:        string(n.Status),
		SentAt:        n.SentAt,
		NextAttemptAt: n.NextAttemptAt,
		LastError:     n.LastError,
		Attempts:      attempts,
		CreatedAt:     n.CreatedAt,
	}
}

// ListForOrder godoc
//
//	@ID				listOrderNotifications
//	@Summary		List notifications for an order
//	@Description	Get every notification generated for an order with its delivery attempts
//	@Tags			notifications
//	@Produce		json
//	@Param			merchantId	path		string	true	"Merchant ID"	format(uuid)
//	@Param			orderId		path		string	true	"Order ID"		format(uuid)
//	@Success		200			{object}	APIResponse[[]NotificationResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/merchants/{merchantId}/orders/{orderId}/notifications [get]
func (h *NotificationHandler) ListForOrder(c *gin.Context) {
	if _, err := getMerchantID(c); err != nil {
		h.BadRequest(c, "Invalid merchant ID")
		return
	}

	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	notifications, err := h.dispatchService.ListForOrder(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]NotificationResponse, 0, len(notifications))
	for i := range notifications {
		responses = append(responses, toNotificationResponse(&notifications[i]))
	}
	h.Success(c, responses)
}

// RegisterRoutes registers all notification routes
func (h *NotificationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/merchants/:merchantId/orders/:orderId/notifications", h.ListForOrder)
}
