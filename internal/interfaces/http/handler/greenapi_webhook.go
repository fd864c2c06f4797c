package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wasla/backend/internal/application/pool"
	"github.com/wasla/backend/internal/domain/shared"
	"github.com/wasla/backend/internal/domain/whatsapp"
)

// GreenAPIWebhookHandler receives inbound notifications from Green API:
// instance state changes and customer WhatsApp messages. Green API does not
// sign deliveries, so the endpoint is guarded by a shared token when one is
// configured.
type GreenAPIWebhookHandler struct {
	BaseHandler
	poolService  *pool.Service
	webhookToken string
}

// NewGreenAPIWebhookHandler creates a new GreenAPIWebhookHandler
func NewGreenAPIWebhookHandler(poolService *pool.Service, webhookToken string) *GreenAPIWebhookHandler {
	return &GreenAPIWebhookHandler{
		poolService:  poolService,
		webhookToken: webhookToken,
	}
}

// greenAPINotification mirrors the Green API webhook envelope. Only the
// fields the pool consumes are bound; unknown notification types are
// acknowledged and dropped.
type greenAPINotification struct {
	TypeWebhook  string `json:"typeWebhook" binding:"required"`
	Timestamp    int64  `json:"timestamp"`
	InstanceData struct {
		IDInstance   int64  `json:"idInstance"`
		Wid          string `json:"wid"`
		TypeInstance string `json:"typeInstance"`
	} `json:"instanceData"`
	StateInstance string `json:"stateInstance"`
	SenderData    struct {
		ChatID     string `json:"chatId"`
		ChatName   string `json:"chatName"`
		Sender     string `json:"sender"`
		SenderName string `json:"senderName"`
	} `json:"senderData"`
	MessageData struct {
		TypeMessage     string `json:"typeMessage"`
		TextMessageData struct {
			TextMessage string `json:"textMessage"`
		} `json:"textMessageData"`
		ExtendedTextMessageData struct {
			Text string `json:"text"`
		} `json:"extendedTextMessageData"`
		Caption string `json:"caption"`
	} `json:"messageData"`
}

// messageText extracts the text body across the message type variants
func (n *greenAPINotification) messageText() string {
	if n.MessageData.TextMessageData.TextMessage != "" {
		return n.MessageData.TextMessageData.TextMessage
	}
	if n.MessageData.ExtendedTextMessageData.Text != "" {
		return n.MessageData.ExtendedTextMessageData.Text
	}
	return n.MessageData.Caption
}

// HandleNotification godoc
//
//	@ID				handleGreenAPIWebhook
//	@Summary		Handle Green API webhook
//	@Description	Receive instance state changes and inbound WhatsApp messages from Green API
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Param			Authorization	header		string				false	"Bearer webhook token"
//	@Success		200				{object}	WebhookAckResponse	"Notification acknowledged"
//	@Failure		400				{object}	WebhookAckResponse	"Malformed payload"
//	@Failure		401				{object}	WebhookAckResponse	"Invalid webhook token"
//	@Router			/webhooks/greenapi [post]
func (h *GreenAPIWebhookHandler) HandleNotification(c *gin.Context) {
	if !h.authorized(c) {
		c.JSON(http.StatusUnauthorized, WebhookAckResponse{Message: "Invalid webhook token"})
		return
	}

	var payload greenAPINotification
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, WebhookAckResponse{Message: "Malformed payload"})
		return
	}

	instanceID := strconv.FormatInt(payload.InstanceData.IDInstance, 10)

	switch payload.TypeWebhook {
	case "stateInstanceChanged":
		state := whatsapp.InstanceState(payload.StateInstance)
		if err := h.poolService.ApplyProviderState(c.Request.Context(), instanceID, state); err != nil {
			h.ackInboundError(c, err)
			return
		}
	case "incomingMessageReceived":
		msg := whatsapp.IncomingMessage{
			InstanceID:  instanceID,
			ChatID:      payload.SenderData.ChatID,
			SenderPhone: phoneFromChatID(payload.SenderData.ChatID),
			SenderName:  payload.SenderData.SenderName,
			Text:        payload.messageText(),
			MessageType: payload.MessageData.TypeMessage,
			ReceivedAt:  time.Unix(payload.Timestamp, 0),
		}
		if err := h.poolService.ReceiveMessage(c.Request.Context(), msg); err != nil {
			h.ackInboundError(c, err)
			return
		}
	default:
		// Delivery receipts, outgoing statuses and other types are not consumed
	}

	c.JSON(http.StatusOK, WebhookAckResponse{Received: true})
}

// ackInboundError acknowledges deliveries for instances this deployment does
// not know; Green API would otherwise retry them forever. Other failures
// surface as errors so the provider retries.
func (h *GreenAPIWebhookHandler) ackInboundError(c *gin.Context, err error) {
	var domainErr *shared.DomainError
	if errors.Is(err, shared.ErrNotFound) ||
		(errors.As(err, &domainErr) && domainErr.Code == "INSTANCE_NOT_FOUND") {
		c.JSON(http.StatusOK, WebhookAckResponse{Received: true, Message: "Unknown instance"})
		return
	}
	c.JSON(http.StatusInternalServerError, WebhookAckResponse{Message: "Notification processing failed"})
}

func (h *GreenAPIWebhookHandler) authorized(c *gin.Context) bool {
	if h.webhookToken == "" {
		return true
	}
	auth := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(h.webhookToken)) == 1
}

// phoneFromChatID strips the provider suffix from a chat ID such as
// "966501234567@c.us"
func phoneFromChatID(chatID string) string {
	for i := 0; i < len(chatID); i++ {
		if chatID[i] == '@' {
			return chatID[:i]
		}
	}
	return chatID
}

// RegisterRoutes registers the Green API webhook route
func (h *GreenAPIWebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/greenapi", h.HandleNotification)
}
