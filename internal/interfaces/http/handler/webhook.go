package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wasla/backend/internal/application/gateway"
	"github.com/wasla/backend/internal/domain/integration"
	"github.com/wasla/backend/internal/domain/order"
	"github.com/wasla/backend/internal/infrastructure/telemetry"
)

// defaultWebhookPayloadSize caps webhook bodies when no limit is configured
const defaultWebhookPayloadSize = 1 << 20 // 1MB

// WebhookHandler receives order webhooks from the commerce providers.
// These endpoints are called by the providers and carry their own
// signature verification instead of authentication.
type WebhookHandler struct {
	BaseHandler
	service         *gateway.WebhookService
	metrics         *telemetry.BusinessMetrics
	maxPayloadBytes int64
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(service *gateway.WebhookService, maxPayloadBytes int64) *WebhookHandler {
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = defaultWebhookPayloadSize
	}
	return &WebhookHandler{
		service:         service,
		maxPayloadBytes: maxPayloadBytes,
	}
}

// SetMetrics enables webhook ingestion counters
func (h *WebhookHandler) SetMetrics(metrics *telemetry.BusinessMetrics) {
	h.metrics = metrics
}

// WebhookAckResponse represents the acknowledgement for a webhook delivery
//
//	@Description	Webhook delivery acknowledgement
type WebhookAckResponse struct {
	Received  bool   `json:"received" example:"true"`
	Duplicate bool   `json:"duplicate,omitempty" example:"false"`
	Outcome   string `json:"outcome,omitempty" example:"created"`
	Message   string `json:"message,omitempty" example:"Webhook processed"`
}

// HandleWooCommerce godoc
//
//	@ID				handleWooCommerceWebhook
//	@Summary		Handle WooCommerce order webhook
//	@Description	Receive and process order events from a merchant's WooCommerce store
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Param			merchantId				path		string				true	"Merchant ID"	format(uuid)
//	@Param			X-WC-Webhook-Signature	header		string				true	"WooCommerce webhook signature"
//	@Success		200						{object}	WebhookAckResponse	"Delivery acknowledged"
//	@Failure		400						{object}	WebhookAckResponse	"Malformed payload"
//	@Failure		401						{object}	WebhookAckResponse	"Invalid signature"
//	@Failure		413						{object}	WebhookAckResponse	"Payload too large"
//	@Router			/webhooks/woocommerce/{merchantId} [post]
func (h *WebhookHandler) HandleWooCommerce(c *gin.Context) {
	h.ingest(c, order.SourceWooCommerce)
}

// HandleZid godoc
//
//	@ID				handleZidWebhook
//	@Summary		Handle Zid order webhook
//	@Description	Receive and process order events from a merchant's Zid store
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Param			merchantId	path		string				true	"Merchant ID"	format(uuid)
//	@Success		200			{object}	WebhookAckResponse	"Delivery acknowledged"
//	@Failure		400			{object}	WebhookAckResponse	"Malformed payload"
//	@Failure		401			{object}	WebhookAckResponse	"Invalid signature"
//	@Router			/webhooks/zid/{merchantId} [post]
func (h *WebhookHandler) HandleZid(c *gin.Context) {
	h.ingest(c, order.SourceZid)
}

// HandleCalendly godoc
//
//	@ID				handleCalendlyWebhook
//	@Summary		Handle Calendly booking webhook
//	@Description	Receive and process booking events from a merchant's Calendly account
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Param			merchantId					path		string				true	"Merchant ID"	format(uuid)
//	@Param			Calendly-Webhook-Signature	header		string				true	"Calendly webhook signature"
//	@Success		200							{object}	WebhookAckResponse	"Delivery acknowledged"
//	@Failure		400							{object}	WebhookAckResponse	"Malformed payload"
//	@Failure		401							{object}	WebhookAckResponse	"Invalid signature"
//	@Router			/webhooks/calendly/{merchantId} [post]
func (h *WebhookHandler) HandleCalendly(c *gin.Context) {
	h.ingest(c, order.SourceCalendly)
}

func (h *WebhookHandler) ingest(c *gin.Context, provider order.SourceSystem) {
	merchantID, err := getMerchantID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, WebhookAckResponse{Message: "Invalid merchant ID"})
		return
	}

	// Providers sign the raw body, so it must be read before any parsing
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxPayloadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, WebhookAckResponse{Message: "Failed to read request body"})
		return
	}
	if int64(len(payload)) > h.maxPayloadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, WebhookAckResponse{Message: "Payload too large"})
		return
	}

	result, err := h.service.Ingest(c.Request.Context(), provider, merchantID, payload, headerMap(c))
	if err != nil {
		h.recordWebhook(c, provider, telemetry.WebhookOutcomeFailed, err)
		switch {
		case errors.Is(err, integration.ErrInvalidSignature):
			c.JSON(http.StatusUnauthorized, WebhookAckResponse{Message: "Invalid signature"})
		case errors.Is(err, integration.ErrInvalidPayload):
			c.JSON(http.StatusBadRequest, WebhookAckResponse{Message: "Malformed payload"})
		case errors.Is(err, integration.ErrSourceNotConfigured), errors.Is(err, integration.ErrSourceNotRegistered):
			c.JSON(http.StatusNotFound, WebhookAckResponse{Message: "Source not configured"})
		default:
			c.JSON(http.StatusInternalServerError, WebhookAckResponse{Message: "Webhook processing failed"})
		}
		return
	}

	if result.Duplicate {
		h.recordWebhook(c, provider, telemetry.WebhookOutcomeDuplicate, nil)
		c.JSON(http.StatusOK, WebhookAckResponse{Received: true, Duplicate: true})
		return
	}

	h.recordWebhook(c, provider, telemetry.WebhookOutcomeProcessed, nil)
	c.JSON(http.StatusOK, WebhookAckResponse{
		Received: true,
		Outcome:  string(result.Outcome),
	})
}

func (h *WebhookHandler) recordWebhook(c *gin.Context, provider order.SourceSystem, outcome telemetry.WebhookOutcome, err error) {
	if h.metrics == nil {
		return
	}
	if err != nil && errors.Is(err, integration.ErrInvalidSignature) {
		outcome = telemetry.WebhookOutcomeRejected
	}
	h.metrics.RecordWebhookReceived(c.Request.Context(), provider.String(), outcome)
}

// headerMap flattens the request headers for signature verification
func headerMap(c *gin.Context) map[string]string {
	headers := make(map[string]string, len(c.Request.Header))
	for name := range c.Request.Header {
		headers[name] = c.Request.Header.Get(name)
	}
	return headers
}

// RegisterRoutes registers all provider webhook routes
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	webhooks := rg.Group("/webhooks")
	{
		webhooks.POST("/woocommerce/:merchantId", h.HandleWooCommerce)
		webhooks.POST("/zid/:merchantId", h.HandleZid)
		webhooks.POST("/calendly/:merchantId", h.HandleCalendly)
	}
}
