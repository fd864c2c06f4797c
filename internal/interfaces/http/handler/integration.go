package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/wasla/backend/internal/domain/integration"
	"github.com/wasla/backend/internal/domain/order"
)

// IntegrationHandler manages a merchant's source-system connections
type IntegrationHandler struct {
	BaseHandler
	registry integration.SourceRegistry
	// defaultWebhookSecrets supplies the platform-level webhook secret per
	// source when the merchant does not bring their own
	defaultWebhookSecrets map[order.SourceSystem]string
}

// NewIntegrationHandler creates a new IntegrationHandler
func NewIntegrationHandler(registry integration.SourceRegistry, defaultWebhookSecrets map[order.SourceSystem]string) *IntegrationHandler {
	if defaultWebhookSecrets == nil {
		defaultWebhookSecrets = make(map[order.SourceSystem]string)
	}
	return &IntegrationHandler{
		registry:              registry,
		defaultWebhookSecrets: defaultWebhookSecrets,
	}
}

// ConnectIntegrationRequest represents source credentials for one merchant
//
//	@Description	Source system connection request
type ConnectIntegrationRequest struct {
	BaseURL       string `json:"base_url" example:"https://store.example.sa"`
	APIKey        string `json:"api_key" binding:"required"`
	APISecret     string `json:"api_secret"`
	WebhookSecret string `json:"webhook_secret"`
}

// IntegrationResponse represents the connection state of one source system
//
//	@Description	Source system connection state
type IntegrationResponse struct {
	Source    string `json:"source" example:"woocommerce"`
	Connected bool   `json:"connected"`
}

// List godoc
//
//	@ID				listIntegrations
//	@Summary		List source integrations
//	@Description	Get the connection state of every registered source system
//	@Tags			integrations
//	@Produce		json
//	@Param			merchantId	path		string	true	"Merchant ID"	format(uuid)
//	@Success		200			{object}	APIResponse[[]IntegrationResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Router			/merchants/{merchantId}/integrations [get]
func (h *IntegrationHandler) List(c *gin.Context) {
	merchantID, err := getMerchantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid merchant ID")
		return
	}

	adapters := h.registry.List()
	responses := make([]IntegrationResponse, 0, len(adapters))
	for _, adapter := range adapters {
		responses = append(responses, IntegrationResponse{
			Source:    adapter.Code().String(),
			Connected: adapter.IsConfigured(merchantID),
		})
	}
	h.Success(c, responses)
}

// Connect godoc
//
//	@ID				connectIntegration
//	@Summary		Connect a source system
//	@Description	Store the merchant's credentials for a source system. Repeating the call replaces them.
//	@Tags			integrations
//	@Accept			json
//	@Produce		json
//	@Param			merchantId	path		string						true	"Merchant ID"	format(uuid)
//	@Param			source		path		string						true	"Source system"	Enums(woocommerce, zid, calendly)
//	@Param			request		body		ConnectIntegrationRequest	true	"Source credentials"
//	@Success		200			{object}	APIResponse[IntegrationResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse	"Unknown source system"
//	@Router			/merchants/{merchantId}/integrations/{source} [put]
func (h *IntegrationHandler) Connect(c *gin.Context) {
	merchantID, err := getMerchantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid merchant ID")
		return
	}

	source := order.SourceSystem(c.Param("source"))
	adapter, err := h.registry.Get(source)
	if err != nil {
		h.NotFound(c, "Unknown source system")
		return
	}

	var req ConnectIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	webhookSecret := req.WebhookSecret
	if webhookSecret == "" {
		webhookSecret = h.defaultWebhookSecrets[source]
	}

	cfg := integration.SourceConfig{
		BaseURL:       req.BaseURL,
		APIKey:        req.APIKey,
		APISecret:     req.APISecret,
		WebhookSecret: webhookSecret,
	}
	if err := adapter.Configure(merchantID, cfg); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, IntegrationResponse{Source: source.String(), Connected: true})
}

// Disconnect godoc
//
//	@ID				disconnectIntegration
//	@Summary		Disconnect a source system
//	@Description	Drop the merchant's credentials for a source system
//	@Tags			integrations
//	@Produce		json
//	@Param			merchantId	path	string	true	"Merchant ID"	format(uuid)
//	@Param			source		path	string	true	"Source system"	Enums(woocommerce, zid, calendly)
//	@Success		204
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse	"Unknown source system"
//	@Router			/merchants/{merchantId}/integrations/{source} [delete]
func (h *IntegrationHandler) Disconnect(c *gin.Context) {
	merchantID, err := getMerchantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid merchant ID")
		return
	}

	source := order.SourceSystem(c.Param("source"))
	adapter, err := h.registry.Get(source)
	if err != nil {
		h.NotFound(c, "Unknown source system")
		return
	}

	adapter.RemoveConfig(merchantID)
	h.NoContent(c)
}

// RegisterRoutes registers all integration routes
func (h *IntegrationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	integrations := rg.Group("/merchants/:merchantId/integrations")
	{
		integrations.GET("", h.List)
		integrations.PUT("/:source", h.Connect)
		integrations.DELETE("/:source", h.Disconnect)
	}
}
