package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wasla/backend/internal/application/pool"
	"github.com/wasla/backend/internal/domain/whatsapp"
)

// InstanceHandler manages a merchant's WhatsApp instance pool
type InstanceHandler struct {
	BaseHandler
	poolService *pool.Service
}

// NewInstanceHandler creates a new InstanceHandler
func NewInstanceHandler(poolService *pool.Service) *InstanceHandler {
	return &InstanceHandler{
		poolService: poolService,
	}
}

// RegisterInstanceRequest represents a new instance registration
//
//	@Description	WhatsApp instance registration request
type RegisterInstanceRequest struct {
	InstanceID string     `json:"instance_id" binding:"required" example:"1101123456"`
	Token      string     `json:"token" binding:"required"`
	APIURL     string     `json:"api_url" example:"https://api.green-api.com"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// InstanceResponse represents one WhatsApp instance in the pool
//
//	@Description	WhatsApp instance
type InstanceResponse struct {
	ID          string     `json:"id" example:"7c9e6679-7425-40de-944b-e07fc1f90ae7"`
	InstanceID  string     `json:"instance_id" example:"1101123456"`
	PhoneNumber string     `json:"phone_number,omitempty" example:"966501234567"`
	Role        string     `json:"role" example:"primary"`
	Status      string     `json:"status" example:"active"`
	LastError   string     `json:"last_error,omitempty"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toInstanceResponse(inst *whatsapp.Instance) InstanceResponse {
	return InstanceResponse{
		ID:          inst.ID.String(),
		InstanceID:  inst.InstanceID,
		PhoneNumber: inst.PhoneNumber,
		Role:        string(inst.Role),
		Status:      string(inst.Status),
		LastError:   inst.LastError,
		ConnectedAt: inst.ConnectedAt,
		ExpiresAt:   inst.ExpiresAt,
		CreatedAt:   inst.CreatedAt,
	}
}

// List godoc
//
//	@ID				listInstances
//	@Summary		List WhatsApp instances
//	@Description	Get all WhatsApp instances in the merchant's pool
//	@Tags			instances
//	@Produce		json
//	@Param			merchantId	path		string	true	"Merchant ID"	format(uuid)
//	@Success		200			{object}	APIResponse[[]InstanceResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/merchants/{merchantId}/instances [get]
func (h *InstanceHandler) List(c *gin.Context) {
	merchantID, err := getMerchantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid merchant ID")
		return
	}

	instances, err := h.poolService.List(c.Request.Context(), merchantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]InstanceResponse, 0, len(instances))
	for i := range instances {
		responses = append(responses, toInstanceResponse(&instances[i]))
	}
	h.Success(c, responses)
}

// Register godoc
//
//	@ID				registerInstance
//	@Summary		Register a WhatsApp instance
//	@Description	Add a Green API instance to the merchant's pool in pending state
//	@Tags			instances
//	@Accept			json
//	@Produce		json
//	@Param			merchantId	path		string					true	"Merchant ID"	format(uuid)
//	@Param			request		body		RegisterInstanceRequest	true	"Instance credentials"
//	@Success		201			{object}	APIResponse[InstanceResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		409			{object}	ErrorResponse	"Instance already registered"
//	@Failure		500			{object}	ErrorResponse
//	@Router			/merchants/{merchantId}/instances [post]
func (h *InstanceHandler) Register(c *gin.Context) {
	merchantID, err := getMerchantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid merchant ID")
		return
	}

	var req RegisterInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	inst, err := h.poolService.Register(c.Request.Context(), merchantID, req.InstanceID, req.Token, req.APIURL, req.ExpiresAt)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toInstanceResponse(inst))
}

// TestConnection godoc
//
//	@ID				testInstanceConnection
//	@Summary		Test an instance connection
//	@Description	Query the provider for the instance state and activate it when authorized
//	@Tags			instances
//	@Produce		json
//	@Param			merchantId	path		string	true	"Merchant ID"	format(uuid)
//	@Param			instanceId	path		string	true	"Green API instance ID"
//	@Success		200			{object}	APIResponse[InstanceResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/merchants/{merchantId}/instances/{instanceId}/test [post]
func (h *InstanceHandler) TestConnection(c *gin.Context) {
	merchantID, err := getMerchantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid merchant ID")
		return
	}

	inst, err := h.poolService.TestConnection(c.Request.Context(), merchantID, c.Param("instanceId"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toInstanceResponse(inst))
}

// Promote godoc
//
//	@ID				promoteInstance
//	@Summary		Promote an instance to primary
//	@Description	Make this instance the merchant's primary sender; the previous primary becomes backup
//	@Tags			instances
//	@Produce		json
//	@Param			merchantId	path		string	true	"Merchant ID"	format(uuid)
//	@Param			instanceId	path		string	true	"Instance record ID"	format(uuid)
//	@Success		204			"Promoted"
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Failure		422			{object}	ErrorResponse	"Instance is not active"
//	@Failure		500			{object}	ErrorResponse
//	@Router			/merchants/{merchantId}/instances/{instanceId}/promote [post]
func (h *InstanceHandler) Promote(c *gin.Context) {
	merchantID, err := getMerchantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid merchant ID")
		return
	}

	instanceID, err := uuid.Parse(c.Param("instanceId"))
	if err != nil {
		h.BadRequest(c, "Invalid instance ID")
		return
	}

	if err := h.poolService.PromoteToPrimary(c.Request.Context(), merchantID, instanceID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// DeactivateInstanceRequest carries the optional operator reason
//
//	@Description	Instance deactivation request
type DeactivateInstanceRequest struct {
	Reason string `json:"reason" example:"Operator requested"`
}

// Deactivate godoc
//
//	@ID				deactivateInstance
//	@Summary		Deactivate an instance
//	@Description	Take the instance out of sending rotation
//	@Tags			instances
//	@Accept			json
//	@Produce		json
//	@Param			merchantId	path		string						true	"Merchant ID"	format(uuid)
//	@Param			instanceId	path		string						true	"Green API instance ID"
//	@Param			request		body		DeactivateInstanceRequest	false	"Deactivation reason"
//	@Success		200			{object}	APIResponse[InstanceResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/merchants/{merchantId}/instances/{instanceId}/deactivate [post]
func (h *InstanceHandler) Deactivate(c *gin.Context) {
	merchantID, err := getMerchantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid merchant ID")
		return
	}

	var req DeactivateInstanceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, "Invalid request body")
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "Deactivated by operator"
	}

	inst, err := h.poolService.Deactivate(c.Request.Context(), merchantID, c.Param("instanceId"), req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toInstanceResponse(inst))
}

// RegisterRoutes registers all instance pool routes
func (h *InstanceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	instances := rg.Group("/merchants/:merchantId/instances")
	{
		instances.GET("", h.List)
		instances.POST("", h.Register)
		instances.POST("/:instanceId/test", h.TestConnection)
		instances.POST("/:instanceId/promote", h.Promote)
		instances.POST("/:instanceId/deactivate", h.Deactivate)
	}
}
