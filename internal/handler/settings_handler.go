package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/service"
	"github.com/GTDGit/fabric_api/internal/utils"
)

type SettingsHandler struct {
	settingsService *service.SettingsService
}

func NewSettingsHandler(settingsService *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// GetSettings handles GET /api/v1/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	utils.Success(c, 200, "Settings retrieved successfully", h.settingsService.Get())
}

// GetPublicSettings handles GET /api/v1/settings/public
func (h *SettingsHandler) GetPublicSettings(c *gin.Context) {
	utils.Success(c, 200, "Settings retrieved successfully", h.settingsService.Public())
}

// UpdateStore handles PUT /api/v1/settings/store
func (h *SettingsHandler) UpdateStore(c *gin.Context) {
	var req models.StoreSettings
	if !utils.BindJSON(c, &req) {
		return
	}
	st, err := h.settingsService.UpdateStore(c.Request.Context(), req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Store settings updated", st)
}

// UpdateShipping handles PUT /api/v1/settings/shipping
func (h *SettingsHandler) UpdateShipping(c *gin.Context) {
	var req models.ShippingSettings
	if !utils.BindJSON(c, &req) {
		return
	}
	st, err := h.settingsService.UpdateShipping(c.Request.Context(), req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Shipping settings updated", st)
}

// UpdatePayment handles PUT /api/v1/settings/payment
func (h *SettingsHandler) UpdatePayment(c *gin.Context) {
	var req models.PaymentSettings
	if !utils.BindJSON(c, &req) {
		return
	}
	st, err := h.settingsService.UpdatePayment(c.Request.Context(), req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Payment settings updated", st)
}
