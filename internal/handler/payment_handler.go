package handler

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/fabric_api/internal/service"
	"github.com/GTDGit/fabric_api/internal/utils"
)

const maxWebhookBody = 1 << 20

// PaymentHandler handles the Paystack callback and webhook.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// Verify handles GET /api/v1/payments/verify/:reference
func (h *PaymentHandler) Verify(c *gin.Context) {
	o, err := h.paymentService.Verify(c.Request.Context(), c.Param("reference"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Payment verified", o)
}

// Webhook handles POST /api/v1/payments/webhook
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.Error(c, 400, "INVALID_PAYLOAD", "Failed to read request body")
		return
	}

	if err := h.paymentService.HandleWebhook(c.Request.Context(), body, c.GetHeader("x-paystack-signature")); err != nil {
		if app := utils.AsAppError(err); app.StatusCode < 500 {
			utils.HandleError(c, err)
			return
		}
		// Paystack retries on non-2xx; the reconciler covers anything missed.
		log.Error().Err(err).Msg("Webhook processing failed")
	}
	c.JSON(200, gin.H{"received": true})
}
