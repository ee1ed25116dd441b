package sync

import (
	"github.com/licenceland/licenceland-sync/internal/http/response"
	"github.com/licenceland/licenceland-sync/internal/service"

	"github.com/gin-gonic/gin"
)

// SyncPaymentSettings 接收主站支付方式配置推送 (POST /sync/settings/payments)
func (h *Handler) SyncPaymentSettings(c *gin.Context) {
	var payload service.PaymentSettingsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, response.ReasonInvalidPayload)
		return
	}

	if err := h.SyncService.UpdatePaymentSettings(c.Request.Context(), payload); err != nil {
		respondServiceError(c, err)
		return
	}

	response.OK(c, gin.H{})
}
