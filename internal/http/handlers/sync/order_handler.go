package sync

import (
	"strings"

	"github.com/licenceland/licenceland-sync/internal/http/response"
	"github.com/licenceland/licenceland-sync/internal/service"

	"github.com/gin-gonic/gin"
)

// SyncOrder 接收副站订单镜像 (POST /sync/order)
func (h *Handler) SyncOrder(c *gin.Context) {
	var payload service.OrderPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, response.ReasonInvalidPayload)
		return
	}
	if strings.TrimSpace(payload.OrderID) == "" {
		response.BadRequest(c, response.ReasonMissingOrderID)
		return
	}

	order, skipped, err := h.SyncService.MirrorOrder(c.Request.Context(), senderID(c), payload)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	fields := gin.H{
		"order_id": order.ID,
		"order_no": order.OrderNo,
	}
	if len(skipped) > 0 {
		fields["skipped_skus"] = skipped
	}
	response.OK(c, fields)
}

// ResendOrderEmail 接收订单邮件重发请求 (POST /sync/order/resend)
func (h *Handler) ResendOrderEmail(c *gin.Context) {
	var payload service.ResendPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, response.ReasonInvalidPayload)
		return
	}
	if strings.TrimSpace(payload.OrderID) == "" && strings.TrimSpace(payload.OrderNo) == "" {
		response.BadRequest(c, response.ReasonMissingOrderID)
		return
	}

	order, err := h.SyncService.ResendOrderEmail(c.Request.Context(), senderID(c), payload)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, "email queued", gin.H{
		"order_id": order.ID,
		"order_no": order.OrderNo,
	})
}
