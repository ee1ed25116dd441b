package sync

import (
	"strings"

	"github.com/licenceland/licenceland-sync/internal/http/response"
	"github.com/licenceland/licenceland-sync/internal/service"

	"github.com/gin-gonic/gin"
)

// SyncProduct 接收对端商品推送 (POST /sync/product)
func (h *Handler) SyncProduct(c *gin.Context) {
	var payload service.ProductPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, response.ReasonInvalidPayload)
		return
	}
	if strings.TrimSpace(payload.SKU) == "" {
		response.BadRequest(c, response.ReasonMissingSKU)
		return
	}

	product, err := h.SyncService.UpsertProduct(c.Request.Context(), senderID(c), payload)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.OK(c, gin.H{
		"product_id": product.ID,
		"sku":        product.SKU,
	})
}

// DeleteProduct 接收对端商品删除推送 (DELETE /sync/product/:sku)
func (h *Handler) DeleteProduct(c *gin.Context) {
	sku := strings.TrimSpace(c.Param("sku"))
	if sku == "" {
		response.BadRequest(c, response.ReasonMissingSKU)
		return
	}

	product, err := h.SyncService.DeleteProduct(c.Request.Context(), sku)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.OK(c, gin.H{
		"product_id": product.ID,
		"sku":        product.SKU,
	})
}
