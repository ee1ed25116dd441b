package sync

import (
	"strings"

	"github.com/licenceland/licenceland-sync/internal/http/response"
	"github.com/licenceland/licenceland-sync/internal/service"

	"github.com/gin-gonic/gin"
)

// AppendKeys 接收对端 key 追加推送 (POST /sync/keys/append)
func (h *Handler) AppendKeys(c *gin.Context) {
	var payload service.KeysPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, response.ReasonInvalidPayload)
		return
	}
	if strings.TrimSpace(payload.SKU) == "" {
		response.BadRequest(c, response.ReasonMissingSKU)
		return
	}

	product, added, total, processed, err := h.SyncService.AppendKeys(c.Request.Context(), payload)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.OK(c, gin.H{
		"product_id":           product.ID,
		"sku":                  product.SKU,
		"added":                added,
		"total":                total,
		"backorders_processed": processed,
	})
}

// ReplaceKeys 接收对端 key 整池替换推送 (POST /sync/keys/replace)
func (h *Handler) ReplaceKeys(c *gin.Context) {
	var payload service.KeysPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, response.ReasonInvalidPayload)
		return
	}
	if strings.TrimSpace(payload.SKU) == "" {
		response.BadRequest(c, response.ReasonMissingSKU)
		return
	}

	product, total, processed, err := h.SyncService.ReplaceKeys(c.Request.Context(), payload)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.OK(c, gin.H{
		"product_id":           product.ID,
		"sku":                  product.SKU,
		"total":                total,
		"backorders_processed": processed,
	})
}
