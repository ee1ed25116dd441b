package sync

import (
	"errors"

	"github.com/licenceland/licenceland-sync/internal/http/response"
	"github.com/licenceland/licenceland-sync/internal/logger"
	"github.com/licenceland/licenceland-sync/internal/provider"
	"github.com/licenceland/licenceland-sync/internal/service"
	llsync "github.com/licenceland/licenceland-sync/internal/sync"

	"github.com/gin-gonic/gin"
)

// Handler 同步端点处理器
type Handler struct {
	*provider.Container
}

// New 创建处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

// senderID 读取已通过签名校验的对端站点标识
func senderID(c *gin.Context) string {
	return c.GetHeader(llsync.HeaderSiteID)
}

// respondServiceError 将业务错误映射为协议错误响应
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMissingSKU):
		response.BadRequest(c, response.ReasonMissingSKU)
	case errors.Is(err, service.ErrMissingOrderID):
		response.BadRequest(c, response.ReasonMissingOrderID)
	case errors.Is(err, service.ErrInvalidPayload), errors.Is(err, service.ErrInvalidShopType):
		response.BadRequest(c, response.ReasonInvalidPayload)
	case errors.Is(err, service.ErrProductNotFound):
		response.NotFound(c, response.ReasonProductNotFound)
	case errors.Is(err, service.ErrOrderNotFound):
		response.NotFound(c, response.ReasonOrderNotFound)
	default:
		logger.Errorw("sync_handler_internal_error",
			"path", c.FullPath(),
			"error", err,
		)
		response.Internal(c, response.ReasonInternalError)
	}
}
