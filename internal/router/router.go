package router

import (
	"fmt"
	"strings"

	"github.com/licenceland/licenceland-sync/internal/cache"
	"github.com/licenceland/licenceland-sync/internal/config"
	synchandlers "github.com/licenceland/licenceland-sync/internal/http/handlers/sync"
	"github.com/licenceland/licenceland-sync/internal/logger"
	"github.com/licenceland/licenceland-sync/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	syncHandler := synchandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "ll"
	}
	redisClient := cache.Client()
	syncRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:sync", redisPrefix),
		WindowSeconds: cfg.Sync.RateLimit.WindowSeconds,
		MaxRequests:   cfg.Sync.RateLimit.MaxRequests,
	}
	if !cfg.Sync.RateLimit.Enabled {
		syncRule.MaxRequests = 0
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	v1 := r.Group("/licenceland/v1")
	{
		// 同步接口,全部走签名校验
		syncGroup := v1.Group("/sync")
		syncGroup.Use(RateLimitMiddleware(redisClient, syncRule, KeyBySender))
		syncGroup.Use(HMACAuthMiddleware(c.Signer))
		{
			syncGroup.POST("/product", syncHandler.SyncProduct)
			syncGroup.DELETE("/product/:sku", syncHandler.DeleteProduct)
			syncGroup.POST("/order", syncHandler.SyncOrder)
			syncGroup.POST("/order/resend", syncHandler.ResendOrderEmail)
			syncGroup.POST("/settings/payments", syncHandler.SyncPaymentSettings)
			syncGroup.POST("/keys/append", syncHandler.AppendKeys)
			syncGroup.POST("/keys/replace", syncHandler.ReplaceKeys)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
