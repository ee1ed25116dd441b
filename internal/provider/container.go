package provider

import (
	"github.com/licenceland/licenceland-sync/internal/cache"
	"github.com/licenceland/licenceland-sync/internal/config"
	"github.com/licenceland/licenceland-sync/internal/logger"
	"github.com/licenceland/licenceland-sync/internal/models"
	"github.com/licenceland/licenceland-sync/internal/queue"
	"github.com/licenceland/licenceland-sync/internal/repository"
	"github.com/licenceland/licenceland-sync/internal/service"
	"github.com/licenceland/licenceland-sync/internal/sync"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	SyncClient  *sync.Client
	Signer      *sync.Signer

	// Repositories
	ProductRepo   repository.ProductRepository
	CDKeyRepo     repository.CDKeyRepository
	OrderRepo     repository.OrderRepository
	BackorderRepo repository.BackorderRepository
	SettingRepo   repository.SettingRepository

	// Services
	EmailService     *service.EmailService
	KeyLedgerService *service.KeyLedgerService
	BackorderService *service.BackorderService
	SyncService      *service.SyncService
	OrderService     *service.OrderService
	ProductService   *service.ProductService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		Signer:      sync.NewSigner(cfg.Sync.SharedSecret, cfg.Sync.ReplayWindowSeconds),
		SyncClient: sync.NewClient(sync.ClientOptions{
			SiteID:         cfg.Sync.SiteID,
			Secret:         cfg.Sync.SharedSecret,
			Peers:          cfg.Sync.Peers,
			TimeoutSeconds: cfg.Sync.PushTimeoutSeconds,
		}),
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.ProductRepo = repository.NewProductRepository(db)
	c.CDKeyRepo = repository.NewCDKeyRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.BackorderRepo = repository.NewBackorderRepository(db)
	c.SettingRepo = repository.NewSettingRepository(db)
}

func (c *Container) initServices() {
	cfg := c.Config

	c.EmailService = service.NewEmailService(&cfg.Email)
	c.KeyLedgerService = service.NewKeyLedgerService(
		c.ProductRepo,
		c.CDKeyRepo,
		c.QueueClient,
		cfg.Stock.AlertThreshold,
	)
	c.BackorderService = service.NewBackorderService(
		c.BackorderRepo,
		c.OrderRepo,
		c.ProductRepo,
		c.KeyLedgerService,
		c.QueueClient,
	)
	c.SyncService = service.NewSyncService(
		cfg.Sync,
		c.SyncClient,
		c.ProductRepo,
		c.OrderRepo,
		c.SettingRepo,
		c.KeyLedgerService,
		c.BackorderService,
		c.QueueClient,
	)
	c.OrderService = service.NewOrderService(
		c.OrderRepo,
		c.ProductRepo,
		c.KeyLedgerService,
		c.BackorderService,
		c.SyncService,
		c.QueueClient,
	)
	c.ProductService = service.NewProductService(
		c.ProductRepo,
		c.BackorderService,
		c.SyncService,
	)
}

// Close 释放容器持有的资源
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			logger.Warnw("provider_close_queue_client_failed", "error", err)
		}
	}
}
