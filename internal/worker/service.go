package worker

import (
	"context"
	"errors"
	"time"

	"github.com/licenceland/licenceland-sync/internal/config"
	"github.com/licenceland/licenceland-sync/internal/logger"
	"github.com/licenceland/licenceland-sync/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	backorderSweepInterval = 5 * time.Minute
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.BackorderService != nil {
		go s.runBackorderSweepLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runBackorderSweepLoop 周期性补发遗留缺货单,兜底错过补货事件的情况
func (s *Service) runBackorderSweepLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.BackorderService == nil {
		return
	}
	runOnce := func() {
		productIDs, err := s.consumer.BackorderRepo.ListPendingProductIDs()
		if err != nil {
			logger.Warnw("worker_backorder_sweep_list_failed", "error", err)
			return
		}
		if len(productIDs) == 0 {
			return
		}
		// 没有可用 key 的商品本轮不用碰
		available, err := s.consumer.CDKeyRepo.CountAvailableByProductIDs(productIDs)
		if err != nil {
			logger.Warnw("worker_backorder_sweep_count_failed", "error", err)
			available = nil
		}
		for _, productID := range productIDs {
			if available != nil && available[productID] == 0 {
				continue
			}
			processed, err := s.consumer.BackorderService.Drain(ctx, productID)
			if err != nil {
				logger.Warnw("worker_backorder_sweep_drain_failed", "product_id", productID, "error", err)
				continue
			}
			if processed > 0 {
				logger.Infow("worker_backorder_sweep_drained", "product_id", productID, "processed", processed)
			}
		}
	}
	runOnce()

	ticker := time.NewTicker(backorderSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
