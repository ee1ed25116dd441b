package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/licenceland/licenceland-sync/internal/constants"
	"github.com/licenceland/licenceland-sync/internal/logger"
	"github.com/licenceland/licenceland-sync/internal/models"
	"github.com/licenceland/licenceland-sync/internal/queue"
	"github.com/licenceland/licenceland-sync/internal/repository"
)

// BackorderService 缺货队列服务。
// 补货后按缺货单创建顺序整单补发:一张缺货单要么一次拿满,要么不动,
// 队头拿不满时直接停止,后面的单不会插队。
type BackorderService struct {
	backorderRepo repository.BackorderRepository
	orderRepo     repository.OrderRepository
	productRepo   repository.ProductRepository
	ledger        *KeyLedgerService
	queueClient   *queue.Client
}

// NewBackorderService 创建缺货队列服务
func NewBackorderService(
	backorderRepo repository.BackorderRepository,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	ledger *KeyLedgerService,
	queueClient *queue.Client,
) *BackorderService {
	return &BackorderService{
		backorderRepo: backorderRepo,
		orderRepo:     orderRepo,
		productRepo:   productRepo,
		ledger:        ledger,
		queueClient:   queueClient,
	}
}

// Enqueue 为缺 key 的订单项排入缺货队列并通知客户
func (s *BackorderService) Enqueue(ctx context.Context, order *models.Order, item *models.OrderItem, product *models.Product) (*models.Backorder, error) {
	if order == nil || item == nil || product == nil {
		return nil, ErrInvalidPayload
	}

	backorder := &models.Backorder{
		OrderID:       order.ID,
		OrderItemID:   item.ID,
		ProductID:     product.ID,
		Quantity:      item.Quantity,
		CustomerEmail: order.CustomerEmail,
		CustomerName:  order.CustomerName,
		Status:        models.BackorderStatusPending,
		CreatedAt:     time.Now(),
	}
	if err := s.backorderRepo.Create(backorder); err != nil {
		return nil, err
	}

	pending, err := s.backorderRepo.CountPendingByProduct(product.ID)
	if err != nil {
		logger.Warnw("backorder_pending_count_failed", "product_id", product.ID, "error", err)
	}
	logger.Infow("backorder_enqueued",
		"backorder_id", backorder.ID,
		"order_id", order.ID,
		"order_item_id", item.ID,
		"product_id", product.ID,
		"quantity", item.Quantity,
		"pending_total", pending,
	)

	if err := s.queueClient.EnqueueBackorderNotice(queue.BackorderNoticePayload{
		BackorderID: backorder.ID,
	}); err != nil {
		logger.Warnw("backorder_notice_enqueue_failed", "backorder_id", backorder.ID, "error", err)
	}
	return backorder, nil
}

// Cancel 取消待处理的缺货单
func (s *BackorderService) Cancel(ctx context.Context, backorderID uint) error {
	affected, err := s.backorderRepo.MarkCancelled(backorderID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	logger.Infow("backorder_cancelled", "backorder_id", backorderID)
	return nil
}

// Drain 按创建顺序补发商品的待处理缺货单,返回补发成功的单数。
// 队头缺货单的数量拿不满时立即停止,保证先到先得。
func (s *BackorderService) Drain(ctx context.Context, productID uint) (int, error) {
	pending, err := s.backorderRepo.ListPendingByProduct(productID)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, backorder := range pending {
		if backorder.Quantity <= 0 {
			now := time.Now()
			if _, err := s.backorderRepo.MarkProcessed(backorder.ID, now); err != nil {
				return processed, err
			}
			continue
		}

		keys, err := s.ledger.Allocate(ctx, backorder.ProductID, backorder.OrderID, backorder.OrderItemID, backorder.Quantity)
		if errors.Is(err, ErrInsufficientStock) {
			break
		}
		if err != nil {
			return processed, err
		}

		now := time.Now()
		joined := strings.Join(keys, constants.CDKeyJoinSeparator)

		item, err := s.orderRepo.GetItemByID(backorder.OrderItemID)
		if err != nil {
			return processed, err
		}
		if item != nil {
			if err := s.orderRepo.UpdateItemFulfillment(item.ID, joined, now); err != nil {
				return processed, err
			}
			if err := s.queueClient.EnqueueCDKeyDeliver(queue.CDKeyDeliverPayload{
				OrderID:     backorder.OrderID,
				OrderItemID: backorder.OrderItemID,
			}); err != nil {
				logger.Warnw("cd_key_deliver_enqueue_failed", "backorder_id", backorder.ID, "error", err)
			}
		} else {
			// 订单项已不存在,分配出去的 key 不回池
			logger.Warnw("backorder_order_item_missing",
				"backorder_id", backorder.ID,
				"order_item_id", backorder.OrderItemID,
			)
		}

		if _, err := s.backorderRepo.MarkProcessed(backorder.ID, now); err != nil {
			return processed, err
		}
		processed++

		logger.Infow("backorder_processed",
			"backorder_id", backorder.ID,
			"order_id", backorder.OrderID,
			"quantity", backorder.Quantity,
		)
	}
	return processed, nil
}

// Restock 追加 key 并连带补发:先入库,再排空缺货队列,最后补发散单。
// 返回实际入库数、入库后可用总数与补发的缺货单数。
func (s *BackorderService) Restock(ctx context.Context, product *models.Product, keys []string) (int, int64, int, error) {
	added, total, err := s.ledger.AddKeys(ctx, product, keys)
	if err != nil {
		return 0, 0, 0, err
	}

	processed, err := s.Drain(ctx, product.ID)
	if err != nil {
		return added, total, processed, err
	}

	if err := s.SweepAutoAssign(ctx, product); err != nil {
		return added, total, processed, err
	}
	return added, total, processed, nil
}

// Replace 整池替换 key 并连带补发
func (s *BackorderService) Replace(ctx context.Context, product *models.Product, keys []string) (int64, int, error) {
	total, err := s.ledger.ReplaceKeys(ctx, product, keys)
	if err != nil {
		return 0, 0, err
	}

	processed, err := s.Drain(ctx, product.ID)
	if err != nil {
		return total, processed, err
	}

	if err := s.SweepAutoAssign(ctx, product); err != nil {
		return total, processed, err
	}
	return total, processed, nil
}

// SweepAutoAssign 给没走缺货队列但缺 key 的订单项补发。
// 已有待处理缺货单的订单项跳过,避免与 Drain 重复分配。
func (s *BackorderService) SweepAutoAssign(ctx context.Context, product *models.Product) error {
	if product == nil || !product.AutoAssign {
		return nil
	}

	items, err := s.orderRepo.ListUnfulfilledItemsByProduct(product.ID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	pending, err := s.backorderRepo.ListPendingByProduct(product.ID)
	if err != nil {
		return err
	}
	queued := make(map[uint]struct{}, len(pending))
	for _, backorder := range pending {
		queued[backorder.OrderItemID] = struct{}{}
	}

	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		if _, ok := queued[item.ID]; ok {
			continue
		}

		keys, err := s.ledger.Allocate(ctx, product.ID, item.OrderID, item.ID, item.Quantity)
		if errors.Is(err, ErrInsufficientStock) {
			return nil
		}
		if err != nil {
			return err
		}

		now := time.Now()
		joined := strings.Join(keys, constants.CDKeyJoinSeparator)
		if err := s.orderRepo.UpdateItemFulfillment(item.ID, joined, now); err != nil {
			return err
		}
		if err := s.queueClient.EnqueueCDKeyDeliver(queue.CDKeyDeliverPayload{
			OrderID:     item.OrderID,
			OrderItemID: item.ID,
		}); err != nil {
			logger.Warnw("cd_key_deliver_enqueue_failed", "order_item_id", item.ID, "error", err)
		}

		logger.Infow("cd_keys_auto_assigned",
			"product_id", product.ID,
			"order_id", item.OrderID,
			"order_item_id", item.ID,
			"quantity", item.Quantity,
		)
	}
	return nil
}
