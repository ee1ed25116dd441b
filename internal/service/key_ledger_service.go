package service

import (
	"context"
	"strings"
	"time"

	"github.com/licenceland/licenceland-sync/internal/logger"
	"github.com/licenceland/licenceland-sync/internal/models"
	"github.com/licenceland/licenceland-sync/internal/queue"
	"github.com/licenceland/licenceland-sync/internal/repository"

	"gorm.io/gorm"
)

// KeyLedgerService key 池台账服务,负责入库、整池替换与至多一次分配
type KeyLedgerService struct {
	productRepo repository.ProductRepository
	keyRepo     repository.CDKeyRepository
	queueClient *queue.Client
	locker      *productLocker

	defaultAlertThreshold int
}

// NewKeyLedgerService 创建 key 池服务
func NewKeyLedgerService(
	productRepo repository.ProductRepository,
	keyRepo repository.CDKeyRepository,
	queueClient *queue.Client,
	defaultAlertThreshold int,
) *KeyLedgerService {
	return &KeyLedgerService{
		productRepo:           productRepo,
		keyRepo:               keyRepo,
		queueClient:           queueClient,
		locker:                newProductLocker(),
		defaultAlertThreshold: defaultAlertThreshold,
	}
}

// Available 返回商品可用 key 数
func (s *KeyLedgerService) Available(productID uint) (int64, error) {
	return s.keyRepo.CountAvailable(productID)
}

// AddKeys 追加 key 入库,按行拆分、去空白、去重,并跳过池内已存在的 key。
// 返回实际入库数与入库后的可用总数。
func (s *KeyLedgerService) AddKeys(ctx context.Context, product *models.Product, keys []string) (int, int64, error) {
	if product == nil {
		return 0, 0, ErrProductNotFound
	}

	unlock := s.locker.lock(product.ID)
	defer unlock()

	normalized := normalizeKeys(keys)
	if len(normalized) == 0 {
		total, err := s.keyRepo.CountAvailable(product.ID)
		return 0, total, err
	}

	existing, err := s.keyRepo.ListAvailableKeys(product.ID)
	if err != nil {
		return 0, 0, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, key := range existing {
		seen[key] = struct{}{}
	}

	now := time.Now()
	items := make([]models.CDKey, 0, len(normalized))
	for _, key := range normalized {
		if _, ok := seen[key]; ok {
			continue
		}
		items = append(items, models.CDKey{
			ProductID: product.ID,
			Key:       key,
			Status:    models.CDKeyStatusAvailable,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if err := s.keyRepo.CreateBatch(items); err != nil {
		return 0, 0, err
	}

	total, err := s.keyRepo.CountAvailable(product.ID)
	if err != nil {
		return len(items), 0, err
	}

	logger.Infow("cd_keys_appended",
		"product_id", product.ID,
		"sku", product.SKU,
		"added", len(items),
		"available", total,
	)
	// 补货后仍可能低于阈值,和分配口径一致触发预警
	s.checkStockAlert(product.ID)
	return len(items), total, nil
}

// ReplaceKeys 整池替换商品的可用 key,已消费的 key 不受影响。
// 返回替换后的可用总数。
func (s *KeyLedgerService) ReplaceKeys(ctx context.Context, product *models.Product, keys []string) (int64, error) {
	if product == nil {
		return 0, ErrProductNotFound
	}

	unlock := s.locker.lock(product.ID)
	defer unlock()

	normalized := normalizeKeys(keys)
	now := time.Now()
	items := make([]models.CDKey, 0, len(normalized))
	for _, key := range normalized {
		items = append(items, models.CDKey{
			ProductID: product.ID,
			Key:       key,
			Status:    models.CDKeyStatusAvailable,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	err := models.DB.Transaction(func(tx *gorm.DB) error {
		keyRepo := s.keyRepo.WithTx(tx)
		if _, err := keyRepo.DeleteAvailableByProduct(product.ID); err != nil {
			return err
		}
		return keyRepo.CreateBatch(items)
	})
	if err != nil {
		return 0, err
	}

	total, err := s.keyRepo.CountAvailable(product.ID)
	if err != nil {
		return 0, err
	}

	logger.Infow("cd_keys_replaced",
		"product_id", product.ID,
		"sku", product.SKU,
		"available", total,
	)
	s.checkStockAlert(product.ID)
	return total, nil
}

// Allocate 从 key 池按先进先出分配 quantity 枚 key 并绑定订单项。
// UPDATE 带 status 守卫,行数不符即整体回滚,保证每枚 key 至多分配一次。
func (s *KeyLedgerService) Allocate(ctx context.Context, productID, orderID, orderItemID uint, quantity int) ([]string, error) {
	if productID == 0 {
		return nil, ErrProductNotFound
	}
	if quantity <= 0 {
		return nil, ErrInvalidPayload
	}

	unlock := s.locker.lock(productID)
	defer unlock()

	var assigned []string
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		keyRepo := s.keyRepo.WithTx(tx)
		candidates, err := keyRepo.ListAvailable(productID, quantity)
		if err != nil {
			return err
		}
		if len(candidates) < quantity {
			return ErrInsufficientStock
		}

		ids := make([]uint, 0, quantity)
		keys := make([]string, 0, quantity)
		for _, candidate := range candidates {
			ids = append(ids, candidate.ID)
			keys = append(keys, candidate.Key)
		}

		now := time.Now()
		affected, err := keyRepo.MarkUsed(ids, orderID, orderItemID, now)
		if err != nil {
			return err
		}
		if affected != int64(quantity) {
			return ErrInsufficientStock
		}

		for _, key := range keys {
			usage := &models.CDKeyUsage{
				ProductID:   productID,
				Key:         key,
				OrderID:     orderID,
				OrderItemID: orderItemID,
				UsedAt:      now,
			}
			if err := keyRepo.CreateUsage(usage); err != nil {
				return err
			}
		}

		assigned = keys
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("cd_keys_allocated",
		"product_id", productID,
		"order_id", orderID,
		"order_item_id", orderItemID,
		"quantity", quantity,
	)

	s.checkStockAlert(productID)
	return assigned, nil
}

// checkStockAlert 检查余量,低于阈值时投递预警任务。
// 分配和补货后都会走到这里,补货不足同样要预警。
func (s *KeyLedgerService) checkStockAlert(productID uint) {
	remaining, err := s.keyRepo.CountAvailable(productID)
	if err != nil {
		logger.Warnw("stock_alert_count_failed", "product_id", productID, "error", err)
		return
	}

	threshold := s.defaultAlertThreshold
	product, err := s.productRepo.GetByID(productID)
	if err == nil && product != nil && product.StockAlertThreshold > 0 {
		threshold = product.StockAlertThreshold
	}
	if threshold <= 0 || remaining > int64(threshold) {
		return
	}

	logger.Infow("stock_alert_triggered",
		"product_id", productID,
		"remaining", remaining,
		"threshold", threshold,
	)
	if err := s.queueClient.EnqueueStockAlert(queue.StockAlertPayload{
		ProductID: productID,
		Remaining: remaining,
	}); err != nil {
		logger.Warnw("stock_alert_enqueue_failed", "product_id", productID, "error", err)
	}
}

// normalizeKeys 按行拆分 key,去空白并保序去重
func normalizeKeys(values []string) []string {
	seen := make(map[string]struct{})
	var result []string
	for _, val := range values {
		for _, line := range strings.Split(val, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			if _, ok := seen[trimmed]; ok {
				continue
			}
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}
	return result
}
