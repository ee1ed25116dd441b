package service

import (
	"context"
	"strings"

	"github.com/licenceland/licenceland-sync/internal/constants"
	"github.com/licenceland/licenceland-sync/internal/logger"
	"github.com/licenceland/licenceland-sync/internal/models"
	"github.com/licenceland/licenceland-sync/internal/repository"
)

// ProductService 本站商品维护服务,写操作完成后向对端广播
type ProductService struct {
	productRepo repository.ProductRepository
	backorders  *BackorderService
	syncService *SyncService
}

// NewProductService 创建商品服务
func NewProductService(
	productRepo repository.ProductRepository,
	backorders *BackorderService,
	syncService *SyncService,
) *ProductService {
	return &ProductService{
		productRepo: productRepo,
		backorders:  backorders,
		syncService: syncService,
	}
}

// Save 保存商品（SKU 不存在则创建）并广播到对端
func (s *ProductService) Save(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product == nil || strings.TrimSpace(product.SKU) == "" {
		return nil, ErrMissingSKU
	}
	product.SKU = strings.TrimSpace(product.SKU)
	if product.Status == "" {
		product.Status = constants.ProductStatusPublish
	}

	existing, err := s.productRepo.GetBySKU(product.SKU)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := s.productRepo.Create(product); err != nil {
			return nil, err
		}
	} else {
		product.ID = existing.ID
		product.CreatedAt = existing.CreatedAt
		if err := s.productRepo.Update(product); err != nil {
			return nil, err
		}
	}

	logger.Infow("product_saved", "sku", product.SKU, "product_id", product.ID, "created", existing == nil)
	s.syncService.PushProduct(ctx, product)
	return product, nil
}

// Delete 软删除商品并广播删除
func (s *ProductService) Delete(ctx context.Context, sku string) error {
	product, err := s.syncService.DeleteProduct(ctx, sku)
	if err != nil {
		return err
	}
	s.syncService.PushProductDelete(ctx, product.SKU)
	return nil
}

// GetBySKU 获取商品
func (s *ProductService) GetBySKU(sku string) (*models.Product, error) {
	product, err := s.productRepo.GetBySKU(strings.TrimSpace(sku))
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// Restock 本站追加 key,补发缺货单后把追加的 key 广播到对端
func (s *ProductService) Restock(ctx context.Context, sku string, keys []string) (int, int64, int, error) {
	product, err := s.GetBySKU(sku)
	if err != nil {
		return 0, 0, 0, err
	}
	added, total, processed, err := s.backorders.Restock(ctx, product, keys)
	if err != nil {
		return 0, 0, 0, err
	}
	s.syncService.PushKeysAppend(ctx, product.SKU, keys)
	return added, total, processed, nil
}

// ReplacePool 本站整池替换 key 并广播到对端
func (s *ProductService) ReplacePool(ctx context.Context, sku string, keys []string) (int64, int, error) {
	product, err := s.GetBySKU(sku)
	if err != nil {
		return 0, 0, err
	}
	total, processed, err := s.backorders.Replace(ctx, product, keys)
	if err != nil {
		return 0, 0, err
	}
	s.syncService.PushKeysReplace(ctx, product.SKU, keys)
	return total, processed, nil
}
