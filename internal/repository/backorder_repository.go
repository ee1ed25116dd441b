package repository

import (
	"errors"
	"time"

	"github.com/licenceland/licenceland-sync/internal/models"

	"gorm.io/gorm"
)

// BackorderRepository 缺货单数据访问接口
type BackorderRepository interface {
	Create(backorder *models.Backorder) error
	GetByID(id uint) (*models.Backorder, error)
	ListPendingByProduct(productID uint) ([]models.Backorder, error)
	CountPendingByProduct(productID uint) (int64, error)
	ListPendingProductIDs() ([]uint, error)
	MarkProcessed(id uint, processedAt time.Time) (int64, error)
	MarkCancelled(id uint) (int64, error)
	WithTx(tx *gorm.DB) *GormBackorderRepository
}

// GormBackorderRepository GORM 实现
type GormBackorderRepository struct {
	db *gorm.DB
}

// NewBackorderRepository 创建缺货单仓库
func NewBackorderRepository(db *gorm.DB) *GormBackorderRepository {
	return &GormBackorderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormBackorderRepository) WithTx(tx *gorm.DB) *GormBackorderRepository {
	if tx == nil {
		return r
	}
	return &GormBackorderRepository{db: tx}
}

// Create 创建缺货单
func (r *GormBackorderRepository) Create(backorder *models.Backorder) error {
	return r.db.Create(backorder).Error
}

// GetByID 根据 ID 获取缺货单
func (r *GormBackorderRepository) GetByID(id uint) (*models.Backorder, error) {
	var backorder models.Backorder
	if err := r.db.First(&backorder, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &backorder, nil
}

// ListPendingByProduct 按创建顺序获取商品的待处理缺货单
func (r *GormBackorderRepository) ListPendingByProduct(productID uint) ([]models.Backorder, error) {
	if productID == 0 {
		return nil, errors.New("invalid product id")
	}
	var items []models.Backorder
	if err := r.db.Where("product_id = ? AND status = ?", productID, models.BackorderStatusPending).
		Order("created_at asc, id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// CountPendingByProduct 统计商品的待处理缺货单数
func (r *GormBackorderRepository) CountPendingByProduct(productID uint) (int64, error) {
	if productID == 0 {
		return 0, errors.New("invalid product id")
	}
	var count int64
	if err := r.db.Model(&models.Backorder{}).
		Where("product_id = ? AND status = ?", productID, models.BackorderStatusPending).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListPendingProductIDs 列出存在待处理缺货单的商品 ID
func (r *GormBackorderRepository) ListPendingProductIDs() ([]uint, error) {
	var ids []uint
	if err := r.db.Model(&models.Backorder{}).
		Where("status = ?", models.BackorderStatusPending).
		Distinct().
		Order("product_id asc").
		Pluck("product_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkProcessed 标记缺货单已补发,带 status 守卫
func (r *GormBackorderRepository) MarkProcessed(id uint, processedAt time.Time) (int64, error) {
	if id == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Backorder{}).
		Where("id = ? AND status = ?", id, models.BackorderStatusPending).
		Updates(map[string]interface{}{
			"status":       models.BackorderStatusProcessed,
			"processed_at": processedAt,
		})
	return result.RowsAffected, result.Error
}

// MarkCancelled 取消缺货单,带 status 守卫
func (r *GormBackorderRepository) MarkCancelled(id uint) (int64, error) {
	if id == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Backorder{}).
		Where("id = ? AND status = ?", id, models.BackorderStatusPending).
		Update("status", models.BackorderStatusCancelled)
	return result.RowsAffected, result.Error
}
