package repository

import (
	"errors"
	"time"

	"github.com/licenceland/licenceland-sync/internal/models"

	"gorm.io/gorm"
)

// CDKeyRepository CD key 库存数据访问接口
type CDKeyRepository interface {
	CreateBatch(items []models.CDKey) error
	ListAvailable(productID uint, limit int) ([]models.CDKey, error)
	ListAvailableKeys(productID uint) ([]string, error)
	CountAvailable(productID uint) (int64, error)
	CountAvailableByProductIDs(productIDs []uint) (map[uint]int64, error)
	DeleteAvailableByProduct(productID uint) (int64, error)
	MarkUsed(ids []uint, orderID, orderItemID uint, usedAt time.Time) (int64, error)
	CreateUsage(usage *models.CDKeyUsage) error
	ListUsageByOrder(orderID uint) ([]models.CDKeyUsage, error)
	WithTx(tx *gorm.DB) *GormCDKeyRepository
}

// GormCDKeyRepository GORM 实现
type GormCDKeyRepository struct {
	db *gorm.DB
}

// NewCDKeyRepository 创建 key 仓库
func NewCDKeyRepository(db *gorm.DB) *GormCDKeyRepository {
	return &GormCDKeyRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCDKeyRepository) WithTx(tx *gorm.DB) *GormCDKeyRepository {
	if tx == nil {
		return r
	}
	return &GormCDKeyRepository{db: tx}
}

// CreateBatch 批量创建 key
func (r *GormCDKeyRepository) CreateBatch(items []models.CDKey) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.Create(&items).Error
}

// ListAvailable 按 ID 升序获取可用 key,limit <= 0 表示不限
func (r *GormCDKeyRepository) ListAvailable(productID uint, limit int) ([]models.CDKey, error) {
	if productID == 0 {
		return nil, errors.New("invalid product id")
	}
	query := r.db.Where("product_id = ? AND status = ?", productID, models.CDKeyStatusAvailable).
		Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var items []models.CDKey
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListAvailableKeys 获取可用 key 内容列表（去重用）
func (r *GormCDKeyRepository) ListAvailableKeys(productID uint) ([]string, error) {
	if productID == 0 {
		return nil, errors.New("invalid product id")
	}
	var keys []string
	if err := r.db.Model(&models.CDKey{}).
		Where("product_id = ? AND status = ?", productID, models.CDKeyStatusAvailable).
		Order("id asc").
		Pluck("key", &keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

// CountAvailable 统计可用库存
func (r *GormCDKeyRepository) CountAvailable(productID uint) (int64, error) {
	if productID == 0 {
		return 0, errors.New("invalid product id")
	}
	var count int64
	if err := r.db.Model(&models.CDKey{}).
		Where("product_id = ? AND status = ?", productID, models.CDKeyStatusAvailable).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountAvailableByProductIDs 批量统计可用库存
func (r *GormCDKeyRepository) CountAvailableByProductIDs(productIDs []uint) (map[uint]int64, error) {
	result := make(map[uint]int64)
	if len(productIDs) == 0 {
		return result, nil
	}

	type countRow struct {
		ProductID uint
		Total     int64
	}

	var rows []countRow
	if err := r.db.Model(&models.CDKey{}).
		Select("product_id, COUNT(*) as total").
		Where("product_id IN ? AND status = ?", productIDs, models.CDKeyStatusAvailable).
		Group("product_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		result[row.ProductID] = row.Total
	}

	return result, nil
}

// DeleteAvailableByProduct 删除商品的全部可用 key（整池替换用,已用 key 保留）
func (r *GormCDKeyRepository) DeleteAvailableByProduct(productID uint) (int64, error) {
	if productID == 0 {
		return 0, errors.New("invalid product id")
	}
	result := r.db.Where("product_id = ? AND status = ?", productID, models.CDKeyStatusAvailable).
		Delete(&models.CDKey{})
	return result.RowsAffected, result.Error
}

// MarkUsed 标记 key 已使用,带 status 守卫避免重复分配
func (r *GormCDKeyRepository) MarkUsed(ids []uint, orderID, orderItemID uint, usedAt time.Time) (int64, error) {
	if len(ids) == 0 || orderID == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.CDKey{}).
		Where("id IN ? AND status = ?", ids, models.CDKeyStatusAvailable).
		Updates(map[string]interface{}{
			"status":        models.CDKeyStatusUsed,
			"order_id":      orderID,
			"order_item_id": orderItemID,
			"used_at":       usedAt,
			"updated_at":    usedAt,
		})
	return result.RowsAffected, result.Error
}

// CreateUsage 写入 key 消费流水
func (r *GormCDKeyRepository) CreateUsage(usage *models.CDKeyUsage) error {
	return r.db.Create(usage).Error
}

// ListUsageByOrder 按订单获取消费流水
func (r *GormCDKeyRepository) ListUsageByOrder(orderID uint) ([]models.CDKeyUsage, error) {
	if orderID == 0 {
		return nil, errors.New("invalid order id")
	}
	var items []models.CDKeyUsage
	if err := r.db.Where("order_id = ?", orderID).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
