package repository

import (
	"errors"

	"github.com/licenceland/licenceland-sync/internal/models"

	"gorm.io/gorm"
)

// ProductRepository 商品数据访问接口
type ProductRepository interface {
	Create(product *models.Product) error
	Update(product *models.Product) error
	GetByID(id uint) (*models.Product, error)
	GetBySKU(sku string) (*models.Product, error)
	GetBySKUFold(sku string) (*models.Product, error)
	GetByOrigin(originSite, originID string) (*models.Product, error)
	List(status string, page, pageSize int) ([]models.Product, int64, error)
	SoftDelete(product *models.Product) error
	WithTx(tx *gorm.DB) *GormProductRepository
}

// GormProductRepository GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓库
func NewProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// WithTx 绑定事务
func (r *GormProductRepository) WithTx(tx *gorm.DB) *GormProductRepository {
	if tx == nil {
		return r
	}
	return &GormProductRepository{db: tx}
}

// Create 创建商品
func (r *GormProductRepository) Create(product *models.Product) error {
	return r.db.Create(product).Error
}

// Update 更新商品
func (r *GormProductRepository) Update(product *models.Product) error {
	return r.db.Save(product).Error
}

// GetByID 根据 ID 获取商品
func (r *GormProductRepository) GetByID(id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// GetBySKU 按 SKU 精确匹配获取商品
func (r *GormProductRepository) GetBySKU(sku string) (*models.Product, error) {
	if sku == "" {
		return nil, nil
	}
	var product models.Product
	if err := r.db.Where("sku = ?", sku).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// GetBySKUFold 按 SKU 忽略大小写匹配获取商品
func (r *GormProductRepository) GetBySKUFold(sku string) (*models.Product, error) {
	if sku == "" {
		return nil, nil
	}
	var product models.Product
	if err := r.db.Where("LOWER(sku) = LOWER(?)", sku).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// GetByOrigin 按来源站点与来源商品 ID 获取商品
func (r *GormProductRepository) GetByOrigin(originSite, originID string) (*models.Product, error) {
	if originSite == "" || originID == "" {
		return nil, nil
	}
	var product models.Product
	if err := r.db.Where("origin_site = ? AND origin_id = ?", originSite, originID).
		First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// List 分页获取商品列表
func (r *GormProductRepository) List(status string, page, pageSize int) ([]models.Product, int64, error) {
	query := r.db.Model(&models.Product{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if pageSize > 0 {
		offset := (page - 1) * pageSize
		query = query.Limit(pageSize).Offset(offset)
	}

	var items []models.Product
	if err := query.Order("id asc").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// SoftDelete 软删除商品
func (r *GormProductRepository) SoftDelete(product *models.Product) error {
	return r.db.Delete(product).Error
}
