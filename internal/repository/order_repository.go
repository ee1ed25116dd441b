package repository

import (
	"errors"
	"time"

	"github.com/licenceland/licenceland-sync/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order) error
	Update(order *models.Order) error
	GetByID(id uint) (*models.Order, error)
	GetByOrderNo(orderNo string) (*models.Order, error)
	GetByRemote(originSite, remoteOrderID string) (*models.Order, error)
	GetItemByID(itemID uint) (*models.OrderItem, error)
	UpdateItemFulfillment(itemID uint, cdKey string, fulfilledAt time.Time) error
	ListUnfulfilledItemsByProduct(productID uint) ([]models.OrderItem, error)
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单（级联写入订单项）
func (r *GormOrderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

// Update 更新订单
func (r *GormOrderRepository) Update(order *models.Order) error {
	return r.db.Save(order).Error
}

// GetByID 根据 ID 获取订单（含订单项）
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.Preload("Items").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByOrderNo 根据订单编号获取订单（含订单项）
func (r *GormOrderRepository) GetByOrderNo(orderNo string) (*models.Order, error) {
	if orderNo == "" {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Preload("Items").Where("order_no = ?", orderNo).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByRemote 按来源站点与远端订单 ID 获取镜像订单
func (r *GormOrderRepository) GetByRemote(originSite, remoteOrderID string) (*models.Order, error) {
	if originSite == "" || remoteOrderID == "" {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Preload("Items").
		Where("origin_site = ? AND remote_order_id = ?", originSite, remoteOrderID).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetItemByID 根据 ID 获取订单项
func (r *GormOrderRepository) GetItemByID(itemID uint) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := r.db.First(&item, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// UpdateItemFulfillment 写入订单项已分配的 key 与完成时间
func (r *GormOrderRepository) UpdateItemFulfillment(itemID uint, cdKey string, fulfilledAt time.Time) error {
	if itemID == 0 {
		return errors.New("invalid order item id")
	}
	return r.db.Model(&models.OrderItem{}).
		Where("id = ?", itemID).
		Updates(map[string]interface{}{
			"cd_key":       cdKey,
			"fulfilled_at": fulfilledAt,
			"updated_at":   fulfilledAt,
		}).Error
}

// ListUnfulfilledItemsByProduct 获取商品下尚未发 key 的订单项,按创建顺序
func (r *GormOrderRepository) ListUnfulfilledItemsByProduct(productID uint) ([]models.OrderItem, error) {
	if productID == 0 {
		return nil, errors.New("invalid product id")
	}
	var items []models.OrderItem
	if err := r.db.Where("product_id = ? AND (cd_key IS NULL OR cd_key = '')", productID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
