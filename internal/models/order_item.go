package models

import (
	"time"

	"gorm.io/gorm"
)

// OrderItem 订单项表,CDKeyValue 为空表示该项尚未发 key
type OrderItem struct {
	ID          uint           `gorm:"primarykey" json:"id"`                                    // 主键
	OrderID     uint           `gorm:"index;not null" json:"order_id"`                          // 订单ID
	ProductID   uint           `gorm:"index" json:"product_id"`                                 // 商品ID（镜像订单未匹配到商品时为 0）
	SKU         string         `gorm:"index" json:"sku"`                                        // 商品编码快照
	Name        string         `gorm:"not null" json:"name"`                                    // 商品名称快照
	Quantity    int            `gorm:"not null" json:"quantity"`                                // 数量
	UnitPrice   Money          `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"` // 单价
	CDKeyValue  string         `gorm:"type:text;column:cd_key" json:"cd_key"`                   // 已分配的 key,多枚以逗号连接
	FulfilledAt *time.Time     `gorm:"index" json:"fulfilled_at"`                               // 发 key 完成时间
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                                 // 创建时间
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`                                 // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                          // 软删除时间
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
