package models

import (
	"time"
)

// CDKeyUsage key 消费流水表,只追加不修改
type CDKeyUsage struct {
	ID          uint      `gorm:"primarykey" json:"id"`                 // 主键
	ProductID   uint      `gorm:"index;not null" json:"product_id"`     // 商品ID
	Key         string    `gorm:"type:text;not null" json:"key"`        // 被消费的 key 内容
	OrderID     uint      `gorm:"index;not null" json:"order_id"`       // 订单ID
	OrderItemID uint      `gorm:"index" json:"order_item_id"`           // 订单项ID
	UsedAt      time.Time `gorm:"index;not null" json:"used_at"`        // 消费时间
}

// TableName 指定表名
func (CDKeyUsage) TableName() string {
	return "cd_key_usages"
}
