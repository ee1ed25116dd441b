package models

import (
	"time"
)

const (
	CDKeyStatusAvailable = "available"
	CDKeyStatusUsed      = "used"
)

// CDKey CD key 库存表,按 ID 升序分配（先进先出）
type CDKey struct {
	ID          uint       `gorm:"primarykey" json:"id"`                  // 主键
	ProductID   uint       `gorm:"index;not null" json:"product_id"`      // 商品ID
	Key         string     `gorm:"type:text;not null" json:"key"`         // key 内容
	Status      string     `gorm:"index;not null" json:"status"`          // 状态（available/used）
	OrderID     *uint      `gorm:"index" json:"order_id,omitempty"`       // 消费该 key 的订单ID
	OrderItemID *uint      `gorm:"index" json:"order_item_id,omitempty"`  // 消费该 key 的订单项ID
	UsedAt      *time.Time `gorm:"index" json:"used_at"`                  // 使用时间
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`               // 创建时间
	UpdatedAt   time.Time  `gorm:"index" json:"updated_at"`               // 更新时间
}

// TableName 指定表名
func (CDKey) TableName() string {
	return "cd_keys"
}
