package models

import (
	"time"
)

const (
	BackorderStatusPending   = "pending"
	BackorderStatusProcessed = "processed"
	BackorderStatusCancelled = "cancelled"
)

// Backorder 缺货单表,补货后按创建顺序整单补发
type Backorder struct {
	ID            uint       `gorm:"primarykey" json:"id"`                    // 主键
	OrderID       uint       `gorm:"index;not null" json:"order_id"`          // 订单ID
	OrderItemID   uint       `gorm:"index;not null" json:"order_item_id"`     // 订单项ID
	ProductID     uint       `gorm:"index;not null" json:"product_id"`        // 商品ID
	Quantity      int        `gorm:"not null" json:"quantity"`                // 所需 key 数量
	CustomerEmail string     `gorm:"index" json:"customer_email"`             // 客户邮箱
	CustomerName  string     `gorm:"type:varchar(200)" json:"customer_name"`  // 客户姓名
	Status        string     `gorm:"index;not null;default:'pending'" json:"status"` // 状态（pending/processed/cancelled）
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`                 // 创建时间
	ProcessedAt   *time.Time `gorm:"index" json:"processed_at"`               // 补发完成时间
}

// TableName 指定表名
func (Backorder) TableName() string {
	return "backorders"
}
