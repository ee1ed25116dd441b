package models

import (
	"time"

	"gorm.io/gorm"
)

// Order 订单表,含本站结算订单与副站镜像过来的订单
type Order struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                      // 主键
	OrderNo       string         `gorm:"uniqueIndex;not null" json:"order_no"`                      // 订单编号
	ShopType      string         `gorm:"index;not null" json:"shop_type"`                           // 店铺类型（consumer/business）
	Status        string         `gorm:"index;not null" json:"status"`                              // 订单状态
	Currency      string         `gorm:"not null" json:"currency"`                                  // 币种
	PaymentMethod string         `gorm:"type:varchar(100)" json:"payment_method"`                   // 支付方式标识
	TotalAmount   Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"` // 实付金额
	CustomerEmail string         `gorm:"index" json:"customer_email"`                               // 客户邮箱
	CustomerName  string         `gorm:"type:varchar(200)" json:"customer_name"`                    // 客户姓名
	BillingJSON   JSON           `gorm:"type:json" json:"billing"`                                  // 账单地址快照
	ShippingJSON  JSON           `gorm:"type:json" json:"shipping"`                                 // 收货地址快照
	OriginSite    string         `gorm:"index" json:"origin_site"`                                  // 来源站点标识（本站订单为空）
	RemoteOrderID string         `gorm:"index" json:"remote_order_id"`                              // 来源站点上的订单ID
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt     time.Time      `gorm:"index" json:"updated_at"`                                   // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                            // 软删除时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
