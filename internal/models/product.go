package models

import (
	"time"

	"gorm.io/gorm"
)

// Product 商品表,SKU 为主副站之间的全局商品标识
type Product struct {
	ID                  uint           `gorm:"primarykey" json:"id"`                         // 主键
	SKU                 string         `gorm:"uniqueIndex;not null" json:"sku"`              // 商品编码（全局唯一）
	Name                string         `gorm:"not null" json:"name"`                         // 商品名称
	Status              string         `gorm:"index;not null;default:'publish'" json:"status"` // 状态（publish/draft/trashed）
	Description         string         `gorm:"type:text" json:"description"`                 // 详情描述
	ShortDescription    string         `gorm:"type:text" json:"short_description"`           // 简短描述
	RegularPrice        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"regular_price"` // 原价
	SalePrice           Money          `gorm:"type:decimal(20,2);not null;default:0" json:"sale_price"`    // 促销价（0 表示无促销）
	StockQuantity       int            `gorm:"not null;default:0" json:"stock_quantity"`     // 原始库存数（key 托管商品以 key 数为准）
	KeyTracked          bool           `gorm:"default:true" json:"key_tracked"`              // 库存是否由 key 池托管
	AutoAssign          bool           `gorm:"default:true" json:"auto_assign"`              // 补货后是否自动补发缺 key 订单项
	StockAlertThreshold int            `gorm:"default:0" json:"stock_alert_threshold"`       // 库存预警阈值（0 使用全局默认）
	EmailTemplate       string         `gorm:"type:text" json:"email_template"`              // 发货邮件模板,支持 {cd_key} 占位符
	Categories          StringArray    `gorm:"type:json" json:"categories"`                  // 分类名称数组
	Tags                StringArray    `gorm:"type:json" json:"tags"`                        // 标签数组
	FeaturedImage       string         `gorm:"type:varchar(500)" json:"featured_image"`      // 主图地址
	Gallery             StringArray    `gorm:"type:json" json:"gallery"`                     // 图库地址数组
	OriginSite          string         `gorm:"index" json:"origin_site"`                     // 来源站点标识（本站创建为空）
	OriginID            string         `gorm:"index" json:"origin_id"`                       // 来源站点上的商品ID
	SyncVersion         int64          `gorm:"default:0" json:"sync_version"`                // 同步版本号（最后写入方的时间戳）
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`                      // 创建时间
	UpdatedAt           time.Time      `json:"updated_at"`                                   // 更新时间
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`                               // 软删除时间
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

// EffectivePrice 返回生效价格,促销价为 0 时回落到原价
func (p Product) EffectivePrice() Money {
	if p.SalePrice.IsPositive() {
		return p.SalePrice
	}
	return p.RegularPrice
}
