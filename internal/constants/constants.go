package constants

// 站点同步角色
const (
	SyncRolePrimary   = "primary"
	SyncRoleSecondary = "secondary"
)

// 双店铺类型
const (
	ShopTypeConsumer = "consumer"
	ShopTypeBusiness = "business"
)

// 商品状态
const (
	ProductStatusPublish = "publish"
	ProductStatusDraft   = "draft"
	ProductStatusTrashed = "trashed"
)

// CD key 状态
const (
	CDKeyStatusAvailable = "available"
	CDKeyStatusUsed      = "used"
)

// 订单状态
const (
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusOnHold     = "on_hold"
	OrderStatusCancelled  = "cancelled"
)

// 缺货单状态
const (
	BackorderStatusPending   = "pending"
	BackorderStatusProcessed = "processed"
	BackorderStatusCancelled = "cancelled"
)

// 邮件类型
const (
	EmailTypeNewOrder        = "new_order"
	EmailTypeCustomerInvoice = "customer_invoice"
)

// 支付方式配置键,两类店铺各自独立
const (
	SettingKeyConsumerPayments = "ds_lak_payments"
	SettingKeyBusinessPayments = "ds_uzl_payments"
)

// 队列名称
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型
const (
	TaskOrderEmail      = "order:email"
	TaskCDKeyDeliver    = "cd_key:deliver"
	TaskBackorderNotice = "backorder:notice"
	TaskStockAlert      = "stock:alert"
)

// 订单项 key 字段里多枚 key 的连接符
const CDKeyJoinSeparator = ", "

// 库存预警默认阈值
const DefaultStockAlertThreshold = 5
