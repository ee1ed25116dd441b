package service

import "errors"

// 业务错误定义,handler 层据此映射 HTTP 状态码
var (
	// ErrNotFound 资源不存在
	ErrNotFound = errors.New("resource not found")
	// ErrProductNotFound 商品不存在
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound 订单不存在
	ErrOrderNotFound = errors.New("order not found")
	// ErrMissingSKU 请求缺少 SKU
	ErrMissingSKU = errors.New("missing sku")
	// ErrMissingOrderID 请求缺少订单 ID
	ErrMissingOrderID = errors.New("missing order id")
	// ErrInvalidPayload 请求体不合法
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrInvalidShopType 店铺类型不合法
	ErrInvalidShopType = errors.New("invalid shop type")
	// ErrInsufficientStock key 池可用数量不足
	ErrInsufficientStock = errors.New("insufficient cd keys")
	// ErrPaymentMethodUnavailable 支付方式不在镜像配置内
	ErrPaymentMethodUnavailable = errors.New("payment method unavailable")
	// ErrEmailServiceDisabled 邮件服务未启用
	ErrEmailServiceDisabled = errors.New("email service disabled")
	// ErrEmailServiceNotConfigured 邮件服务未配置
	ErrEmailServiceNotConfigured = errors.New("email service not configured")
	// ErrInvalidEmail 邮箱地址不合法
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrEmailRecipientRejected 收件人被拒绝
	ErrEmailRecipientRejected = errors.New("email recipient rejected")
)

// IsEmailUnavailable 邮件服务未启用或未配置,任务无需重试
func IsEmailUnavailable(err error) bool {
	return errors.Is(err, ErrEmailServiceDisabled) ||
		errors.Is(err, ErrEmailServiceNotConfigured) ||
		errors.Is(err, ErrInvalidEmail)
}
