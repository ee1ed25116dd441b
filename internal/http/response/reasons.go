package response

// 同步协议错误原因,随 {"error": reason} 返回
const (
	ReasonMissingSKU       = "missing_sku"
	ReasonMissingOrderID   = "missing_order_id"
	ReasonInvalidPayload   = "invalid_payload"
	ReasonProductNotFound  = "product_not_found"
	ReasonOrderNotFound    = "order_not_found"
	ReasonMissingSecret    = "missing_secret"
	ReasonMissingSignature = "missing_signature"
	ReasonStaleTimestamp   = "stale_timestamp"
	ReasonInvalidSignature = "invalid_signature"
	ReasonRateLimited      = "rate_limited"
	ReasonInternalError    = "internal_error"
)
