package queue

import (
	"encoding/json"

	"github.com/licenceland/licenceland-sync/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskOrderEmail 订单邮件任务（new_order / customer_invoice）
	TaskOrderEmail = constants.TaskOrderEmail
	// TaskCDKeyDeliver key 发货邮件任务
	TaskCDKeyDeliver = constants.TaskCDKeyDeliver
	// TaskBackorderNotice 缺货通知任务
	TaskBackorderNotice = constants.TaskBackorderNotice
	// TaskStockAlert 库存预警任务
	TaskStockAlert = constants.TaskStockAlert
)

// OrderEmailPayload 订单邮件任务载荷
type OrderEmailPayload struct {
	OrderID   uint   `json:"order_id"`
	EmailType string `json:"email_type"`
}

// CDKeyDeliverPayload key 发货邮件任务载荷
type CDKeyDeliverPayload struct {
	OrderID     uint `json:"order_id"`
	OrderItemID uint `json:"order_item_id"`
}

// BackorderNoticePayload 缺货通知任务载荷
type BackorderNoticePayload struct {
	BackorderID uint `json:"backorder_id"`
}

// StockAlertPayload 库存预警任务载荷
type StockAlertPayload struct {
	ProductID uint  `json:"product_id"`
	Remaining int64 `json:"remaining"`
}

// NewOrderEmailTask 创建订单邮件任务
func NewOrderEmailTask(payload OrderEmailPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderEmail, body), nil
}

// NewCDKeyDeliverTask 创建 key 发货邮件任务
func NewCDKeyDeliverTask(payload CDKeyDeliverPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCDKeyDeliver, body), nil
}

// NewBackorderNoticeTask 创建缺货通知任务
func NewBackorderNoticeTask(payload BackorderNoticePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBackorderNotice, body), nil
}

// NewStockAlertTask 创建库存预警任务
func NewStockAlertTask(payload StockAlertPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockAlert, body), nil
}
