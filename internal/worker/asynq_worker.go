package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/licenceland/licenceland-sync/internal/constants"
	"github.com/licenceland/licenceland-sync/internal/logger"
	"github.com/licenceland/licenceland-sync/internal/models"
	"github.com/licenceland/licenceland-sync/internal/provider"
	"github.com/licenceland/licenceland-sync/internal/queue"
	"github.com/licenceland/licenceland-sync/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderEmail, c.handleOrderEmail)
	mux.HandleFunc(queue.TaskCDKeyDeliver, c.handleCDKeyDeliver)
	mux.HandleFunc(queue.TaskBackorderNotice, c.handleBackorderNotice)
	mux.HandleFunc(queue.TaskStockAlert, c.handleStockAlert)
}

func (c *Consumer) handleOrderEmail(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_email_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_email_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_email_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	order, err := c.OrderRepo.GetByID(payload.OrderID)
	if err != nil {
		logger.Warnw("worker_order_email_fetch_order_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	if order == nil {
		logger.Debugw("worker_order_email_skip_order_not_found", "order_id", payload.OrderID)
		return nil
	}
	receiverEmail := strings.TrimSpace(order.CustomerEmail)
	if receiverEmail == "" {
		logger.Debugw("worker_order_email_skip_empty_receiver", "order_id", order.ID, "order_no", order.OrderNo)
		return nil
	}
	if c.EmailService == nil {
		logger.Warnw("worker_order_email_skip_email_service_nil", "order_id", order.ID, "order_no", order.OrderNo)
		return nil
	}
	input := service.OrderEmailInput{
		OrderNo:      order.OrderNo,
		EmailType:    strings.TrimSpace(payload.EmailType),
		CustomerName: order.CustomerName,
		Amount:       order.TotalAmount,
		Currency:     order.Currency,
		Lines:        buildOrderEmailLines(order.Items),
	}
	if err := c.EmailService.SendOrderEmail(receiverEmail, input); err != nil {
		if service.IsEmailUnavailable(err) {
			logger.Debugw("worker_order_email_skip_unavailable", "order_id", order.ID, "order_no", order.OrderNo, "error", err)
			return nil
		}
		logger.Warnw("worker_order_email_send_failed",
			"order_id", order.ID,
			"order_no", order.OrderNo,
			"receiver_email", receiverEmail,
			"email_type", payload.EmailType,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) handleCDKeyDeliver(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_cd_key_deliver_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CDKeyDeliverPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_cd_key_deliver_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 || payload.OrderItemID == 0 {
		logger.Debugw("worker_cd_key_deliver_skip_invalid_payload",
			"order_id", payload.OrderID,
			"order_item_id", payload.OrderItemID,
		)
		return nil
	}
	order, err := c.OrderRepo.GetByID(payload.OrderID)
	if err != nil {
		logger.Warnw("worker_cd_key_deliver_fetch_order_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	if order == nil {
		logger.Debugw("worker_cd_key_deliver_skip_order_not_found", "order_id", payload.OrderID)
		return nil
	}
	item, err := c.OrderRepo.GetItemByID(payload.OrderItemID)
	if err != nil {
		logger.Warnw("worker_cd_key_deliver_fetch_item_failed", "order_item_id", payload.OrderItemID, "error", err)
		return err
	}
	if item == nil {
		logger.Debugw("worker_cd_key_deliver_skip_item_not_found", "order_id", payload.OrderID, "order_item_id", payload.OrderItemID)
		return nil
	}
	keyValue := strings.TrimSpace(item.CDKeyValue)
	if keyValue == "" {
		// 订单项上没落 key 时回查消费流水,分配过就照流水发
		usages, err := c.CDKeyRepo.ListUsageByOrder(order.ID)
		if err != nil {
			logger.Warnw("worker_cd_key_deliver_fetch_usage_failed", "order_id", order.ID, "error", err)
			return err
		}
		var keys []string
		for _, usage := range usages {
			if usage.OrderItemID == item.ID {
				keys = append(keys, usage.Key)
			}
		}
		keyValue = strings.Join(keys, constants.CDKeyJoinSeparator)
	}
	if keyValue == "" {
		logger.Debugw("worker_cd_key_deliver_skip_empty_key", "order_id", payload.OrderID, "order_item_id", payload.OrderItemID)
		return nil
	}
	receiverEmail := strings.TrimSpace(order.CustomerEmail)
	if receiverEmail == "" {
		logger.Debugw("worker_cd_key_deliver_skip_empty_receiver", "order_id", order.ID, "order_no", order.OrderNo)
		return nil
	}
	if c.EmailService == nil {
		logger.Warnw("worker_cd_key_deliver_skip_email_service_nil", "order_id", order.ID, "order_no", order.OrderNo)
		return nil
	}
	template := ""
	productName := item.Name
	if item.ProductID != 0 {
		product, err := c.ProductRepo.GetByID(item.ProductID)
		if err != nil {
			logger.Warnw("worker_cd_key_deliver_fetch_product_failed", "product_id", item.ProductID, "error", err)
			return err
		}
		if product != nil {
			template = product.EmailTemplate
			if product.Name != "" {
				productName = product.Name
			}
		}
	}
	input := service.CDKeyEmailInput{
		OrderNo:      order.OrderNo,
		ProductName:  productName,
		CustomerName: order.CustomerName,
		Template:     template,
		CDKey:        keyValue,
	}
	if err := c.EmailService.SendCDKeyEmail(receiverEmail, input); err != nil {
		if service.IsEmailUnavailable(err) {
			logger.Debugw("worker_cd_key_deliver_skip_unavailable", "order_id", order.ID, "order_no", order.OrderNo, "error", err)
			return nil
		}
		logger.Warnw("worker_cd_key_deliver_send_failed",
			"order_id", order.ID,
			"order_no", order.OrderNo,
			"order_item_id", item.ID,
			"receiver_email", receiverEmail,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) handleBackorderNotice(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_backorder_notice_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.BackorderNoticePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_backorder_notice_unmarshal_failed", "error", err)
		return err
	}
	if payload.BackorderID == 0 {
		logger.Debugw("worker_backorder_notice_skip_invalid_payload", "backorder_id", payload.BackorderID)
		return nil
	}
	backorder, err := c.BackorderRepo.GetByID(payload.BackorderID)
	if err != nil {
		logger.Warnw("worker_backorder_notice_fetch_failed", "backorder_id", payload.BackorderID, "error", err)
		return err
	}
	if backorder == nil {
		logger.Debugw("worker_backorder_notice_skip_not_found", "backorder_id", payload.BackorderID)
		return nil
	}
	receiverEmail := strings.TrimSpace(backorder.CustomerEmail)
	if receiverEmail == "" {
		logger.Debugw("worker_backorder_notice_skip_empty_receiver", "backorder_id", backorder.ID)
		return nil
	}
	if c.EmailService == nil {
		logger.Warnw("worker_backorder_notice_skip_email_service_nil", "backorder_id", backorder.ID)
		return nil
	}
	orderNo := ""
	if order, err := c.OrderRepo.GetByID(backorder.OrderID); err == nil && order != nil {
		orderNo = order.OrderNo
	}
	productName := ""
	if product, err := c.ProductRepo.GetByID(backorder.ProductID); err == nil && product != nil {
		productName = product.Name
	}
	input := service.BackorderNoticeInput{
		OrderNo:      orderNo,
		ProductName:  productName,
		CustomerName: backorder.CustomerName,
		Quantity:     backorder.Quantity,
	}
	if err := c.EmailService.SendBackorderNotice(receiverEmail, input); err != nil {
		if service.IsEmailUnavailable(err) {
			logger.Debugw("worker_backorder_notice_skip_unavailable", "backorder_id", backorder.ID, "error", err)
			return nil
		}
		logger.Warnw("worker_backorder_notice_send_failed",
			"backorder_id", backorder.ID,
			"receiver_email", receiverEmail,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) handleStockAlert(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_stock_alert_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.StockAlertPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_stock_alert_unmarshal_failed", "error", err)
		return err
	}
	if payload.ProductID == 0 {
		logger.Debugw("worker_stock_alert_skip_invalid_payload", "product_id", payload.ProductID)
		return nil
	}
	if c.EmailService == nil {
		logger.Warnw("worker_stock_alert_skip_email_service_nil", "product_id", payload.ProductID)
		return nil
	}
	receiverEmail := c.EmailService.AdminEmail()
	if receiverEmail == "" {
		logger.Debugw("worker_stock_alert_skip_empty_receiver", "product_id", payload.ProductID)
		return nil
	}
	product, err := c.ProductRepo.GetByID(payload.ProductID)
	if err != nil {
		logger.Warnw("worker_stock_alert_fetch_product_failed", "product_id", payload.ProductID, "error", err)
		return err
	}
	if product == nil {
		logger.Debugw("worker_stock_alert_skip_product_not_found", "product_id", payload.ProductID)
		return nil
	}
	if err := c.EmailService.SendStockAlert(receiverEmail, product.Name, payload.Remaining); err != nil {
		if service.IsEmailUnavailable(err) {
			logger.Debugw("worker_stock_alert_skip_unavailable", "product_id", product.ID, "error", err)
			return nil
		}
		logger.Warnw("worker_stock_alert_send_failed",
			"product_id", product.ID,
			"receiver_email", receiverEmail,
			"error", err,
		)
		return err
	}
	return nil
}

func buildOrderEmailLines(items []models.OrderItem) []string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		line := fmt.Sprintf("%d x %s (%s %s)", item.Quantity, item.Name, item.UnitPrice.String(), item.SKU)
		if key := strings.TrimSpace(item.CDKeyValue); key != "" {
			line = line + "\n  CD key: " + key
		}
		lines = append(lines, line)
	}
	return lines
}
