package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/licenceland/licenceland-sync/internal/constants"
	"github.com/licenceland/licenceland-sync/internal/logger"
	"github.com/licenceland/licenceland-sync/internal/models"
	"github.com/licenceland/licenceland-sync/internal/queue"
	"github.com/licenceland/licenceland-sync/internal/repository"

	"github.com/shopspring/decimal"
)

// OrderService 本站下单服务,负责建单、发 key 与向对端推送镜像
type OrderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	ledger      *KeyLedgerService
	backorders  *BackorderService
	syncService *SyncService
	queueClient *queue.Client
}

// NewOrderService 创建下单服务
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	ledger *KeyLedgerService,
	backorders *BackorderService,
	syncService *SyncService,
	queueClient *queue.Client,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		ledger:      ledger,
		backorders:  backorders,
		syncService: syncService,
		queueClient: queueClient,
	}
}

// PlaceOrderItemInput 下单商品行
type PlaceOrderItemInput struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// PlaceOrderInput 下单输入
type PlaceOrderInput struct {
	ShopType      string                `json:"shop_type"`
	Currency      string                `json:"currency"`
	PaymentMethod string                `json:"payment_method"`
	CustomerEmail string                `json:"customer_email"`
	CustomerName  string                `json:"customer_name"`
	Billing       models.JSON           `json:"billing,omitempty"`
	Shipping      models.JSON           `json:"shipping,omitempty"`
	Items         []PlaceOrderItemInput `json:"items"`
}

// PlaceOrder 创建订单并逐项发 key,库存不足的订单项排入缺货队列。
// 副站建单后把订单镜像推给主站。
func (s *OrderService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, ErrInvalidPayload
	}
	shopType := strings.ToLower(strings.TrimSpace(input.ShopType))
	if shopType == "" {
		shopType = constants.ShopTypeConsumer
	}
	if shopType != constants.ShopTypeConsumer && shopType != constants.ShopTypeBusiness {
		return nil, ErrInvalidShopType
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "EUR"
	}

	// 支付方式按主站镜像的配置校验,未配置镜像时放行
	paymentMethod := strings.TrimSpace(input.PaymentMethod)
	if paymentMethod != "" {
		methods, err := s.syncService.PaymentMethods(ctx, shopType)
		if err != nil {
			return nil, err
		}
		if len(methods) > 0 && !containsString(methods, paymentMethod) {
			return nil, ErrPaymentMethodUnavailable
		}
	}

	type orderLine struct {
		product  *models.Product
		quantity int
	}
	lines := make([]orderLine, 0, len(input.Items))
	total := decimal.Zero
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidPayload
		}
		product, err := s.productRepo.GetBySKU(strings.TrimSpace(item.SKU))
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, ErrProductNotFound
		}
		lines = append(lines, orderLine{product: product, quantity: item.Quantity})
		total = total.Add(product.EffectivePrice().Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	order := &models.Order{
		OrderNo:       generateOrderNo(),
		ShopType:      shopType,
		Status:        constants.OrderStatusProcessing,
		Currency:      currency,
		PaymentMethod: paymentMethod,
		TotalAmount:   models.NewMoneyFromDecimal(total),
		CustomerEmail: strings.TrimSpace(input.CustomerEmail),
		CustomerName:  strings.TrimSpace(input.CustomerName),
		BillingJSON:   input.Billing,
		ShippingJSON:  input.Shipping,
	}
	for _, line := range lines {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: line.product.ID,
			SKU:       line.product.SKU,
			Name:      line.product.Name,
			Quantity:  line.quantity,
			UnitPrice: line.product.EffectivePrice(),
		})
	}

	if err := s.orderRepo.Create(order); err != nil {
		return nil, err
	}

	for i := range order.Items {
		item := &order.Items[i]
		product := lines[i].product
		if !product.KeyTracked {
			continue
		}

		keys, err := s.ledger.Allocate(ctx, product.ID, order.ID, item.ID, item.Quantity)
		if errors.Is(err, ErrInsufficientStock) {
			if _, err := s.backorders.Enqueue(ctx, order, item, product); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		now := time.Now()
		joined := strings.Join(keys, constants.CDKeyJoinSeparator)
		if err := s.orderRepo.UpdateItemFulfillment(item.ID, joined, now); err != nil {
			return nil, err
		}
		item.CDKeyValue = joined
		item.FulfilledAt = &now
		if err := s.queueClient.EnqueueCDKeyDeliver(queue.CDKeyDeliverPayload{
			OrderID:     order.ID,
			OrderItemID: item.ID,
		}); err != nil {
			logger.Warnw("cd_key_deliver_enqueue_failed", "order_item_id", item.ID, "error", err)
		}
	}

	if err := s.queueClient.EnqueueOrderEmail(queue.OrderEmailPayload{
		OrderID:   order.ID,
		EmailType: constants.EmailTypeNewOrder,
	}); err != nil {
		logger.Warnw("order_email_enqueue_failed", "order_id", order.ID, "error", err)
	}

	logger.Infow("order_placed",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"shop_type", order.ShopType,
		"items", len(order.Items),
	)

	s.syncService.PushOrder(ctx, order)
	return order, nil
}

// GetByID 获取订单详情
func (s *OrderService) GetByID(id uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func generateOrderNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("LL%s%s", now, randNumeric(6))
}

func containsString(list []string, target string) bool {
	for _, item := range list {
		if item == target {
			return true
		}
	}
	return false
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(n.String())
	}
	return b.String()
}
