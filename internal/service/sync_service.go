package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/licenceland/licenceland-sync/internal/cache"
	"github.com/licenceland/licenceland-sync/internal/config"
	"github.com/licenceland/licenceland-sync/internal/constants"
	"github.com/licenceland/licenceland-sync/internal/logger"
	"github.com/licenceland/licenceland-sync/internal/models"
	"github.com/licenceland/licenceland-sync/internal/queue"
	"github.com/licenceland/licenceland-sync/internal/repository"
	llsync "github.com/licenceland/licenceland-sync/internal/sync"
)

// 同步端点路径,主副站一致
const (
	PathSyncProduct     = "/licenceland/v1/sync/product"
	PathSyncOrder       = "/licenceland/v1/sync/order"
	PathSyncOrderResend = "/licenceland/v1/sync/order/resend"
	PathSyncPayments    = "/licenceland/v1/sync/settings/payments"
	PathSyncKeysAppend  = "/licenceland/v1/sync/keys/append"
	PathSyncKeysReplace = "/licenceland/v1/sync/keys/replace"
)

// ProductPayload 商品同步报文
type ProductPayload struct {
	OriginSite       string       `json:"origin_site,omitempty"`
	OriginID         string       `json:"origin_id"`
	SKU              string       `json:"sku"`
	Name             string       `json:"name"`
	Status           string       `json:"status"`
	Description      string       `json:"description"`
	ShortDescription string       `json:"short_description"`
	RegularPrice     models.Money `json:"regular_price"`
	SalePrice        models.Money `json:"sale_price"`
	StockQuantity    int          `json:"stock_quantity"`
	Categories       []string     `json:"categories"`
	Tags             []string     `json:"tags"`
	FeaturedImage    string       `json:"featured_image"`
	Gallery          []string     `json:"gallery"`
	EmailTemplate    string       `json:"cd_email_template"`
	AutoAssign       *bool        `json:"cd_key_auto_assign,omitempty"`
	AlertThreshold   int          `json:"cd_key_stock_threshold"`
	CDKeys           []string     `json:"cd_keys,omitempty"`
	SyncVersion      int64        `json:"sync_version"`
}

// OrderItemPayload 订单项同步报文
type OrderItemPayload struct {
	SKU        string       `json:"sku"`
	Name       string       `json:"name"`
	Quantity   int          `json:"quantity"`
	UnitPrice  models.Money `json:"unit_price"`
	CDKey      string       `json:"cd_key,omitempty"`
	AssignKeys bool         `json:"assign_keys,omitempty"`
}

// OrderPayload 订单同步报文
type OrderPayload struct {
	OriginSite    string             `json:"origin_site,omitempty"`
	OrderID       string             `json:"order_id"`
	OrderNo       string             `json:"order_no"`
	ShopType      string             `json:"shop_type"`
	Status        string             `json:"status"`
	Currency      string             `json:"currency"`
	PaymentMethod string             `json:"payment_method,omitempty"`
	TotalAmount   models.Money       `json:"total_amount"`
	CustomerEmail string             `json:"customer_email"`
	CustomerName  string             `json:"customer_name"`
	Billing       models.JSON        `json:"billing,omitempty"`
	Shipping      models.JSON        `json:"shipping,omitempty"`
	AssignKeys    bool               `json:"assign_keys"`
	Items         []OrderItemPayload `json:"line_items"`
}

// ResendPayload 订单邮件重发报文
type ResendPayload struct {
	OrderID   string `json:"remote_order_id"`
	OrderNo   string `json:"order_no"`
	EmailType string `json:"email_type"`
}

// PaymentSettingsPayload 支付方式同步报文,两类店铺各自独立
type PaymentSettingsPayload struct {
	ConsumerPayments []string `json:"ds_lak_payments"`
	BusinessPayments []string `json:"ds_uzl_payments"`
}

// KeysPayload key 池同步报文
type KeysPayload struct {
	SKU  string   `json:"sku"`
	Keys []string `json:"keys"`
}

// SyncService 站点间同步服务,负责入站落库与出站推送
type SyncService struct {
	cfg         config.SyncConfig
	client      *llsync.Client
	productRepo repository.ProductRepository
	orderRepo   repository.OrderRepository
	settingRepo repository.SettingRepository
	ledger      *KeyLedgerService
	backorders  *BackorderService
	queueClient *queue.Client
}

// NewSyncService 创建同步服务
func NewSyncService(
	cfg config.SyncConfig,
	client *llsync.Client,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	settingRepo repository.SettingRepository,
	ledger *KeyLedgerService,
	backorders *BackorderService,
	queueClient *queue.Client,
) *SyncService {
	return &SyncService{
		cfg:         cfg,
		client:      client,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		settingRepo: settingRepo,
		ledger:      ledger,
		backorders:  backorders,
		queueClient: queueClient,
	}
}

// ResolveProduct 按同步语义定位商品:
// 先按来源 (origin_site, origin_id),再按 SKU 精确匹配,最后忽略大小写兜底。
func (s *SyncService) ResolveProduct(originSite, originID, sku string) (*models.Product, error) {
	product, err := s.productRepo.GetByOrigin(originSite, originID)
	if err != nil || product != nil {
		return product, err
	}
	product, err = s.productRepo.GetBySKU(sku)
	if err != nil || product != nil {
		return product, err
	}
	return s.productRepo.GetBySKUFold(sku)
}

// UpsertProduct 落库入站商品推送,不存在则创建。
// 冲突按后写覆盖处理,sync_version 仅记录不比较。
func (s *SyncService) UpsertProduct(ctx context.Context, senderID string, payload ProductPayload) (*models.Product, error) {
	sku := strings.TrimSpace(payload.SKU)
	if sku == "" {
		return nil, ErrMissingSKU
	}

	// 报文内的 origin_site 优先于签名头里的站点标识
	origin := strings.TrimSpace(payload.OriginSite)
	if origin == "" {
		origin = senderID
	}

	product, err := s.ResolveProduct(origin, payload.OriginID, sku)
	if err != nil {
		return nil, err
	}

	created := false
	if product == nil {
		product = &models.Product{
			SKU:        sku,
			AutoAssign: true,
			KeyTracked: true,
		}
		created = true
	}

	// 按来源命中旧记录时 SKU 以报文为准,改名原地生效
	product.SKU = sku
	product.Name = payload.Name
	if payload.Status != "" {
		product.Status = payload.Status
	} else if product.Status == "" {
		product.Status = constants.ProductStatusPublish
	}
	product.Description = payload.Description
	product.ShortDescription = payload.ShortDescription
	product.RegularPrice = payload.RegularPrice
	product.SalePrice = payload.SalePrice
	product.StockQuantity = payload.StockQuantity
	product.Categories = payload.Categories
	product.Tags = payload.Tags
	product.FeaturedImage = payload.FeaturedImage
	product.Gallery = payload.Gallery
	product.EmailTemplate = payload.EmailTemplate
	if payload.AutoAssign != nil {
		product.AutoAssign = *payload.AutoAssign
	}
	if payload.AlertThreshold > 0 {
		product.StockAlertThreshold = payload.AlertThreshold
	}
	product.OriginSite = origin
	product.OriginID = payload.OriginID
	if payload.SyncVersion > 0 {
		product.SyncVersion = payload.SyncVersion
	} else {
		product.SyncVersion = time.Now().Unix()
	}

	if created {
		if err := s.productRepo.Create(product); err != nil {
			return nil, err
		}
	} else {
		if err := s.productRepo.Update(product); err != nil {
			return nil, err
		}
	}

	// 报文携带 key 池时整池替换并连带补发
	if payload.CDKeys != nil {
		if _, _, err := s.backorders.Replace(ctx, product, payload.CDKeys); err != nil {
			return nil, err
		}
	}

	logger.Infow("sync_product_upserted",
		"sender", senderID,
		"sku", product.SKU,
		"product_id", product.ID,
		"created", created,
	)
	return product, nil
}

// DeleteProduct 软删除入站删除推送指向的商品
func (s *SyncService) DeleteProduct(ctx context.Context, sku string) (*models.Product, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, ErrMissingSKU
	}

	product, err := s.productRepo.GetBySKU(sku)
	if err != nil {
		return nil, err
	}
	if product == nil {
		product, err = s.productRepo.GetBySKUFold(sku)
		if err != nil {
			return nil, err
		}
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if err := s.productRepo.SoftDelete(product); err != nil {
		return nil, err
	}
	logger.Infow("sync_product_deleted", "sku", sku, "product_id", product.ID)
	return product, nil
}

// BuildProductPayload 生成出站商品报文,附带当前可用 key 池
func (s *SyncService) BuildProductPayload(product *models.Product) (ProductPayload, error) {
	keys, err := s.ledger.keyRepo.ListAvailableKeys(product.ID)
	if err != nil {
		return ProductPayload{}, err
	}
	autoAssign := product.AutoAssign
	return ProductPayload{
		OriginSite:       s.cfg.SiteID,
		OriginID:         strconv.FormatUint(uint64(product.ID), 10),
		SKU:              product.SKU,
		Name:             product.Name,
		Status:           product.Status,
		Description:      product.Description,
		ShortDescription: product.ShortDescription,
		RegularPrice:     product.RegularPrice,
		SalePrice:        product.SalePrice,
		StockQuantity:    product.StockQuantity,
		Categories:       product.Categories,
		Tags:             product.Tags,
		FeaturedImage:    product.FeaturedImage,
		Gallery:          product.Gallery,
		EmailTemplate:    product.EmailTemplate,
		AutoAssign:       &autoAssign,
		AlertThreshold:   product.StockAlertThreshold,
		CDKeys:           keys,
		SyncVersion:      time.Now().Unix(),
	}, nil
}

// PushProduct 主站向副站广播商品。副站、入站触发或未配置对端时直接跳过。
func (s *SyncService) PushProduct(ctx context.Context, product *models.Product) {
	if !s.cfg.IsPrimary() || !s.cfg.ProductsEnabled {
		return
	}
	if llsync.IsInbound(ctx) || !s.client.HasPeers() {
		return
	}

	payload, err := s.BuildProductPayload(product)
	if err != nil {
		logger.Warnw("sync_product_payload_failed", "sku", product.SKU, "error", err)
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Warnw("sync_product_marshal_failed", "sku", product.SKU, "error", err)
		return
	}
	s.client.Broadcast(ctx, http.MethodPost, PathSyncProduct, body)
}

// PushProductDelete 主站向副站广播商品删除
func (s *SyncService) PushProductDelete(ctx context.Context, sku string) {
	if !s.cfg.IsPrimary() || !s.cfg.ProductsEnabled {
		return
	}
	if llsync.IsInbound(ctx) || !s.client.HasPeers() {
		return
	}
	path := PathSyncProduct + "/" + url.PathEscape(sku)
	s.client.Broadcast(ctx, http.MethodDelete, path, nil)
}

// MirrorOrder 落库副站推来的订单镜像。
// 订单项里的 SKU 逐个对账,匹配不上的照单全收但记入 skipped,不整单拒绝。
// 同一 (来源站点, 远端订单ID) 重复推送按幂等更新处理。
func (s *SyncService) MirrorOrder(ctx context.Context, senderID string, payload OrderPayload) (*models.Order, []string, error) {
	remoteID := strings.TrimSpace(payload.OrderID)
	if remoteID == "" {
		return nil, nil, ErrMissingOrderID
	}

	origin := strings.TrimSpace(payload.OriginSite)
	if origin == "" {
		origin = senderID
	}

	existing, err := s.orderRepo.GetByRemote(origin, remoteID)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		if payload.Status != "" {
			existing.Status = payload.Status
		}
		if payload.TotalAmount.IsPositive() {
			existing.TotalAmount = payload.TotalAmount
		}
		if err := s.orderRepo.Update(existing); err != nil {
			return nil, nil, err
		}
		logger.Infow("sync_order_updated", "sender", senderID, "remote_order_id", remoteID, "order_id", existing.ID)
		return existing, nil, nil
	}

	shopType := normalizeShopType(payload.ShopType)
	orderNo := strings.TrimSpace(payload.OrderNo)
	if orderNo == "" {
		orderNo = fmt.Sprintf("%s-%s", origin, remoteID)
	}
	status := payload.Status
	if status == "" {
		status = constants.OrderStatusProcessing
	}

	order := &models.Order{
		OrderNo:       orderNo,
		ShopType:      shopType,
		Status:        status,
		Currency:      payload.Currency,
		PaymentMethod: strings.TrimSpace(payload.PaymentMethod),
		TotalAmount:   payload.TotalAmount,
		CustomerEmail: payload.CustomerEmail,
		CustomerName:  payload.CustomerName,
		BillingJSON:   payload.Billing,
		ShippingJSON:  payload.Shipping,
		OriginSite:    origin,
		RemoteOrderID: remoteID,
	}

	var skipped []string
	type itemBinding struct {
		product    *models.Product
		assignKeys bool
	}
	bindings := make([]itemBinding, 0, len(payload.Items))

	for _, item := range payload.Items {
		sku := strings.TrimSpace(item.SKU)
		product, err := s.productRepo.GetBySKU(sku)
		if err != nil {
			return nil, nil, err
		}
		if product == nil {
			product, err = s.productRepo.GetBySKUFold(sku)
			if err != nil {
				return nil, nil, err
			}
		}

		orderItem := models.OrderItem{
			SKU:       sku,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
		if product != nil {
			orderItem.ProductID = product.ID
		} else {
			skipped = append(skipped, sku)
		}
		if item.CDKey != "" {
			now := time.Now()
			orderItem.CDKeyValue = item.CDKey
			orderItem.FulfilledAt = &now
		}
		order.Items = append(order.Items, orderItem)
		// 订单级 assign_keys 对全部订单项生效,订单项级标记可单独补充
		bindings = append(bindings, itemBinding{product: product, assignKeys: payload.AssignKeys || item.AssignKeys})
	}

	if err := s.orderRepo.Create(order); err != nil {
		return nil, nil, err
	}

	// 请求分配 key 的订单项逐项发 key,库存不足的排入缺货队列
	for i := range order.Items {
		item := &order.Items[i]
		binding := bindings[i]
		if binding.product == nil || !binding.assignKeys || item.CDKeyValue != "" || item.Quantity <= 0 {
			continue
		}

		keys, err := s.ledger.Allocate(ctx, binding.product.ID, order.ID, item.ID, item.Quantity)
		if errors.Is(err, ErrInsufficientStock) {
			if _, err := s.backorders.Enqueue(ctx, order, item, binding.product); err != nil {
				return nil, nil, err
			}
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		now := time.Now()
		joined := strings.Join(keys, constants.CDKeyJoinSeparator)
		if err := s.orderRepo.UpdateItemFulfillment(item.ID, joined, now); err != nil {
			return nil, nil, err
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

	logger.Infow("sync_order_mirrored",
		"sender", senderID,
		"remote_order_id", remoteID,
		"order_id", order.ID,
		"items", len(order.Items),
		"skipped", len(skipped),
	)
	return order, skipped, nil
}

// PushOrder 副站向主站推送订单镜像。主站、入站触发或未配置对端时直接跳过。
func (s *SyncService) PushOrder(ctx context.Context, order *models.Order) {
	if !s.cfg.IsSecondary() || !s.cfg.OrdersEnabled {
		return
	}
	if llsync.IsInbound(ctx) || !s.client.HasPeers() {
		return
	}

	payload := OrderPayload{
		OriginSite:    s.cfg.SiteID,
		OrderID:       strconv.FormatUint(uint64(order.ID), 10),
		OrderNo:       order.OrderNo,
		ShopType:      order.ShopType,
		Status:        order.Status,
		Currency:      order.Currency,
		PaymentMethod: order.PaymentMethod,
		TotalAmount:   order.TotalAmount,
		CustomerEmail: order.CustomerEmail,
		CustomerName:  order.CustomerName,
		Billing:       order.BillingJSON,
		Shipping:      order.ShippingJSON,
	}
	for _, item := range order.Items {
		// 副站没发出去的 key 由主站补发
		assign := item.CDKeyValue == ""
		if assign {
			payload.AssignKeys = true
		}
		payload.Items = append(payload.Items, OrderItemPayload{
			SKU:        item.SKU,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			CDKey:      item.CDKeyValue,
			AssignKeys: assign,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logger.Warnw("sync_order_marshal_failed", "order_id", order.ID, "error", err)
		return
	}
	s.client.Broadcast(ctx, http.MethodPost, PathSyncOrder, body)
}

// ResendOrderEmail 重发订单邮件,订单按远端 ID 或订单号定位
func (s *SyncService) ResendOrderEmail(ctx context.Context, senderID string, payload ResendPayload) (*models.Order, error) {
	emailType := strings.TrimSpace(payload.EmailType)
	if emailType == "" {
		emailType = constants.EmailTypeNewOrder
	}
	if emailType != constants.EmailTypeNewOrder && emailType != constants.EmailTypeCustomerInvoice {
		return nil, ErrInvalidPayload
	}

	var order *models.Order
	var err error
	if remoteID := strings.TrimSpace(payload.OrderID); remoteID != "" {
		order, err = s.orderRepo.GetByRemote(senderID, remoteID)
		if err != nil {
			return nil, err
		}
	}
	if order == nil && strings.TrimSpace(payload.OrderNo) != "" {
		order, err = s.orderRepo.GetByOrderNo(strings.TrimSpace(payload.OrderNo))
		if err != nil {
			return nil, err
		}
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	if err := s.queueClient.EnqueueOrderEmail(queue.OrderEmailPayload{
		OrderID:   order.ID,
		EmailType: emailType,
	}); err != nil {
		return nil, err
	}

	logger.Infow("sync_order_email_resend",
		"sender", senderID,
		"order_id", order.ID,
		"email_type", emailType,
	)
	return order, nil
}

// UpdatePaymentSettings 落库入站支付方式配置
func (s *SyncService) UpdatePaymentSettings(ctx context.Context, payload PaymentSettingsPayload) error {
	if payload.ConsumerPayments == nil && payload.BusinessPayments == nil {
		return ErrInvalidPayload
	}
	if payload.ConsumerPayments != nil {
		value := models.JSON{"methods": payload.ConsumerPayments}
		if _, err := s.settingRepo.Upsert(constants.SettingKeyConsumerPayments, value); err != nil {
			return err
		}
		if err := cache.Del(ctx, "settings:"+constants.SettingKeyConsumerPayments); err != nil {
			logger.Warnw("sync_payments_cache_del_failed", "error", err)
		}
	}
	if payload.BusinessPayments != nil {
		value := models.JSON{"methods": payload.BusinessPayments}
		if _, err := s.settingRepo.Upsert(constants.SettingKeyBusinessPayments, value); err != nil {
			return err
		}
		if err := cache.Del(ctx, "settings:"+constants.SettingKeyBusinessPayments); err != nil {
			logger.Warnw("sync_payments_cache_del_failed", "error", err)
		}
	}
	logger.Infow("sync_payment_settings_updated",
		"consumer", len(payload.ConsumerPayments),
		"business", len(payload.BusinessPayments),
	)
	return nil
}

// PaymentMethods 返回店铺类型对应的已镜像支付方式,带短时缓存
func (s *SyncService) PaymentMethods(ctx context.Context, shopType string) ([]string, error) {
	key := constants.SettingKeyConsumerPayments
	if shopType == constants.ShopTypeBusiness {
		key = constants.SettingKeyBusinessPayments
	}
	cacheKey := "settings:" + key

	var cached []string
	if hit, err := cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	setting, err := s.settingRepo.GetByKey(key)
	if err != nil {
		return nil, err
	}
	methods := setting.StringList("methods")
	if err := cache.SetJSON(ctx, cacheKey, methods, 5*time.Minute); err != nil {
		logger.Warnw("payment_methods_cache_failed", "error", err)
	}
	return methods, nil
}

// PushPaymentSettings 主站向副站广播支付方式配置
func (s *SyncService) PushPaymentSettings(ctx context.Context, payload PaymentSettingsPayload) {
	if !s.cfg.IsPrimary() {
		return
	}
	if llsync.IsInbound(ctx) || !s.client.HasPeers() {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Warnw("sync_payments_marshal_failed", "error", err)
		return
	}
	s.client.Broadcast(ctx, http.MethodPost, PathSyncPayments, body)
}

// AppendKeys 落库入站 key 追加推送并连带补发
func (s *SyncService) AppendKeys(ctx context.Context, payload KeysPayload) (*models.Product, int, int64, int, error) {
	product, err := s.requireProductBySKU(payload.SKU)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	added, total, processed, err := s.backorders.Restock(ctx, product, payload.Keys)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	return product, added, total, processed, nil
}

// ReplaceKeys 落库入站 key 整池替换推送并连带补发
func (s *SyncService) ReplaceKeys(ctx context.Context, payload KeysPayload) (*models.Product, int64, int, error) {
	product, err := s.requireProductBySKU(payload.SKU)
	if err != nil {
		return nil, 0, 0, err
	}
	total, processed, err := s.backorders.Replace(ctx, product, payload.Keys)
	if err != nil {
		return nil, 0, 0, err
	}
	return product, total, processed, nil
}

// PushKeysAppend 主站向副站广播 key 追加
func (s *SyncService) PushKeysAppend(ctx context.Context, sku string, keys []string) {
	s.pushKeys(ctx, PathSyncKeysAppend, sku, keys)
}

// PushKeysReplace 主站向副站广播 key 整池替换
func (s *SyncService) PushKeysReplace(ctx context.Context, sku string, keys []string) {
	s.pushKeys(ctx, PathSyncKeysReplace, sku, keys)
}

func (s *SyncService) pushKeys(ctx context.Context, path, sku string, keys []string) {
	if !s.cfg.IsPrimary() || !s.cfg.ProductsEnabled {
		return
	}
	if llsync.IsInbound(ctx) || !s.client.HasPeers() {
		return
	}
	body, err := json.Marshal(KeysPayload{SKU: sku, Keys: keys})
	if err != nil {
		logger.Warnw("sync_keys_marshal_failed", "sku", sku, "error", err)
		return
	}
	s.client.Broadcast(ctx, http.MethodPost, path, body)
}

func (s *SyncService) requireProductBySKU(sku string) (*models.Product, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, ErrMissingSKU
	}
	product, err := s.productRepo.GetBySKU(sku)
	if err != nil {
		return nil, err
	}
	if product == nil {
		product, err = s.productRepo.GetBySKUFold(sku)
		if err != nil {
			return nil, err
		}
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

func normalizeShopType(shopType string) string {
	switch strings.ToLower(strings.TrimSpace(shopType)) {
	case constants.ShopTypeBusiness:
		return constants.ShopTypeBusiness
	default:
		return constants.ShopTypeConsumer
	}
}
