package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/licenceland/licenceland-sync/internal/config"
	"github.com/licenceland/licenceland-sync/internal/constants"
	"github.com/licenceland/licenceland-sync/internal/models"
	"github.com/licenceland/licenceland-sync/internal/repository"
	llsync "github.com/licenceland/licenceland-sync/internal/sync"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupOrderServiceTest(t *testing.T) (*OrderService, *KeyLedgerService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:order_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Product{}, &models.CDKey{}, &models.CDKeyUsage{},
		&models.Order{}, &models.OrderItem{}, &models.Backorder{}, &models.Setting{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	productRepo := repository.NewProductRepository(db)
	keyRepo := repository.NewCDKeyRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	backorderRepo := repository.NewBackorderRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	ledger := NewKeyLedgerService(productRepo, keyRepo, nil, 5)
	backorders := NewBackorderService(backorderRepo, orderRepo, productRepo, ledger, nil)

	cfg := config.SyncConfig{Role: constants.SyncRoleSecondary, SiteID: "site-b", OrdersEnabled: true}
	client := llsync.NewClient(llsync.ClientOptions{SiteID: cfg.SiteID, Secret: "test-shared-secret"})
	syncSvc := NewSyncService(cfg, client, productRepo, orderRepo, settingRepo, ledger, backorders, nil)

	svc := NewOrderService(orderRepo, productRepo, ledger, backorders, syncSvc, nil)
	return svc, ledger, db
}

func TestPlaceOrderFulfilsKeyTrackedItems(t *testing.T) {
	svc, ledger, db := setupOrderServiceTest(t)
	product := createKeyTestProduct(t, db, "PLACE-SKU")
	if _, _, err := ledger.AddKeys(context.Background(), product, []string{"PO-1", "PO-2", "PO-3"}); err != nil {
		t.Fatalf("add keys failed: %v", err)
	}

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		ShopType:      constants.ShopTypeConsumer,
		CustomerEmail: "buyer@example.com",
		CustomerName:  "Buyer",
		Items:         []PlaceOrderItemInput{{SKU: "PLACE-SKU", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if !strings.HasPrefix(order.OrderNo, "LL") {
		t.Fatalf("unexpected order number %q", order.OrderNo)
	}
	if order.Currency != "EUR" {
		t.Fatalf("expected default EUR currency, got %s", order.Currency)
	}
	if order.Items[0].CDKeyValue != "PO-1, PO-2" {
		t.Fatalf("expected keys assigned at checkout, got %q", order.Items[0].CDKeyValue)
	}

	// 单价 50,两件共 100
	if order.TotalAmount.String() != "100.00" {
		t.Fatalf("unexpected total %s", order.TotalAmount.String())
	}

	remaining, err := ledger.Available(product.ID)
	if err != nil {
		t.Fatalf("count available failed: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected 1 key left, got %d", remaining)
	}
}

func TestPlaceOrderQueuesBackorderOnEmptyPool(t *testing.T) {
	svc, _, db := setupOrderServiceTest(t)
	product := createKeyTestProduct(t, db, "EMPTY-SKU")

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerEmail: "buyer@example.com",
		Items:         []PlaceOrderItemInput{{SKU: product.SKU, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if order.Items[0].CDKeyValue != "" {
		t.Fatalf("expected unfulfilled item on empty pool")
	}

	var backorder models.Backorder
	if err := db.Where("order_id = ?", order.ID).First(&backorder).Error; err != nil {
		t.Fatalf("expected backorder created: %v", err)
	}
	if backorder.Quantity != 1 || backorder.Status != models.BackorderStatusPending {
		t.Fatalf("unexpected backorder %+v", backorder)
	}
}

func TestPlaceOrderSkipsNonKeyTrackedProducts(t *testing.T) {
	svc, _, db := setupOrderServiceTest(t)
	product := createKeyTestProduct(t, db, "PHYSICAL-SKU")
	product.KeyTracked = false
	if err := db.Save(product).Error; err != nil {
		t.Fatalf("save product failed: %v", err)
	}

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerEmail: "buyer@example.com",
		Items:         []PlaceOrderItemInput{{SKU: product.SKU, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if order.Items[0].CDKeyValue != "" {
		t.Fatalf("expected no key assignment for physical product")
	}

	var backorderCount int64
	if err := db.Model(&models.Backorder{}).Count(&backorderCount).Error; err != nil {
		t.Fatalf("count backorders failed: %v", err)
	}
	if backorderCount != 0 {
		t.Fatalf("expected no backorder for physical product, got %d", backorderCount)
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	svc, _, db := setupOrderServiceTest(t)
	createKeyTestProduct(t, db, "VALID-SKU")

	if _, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{}); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for empty items, got %v", err)
	}
	if _, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		ShopType: "wholesale",
		Items:    []PlaceOrderItemInput{{SKU: "VALID-SKU", Quantity: 1}},
	}); !errors.Is(err, ErrInvalidShopType) {
		t.Fatalf("expected ErrInvalidShopType, got %v", err)
	}
	if _, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		Items: []PlaceOrderItemInput{{SKU: "VALID-SKU", Quantity: 0}},
	}); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for zero quantity, got %v", err)
	}
	if _, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		Items: []PlaceOrderItemInput{{SKU: "MISSING-SKU", Quantity: 1}},
	}); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestPlaceOrderValidatesPaymentMethod(t *testing.T) {
	svc, ledger, db := setupOrderServiceTest(t)
	product := createKeyTestProduct(t, db, "PAY-SKU")
	if _, _, err := ledger.AddKeys(context.Background(), product, []string{"PAY-1", "PAY-2", "PAY-3"}); err != nil {
		t.Fatalf("add keys failed: %v", err)
	}
	setting := &models.Setting{
		Key:       constants.SettingKeyConsumerPayments,
		ValueJSON: models.JSON{"methods": []string{"ideal", "paypal"}},
	}
	if err := db.Create(setting).Error; err != nil {
		t.Fatalf("seed payment settings failed: %v", err)
	}

	input := PlaceOrderInput{
		ShopType:      constants.ShopTypeConsumer,
		PaymentMethod: "banktransfer",
		CustomerEmail: "buyer@example.com",
		Items:         []PlaceOrderItemInput{{SKU: product.SKU, Quantity: 1}},
	}
	if _, err := svc.PlaceOrder(context.Background(), input); !errors.Is(err, ErrPaymentMethodUnavailable) {
		t.Fatalf("expected ErrPaymentMethodUnavailable, got %v", err)
	}

	input.PaymentMethod = "ideal"
	order, err := svc.PlaceOrder(context.Background(), input)
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if order.PaymentMethod != "ideal" {
		t.Fatalf("expected payment method stored, got %q", order.PaymentMethod)
	}

	// 业务店铺没有镜像配置,不校验
	input.ShopType = constants.ShopTypeBusiness
	input.PaymentMethod = "invoice"
	if _, err := svc.PlaceOrder(context.Background(), input); err != nil {
		t.Fatalf("expected unmirrored shop type to pass, got %v", err)
	}
}

func TestPlaceOrderUsesSalePrice(t *testing.T) {
	svc, _, db := setupOrderServiceTest(t)
	product := createKeyTestProduct(t, db, "SALE-SKU")
	product.SalePrice = models.NewMoneyFromDecimal(decimal.NewFromInt(30))
	product.KeyTracked = false
	if err := db.Save(product).Error; err != nil {
		t.Fatalf("save product failed: %v", err)
	}

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		Items: []PlaceOrderItemInput{{SKU: product.SKU, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if order.TotalAmount.String() != "90.00" {
		t.Fatalf("expected sale price applied, got total %s", order.TotalAmount.String())
	}
	if order.Items[0].UnitPrice.String() != "30.00" {
		t.Fatalf("expected unit price 30.00, got %s", order.Items[0].UnitPrice.String())
	}
}
