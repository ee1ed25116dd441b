package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/licenceland/licenceland-sync/internal/logger"
	"github.com/licenceland/licenceland-sync/internal/models"
	"github.com/licenceland/licenceland-sync/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func setupKeyLedgerTest(t *testing.T) (*KeyLedgerService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:key_ledger_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Product{}, &models.CDKey{}, &models.CDKeyUsage{},
		&models.Order{}, &models.OrderItem{}, &models.Backorder{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	productRepo := repository.NewProductRepository(db)
	keyRepo := repository.NewCDKeyRepository(db)
	return NewKeyLedgerService(productRepo, keyRepo, nil, 5), db
}

func createKeyTestProduct(t *testing.T, db *gorm.DB, sku string) *models.Product {
	t.Helper()
	product := &models.Product{
		SKU:          sku,
		Name:         "Test Licence " + sku,
		Status:       "publish",
		RegularPrice: models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
		KeyTracked:   true,
		AutoAssign:   true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

func TestAddKeysNormalizeAndDedupe(t *testing.T) {
	ledger, db := setupKeyLedgerTest(t)
	product := createKeyTestProduct(t, db, "ADD-KEYS")

	added, total, err := ledger.AddKeys(context.Background(), product, []string{"K-1\nK-2\n  K-2  ", "K-3"})
	if err != nil {
		t.Fatalf("add keys failed: %v", err)
	}
	if added != 3 || total != 3 {
		t.Fatalf("expected added=3 total=3, got added=%d total=%d", added, total)
	}

	// 已在池内的 key 不重复入库
	added, total, err = ledger.AddKeys(context.Background(), product, []string{"K-2", "K-4"})
	if err != nil {
		t.Fatalf("second add keys failed: %v", err)
	}
	if added != 1 || total != 4 {
		t.Fatalf("expected added=1 total=4, got added=%d total=%d", added, total)
	}
}

func TestAllocateFIFOByInsertionOrder(t *testing.T) {
	ledger, db := setupKeyLedgerTest(t)
	product := createKeyTestProduct(t, db, "FIFO")

	if _, _, err := ledger.AddKeys(context.Background(), product, []string{"FIFO-1", "FIFO-2", "FIFO-3"}); err != nil {
		t.Fatalf("add keys failed: %v", err)
	}

	keys, err := ledger.Allocate(context.Background(), product.ID, 10, 20, 2)
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "FIFO-1" || keys[1] != "FIFO-2" {
		t.Fatalf("expected oldest keys first, got %v", keys)
	}

	remaining, err := ledger.Available(product.ID)
	if err != nil {
		t.Fatalf("count available failed: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected 1 remaining, got %d", remaining)
	}

	var used []models.CDKey
	if err := db.Where("product_id = ? AND status = ?", product.ID, models.CDKeyStatusUsed).Find(&used).Error; err != nil {
		t.Fatalf("load used keys failed: %v", err)
	}
	if len(used) != 2 {
		t.Fatalf("expected 2 used keys, got %d", len(used))
	}
	for _, key := range used {
		if key.OrderID == nil || *key.OrderID != 10 {
			t.Fatalf("expected order id 10 on used key, got %+v", key.OrderID)
		}
		if key.OrderItemID == nil || *key.OrderItemID != 20 {
			t.Fatalf("expected order item id 20 on used key, got %+v", key.OrderItemID)
		}
		if key.UsedAt == nil {
			t.Fatalf("expected used_at set on used key %d", key.ID)
		}
	}

	var usages []models.CDKeyUsage
	if err := db.Where("order_id = ?", 10).Find(&usages).Error; err != nil {
		t.Fatalf("load usages failed: %v", err)
	}
	if len(usages) != 2 {
		t.Fatalf("expected 2 usage rows, got %d", len(usages))
	}
}

func TestAllocateInsufficientStockRollsBack(t *testing.T) {
	ledger, db := setupKeyLedgerTest(t)
	product := createKeyTestProduct(t, db, "SHORT")

	if _, _, err := ledger.AddKeys(context.Background(), product, []string{"ONLY-1"}); err != nil {
		t.Fatalf("add keys failed: %v", err)
	}

	_, err := ledger.Allocate(context.Background(), product.ID, 1, 1, 3)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	remaining, err := ledger.Available(product.ID)
	if err != nil {
		t.Fatalf("count available failed: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected pool untouched after failed allocation, got %d", remaining)
	}
}

func TestReplaceKeysPreservesUsedKeys(t *testing.T) {
	ledger, db := setupKeyLedgerTest(t)
	product := createKeyTestProduct(t, db, "REPLACE")

	if _, _, err := ledger.AddKeys(context.Background(), product, []string{"OLD-1", "OLD-2"}); err != nil {
		t.Fatalf("add keys failed: %v", err)
	}
	if _, err := ledger.Allocate(context.Background(), product.ID, 1, 1, 1); err != nil {
		t.Fatalf("allocate failed: %v", err)
	}

	total, err := ledger.ReplaceKeys(context.Background(), product, []string{"NEW-1", "NEW-2", "NEW-3"})
	if err != nil {
		t.Fatalf("replace keys failed: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 available after replace, got %d", total)
	}

	var usedCount int64
	if err := db.Model(&models.CDKey{}).
		Where("product_id = ? AND status = ?", product.ID, models.CDKeyStatusUsed).
		Count(&usedCount).Error; err != nil {
		t.Fatalf("count used failed: %v", err)
	}
	if usedCount != 1 {
		t.Fatalf("expected consumed key untouched by replace, got %d used", usedCount)
	}

	var oldAvailable int64
	if err := db.Model(&models.CDKey{}).
		Where("product_id = ? AND status = ? AND key LIKE ?", product.ID, models.CDKeyStatusAvailable, "OLD-%").
		Count(&oldAvailable).Error; err != nil {
		t.Fatalf("count old keys failed: %v", err)
	}
	if oldAvailable != 0 {
		t.Fatalf("expected old available keys removed, got %d", oldAvailable)
	}
}

func TestAllocateConcurrentAtMostOnce(t *testing.T) {
	ledger, db := setupKeyLedgerTest(t)
	product := createKeyTestProduct(t, db, "CONC")

	keys := make([]string, 10)
	for i := range keys {
		keys[i] = fmt.Sprintf("CONC-%02d", i+1)
	}
	if _, _, err := ledger.AddKeys(context.Background(), product, keys); err != nil {
		t.Fatalf("add keys failed: %v", err)
	}

	var wg sync.WaitGroup
	allocated := make(chan string, len(keys))
	failures := make(chan error, len(keys))
	for i := 0; i < len(keys); i++ {
		wg.Add(1)
		go func(itemID uint) {
			defer wg.Done()
			got, err := ledger.Allocate(context.Background(), product.ID, 1, itemID, 1)
			if err != nil {
				failures <- err
				return
			}
			allocated <- got[0]
		}(uint(i + 1))
	}
	wg.Wait()
	close(allocated)
	close(failures)

	for err := range failures {
		t.Fatalf("concurrent allocate failed: %v", err)
	}
	seen := make(map[string]bool)
	for key := range allocated {
		if seen[key] {
			t.Fatalf("key %s allocated twice", key)
		}
		seen[key] = true
	}
	if len(seen) != len(keys) {
		t.Fatalf("expected %d distinct keys, got %d", len(keys), len(seen))
	}

	remaining, err := ledger.Available(product.ID)
	if err != nil {
		t.Fatalf("count available failed: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected empty pool, got %d", remaining)
	}
}

func TestStockAlertFiresAfterRestockBelowThreshold(t *testing.T) {
	ledger, db := setupKeyLedgerTest(t)
	product := createKeyTestProduct(t, db, "ALERT-SKU")

	core, logs := observer.New(zap.InfoLevel)
	prev := logger.L
	logger.L = zap.New(core)
	defer func() { logger.L = prev }()

	// 默认阈值 5,补 3 枚后余量仍在阈值内,入库侧也要预警
	if _, _, err := ledger.AddKeys(context.Background(), product, []string{"A-1", "A-2", "A-3"}); err != nil {
		t.Fatalf("add keys failed: %v", err)
	}
	if got := logs.FilterMessage("stock_alert_triggered").Len(); got != 1 {
		t.Fatalf("expected stock alert after short restock, got %d events", got)
	}

	// 整池替换补足余量后不再预警
	logs.TakeAll()
	keys := make([]string, 10)
	for i := range keys {
		keys[i] = fmt.Sprintf("FULL-%02d", i+1)
	}
	if _, err := ledger.ReplaceKeys(context.Background(), product, keys); err != nil {
		t.Fatalf("replace keys failed: %v", err)
	}
	if got := logs.FilterMessage("stock_alert_triggered").Len(); got != 0 {
		t.Fatalf("expected no stock alert above threshold, got %d events", got)
	}

	// 分配到阈值以下重新触发
	for i := 0; i < 6; i++ {
		if _, err := ledger.Allocate(context.Background(), product.ID, 1, uint(i+1), 1); err != nil {
			t.Fatalf("allocate failed: %v", err)
		}
	}
	if got := logs.FilterMessage("stock_alert_triggered").Len(); got == 0 {
		t.Fatalf("expected stock alert after draining below threshold")
	}
}

func TestNormalizeKeys(t *testing.T) {
	got := normalizeKeys([]string{" A \n\nB", "B", "C\nA"})
	want := []string{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
