package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/licenceland/licenceland-sync/internal/config"
	"github.com/licenceland/licenceland-sync/internal/constants"
	"github.com/licenceland/licenceland-sync/internal/logger"
	"github.com/licenceland/licenceland-sync/internal/models"
	"github.com/licenceland/licenceland-sync/internal/provider"
	llsync "github.com/licenceland/licenceland-sync/internal/sync"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const routerTestSecret = "router-test-secret"

func setupRouterTest(t *testing.T, secret string) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger.L = zap.NewNop()

	dsn := fmt.Sprintf("file:router_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

	cfg := &config.Config{}
	cfg.Server.Mode = "debug"
	cfg.Sync = config.SyncConfig{
		Role:            constants.SyncRoleSecondary,
		SiteID:          "site-b",
		SharedSecret:    secret,
		ProductsEnabled: true,
		OrdersEnabled:   true,
	}

	c := provider.NewContainer(cfg)
	return SetupRouter(cfg, c), db
}

// signedRequest 按出站签名方式构造一个合法的入站请求
func signedRequest(t *testing.T, method, path string, body []byte) *http.Request {
	t.Helper()
	signer := llsync.NewSigner(routerTestSecret, 0)
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature, err := signer.Sign(method, path, timestamp, body)
	if err != nil {
		t.Fatalf("sign request failed: %v", err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(llsync.HeaderSiteID, "site-a")
	req.Header.Set(llsync.HeaderTimestamp, timestamp)
	req.Header.Set(llsync.HeaderSignature, signature)
	req.Header.Set(llsync.HeaderMarker, "1")
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response %q failed: %v", w.Body.String(), err)
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := setupRouterTest(t, routerTestSecret)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["status"] != "ok" {
		t.Fatalf("health body want status ok got %v", resp)
	}
}

func TestSyncRejectsUnsignedRequest(t *testing.T) {
	r, _ := setupRouterTest(t, routerTestSecret)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/licenceland/v1/sync/product", bytes.NewReader([]byte(`{}`)))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status want 403 got %d", w.Code)
	}
	if resp := decodeBody(t, w); resp["error"] != "missing_signature" {
		t.Fatalf("error want missing_signature got %v", resp["error"])
	}
}

func TestSyncRejectsTamperedBody(t *testing.T) {
	r, _ := setupRouterTest(t, routerTestSecret)

	signer := llsync.NewSigner(routerTestSecret, 0)
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature, err := signer.Sign(http.MethodPost, "/licenceland/v1/sync/product", timestamp, []byte(`{"sku":"WIN11-PRO"}`))
	if err != nil {
		t.Fatalf("sign request failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/licenceland/v1/sync/product", bytes.NewReader([]byte(`{"sku":"EVIL-SKU"}`)))
	req.Header.Set(llsync.HeaderSiteID, "site-a")
	req.Header.Set(llsync.HeaderTimestamp, timestamp)
	req.Header.Set(llsync.HeaderSignature, signature)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status want 403 got %d", w.Code)
	}
	if resp := decodeBody(t, w); resp["error"] != "invalid_signature" {
		t.Fatalf("error want invalid_signature got %v", resp["error"])
	}
}

func TestSyncRejectsStaleTimestamp(t *testing.T) {
	r, _ := setupRouterTest(t, routerTestSecret)

	body := []byte(`{"sku":"WIN11-PRO"}`)
	signer := llsync.NewSigner(routerTestSecret, 0)
	timestamp := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	signature, err := signer.Sign(http.MethodPost, "/licenceland/v1/sync/product", timestamp, body)
	if err != nil {
		t.Fatalf("sign request failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/licenceland/v1/sync/product", bytes.NewReader(body))
	req.Header.Set(llsync.HeaderSiteID, "site-a")
	req.Header.Set(llsync.HeaderTimestamp, timestamp)
	req.Header.Set(llsync.HeaderSignature, signature)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status want 403 got %d", w.Code)
	}
	if resp := decodeBody(t, w); resp["error"] != "stale_timestamp" {
		t.Fatalf("error want stale_timestamp got %v", resp["error"])
	}
}

func TestSyncRejectsWhenSecretUnset(t *testing.T) {
	r, _ := setupRouterTest(t, "")

	req := signedRequest(t, http.MethodPost, "/licenceland/v1/sync/product", []byte(`{"sku":"WIN11-PRO"}`))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status want 403 got %d", w.Code)
	}
	if resp := decodeBody(t, w); resp["error"] != "missing_secret" {
		t.Fatalf("error want missing_secret got %v", resp["error"])
	}
}

func TestSyncProductRoundTrip(t *testing.T) {
	r, db := setupRouterTest(t, routerTestSecret)

	body := []byte(`{
		"origin_id": "101",
		"sku": "WIN11-PRO",
		"name": "Windows 11 Pro",
		"status": "publish",
		"regular_price": "129.99",
		"sale_price": "89.99",
		"categories": ["Operating Systems"]
	}`)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, http.MethodPost, "/licenceland/v1/sync/product", body))

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d body %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["ok"] != true || resp["sku"] != "WIN11-PRO" {
		t.Fatalf("unexpected response: %v", resp)
	}

	var product models.Product
	if err := db.Where("sku = ?", "WIN11-PRO").First(&product).Error; err != nil {
		t.Fatalf("mirrored product not found: %v", err)
	}
	if product.OriginSite != "site-a" || product.OriginID != "101" {
		t.Fatalf("unexpected product origin: %+v", product)
	}

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, signedRequest(t, http.MethodDelete, "/licenceland/v1/sync/product/WIN11-PRO", nil))

	if w2.Code != http.StatusOK {
		t.Fatalf("delete status want 200 got %d body %s", w2.Code, w2.Body.String())
	}
	if err := db.Where("sku = ?", "WIN11-PRO").First(&models.Product{}).Error; err != gorm.ErrRecordNotFound {
		t.Fatalf("product should be soft deleted, got err %v", err)
	}
}

func TestSyncProductMissingSKU(t *testing.T) {
	r, _ := setupRouterTest(t, routerTestSecret)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, http.MethodPost, "/licenceland/v1/sync/product", []byte(`{"sku":"  "}`)))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status want 400 got %d", w.Code)
	}
	if resp := decodeBody(t, w); resp["error"] != "missing_sku" {
		t.Fatalf("error want missing_sku got %v", resp["error"])
	}
}

func TestDeleteUnknownProduct(t *testing.T) {
	r, _ := setupRouterTest(t, routerTestSecret)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, http.MethodDelete, "/licenceland/v1/sync/product/GHOST-SKU", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status want 404 got %d", w.Code)
	}
	if resp := decodeBody(t, w); resp["error"] != "product_not_found" {
		t.Fatalf("error want product_not_found got %v", resp["error"])
	}
}

func TestAppendKeysForUnknownProduct(t *testing.T) {
	r, _ := setupRouterTest(t, routerTestSecret)

	body := []byte(`{"sku":"GHOST-SKU","keys":["K-1","K-2"]}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, http.MethodPost, "/licenceland/v1/sync/keys/append", body))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status want 404 got %d", w.Code)
	}
	if resp := decodeBody(t, w); resp["error"] != "product_not_found" {
		t.Fatalf("error want product_not_found got %v", resp["error"])
	}
}

func TestAppendKeysRoundTrip(t *testing.T) {
	r, db := setupRouterTest(t, routerTestSecret)

	product := &models.Product{
		SKU:        "OFFICE21-HB",
		Name:       "Office 2021 Home & Business",
		Status:     constants.ProductStatusPublish,
		KeyTracked: true,
		AutoAssign: true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product failed: %v", err)
	}

	body := []byte(`{"sku":"OFFICE21-HB","keys":["OFF-1","OFF-2","OFF-2"]}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, http.MethodPost, "/licenceland/v1/sync/keys/append", body))

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d body %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["ok"] != true || resp["added"] != float64(2) || resp["total"] != float64(2) {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestSyncOrderRequiresRemoteID(t *testing.T) {
	r, _ := setupRouterTest(t, routerTestSecret)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, http.MethodPost, "/licenceland/v1/sync/order", []byte(`{"order_no":"LL123"}`)))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status want 400 got %d", w.Code)
	}
	if resp := decodeBody(t, w); resp["error"] != "missing_order_id" {
		t.Fatalf("error want missing_order_id got %v", resp["error"])
	}
}

func TestResendOrderEmailRespondsSuccess(t *testing.T) {
	r, db := setupRouterTest(t, routerTestSecret)

	order := &models.Order{
		OrderNo:       "WC-42",
		ShopType:      constants.ShopTypeConsumer,
		Status:        constants.OrderStatusProcessing,
		CustomerEmail: "buyer@example.com",
		OriginSite:    "site-a",
		RemoteOrderID: "42",
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order failed: %v", err)
	}

	body := []byte(`{"remote_order_id":"42","email_type":"customer_invoice"}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, http.MethodPost, "/licenceland/v1/sync/order/resend", body))

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d body %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["success"] != true {
		t.Fatalf("expected success=true, got %v", resp)
	}
	if message, _ := resp["message"].(string); message == "" {
		t.Fatalf("expected message in response, got %v", resp)
	}
}

func TestSyncEscapedSKUInPath(t *testing.T) {
	r, db := setupRouterTest(t, routerTestSecret)

	product := &models.Product{
		SKU:    "SKU WITH SPACE",
		Name:   "Edge Case Licence",
		Status: constants.ProductStatusPublish,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product failed: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, http.MethodDelete, "/licenceland/v1/sync/product/SKU%20WITH%20SPACE", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d body %s", w.Code, w.Body.String())
	}
	if err := db.Where("sku = ?", "SKU WITH SPACE").First(&models.Product{}).Error; err != gorm.ErrRecordNotFound {
		t.Fatalf("product should be soft deleted, got err %v", err)
	}
}
