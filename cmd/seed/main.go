package main

import (
	"fmt"

	"github.com/licenceland/licenceland-sync/internal/config"
	"github.com/licenceland/licenceland-sync/internal/constants"
	"github.com/licenceland/licenceland-sync/internal/logger"
	"github.com/licenceland/licenceland-sync/internal/models"

	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 添加商品
	products := []models.Product{
		{
			SKU:              "WIN11-PRO",
			Name:             "Windows 11 Pro Licence",
			Status:           constants.ProductStatusPublish,
			ShortDescription: "Retail licence key, instant email delivery",
			Description:      "Genuine Windows 11 Pro retail licence key. Delivered by email within minutes of purchase.",
			RegularPrice:     models.NewMoneyFromDecimal(decimal.NewFromFloat(129.99)),
			SalePrice:        models.NewMoneyFromDecimal(decimal.NewFromFloat(89.99)),
			KeyTracked:       true,
			AutoAssign:       true,
			EmailTemplate:    "Thank you for your purchase!\n\nYour Windows 11 Pro key:\n{cd_key}\n\nActivate via Settings > System > Activation.",
			Categories:       models.StringArray([]string{"Operating Systems"}),
			Tags:             models.StringArray([]string{"windows", "microsoft", "licence"}),
		},
		{
			SKU:              "OFFICE21-HB",
			Name:             "Office 2021 Home & Business",
			Status:           constants.ProductStatusPublish,
			ShortDescription: "One-time purchase for 1 PC or Mac",
			Description:      "Microsoft Office 2021 Home & Business licence key for one device.",
			RegularPrice:     models.NewMoneyFromDecimal(decimal.NewFromFloat(249.99)),
			KeyTracked:       true,
			AutoAssign:       true,
			EmailTemplate:    "Your Office 2021 Home & Business key:\n\n{cd_key}\n\nRedeem at setup.office.com.",
			Categories:       models.StringArray([]string{"Office Suites"}),
			Tags:             models.StringArray([]string{"office", "microsoft", "licence"}),
		},
		{
			SKU:                 "AV360-1Y",
			Name:                "Antivirus 360 - 1 Year / 3 Devices",
			Status:              constants.ProductStatusPublish,
			ShortDescription:    "1 year protection for up to 3 devices",
			RegularPrice:        models.NewMoneyFromDecimal(decimal.NewFromFloat(39.99)),
			KeyTracked:          true,
			AutoAssign:          true,
			StockAlertThreshold: 10,
			Categories:          models.StringArray([]string{"Security"}),
			Tags:                models.StringArray([]string{"antivirus", "security"}),
		},
		{
			SKU:              "USB-RECOVERY",
			Name:             "Recovery USB Stick",
			Status:           constants.ProductStatusPublish,
			ShortDescription: "Physical product, shipped by post",
			RegularPrice:     models.NewMoneyFromDecimal(decimal.NewFromFloat(19.99)),
			StockQuantity:    50,
			KeyTracked:       false,
			Categories:       models.StringArray([]string{"Hardware"}),
		},
	}

	for _, product := range products {
		var existing models.Product
		if err := models.DB.Where("sku = ?", product.SKU).First(&existing).Error; err != nil {
			if err := models.DB.Create(&product).Error; err != nil {
				stdLog.Printf("Failed to create product %s: %v", product.SKU, err)
			} else {
				stdLog.Printf("Created product: %s", product.SKU)
			}
		} else {
			stdLog.Printf("Product already exists: %s", product.SKU)
		}
	}

	// 为 key 托管商品灌入演示 key
	seedKeys := map[string]int{
		"WIN11-PRO":   8,
		"OFFICE21-HB": 5,
		"AV360-1Y":    12,
	}
	for sku, count := range seedKeys {
		var product models.Product
		if err := models.DB.Where("sku = ?", sku).First(&product).Error; err != nil {
			stdLog.Printf("Failed to load product %s: %v", sku, err)
			continue
		}
		var existing int64
		if err := models.DB.Model(&models.CDKey{}).Where("product_id = ?", product.ID).Count(&existing).Error; err != nil {
			stdLog.Printf("Failed to count keys for %s: %v", sku, err)
			continue
		}
		if existing > 0 {
			stdLog.Printf("Keys already seeded for %s", sku)
			continue
		}
		keys := make([]models.CDKey, 0, count)
		for i := 1; i <= count; i++ {
			keys = append(keys, models.CDKey{
				ProductID: product.ID,
				Key:       fmt.Sprintf("%s-DEMO-%04d", sku, i),
				Status:    constants.CDKeyStatusAvailable,
			})
		}
		if err := models.DB.Create(&keys).Error; err != nil {
			stdLog.Printf("Failed to seed keys for %s: %v", sku, err)
		} else {
			stdLog.Printf("Seeded %d keys for %s", count, sku)
		}
	}

	// 默认支付方式配置
	paymentDefaults := map[string][]string{
		constants.SettingKeyConsumerPayments: {"ideal", "creditcard", "paypal"},
		constants.SettingKeyBusinessPayments: {"invoice", "banktransfer"},
	}
	for key, methods := range paymentDefaults {
		var existing models.Setting
		if err := models.DB.Where("key = ?", key).First(&existing).Error; err == nil {
			stdLog.Printf("Setting already exists: %s", key)
			continue
		}
		values := make([]interface{}, 0, len(methods))
		for _, method := range methods {
			values = append(values, method)
		}
		setting := models.Setting{
			Key:       key,
			ValueJSON: models.JSON(map[string]interface{}{"methods": values}),
		}
		if err := models.DB.Create(&setting).Error; err != nil {
			stdLog.Printf("Failed to create setting %s: %v", key, err)
		} else {
			stdLog.Printf("Created setting: %s", key)
		}
	}

	stdLog.Println("Seed completed")
}
