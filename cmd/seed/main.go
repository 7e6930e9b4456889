package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/settlepay/internal/config"
	"github.com/settlepay/internal/constants"
	"github.com/settlepay/internal/custody"
	"github.com/settlepay/internal/logger"
	"github.com/settlepay/internal/models"
	"github.com/settlepay/internal/repository"
	"github.com/settlepay/internal/service"

	"github.com/google/uuid"
)

type seedOptions struct {
	merchantID string
	count      int
	amount     string
	assetCode  string
	issuer     string
	ttl        time.Duration
	operator   string
}

func main() {
	var opts seedOptions
	flag.StringVar(&opts.merchantID, "merchant", "demo-merchant", "商户ID")
	flag.IntVar(&opts.count, "count", 3, "创建的待支付收款数量")
	flag.StringVar(&opts.amount, "amount", "10", "每笔应收金额")
	flag.StringVar(&opts.assetCode, "asset", constants.AssetCodeNative, "资产代码")
	flag.StringVar(&opts.issuer, "issuer", "", "资产发行方（原生资产留空）")
	flag.DurationVar(&opts.ttl, "ttl", 2*time.Hour, "收款有效期")
	flag.StringVar(&opts.operator, "operator", "seed-operator", "签发运维令牌的操作人")
	flag.Parse()

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, false); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	deriver, err := custody.NewDeriver(cfg.Custody.RootSecret)
	if err != nil {
		stdLog.Fatalf("Failed to init custody deriver: %v", err)
	}
	amount, err := models.ParseAmount(opts.amount)
	if err != nil || !amount.IsPositive() {
		stdLog.Fatalf("Invalid amount %q: %v", opts.amount, err)
	}
	asset := models.NewAsset(opts.assetCode, opts.issuer)

	repo := repository.NewPaymentRepository(models.DB)
	now := time.Now().UTC()
	for i := 0; i < opts.count; i++ {
		paymentID := uuid.NewString()
		address, err := deriver.Address(opts.merchantID, paymentID)
		if err != nil {
			stdLog.Printf("Failed to derive custody address for %s: %v", paymentID, err)
			continue
		}
		payment := &models.Payment{
			ID:             paymentID,
			MerchantID:     strings.TrimSpace(opts.merchantID),
			ExpectedAmount: models.FormatAmount(amount),
			AssetCode:      asset.Code,
			AssetIssuer:    asset.Issuer,
			CustodyAddress: address,
			Status:         constants.PaymentStatusPending,
			ExpiresAt:      now.Add(opts.ttl),
		}
		if err := repo.Create(payment); err != nil {
			stdLog.Printf("Failed to create payment %s: %v", paymentID, err)
			continue
		}
		stdLog.Printf("Created payment: id=%s address=%s amount=%s asset=%s", paymentID, address, payment.ExpectedAmount, asset.String())
	}

	token, expiresAt, err := service.NewAuthService(&cfg.JWT).GenerateJWT(opts.operator)
	if err != nil {
		stdLog.Fatalf("Failed to issue operator token: %v", err)
	}
	fmt.Printf("operator=%s expires_at=%s\n", opts.operator, expiresAt.Format(time.RFC3339))
	fmt.Printf("Authorization: Bearer %s\n", token)
}
