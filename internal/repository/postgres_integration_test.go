//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/settlepay/internal/constants"
	"github.com/settlepay/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := []interface{}{
		&models.Payment{},
		&models.SweepAuditLog{},
	}
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := db.AutoMigrate(cleanupModels...); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func createPostgresPayment(t *testing.T, repo *GormPaymentRepository, id, address, status string, createdAt time.Time) {
	t.Helper()
	if err := repo.Create(&models.Payment{
		ID:             id,
		MerchantID:     "pg-merchant",
		ExpectedAmount: "10",
		AssetCode:      constants.AssetCodeNative,
		CustodyAddress: address,
		Status:         status,
		ExpiresAt:      createdAt.Add(time.Hour),
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}); err != nil {
		t.Fatalf("create payment %s failed: %v", id, err)
	}
}

func TestPostgresPaymentObservationCAS(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewPaymentRepository(db)
	now := time.Now().UTC().Truncate(time.Second)
	createPostgresPayment(t, repo, "pg-pay-1", "GPGADDRESS1", constants.PaymentStatusPending, now)

	applied, err := repo.UpdateObservation(ObservationUpdate{
		ID:             "pg-pay-1",
		FromStatus:     constants.PaymentStatusPending,
		FromCursor:     "",
		Status:         constants.PaymentStatusConfirmed,
		Cursor:         "120",
		TxHash:         "pg-tx-1",
		ReceivedAmount: "10.0000000",
		ConfirmedAt:    &now,
		UpdatedAt:      now,
	})
	if err != nil || !applied {
		t.Fatalf("first observation should apply: applied=%v err=%v", applied, err)
	}

	applied, err = repo.UpdateObservation(ObservationUpdate{
		ID:         "pg-pay-1",
		FromStatus: constants.PaymentStatusPending,
		FromCursor: "",
		Status:     constants.PaymentStatusPartiallyPaid,
		Cursor:     "110",
		UpdatedAt:  now,
	})
	if err != nil || applied {
		t.Fatalf("stale snapshot must not apply: applied=%v err=%v", applied, err)
	}

	payment, err := repo.GetByID("pg-pay-1")
	if err != nil || payment == nil {
		t.Fatalf("get payment failed: %v", err)
	}
	if payment.Status != constants.PaymentStatusConfirmed || payment.LastCursor != "120" || payment.ConfirmedAt == nil {
		t.Fatalf("unexpected payment after CAS: %+v", payment)
	}
}

func TestPostgresSweepEligibleAndSearch(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewPaymentRepository(db)
	base := time.Now().UTC().Truncate(time.Second)
	createPostgresPayment(t, repo, "pg-sweep-b", "GPGSWEEPB", constants.PaymentStatusConfirmed, base.Add(2*time.Minute))
	createPostgresPayment(t, repo, "pg-sweep-a", "GPGSWEEPA", constants.PaymentStatusPaid, base)
	createPostgresPayment(t, repo, "pg-sweep-c", "GPGSWEEPC", constants.PaymentStatusPending, base)

	payments, err := repo.ListSweepEligible(10)
	if err != nil {
		t.Fatalf("list sweep eligible failed: %v", err)
	}
	if len(payments) != 2 || payments[0].ID != "pg-sweep-a" || payments[1].ID != "pg-sweep-b" {
		t.Fatalf("unexpected sweep order: %+v", payments)
	}

	marked, err := repo.MarkSwept("pg-sweep-a", "pg-sweep-tx", base)
	if err != nil || !marked {
		t.Fatalf("mark swept failed: marked=%v err=%v", marked, err)
	}
	marked, err = repo.MarkSwept("pg-sweep-a", "pg-sweep-tx-2", base)
	if err != nil || marked {
		t.Fatalf("second mark must be rejected: marked=%v err=%v", marked, err)
	}

	// ILIKE 大小写不敏感
	items, total, err := repo.ListAdmin(PaymentListFilter{Page: 1, PageSize: 10, Search: "gpgsweepb"})
	if err != nil {
		t.Fatalf("list admin failed: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != "pg-sweep-b" {
		t.Fatalf("unexpected search result: total=%d items=%+v", total, items)
	}
}
