package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/settlepay/internal/config"
	"github.com/settlepay/internal/constants"
	"github.com/settlepay/internal/custody"
	handlershared "github.com/settlepay/internal/http/handlers/shared"
	"github.com/settlepay/internal/ledger"
	"github.com/settlepay/internal/models"
	"github.com/settlepay/internal/provider"
	"github.com/settlepay/internal/queue"
	"github.com/settlepay/internal/repository"
	"github.com/settlepay/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"
	"gorm.io/gorm"
)

type stubLedger struct {
	balances map[string]decimal.Decimal
}

func (l *stubLedger) Balance(_ context.Context, address string, _ models.Asset) (decimal.Decimal, error) {
	if balance, ok := l.balances[address]; ok {
		return balance, nil
	}
	return decimal.Zero, ledger.ErrAccountNotFound
}

func (l *stubLedger) Payments(context.Context, string, string, int) ([]ledger.Transfer, error) {
	return nil, nil
}

func (l *stubLedger) PreparePayment(context.Context, *keypair.Full, string, models.Asset, decimal.Decimal) (ledger.PreparedTx, error) {
	return ledger.PreparedTx{}, fmt.Errorf("prepare not expected")
}

func (l *stubLedger) SubmitPrepared(context.Context, ledger.PreparedTx) (string, error) {
	return "", fmt.Errorf("submit not expected")
}

func (l *stubLedger) TransactionStatus(context.Context, string) (ledger.TxStatus, error) {
	return ledger.TxStatus{}, ledger.ErrTransactionNotFound
}

type stubDispatcher struct {
	mu       sync.Mutex
	verifies []queue.PaymentVerifyPayload
	settled  []queue.PaymentSettledPayload
}

func (d *stubDispatcher) DispatchVerification(_ context.Context, payload queue.PaymentVerifyPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.verifies = append(d.verifies, payload)
	return nil
}

func (d *stubDispatcher) NotifySettled(_ context.Context, payload queue.PaymentSettledPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settled = append(d.settled, payload)
	return nil
}

type adminFixture struct {
	router     *gin.Engine
	repo       *repository.GormPaymentRepository
	deriver    *custody.Deriver
	ledger     *stubLedger
	dispatcher *stubDispatcher
}

func setupAdminHandlerTest(t *testing.T) *adminFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:admin_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Payment{}, &models.SweepAuditLog{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	deriver, err := custody.NewDeriver("admin-handler-root-secret")
	if err != nil {
		t.Fatalf("new deriver failed: %v", err)
	}

	paymentRepo := repository.NewPaymentRepository(db)
	auditService := service.NewSweepAuditService(repository.NewSweepAuditRepository(db))
	ledgerClient := &stubLedger{balances: map[string]decimal.Decimal{}}
	dispatcher := &stubDispatcher{}

	h := New(&provider.Container{
		DB:                  db,
		PaymentRepo:         paymentRepo,
		SweepAuditService:   auditService,
		ObserverService:     service.NewObserverService(config.ObserverConfig{}, paymentRepo, ledgerClient, dispatcher),
		SweepService:        service.NewSweepService(config.SweepConfig{DefaultLimit: 10, MaxLimit: 20}, "", paymentRepo, ledgerClient, deriver, auditService),
		PaymentAdminService: service.NewPaymentAdminService(paymentRepo, dispatcher),
	})

	r := gin.New()
	group := r.Group("/api/v1/admin")
	group.Use(func(c *gin.Context) {
		c.Set(handlershared.OperatorContextKey, "ops-test")
		c.Next()
	})
	group.GET("/me", h.GetCurrentOperator)
	group.GET("/payments", h.GetAdminPayments)
	group.GET("/payments/:id", h.GetAdminPayment)
	group.POST("/payments/:id/verify", h.VerifyAdminPayment)
	group.POST("/sweeps", h.TriggerSweep)
	group.GET("/sweeps/audit", h.GetSweepAuditLogs)
	group.POST("/observer/tick", h.TriggerObserverTick)

	return &adminFixture{router: r, repo: paymentRepo, deriver: deriver, ledger: ledgerClient, dispatcher: dispatcher}
}

func (f *adminFixture) seedPayment(t *testing.T, id, status, amount string, mutate func(p *models.Payment)) *models.Payment {
	t.Helper()
	address, err := f.deriver.Address("merchant-a", id)
	if err != nil {
		t.Fatalf("derive address failed: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	payment := &models.Payment{
		ID:             id,
		MerchantID:     "merchant-a",
		ExpectedAmount: amount,
		AssetCode:      constants.AssetCodeNative,
		CustodyAddress: address,
		Status:         status,
		ExpiresAt:      now.Add(time.Hour),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if mutate != nil {
		mutate(payment)
	}
	if err := f.repo.Create(payment); err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	return payment
}

type apiResponse struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
	Pagination *struct {
		Total int64 `json:"total"`
	} `json:"pagination"`
}

func (f *adminFixture) do(t *testing.T, method, path string, body interface{}) apiResponse {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", "en-US")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("http status want 200 got %d", w.Code)
	}
	var resp apiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v body=%s", err, w.Body.String())
	}
	return resp
}

func TestGetAdminPaymentsFilters(t *testing.T) {
	f := setupAdminHandlerTest(t)
	f.seedPayment(t, "pay-list-1", constants.PaymentStatusPending, "10", nil)
	f.seedPayment(t, "pay-list-2", constants.PaymentStatusConfirmed, "10", nil)
	f.seedPayment(t, "pay-list-3", constants.PaymentStatusConfirmed, "10", func(p *models.Payment) {
		p.Swept = true
	})

	resp := f.do(t, http.MethodGet, "/api/v1/admin/payments?status=confirmed&swept=false", nil)
	if resp.StatusCode != 0 || resp.Pagination == nil || resp.Pagination.Total != 1 {
		t.Fatalf("unexpected list response: %+v", resp)
	}
	var items []models.Payment
	if err := json.Unmarshal(resp.Data, &items); err != nil {
		t.Fatalf("unmarshal items failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != "pay-list-2" {
		t.Fatalf("unexpected items: %+v", items)
	}

	bad := f.do(t, http.MethodGet, "/api/v1/admin/payments?swept=maybe", nil)
	if bad.StatusCode != 400 {
		t.Fatalf("invalid bool filter should be rejected, got %d", bad.StatusCode)
	}
}

func TestGetAdminPaymentNotFound(t *testing.T) {
	f := setupAdminHandlerTest(t)
	resp := f.do(t, http.MethodGet, "/api/v1/admin/payments/missing", nil)
	if resp.StatusCode != 404 || resp.Msg != "payment not found" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestVerifyAdminPayment(t *testing.T) {
	f := setupAdminHandlerTest(t)
	f.seedPayment(t, "pay-verify-ok", constants.PaymentStatusConfirmed, "25", func(p *models.Payment) {
		p.TransactionHash = "tx-verify-ok"
		p.VerificationError = "exhausted"
	})
	f.seedPayment(t, "pay-verify-pending", constants.PaymentStatusPending, "25", nil)

	resp := f.do(t, http.MethodPost, "/api/v1/admin/payments/pay-verify-ok/verify", nil)
	if resp.StatusCode != 0 {
		t.Fatalf("verify should succeed, got %+v", resp)
	}
	if len(f.dispatcher.verifies) != 1 {
		t.Fatalf("expected one dispatched verification, got %d", len(f.dispatcher.verifies))
	}
	payload := f.dispatcher.verifies[0]
	if payload.PaymentID != "pay-verify-ok" || payload.TxHash != "tx-verify-ok" || payload.Amount != "25" {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	rejected := f.do(t, http.MethodPost, "/api/v1/admin/payments/pay-verify-pending/verify", nil)
	if rejected.StatusCode != 400 {
		t.Fatalf("pending payment should not be verifiable, got %+v", rejected)
	}
}

func TestTriggerSweepDryRunAndAudit(t *testing.T) {
	f := setupAdminHandlerTest(t)
	f.seedPayment(t, "pay-sweep-1", constants.PaymentStatusConfirmed, "12.5", nil)
	f.seedPayment(t, "pay-sweep-2", constants.PaymentStatusOverpaid, "7.5", nil)
	f.seedPayment(t, "pay-sweep-3", constants.PaymentStatusPending, "1", nil)

	resp := f.do(t, http.MethodPost, "/api/v1/admin/sweeps", SweepRequest{DryRun: true})
	if resp.StatusCode != 0 {
		t.Fatalf("dry run should succeed, got %+v", resp)
	}
	var result service.SweepResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("unmarshal sweep result failed: %v", err)
	}
	if !result.DryRun || result.Selected != 2 || result.AddressesSwept != 2 || len(result.TxHashes) != 0 {
		t.Fatalf("unexpected dry run result: %+v", result)
	}
	if !decimal.RequireFromString(result.TotalAmount).Equal(decimal.NewFromInt(20)) {
		t.Fatalf("total amount want 20 got %s", result.TotalAmount)
	}
	payment, err := f.repo.GetByID("pay-sweep-1")
	if err != nil || payment == nil || payment.Swept {
		t.Fatalf("dry run must not mark swept: %+v %v", payment, err)
	}

	audit := f.do(t, http.MethodGet, "/api/v1/admin/sweeps/audit?run_id="+result.RunID, nil)
	if audit.StatusCode != 0 || audit.Pagination == nil || audit.Pagination.Total != 2 {
		t.Fatalf("expected triggered+completed audit rows, got %+v", audit)
	}
}

func TestTriggerSweepErrors(t *testing.T) {
	f := setupAdminHandlerTest(t)

	invalid := f.do(t, http.MethodPost, "/api/v1/admin/sweeps", SweepRequest{Limit: -1, DryRun: true})
	if invalid.StatusCode != 400 {
		t.Fatalf("negative limit should be rejected, got %+v", invalid)
	}

	noVault := f.do(t, http.MethodPost, "/api/v1/admin/sweeps", SweepRequest{})
	if noVault.StatusCode != 503 || noVault.Msg != "vault address is not configured" {
		t.Fatalf("missing vault should be reported, got %+v", noVault)
	}
}

func TestTriggerObserverTick(t *testing.T) {
	f := setupAdminHandlerTest(t)
	payment := f.seedPayment(t, "pay-tick-1", constants.PaymentStatusPending, "10", nil)
	f.ledger.balances[payment.CustodyAddress] = decimal.NewFromInt(10)

	resp := f.do(t, http.MethodPost, "/api/v1/admin/observer/tick", nil)
	if resp.StatusCode != 0 {
		t.Fatalf("tick should succeed, got %+v", resp)
	}
	var result service.ObserverTickResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("unmarshal tick result failed: %v", err)
	}
	if result.Checked != 1 || result.Settled != 1 {
		t.Fatalf("unexpected tick result: %+v", result)
	}
	updated, err := f.repo.GetByID("pay-tick-1")
	if err != nil || updated == nil || updated.Status != constants.PaymentStatusConfirmed {
		t.Fatalf("payment should be confirmed: %+v %v", updated, err)
	}
}

func TestGetCurrentOperatorWithoutRBAC(t *testing.T) {
	f := setupAdminHandlerTest(t)
	resp := f.do(t, http.MethodGet, "/api/v1/admin/me", nil)
	if resp.StatusCode != 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	var data struct {
		Operator    string   `json:"operator"`
		Roles       []string `json:"roles"`
		RBACEnabled bool     `json:"rbac_enabled"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if data.Operator != "ops-test" || data.RBACEnabled || len(data.Roles) != 0 {
		t.Fatalf("unexpected operator payload: %+v", data)
	}
}
