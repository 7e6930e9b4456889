package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/settlepay/internal/constants"
	"github.com/settlepay/internal/custody"
	"github.com/settlepay/internal/ledger"
	"github.com/settlepay/internal/models"
	"github.com/settlepay/internal/queue"
	"github.com/settlepay/internal/repository"
	"github.com/settlepay/internal/verifier"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"
	"gorm.io/gorm"
)

const testRootSecret = "settlement-test-root-secret"

func setupSettlementDB(t *testing.T) (*gorm.DB, *repository.GormPaymentRepository) {
	t.Helper()
	dsn := fmt.Sprintf("file:settlement_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Payment{}, &models.SweepAuditLog{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db, repository.NewPaymentRepository(db)
}

func newTestDeriver(t *testing.T) *custody.Deriver {
	t.Helper()
	deriver, err := custody.NewDeriver(testRootSecret)
	if err != nil {
		t.Fatalf("new deriver failed: %v", err)
	}
	return deriver
}

func createSettlementPayment(t *testing.T, repo repository.PaymentRepository, deriver *custody.Deriver, id, status, amount string, mutate func(p *models.Payment)) *models.Payment {
	t.Helper()
	address, err := deriver.Address("merchant-1", id)
	if err != nil {
		t.Fatalf("derive address failed: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	payment := &models.Payment{
		ID:             id,
		MerchantID:     "merchant-1",
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
	if err := repo.Create(payment); err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	return payment
}

func mustGetPayment(t *testing.T, repo repository.PaymentRepository, id string) *models.Payment {
	t.Helper()
	payment, err := repo.GetByID(id)
	if err != nil || payment == nil {
		t.Fatalf("get payment %s failed: %v", id, err)
	}
	return payment
}

type fakeSubmission struct {
	Source      string
	Destination string
	Asset       models.Asset
	Amount      decimal.Decimal
}

// fakeLedger 内存账本
type fakeLedger struct {
	mu          sync.Mutex
	balances    map[string]decimal.Decimal
	missing     map[string]bool
	transfers   map[string][]ledger.Transfer
	balanceErr  map[string]error
	submitErr   map[string]error
	landThenErr map[string]error
	statusErr   error
	ignoreAfter bool
	prepared    map[string]fakeSubmission
	landed      map[string]bool
	submitted   []fakeSubmission
	balanceHits map[string]int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances:    map[string]decimal.Decimal{},
		missing:     map[string]bool{},
		transfers:   map[string][]ledger.Transfer{},
		balanceErr:  map[string]error{},
		submitErr:   map[string]error{},
		landThenErr: map[string]error{},
		prepared:    map[string]fakeSubmission{},
		landed:      map[string]bool{},
		balanceHits: map[string]int{},
	}
}

func (f *fakeLedger) setBalance(address, amount string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[address] = decimal.RequireFromString(amount)
}

func (f *fakeLedger) addTransfer(address string, transfer ledger.Transfer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if transfer.To == "" {
		transfer.To = address
	}
	f.transfers[address] = append(f.transfers[address], transfer)
}

func (f *fakeLedger) Balance(_ context.Context, address string, _ models.Asset) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balanceHits[address]++
	if err := f.balanceErr[address]; err != nil {
		return decimal.Zero, err
	}
	if f.missing[address] {
		return decimal.Zero, ledger.ErrAccountNotFound
	}
	return f.balances[address], nil
}

func (f *fakeLedger) Payments(_ context.Context, address, cursor string, limit int) ([]ledger.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[address] {
		return nil, ledger.ErrAccountNotFound
	}
	out := make([]ledger.Transfer, 0)
	for _, transfer := range f.transfers[address] {
		if !f.ignoreAfter && ledger.CompareCursor(transfer.Cursor, cursor) <= 0 {
			continue
		}
		out = append(out, transfer)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeLedger) PreparePayment(_ context.Context, signer *keypair.Full, destination string, asset models.Asset, amount decimal.Decimal) (ledger.PreparedTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash := fmt.Sprintf("sweep-tx-%d", len(f.prepared)+1)
	f.prepared[hash] = fakeSubmission{
		Source:      signer.Address(),
		Destination: destination,
		Asset:       asset,
		Amount:      amount,
	}
	return ledger.PreparedTx{Hash: hash, Envelope: hash, ValidUntil: time.Now().Add(5 * time.Minute)}, nil
}

// SubmitPrepared submitErr 表示未入账的失败，landThenErr 表示已入账但响应丢失
func (f *fakeLedger) SubmitPrepared(_ context.Context, tx ledger.PreparedTx) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.prepared[tx.Hash]
	if !ok {
		return "", fmt.Errorf("unknown transaction %s", tx.Hash)
	}
	if err := f.submitErr[sub.Source]; err != nil {
		return "", err
	}
	if f.landed[tx.Hash] {
		return "", fmt.Errorf("tx_bad_seq: %s already applied", tx.Hash)
	}
	f.landed[tx.Hash] = true
	f.submitted = append(f.submitted, sub)
	if err := f.landThenErr[sub.Source]; err != nil {
		delete(f.landThenErr, sub.Source)
		return "", err
	}
	return tx.Hash, nil
}

func (f *fakeLedger) TransactionStatus(_ context.Context, hash string) (ledger.TxStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return ledger.TxStatus{}, f.statusErr
	}
	if !f.landed[hash] {
		return ledger.TxStatus{}, ledger.ErrTransactionNotFound
	}
	return ledger.TxStatus{Hash: hash, Successful: true}, nil
}

func (f *fakeLedger) submissions() []fakeSubmission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeSubmission(nil), f.submitted...)
}

func nativeTransfer(cursor, txHash, amount string) ledger.Transfer {
	return ledger.Transfer{
		Cursor:       cursor,
		TxHash:       txHash,
		From:         "GSENDER",
		Asset:        models.NewAsset(constants.AssetCodeNative, ""),
		Amount:       decimal.RequireFromString(amount),
		Transferable: true,
	}
}

// recordingDispatcher 记录派发调用
type recordingDispatcher struct {
	mu        sync.Mutex
	verifies  []queue.PaymentVerifyPayload
	notifies  []queue.PaymentSettledPayload
	verifyErr error
}

func (d *recordingDispatcher) DispatchVerification(_ context.Context, payload queue.PaymentVerifyPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.verifies = append(d.verifies, payload)
	return d.verifyErr
}

func (d *recordingDispatcher) NotifySettled(_ context.Context, payload queue.PaymentSettledPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifies = append(d.notifies, payload)
	return nil
}

// recordingAuditor 记录审计事件
type recordingAuditor struct {
	mu      sync.Mutex
	actions []string
	err     error
}

func (a *recordingAuditor) Record(_ context.Context, entry SweepAuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, entry.Action)
	return a.err
}

// scriptedVerifier 按脚本返回结果的核验网关
type scriptedVerifier struct {
	mu          sync.Mutex
	submitErrs  []error
	submitCalls int
	statuses    []verifier.ReceiptStatus
	statusErrs  []error
	statusCalls int
	requests    []verifier.Request
}

func (v *scriptedVerifier) Submit(ctx context.Context, req verifier.Request) (verifier.Receipt, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return verifier.Receipt{}, err
	}
	idx := v.submitCalls
	v.submitCalls++
	v.requests = append(v.requests, req)
	if idx < len(v.submitErrs) && v.submitErrs[idx] != nil {
		return verifier.Receipt{}, v.submitErrs[idx]
	}
	return verifier.Receipt{ID: fmt.Sprintf("receipt-%d", idx+1), Status: verifier.ReceiptPending}, nil
}

func (v *scriptedVerifier) Status(ctx context.Context, receiptID string) (verifier.ReceiptStatus, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return verifier.ReceiptStatus{}, err
	}
	idx := v.statusCalls
	v.statusCalls++
	if idx < len(v.statusErrs) && v.statusErrs[idx] != nil {
		return verifier.ReceiptStatus{}, v.statusErrs[idx]
	}
	if idx < len(v.statuses) {
		status := v.statuses[idx]
		status.ID = receiptID
		return status, nil
	}
	return verifier.ReceiptStatus{ID: receiptID, Status: verifier.ReceiptPending}, nil
}
