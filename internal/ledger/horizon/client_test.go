package horizon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/settlepay/internal/constants"
	"github.com/settlepay/internal/ledger"
	"github.com/settlepay/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/protocols/horizon/base"
	"github.com/stellar/go/protocols/horizon/operations"
	"github.com/stellar/go/support/render/problem"
	"github.com/stellar/go/txnbuild"
)

const testIssuer = "GDUKMGUGDZQK6YHYA5Z6AY2G4XDSZPSZ3SW5UN3ARVMO6QSRDWP5YLEX"

type fakeAPI struct {
	account     hProtocol.Account
	accountErr  error
	page        operations.OperationsPage
	paymentsErr error
	lastRequest horizonclient.OperationRequest
	submitted   string
	submitHash  string
	submitErr   error
	txDetail    hProtocol.Transaction
	txErr       error
}

func (f *fakeAPI) AccountDetail(request horizonclient.AccountRequest) (hProtocol.Account, error) {
	if f.accountErr != nil {
		return hProtocol.Account{}, f.accountErr
	}
	account := f.account
	if account.AccountID == "" {
		account.AccountID = request.AccountID
	}
	return account, nil
}

func (f *fakeAPI) Payments(request horizonclient.OperationRequest) (operations.OperationsPage, error) {
	f.lastRequest = request
	return f.page, f.paymentsErr
}

func (f *fakeAPI) SubmitTransactionXDR(envelopeXdr string) (hProtocol.Transaction, error) {
	f.submitted = envelopeXdr
	if f.submitErr != nil {
		return hProtocol.Transaction{}, f.submitErr
	}
	return hProtocol.Transaction{Hash: f.submitHash}, nil
}

func (f *fakeAPI) TransactionDetail(string) (hProtocol.Transaction, error) {
	return f.txDetail, f.txErr
}

func notFoundErr() error {
	return &horizonclient.Error{Problem: problem.P{Status: 404}}
}

func TestBalanceMatchesAsset(t *testing.T) {
	api := &fakeAPI{}
	api.account.Balances = []hProtocol.Balance{
		{Balance: "12.5000000", Asset: base.Asset{Type: "native"}},
		{Balance: "40.0000000", Asset: base.Asset{Type: "credit_alphanum4", Code: "USDC", Issuer: testIssuer}},
	}
	client := newClient(api, "Test SDF Network ; September 2015", 100, 300)

	got, err := client.Balance(context.Background(), "GADDR", models.NewAsset("USDC", testIssuer))
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("40")) {
		t.Fatalf("unexpected balance %s", got)
	}

	native, err := client.Balance(context.Background(), "GADDR", models.NewAsset(constants.AssetCodeNative, ""))
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if !native.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected native balance %s", native)
	}

	missing, err := client.Balance(context.Background(), "GADDR", models.NewAsset("EURT", testIssuer))
	if err != nil || !missing.IsZero() {
		t.Fatalf("expected zero for untrusted asset, got %s err=%v", missing, err)
	}
}

func TestBalanceAccountNotFound(t *testing.T) {
	client := newClient(&fakeAPI{accountErr: notFoundErr()}, "pass", 100, 300)
	_, err := client.Balance(context.Background(), "GADDR", models.NewAsset("XLM", ""))
	if !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestPaymentsMapsRecords(t *testing.T) {
	api := &fakeAPI{}
	api.page.Embedded.Records = []operations.Operation{
		operations.CreateAccount{
			Base:            operations.Base{PT: "100", TransactionHash: "tx-create", TransactionSuccessful: true},
			StartingBalance: "5.0000000",
			Funder:          "GFUNDER",
			Account:         "GADDR",
		},
		operations.Payment{
			Base:   operations.Base{PT: "200", TransactionHash: "tx-pay", TransactionSuccessful: true},
			Asset:  base.Asset{Type: "credit_alphanum4", Code: "USDC", Issuer: testIssuer},
			From:   "GSENDER",
			To:     "GADDR",
			Amount: "40.0000000",
		},
		operations.Payment{
			Base:   operations.Base{PT: "300", TransactionHash: "tx-failed", TransactionSuccessful: false},
			Asset:  base.Asset{Type: "native"},
			From:   "GSENDER",
			To:     "GADDR",
			Amount: "1.0000000",
		},
	}
	client := newClient(api, "pass", 100, 300)

	transfers, err := client.Payments(context.Background(), "GADDR", "50", 10)
	if err != nil {
		t.Fatalf("payments failed: %v", err)
	}
	if api.lastRequest.Cursor != "50" || api.lastRequest.Order != horizonclient.OrderAsc || api.lastRequest.Limit != 10 {
		t.Fatalf("unexpected request %+v", api.lastRequest)
	}
	if len(transfers) != 3 {
		t.Fatalf("expected 3 transfers, got %d", len(transfers))
	}
	if !transfers[0].Transferable || !transfers[0].Asset.IsNative() || transfers[0].From != "GFUNDER" {
		t.Fatalf("unexpected create account transfer %+v", transfers[0])
	}
	if transfers[1].TxHash != "tx-pay" || !transfers[1].Asset.Equal(models.NewAsset("USDC", testIssuer)) {
		t.Fatalf("unexpected payment transfer %+v", transfers[1])
	}
	if transfers[2].Transferable || transfers[2].Cursor != "300" {
		t.Fatalf("failed transaction should only carry cursor, got %+v", transfers[2])
	}
}

func TestPaymentsAccountNotFound(t *testing.T) {
	client := newClient(&fakeAPI{paymentsErr: notFoundErr()}, "pass", 100, 300)
	if _, err := client.Payments(context.Background(), "GADDR", "", 10); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestPreparePaymentSignsSingleOperation(t *testing.T) {
	signer, err := keypair.Random()
	if err != nil {
		t.Fatalf("random keypair failed: %v", err)
	}
	vault, _ := keypair.Random()
	passphrase := "Test SDF Network ; September 2015"
	api := &fakeAPI{}
	client := newClient(api, passphrase, 100, 300)

	before := time.Now().UTC()
	prepared, err := client.PreparePayment(context.Background(), signer, vault.Address(), models.NewAsset("USDC", testIssuer), decimal.RequireFromString("40"))
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if api.submitted != "" {
		t.Fatalf("prepare must not submit")
	}
	if len(prepared.Hash) != 64 || prepared.Envelope == "" {
		t.Fatalf("unexpected prepared tx %+v", prepared)
	}
	if prepared.ValidUntil.Before(before.Add(299*time.Second)) || prepared.ValidUntil.After(before.Add(302*time.Second)) {
		t.Fatalf("unexpected valid until %s", prepared.ValidUntil)
	}

	generic, err := txnbuild.TransactionFromXDR(prepared.Envelope)
	if err != nil {
		t.Fatalf("decode envelope failed: %v", err)
	}
	tx, ok := generic.Transaction()
	if !ok {
		t.Fatalf("expected a plain transaction")
	}
	hash, err := tx.HashHex(passphrase)
	if err != nil || hash != prepared.Hash {
		t.Fatalf("hash mismatch: %s vs %s err=%v", hash, prepared.Hash, err)
	}
	ops := tx.Operations()
	if len(ops) != 1 {
		t.Fatalf("expected one operation, got %d", len(ops))
	}
	payment, ok := ops[0].(*txnbuild.Payment)
	if !ok {
		t.Fatalf("expected payment operation, got %T", ops[0])
	}
	if payment.Destination != vault.Address() || payment.Amount != "40.0000000" {
		t.Fatalf("unexpected payment %+v", payment)
	}
	if len(tx.Signatures()) != 1 {
		t.Fatalf("expected one signature, got %d", len(tx.Signatures()))
	}
}

func TestSubmitPreparedSendsEnvelope(t *testing.T) {
	api := &fakeAPI{}
	client := newClient(api, "pass", 100, 300)
	prepared := ledger.PreparedTx{Hash: "hash-1", Envelope: "AAAA"}

	hash, err := client.SubmitPrepared(context.Background(), prepared)
	if err != nil || hash != "hash-1" {
		t.Fatalf("unexpected submit result hash=%s err=%v", hash, err)
	}
	if api.submitted != "AAAA" {
		t.Fatalf("envelope not submitted, got %q", api.submitted)
	}

	api.submitErr = errors.New("504 gateway timeout")
	if _, err := client.SubmitPrepared(context.Background(), prepared); err == nil {
		t.Fatalf("expected submit error")
	}
	if _, err := client.SubmitPrepared(context.Background(), ledger.PreparedTx{Hash: "h"}); err == nil {
		t.Fatalf("empty envelope must be rejected")
	}
}

func TestTransactionStatus(t *testing.T) {
	client := newClient(&fakeAPI{txDetail: hProtocol.Transaction{Hash: "h", Successful: true, Ledger: 7}}, "pass", 100, 300)
	status, err := client.TransactionStatus(context.Background(), "h")
	if err != nil || !status.Successful || status.Ledger != 7 {
		t.Fatalf("unexpected status %+v err=%v", status, err)
	}

	missing := newClient(&fakeAPI{txErr: notFoundErr()}, "pass", 100, 300)
	if _, err := missing.TransactionStatus(context.Background(), "h"); !errors.Is(err, ledger.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}
