package horizon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/settlepay/internal/config"
	"github.com/settlepay/internal/constants"
	"github.com/settlepay/internal/ledger"
	"github.com/settlepay/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/protocols/horizon/operations"
	"github.com/stellar/go/txnbuild"
)

// api 使用到的 horizonclient 方法子集
type api interface {
	AccountDetail(request horizonclient.AccountRequest) (hProtocol.Account, error)
	Payments(request horizonclient.OperationRequest) (operations.OperationsPage, error)
	SubmitTransactionXDR(envelopeXdr string) (hProtocol.Transaction, error)
	TransactionDetail(txHash string) (hProtocol.Transaction, error)
}

// Client Horizon 账本客户端
type Client struct {
	api               api
	networkPassphrase string
	baseFee           int64
	txTimeout         int64
}

// NewClient 创建 Horizon 客户端
func NewClient(cfg config.LedgerConfig) (*Client, error) {
	url := strings.TrimSpace(cfg.HorizonURL)
	if url == "" {
		return nil, errors.New("horizon url is empty")
	}
	passphrase := strings.TrimSpace(cfg.NetworkPassphrase)
	if passphrase == "" {
		return nil, errors.New("network passphrase is empty")
	}
	return newClient(&horizonclient.Client{
		HorizonURL: url,
		HTTP:       &http.Client{Timeout: cfg.Timeout()},
	}, passphrase, cfg.BaseFee, cfg.TxTimeoutSeconds), nil
}

func newClient(api api, passphrase string, baseFee, txTimeout int64) *Client {
	if baseFee < txnbuild.MinBaseFee {
		baseFee = txnbuild.MinBaseFee
	}
	if txTimeout <= 0 {
		txTimeout = 300
	}
	return &Client{
		api:               api,
		networkPassphrase: passphrase,
		baseFee:           baseFee,
		txTimeout:         txTimeout,
	}
}

// Balance 查询余额
func (c *Client) Balance(ctx context.Context, address string, asset models.Asset) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	account, err := c.api.AccountDetail(horizonclient.AccountRequest{AccountID: address})
	if err != nil {
		if isNotFound(err) {
			return decimal.Zero, ledger.ErrAccountNotFound
		}
		return decimal.Zero, fmt.Errorf("load account %s failed: %w", address, err)
	}
	for _, balance := range account.Balances {
		held := toAsset(balance.Asset.Type, balance.Asset.Code, balance.Asset.Issuer)
		if !held.Equal(asset) {
			continue
		}
		value, err := models.ParseBalance(balance.Balance)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse balance %q failed: %w", balance.Balance, err)
		}
		return value, nil
	}
	return decimal.Zero, nil
}

// Payments 按游标升序拉取支付记录
func (c *Client) Payments(ctx context.Context, address, cursor string, limit int) ([]ledger.Transfer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	page, err := c.api.Payments(horizonclient.OperationRequest{
		ForAccount: address,
		Cursor:     strings.TrimSpace(cursor),
		Order:      horizonclient.OrderAsc,
		Limit:      uint(limit),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("list payments for %s failed: %w", address, err)
	}
	transfers := make([]ledger.Transfer, 0, len(page.Embedded.Records))
	for _, record := range page.Embedded.Records {
		transfers = append(transfers, toTransfer(record))
	}
	return transfers, nil
}

// PreparePayment 构造并签名单笔支付交易，哈希与有效期在提交前确定
func (c *Client) PreparePayment(ctx context.Context, signer *keypair.Full, destination string, asset models.Asset, amount decimal.Decimal) (ledger.PreparedTx, error) {
	if signer == nil {
		return ledger.PreparedTx{}, errors.New("signer is nil")
	}
	if err := ctx.Err(); err != nil {
		return ledger.PreparedTx{}, err
	}
	source, err := c.api.AccountDetail(horizonclient.AccountRequest{AccountID: signer.Address()})
	if err != nil {
		if isNotFound(err) {
			return ledger.PreparedTx{}, ledger.ErrAccountNotFound
		}
		return ledger.PreparedTx{}, fmt.Errorf("load source account failed: %w", err)
	}
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &source,
		IncrementSequenceNum: true,
		BaseFee:              c.baseFee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(c.txTimeout)},
		Operations: []txnbuild.Operation{
			&txnbuild.Payment{
				Destination: destination,
				Amount:      models.FormatAmount(amount),
				Asset:       toTxnAsset(asset),
			},
		},
	})
	if err != nil {
		return ledger.PreparedTx{}, fmt.Errorf("build transaction failed: %w", err)
	}
	tx, err = tx.Sign(c.networkPassphrase, signer)
	if err != nil {
		return ledger.PreparedTx{}, fmt.Errorf("sign transaction failed: %w", err)
	}
	hash, err := tx.HashHex(c.networkPassphrase)
	if err != nil {
		return ledger.PreparedTx{}, fmt.Errorf("hash transaction failed: %w", err)
	}
	envelope, err := tx.Base64()
	if err != nil {
		return ledger.PreparedTx{}, fmt.Errorf("encode transaction failed: %w", err)
	}
	return ledger.PreparedTx{
		Hash:       hash,
		Envelope:   envelope,
		ValidUntil: time.Unix(tx.Timebounds().MaxTime, 0).UTC(),
	}, nil
}

// SubmitPrepared 提交已签名交易
func (c *Client) SubmitPrepared(ctx context.Context, prepared ledger.PreparedTx) (string, error) {
	if strings.TrimSpace(prepared.Envelope) == "" {
		return "", errors.New("transaction envelope is empty")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	resp, err := c.api.SubmitTransactionXDR(prepared.Envelope)
	if err != nil {
		return "", fmt.Errorf("submit transaction %s failed: %w", prepared.Hash, err)
	}
	if resp.Hash == "" {
		return prepared.Hash, nil
	}
	return resp.Hash, nil
}

// TransactionStatus 查询交易状态
func (c *Client) TransactionStatus(ctx context.Context, hash string) (ledger.TxStatus, error) {
	if err := ctx.Err(); err != nil {
		return ledger.TxStatus{}, err
	}
	tx, err := c.api.TransactionDetail(strings.TrimSpace(hash))
	if err != nil {
		if isNotFound(err) {
			return ledger.TxStatus{}, ledger.ErrTransactionNotFound
		}
		return ledger.TxStatus{}, fmt.Errorf("load transaction %s failed: %w", hash, err)
	}
	return ledger.TxStatus{Hash: tx.Hash, Successful: tx.Successful, Ledger: int64(tx.Ledger)}, nil
}

func toTransfer(record operations.Operation) ledger.Transfer {
	transfer := ledger.Transfer{Cursor: record.PagingToken()}
	switch op := record.(type) {
	case operations.Payment:
		fillPayment(&transfer, op)
	case *operations.Payment:
		fillPayment(&transfer, *op)
	case operations.CreateAccount:
		fillCreateAccount(&transfer, op)
	case *operations.CreateAccount:
		fillCreateAccount(&transfer, *op)
	}
	return transfer
}

func fillPayment(transfer *ledger.Transfer, op operations.Payment) {
	amount, err := decimal.NewFromString(op.Amount)
	if err != nil || !op.Base.TransactionSuccessful {
		return
	}
	transfer.TxHash = op.Base.TransactionHash
	transfer.From = op.From
	transfer.To = op.To
	transfer.Asset = toAsset(op.Asset.Type, op.Asset.Code, op.Asset.Issuer)
	transfer.Amount = amount
	transfer.CreatedAt = op.Base.LedgerCloseTime
	transfer.Transferable = true
}

// 托管地址的首笔原生资产入账通常是 create_account
func fillCreateAccount(transfer *ledger.Transfer, op operations.CreateAccount) {
	amount, err := decimal.NewFromString(op.StartingBalance)
	if err != nil || !op.Base.TransactionSuccessful {
		return
	}
	transfer.TxHash = op.Base.TransactionHash
	transfer.From = op.Funder
	transfer.To = op.Account
	transfer.Asset = models.NewAsset(constants.AssetCodeNative, "")
	transfer.Amount = amount
	transfer.CreatedAt = op.Base.LedgerCloseTime
	transfer.Transferable = true
}

func toAsset(assetType, code, issuer string) models.Asset {
	if assetType == "native" {
		return models.NewAsset(constants.AssetCodeNative, "")
	}
	return models.NewAsset(code, issuer)
}

func toTxnAsset(asset models.Asset) txnbuild.Asset {
	if asset.IsNative() {
		return txnbuild.NativeAsset{}
	}
	return txnbuild.CreditAsset{Code: asset.Code, Issuer: asset.Issuer}
}

func isNotFound(err error) bool {
	if horizonclient.IsNotFoundError(err) {
		return true
	}
	var hErr *horizonclient.Error
	return errors.As(err, &hErr) && hErr.Problem.Status == http.StatusNotFound
}

var _ ledger.Client = (*Client)(nil)
