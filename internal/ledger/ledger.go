package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/settlepay/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"
)

var (
	// ErrAccountNotFound 账户在账本上不存在（未激活）
	ErrAccountNotFound = errors.New("ledger account not found")
	// ErrTransactionNotFound 交易尚未入账或不存在
	ErrTransactionNotFound = errors.New("ledger transaction not found")
)

// Transfer 一条入账/出账记录
type Transfer struct {
	Cursor    string          `json:"cursor"`
	TxHash    string          `json:"tx_hash"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Asset     models.Asset    `json:"asset"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
	// Transferable 为 false 时仅用于推进游标（如路径支付等未解析的操作）
	Transferable bool `json:"transferable"`
}

// TxStatus 交易状态
type TxStatus struct {
	Hash       string `json:"hash"`
	Successful bool   `json:"successful"`
	Ledger     int64  `json:"ledger"`
}

// PreparedTx 已签名、尚未提交的交易
// Hash 在提交前即已确定，提交结果不明时可据此查询是否入账；超过 ValidUntil 仍未入账的交易不会再被账本接受。
type PreparedTx struct {
	Hash       string    `json:"hash"`
	Envelope   string    `json:"envelope"`
	ValidUntil time.Time `json:"valid_until"`
}

// Client 账本访问接口
type Client interface {
	// Balance 查询地址上指定资产余额，未激活账户返回 ErrAccountNotFound
	Balance(ctx context.Context, address string, asset models.Asset) (decimal.Decimal, error)
	// Payments 按游标升序返回 cursor 之后的支付记录
	Payments(ctx context.Context, address, cursor string, limit int) ([]Transfer, error)
	// PreparePayment 构造并签名由 signer 账户向 destination 的转账，不提交
	PreparePayment(ctx context.Context, signer *keypair.Full, destination string, asset models.Asset, amount decimal.Decimal) (PreparedTx, error)
	// SubmitPrepared 提交已签名交易，返回交易哈希；返回错误时交易仍可能已入账
	SubmitPrepared(ctx context.Context, tx PreparedTx) (string, error)
	// TransactionStatus 查询交易状态，未入账返回 ErrTransactionNotFound
	TransactionStatus(ctx context.Context, hash string) (TxStatus, error)
}

// CompareCursor 比较两个分页游标（十进制数字串），空游标最小
func CompareCursor(a, b string) int {
	a = normalizeCursor(a)
	b = normalizeCursor(b)
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// MaxCursor 返回较大的游标
func MaxCursor(a, b string) string {
	if CompareCursor(b, a) > 0 {
		return b
	}
	return a
}

func normalizeCursor(cursor string) string {
	cursor = strings.TrimSpace(cursor)
	trimmed := strings.TrimLeft(cursor, "0")
	if trimmed == "" && cursor != "" {
		return "0"
	}
	return trimmed
}
