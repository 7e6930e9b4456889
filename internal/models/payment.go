package models

import (
	"strings"
	"time"

	"github.com/settlepay/internal/constants"
)

// Payment 托管地址收款记录
// 说明：由上游建单流程创建，观察器、核验与归集流程共同读写，是结算状态的唯一来源。
type Payment struct {
	ID                 string     `gorm:"primarykey;type:varchar(64)" json:"id"`                             // 主键
	MerchantID         string     `gorm:"type:varchar(64);index;not null" json:"merchant_id"`                // 商户ID
	ExpectedAmount     string     `gorm:"type:varchar(64);not null" json:"expected_amount"`                  // 应收金额（十进制文本，使用前校验）
	AssetCode          string     `gorm:"type:varchar(12);not null" json:"asset_code"`                       // 资产代码
	AssetIssuer        string     `gorm:"type:varchar(64);not null;default:''" json:"asset_issuer"`          // 资产发行方（原生资产为空）
	CustodyAddress     string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"custody_address"`      // 一次性托管地址
	Status             string     `gorm:"type:varchar(32);index;not null" json:"status"`                     // 支付状态
	ExpiresAt          time.Time  `gorm:"index;not null" json:"expires_at"`                                  // 过期时间
	LastCursor         string     `gorm:"type:varchar(64);not null;default:''" json:"last_cursor"`           // 账本分页游标（只进不退）
	TransactionHash    string     `gorm:"type:varchar(64);not null;default:''" json:"transaction_hash"`      // 最近一笔入账交易
	SenderAddress      string     `gorm:"type:varchar(64);not null;default:''" json:"sender_address"`        // 最近一笔入账付款方
	ReceivedAmount     string     `gorm:"type:varchar(64);not null;default:'0'" json:"received_amount"`      // 最近一次观察到的余额
	ConfirmedAt        *time.Time `gorm:"index" json:"confirmed_at"`                                         // 首次确认到账时间
	OnchainVerified    bool       `gorm:"not null;default:false" json:"onchain_verified"`                    // 链上核验结果
	VerificationError  string     `gorm:"type:text" json:"verification_error"`                               // 核验失败原因
	VerificationTxHash string     `gorm:"type:varchar(64);not null;default:''" json:"verification_tx_hash"`  // 核验交易
	VerifiedAt         *time.Time `json:"verified_at"`                                                       // 核验完成时间
	Swept              bool       `gorm:"index;not null;default:false" json:"swept"`                         // 是否已归集
	SweptAt            *time.Time `json:"swept_at"`                                                          // 归集时间
	SweepTxHash        string     `gorm:"type:varchar(64);not null;default:''" json:"sweep_tx_hash"`         // 归集交易
	SweepPendingTxHash string     `gorm:"type:varchar(64);not null;default:''" json:"sweep_pending_tx_hash"` // 已签名待确认的归集交易
	SweepPendingUntil  *time.Time `json:"sweep_pending_until"`                                               // 待确认交易的最晚入账时间
	CreatedAt          time.Time  `gorm:"index" json:"created_at"`                                           // 创建时间
	UpdatedAt          time.Time  `json:"updated_at"`                                                        // 更新时间
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}

// Asset 返回期望的链上资产
func (p *Payment) Asset() Asset {
	return NewAsset(p.AssetCode, p.AssetIssuer)
}

// IsActive 是否仍需观察器轮询
func (p *Payment) IsActive() bool {
	return p.Status == constants.PaymentStatusPending || p.Status == constants.PaymentStatusPartiallyPaid
}

// IsObservable 观察器是否需要轮询：活跃状态，或已确认但尚未归集（可能继续超付）
func (p *Payment) IsObservable() bool {
	return p.IsActive() || (p.Status == constants.PaymentStatusConfirmed && !p.Swept)
}

// IsSweepEligible 是否满足归集条件
func (p *Payment) IsSweepEligible() bool {
	if p.Swept {
		return false
	}
	for _, status := range constants.SweepEligibleStatuses {
		if p.Status == status {
			return true
		}
	}
	return false
}

// Asset 链上资产（代码 + 发行方）
type Asset struct {
	Code   string `json:"code"`
	Issuer string `json:"issuer"`
}

// NewAsset 创建资产，原生资产统一为 XLM + 空发行方
func NewAsset(code, issuer string) Asset {
	code = strings.TrimSpace(code)
	issuer = strings.TrimSpace(issuer)
	if strings.EqualFold(code, "native") || (strings.EqualFold(code, constants.AssetCodeNative) && issuer == "") {
		return Asset{Code: constants.AssetCodeNative}
	}
	return Asset{Code: code, Issuer: issuer}
}

// IsNative 是否为原生资产
func (a Asset) IsNative() bool {
	return a.Code == constants.AssetCodeNative && a.Issuer == ""
}

// Equal 资产代码与发行方均一致
func (a Asset) Equal(other Asset) bool {
	left := NewAsset(a.Code, a.Issuer)
	right := NewAsset(other.Code, other.Issuer)
	return left.Code == right.Code && left.Issuer == right.Issuer
}

// String 返回 code:issuer 形式
func (a Asset) String() string {
	if a.IsNative() {
		return constants.AssetCodeNative
	}
	return a.Code + ":" + a.Issuer
}
