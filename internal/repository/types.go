package repository

import "time"

// PaymentListFilter 查询收款列表的过滤条件
type PaymentListFilter struct {
	Page        int
	PageSize    int
	MerchantID  string
	Status      string
	Swept       *bool
	Verified    *bool
	Search      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// SweepAuditListFilter 查询归集审计日志的过滤条件
type SweepAuditListFilter struct {
	Page        int
	PageSize    int
	RunID       string
	Action      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}
