package service

import (
	"context"

	"github.com/settlepay/internal/models"
	"github.com/settlepay/internal/repository"
)

// SweepAuditEntry 归集审计事件
type SweepAuditEntry struct {
	RunID    string
	Action   string
	Operator string
	DryRun   bool
	Limit    int
	Result   *SweepResult
	Err      error
}

// SweepAuditor 归集审计协作方，失败不影响归集本身
type SweepAuditor interface {
	Record(ctx context.Context, entry SweepAuditEntry) error
}

// SweepAuditService 基于数据库的审计实现
type SweepAuditService struct {
	repo repository.SweepAuditRepository
}

// NewSweepAuditService 创建审计服务
func NewSweepAuditService(repo repository.SweepAuditRepository) *SweepAuditService {
	return &SweepAuditService{repo: repo}
}

// Record 写入一条审计记录
func (s *SweepAuditService) Record(_ context.Context, entry SweepAuditEntry) error {
	row := &models.SweepAuditLog{
		RunID:       entry.RunID,
		Action:      entry.Action,
		Operator:    entry.Operator,
		DryRun:      entry.DryRun,
		SweepLimit:  entry.Limit,
		TotalAmount: "0",
	}
	if entry.Result != nil {
		row.AddressesSwept = entry.Result.AddressesSwept
		row.SkippedCount = len(entry.Result.Skipped)
		row.TotalAmount = entry.Result.TotalAmount
		skipped := make([]interface{}, 0, len(entry.Result.Skipped))
		for _, item := range entry.Result.Skipped {
			skipped = append(skipped, map[string]interface{}{
				"payment_id":      item.PaymentID,
				"custody_address": item.CustodyAddress,
				"reason":          item.Reason,
			})
		}
		row.DetailJSON = models.JSON{
			"selected":  entry.Result.Selected,
			"tx_hashes": entry.Result.TxHashes,
			"skipped":   skipped,
		}
	}
	if entry.Err != nil {
		row.ErrorMessage = entry.Err.Error()
	}
	return s.repo.Create(row)
}

// List 审计列表
func (s *SweepAuditService) List(filter repository.SweepAuditListFilter) ([]models.SweepAuditLog, int64, error) {
	return s.repo.List(filter)
}
