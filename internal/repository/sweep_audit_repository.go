package repository

import (
	"strings"

	"github.com/settlepay/internal/models"

	"gorm.io/gorm"
)

// SweepAuditRepository 归集审计日志数据访问接口
type SweepAuditRepository interface {
	Create(log *models.SweepAuditLog) error
	List(filter SweepAuditListFilter) ([]models.SweepAuditLog, int64, error)
}

// GormSweepAuditRepository GORM 实现
type GormSweepAuditRepository struct {
	db *gorm.DB
}

// NewSweepAuditRepository 创建审计日志仓库
func NewSweepAuditRepository(db *gorm.DB) *GormSweepAuditRepository {
	return &GormSweepAuditRepository{db: db}
}

// Create 写入审计日志
func (r *GormSweepAuditRepository) Create(log *models.SweepAuditLog) error {
	return r.db.Create(log).Error
}

// List 审计日志列表
func (r *GormSweepAuditRepository) List(filter SweepAuditListFilter) ([]models.SweepAuditLog, int64, error) {
	query := r.db.Model(&models.SweepAuditLog{})
	if runID := strings.TrimSpace(filter.RunID); runID != "" {
		query = query.Where("run_id = ?", runID)
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		query = query.Where("action = ?", action)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var logs []models.SweepAuditLog
	if err := query.Order("id desc").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
