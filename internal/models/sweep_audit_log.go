package models

import "time"

// SweepAuditLog 归集审计日志
// 说明：每次归集运行前后各记录一条，只保存汇总统计。
type SweepAuditLog struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	RunID          string    `gorm:"type:varchar(64);index;not null" json:"run_id"`
	Action         string    `gorm:"type:varchar(50);index;not null" json:"action"`
	Operator       string    `gorm:"type:varchar(100);not null;default:''" json:"operator"`
	DryRun         bool      `gorm:"not null;default:false" json:"dry_run"`
	SweepLimit     int       `gorm:"not null;default:0" json:"sweep_limit"`
	AddressesSwept int       `gorm:"not null;default:0" json:"addresses_swept"`
	SkippedCount   int       `gorm:"not null;default:0" json:"skipped_count"`
	TotalAmount    string    `gorm:"type:varchar(64);not null;default:'0'" json:"total_amount"`
	ErrorMessage   string    `gorm:"type:text" json:"error_message"`
	DetailJSON     JSON      `gorm:"type:json" json:"detail"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (SweepAuditLog) TableName() string {
	return "sweep_audit_logs"
}
