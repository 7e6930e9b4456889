package repository

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/settlepay/internal/constants"
	"github.com/settlepay/internal/ledger"
	"github.com/settlepay/internal/models"

	"gorm.io/gorm"
)

// ErrCursorRegression 游标回退写入被拒绝
var ErrCursorRegression = errors.New("ledger cursor regression")

// ObservationUpdate 观察器一次比对写入
// FromStatus/FromCursor 为读取时的快照，作为 CAS 条件。
type ObservationUpdate struct {
	ID             string
	FromStatus     string
	FromCursor     string
	Status         string
	Cursor         string
	TxHash         string
	SenderAddress  string
	ReceivedAmount string
	ConfirmedAt    *time.Time
	UpdatedAt      time.Time
}

// PaymentRepository 托管收款数据访问接口
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByID(id string) (*models.Payment, error)
	ExpireStale(now time.Time) (int64, error)
	ListActive(now time.Time, limit int) ([]models.Payment, error)
	UpdateObservation(update ObservationUpdate) (bool, error)
	ListSweepEligible(limit int) ([]models.Payment, error)
	MarkSwept(id, txHash string, at time.Time) (bool, error)
	MarkSweepPending(id, fromTxHash, txHash string, validUntil, at time.Time) (bool, error)
	ClearSweepPending(id, txHash string, at time.Time) (bool, error)
	MarkVerified(id, txHash string, at time.Time) error
	MarkVerificationFailed(id, reason string, at time.Time) error
	ListAdmin(filter PaymentListFilter) ([]models.Payment, int64, error)
	WithTx(tx *gorm.DB) *GormPaymentRepository
}

// GormPaymentRepository GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建收款仓库
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Create 创建收款记录
func (r *GormPaymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// GetByID 根据 ID 获取收款记录
func (r *GormPaymentRepository) GetByID(id string) (*models.Payment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var payment models.Payment
	if err := r.db.Where("id = ?", id).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// ExpireStale 批量将已过期的活跃收款置为 expired，不访问账本
func (r *GormPaymentRepository) ExpireStale(now time.Time) (int64, error) {
	result := r.db.Model(&models.Payment{}).
		Where("status IN ? AND expires_at <= ?", constants.ActivePaymentStatuses, now).
		Updates(map[string]interface{}{
			"status":     constants.PaymentStatusExpired,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

// ListActive 获取需要轮询的收款，按创建时间升序
// 包含未过期的活跃收款，以及已确认但未归集的收款（用于发现后续超付）。
func (r *GormPaymentRepository) ListActive(now time.Time, limit int) ([]models.Payment, error) {
	query := r.db.Where("(status IN ? AND expires_at > ?) OR (status = ? AND swept = ?)",
		constants.ActivePaymentStatuses, now, constants.PaymentStatusConfirmed, false).
		Order("created_at asc").
		Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var payments []models.Payment
	if err := query.Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// UpdateObservation 以 (id, status, last_cursor) 为条件写入观察结果
// 返回 false 表示快照已过期（其他写入者先行），本次不生效。
func (r *GormPaymentRepository) UpdateObservation(update ObservationUpdate) (bool, error) {
	if ledger.CompareCursor(update.Cursor, update.FromCursor) < 0 {
		return false, ErrCursorRegression
	}
	if update.UpdatedAt.IsZero() {
		update.UpdatedAt = time.Now()
	}
	values := map[string]interface{}{
		"status":           update.Status,
		"last_cursor":      update.Cursor,
		"transaction_hash": update.TxHash,
		"sender_address":   update.SenderAddress,
		"received_amount":  update.ReceivedAmount,
		"updated_at":       update.UpdatedAt,
	}
	if update.ConfirmedAt != nil {
		values["confirmed_at"] = *update.ConfirmedAt
	}
	result := r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ? AND last_cursor = ?", update.ID, update.FromStatus, update.FromCursor).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListSweepEligible 获取待归集收款，按确认时间升序（无确认时间按创建时间）
func (r *GormPaymentRepository) ListSweepEligible(limit int) ([]models.Payment, error) {
	query := r.db.Where("status IN ? AND swept = ?", constants.SweepEligibleStatuses, false).
		Order("COALESCE(confirmed_at, created_at) asc").
		Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var payments []models.Payment
	if err := query.Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// MarkSwept 标记已归集，仅在 swept = false 时生效，同时清除待确认交易
func (r *GormPaymentRepository) MarkSwept(id, txHash string, at time.Time) (bool, error) {
	result := r.db.Model(&models.Payment{}).
		Where("id = ? AND swept = ?", id, false).
		Updates(map[string]interface{}{
			"swept":                 true,
			"swept_at":              at,
			"sweep_tx_hash":         txHash,
			"sweep_pending_tx_hash": "",
			"sweep_pending_until":   nil,
			"updated_at":            at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkSweepPending 提交前登记已签名的归集交易
// 仅在未归集且当前待确认哈希等于 fromTxHash 时生效，防止并发覆盖。
func (r *GormPaymentRepository) MarkSweepPending(id, fromTxHash, txHash string, validUntil, at time.Time) (bool, error) {
	result := r.db.Model(&models.Payment{}).
		Where("id = ? AND swept = ? AND sweep_pending_tx_hash = ?", id, false, fromTxHash).
		Updates(map[string]interface{}{
			"sweep_pending_tx_hash": txHash,
			"sweep_pending_until":   validUntil,
			"updated_at":            at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ClearSweepPending 确认待确认交易不会入账后清除
func (r *GormPaymentRepository) ClearSweepPending(id, txHash string, at time.Time) (bool, error) {
	result := r.db.Model(&models.Payment{}).
		Where("id = ? AND swept = ? AND sweep_pending_tx_hash = ?", id, false, txHash).
		Updates(map[string]interface{}{
			"sweep_pending_tx_hash": "",
			"sweep_pending_until":   nil,
			"updated_at":            at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkVerified 记录链上核验成功
func (r *GormPaymentRepository) MarkVerified(id, txHash string, at time.Time) error {
	return r.db.Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"onchain_verified":     true,
			"verification_error":   "",
			"verification_tx_hash": txHash,
			"verified_at":          at,
			"updated_at":           at,
		}).Error
}

// MarkVerificationFailed 记录链上核验最终失败原因
func (r *GormPaymentRepository) MarkVerificationFailed(id, reason string, at time.Time) error {
	reason = truncateUTF8(reason, constants.VerificationErrorMaxLen)
	return r.db.Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"onchain_verified":   false,
			"verification_error": reason,
			"updated_at":         at,
		}).Error
}

// ListAdmin 管理端收款列表
func (r *GormPaymentRepository) ListAdmin(filter PaymentListFilter) ([]models.Payment, int64, error) {
	query := r.db.Model(&models.Payment{})

	if filter.MerchantID != "" {
		query = query.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Swept != nil {
		query = query.Where("swept = ?", *filter.Swept)
	}
	if filter.Verified != nil {
		query = query.Where("onchain_verified = ?", *filter.Verified)
	}
	if keyword := strings.TrimSpace(filter.Search); keyword != "" {
		condition, argCount := buildLikeCondition(r.db, []string{"id", "custody_address", "transaction_hash"})
		query = query.Where(condition, repeatLikeArgs("%"+keyword+"%", argCount)...)
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

	var payments []models.Payment
	if err := query.Order("created_at desc").Order("id desc").Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// truncateUTF8 按字节上限截断，不拆分多字节字符
func truncateUTF8(value string, maxBytes int) string {
	if len(value) <= maxBytes {
		return value
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
