package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/settlepay/internal/cache"
	"github.com/settlepay/internal/config"
	"github.com/settlepay/internal/constants"
	"github.com/settlepay/internal/custody"
	"github.com/settlepay/internal/ledger"
	"github.com/settlepay/internal/logger"
	"github.com/settlepay/internal/models"
	"github.com/settlepay/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"
)

// SweepInput 归集参数
type SweepInput struct {
	Limit    int
	DryRun   bool
	Operator string
}

// SweepSkip 被跳过的收款
type SweepSkip struct {
	PaymentID      string `json:"payment_id"`
	CustodyAddress string `json:"custody_address"`
	Reason         string `json:"reason"`
	Detail         string `json:"detail,omitempty"`
}

// SweepResult 归集结果
type SweepResult struct {
	RunID          string      `json:"run_id"`
	DryRun         bool        `json:"dry_run"`
	Selected       int         `json:"selected"`
	AddressesSwept int         `json:"addresses_swept"`
	TotalAmount    string      `json:"total_amount"`
	TxHashes       []string    `json:"tx_hashes"`
	Skipped        []SweepSkip `json:"skipped"`
}

// SweepService 归集编排：把已确认收款从托管地址转入金库
type SweepService struct {
	paymentRepo repository.PaymentRepository
	ledger      ledger.Client
	deriver     *custody.Deriver
	auditor     SweepAuditor
	cfg         config.SweepConfig
	vault       string

	mu  sync.Mutex
	now func() time.Time
}

// NewSweepService 创建归集服务
func NewSweepService(cfg config.SweepConfig, vaultAddress string, paymentRepo repository.PaymentRepository, ledgerClient ledger.Client, deriver *custody.Deriver, auditor SweepAuditor) *SweepService {
	return &SweepService{
		paymentRepo: paymentRepo,
		ledger:      ledgerClient,
		deriver:     deriver,
		auditor:     auditor,
		cfg:         cfg,
		vault:       strings.TrimSpace(vaultAddress),
		now:         time.Now,
	}
}

// ResolveLimit 计算本次归集条数
func (s *SweepService) ResolveLimit(limit int) (int, error) {
	if limit < 0 {
		return 0, ErrSweepLimitInvalid
	}
	if limit == 0 {
		limit = intOrDefault(s.cfg.DefaultLimit, 50)
	}
	if max := intOrDefault(s.cfg.MaxLimit, 500); limit > max {
		limit = max
	}
	return limit, nil
}

// Sweep 执行一次归集，dry-run 只统计不动账
func (s *SweepService) Sweep(ctx context.Context, input SweepInput) (*SweepResult, error) {
	limit, err := s.ResolveLimit(input.Limit)
	if err != nil {
		return nil, err
	}
	if !input.DryRun {
		if s.vault == "" {
			return nil, ErrVaultNotConfigured
		}
		if _, err := keypair.ParseAddress(s.vault); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrVaultNotConfigured, err)
		}
	}

	if !s.mu.TryLock() {
		return nil, ErrSweepInProgress
	}
	defer s.mu.Unlock()

	lock, err := cache.AcquireLock(ctx, constants.LockKeySweepRun, s.cfg.LockTTL())
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			return nil, ErrSweepInProgress
		}
		return nil, fmt.Errorf("acquire sweep lock failed: %w", err)
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			logger.Warnw("sweep_lock_release_failed", "error", err)
		}
	}()

	result := &SweepResult{
		RunID:    uuid.NewString(),
		DryRun:   input.DryRun,
		TxHashes: []string{},
		Skipped:  []SweepSkip{},
	}
	entry := SweepAuditEntry{
		RunID:    result.RunID,
		Operator: input.Operator,
		DryRun:   input.DryRun,
		Limit:    limit,
	}
	s.audit(ctx, entry, constants.SweepAuditActionTriggered)

	total, err := s.run(ctx, input, limit, result)
	result.TotalAmount = models.FormatAmount(total)
	entry.Result = result
	if err != nil {
		entry.Err = err
		s.audit(ctx, entry, constants.SweepAuditActionFailed)
		logger.Errorw("sweep_run_failed", "run_id", result.RunID, "error", err)
		return result, err
	}
	s.audit(ctx, entry, constants.SweepAuditActionCompleted)

	logger.Infow("sweep_run_completed",
		"run_id", result.RunID,
		"dry_run", result.DryRun,
		"selected", result.Selected,
		"addresses_swept", result.AddressesSwept,
		"total_amount", result.TotalAmount,
		"skipped", len(result.Skipped),
	)
	return result, nil
}

func (s *SweepService) run(ctx context.Context, input SweepInput, limit int, result *SweepResult) (decimal.Decimal, error) {
	total := decimal.Zero
	payments, err := s.paymentRepo.ListSweepEligible(limit)
	if err != nil {
		return total, fmt.Errorf("list sweep eligible payments failed: %w", err)
	}
	result.Selected = len(payments)

	for i := range payments {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		payment := &payments[i]
		amount, reason, detail := s.sweepOne(ctx, payment, input.DryRun, result)
		if reason != "" {
			result.Skipped = append(result.Skipped, SweepSkip{
				PaymentID:      payment.ID,
				CustodyAddress: payment.CustodyAddress,
				Reason:         reason,
				Detail:         detail,
			})
			logger.Warnw("sweep_payment_skipped",
				"run_id", result.RunID,
				"payment_id", payment.ID,
				"custody_address", payment.CustodyAddress,
				"reason", reason,
				"detail", detail,
			)
			continue
		}
		total = total.Add(amount)
		result.AddressesSwept++
	}
	return total, nil
}

// sweepOne 处理单笔收款，返回非空 reason 表示跳过
func (s *SweepService) sweepOne(ctx context.Context, payment *models.Payment, dryRun bool, result *SweepResult) (decimal.Decimal, string, string) {
	if !payment.IsSweepEligible() {
		return decimal.Zero, constants.SweepSkipAlreadySwept, ""
	}
	amount, err := models.ParseAmount(payment.ExpectedAmount)
	if err != nil {
		return decimal.Zero, constants.SweepSkipInvalidAmount, err.Error()
	}
	signer, err := s.deriver.DeriveVerified(payment.MerchantID, payment.ID, payment.CustodyAddress)
	if err != nil {
		if errors.Is(err, custody.ErrCustodyAddressMismatch) {
			return decimal.Zero, constants.SweepSkipAddressMismatch, err.Error()
		}
		return decimal.Zero, constants.SweepSkipKeyDerivation, err.Error()
	}
	if dryRun {
		return amount, "", ""
	}

	fromTxHash := payment.SweepPendingTxHash
	if fromTxHash != "" {
		outcome, reason, detail := s.resolvePending(ctx, payment, result)
		switch outcome {
		case pendingLanded:
			return s.finishSwept(payment, fromTxHash, amount, result)
		case pendingBlocked:
			return decimal.Zero, reason, detail
		}
		fromTxHash = ""
	}

	prepared, err := s.ledger.PreparePayment(ctx, signer, s.vault, payment.Asset(), amount)
	if err != nil {
		return decimal.Zero, constants.SweepSkipSubmitFailed, err.Error()
	}
	// 先落库交易哈希再提交，提交结果不明时下次按哈希查询而不是重发
	marked, err := s.paymentRepo.MarkSweepPending(payment.ID, fromTxHash, prepared.Hash, prepared.ValidUntil, s.now())
	if err != nil {
		return decimal.Zero, constants.SweepSkipPendingMarkFailed, err.Error()
	}
	if !marked {
		return decimal.Zero, constants.SweepSkipAlreadySwept, "payment sweep state changed concurrently"
	}

	txHash, err := s.ledger.SubmitPrepared(ctx, prepared)
	if err != nil {
		logger.Warnw("sweep_submit_unconfirmed",
			"run_id", result.RunID,
			"payment_id", payment.ID,
			"pending_tx_hash", prepared.Hash,
			"valid_until", prepared.ValidUntil,
			"error", err,
		)
		return decimal.Zero, constants.SweepSkipSubmitFailed, err.Error()
	}
	if txHash == "" {
		txHash = prepared.Hash
	}
	return s.finishSwept(payment, txHash, amount, result)
}

type pendingOutcome int

const (
	pendingCleared pendingOutcome = iota
	pendingLanded
	pendingBlocked
)

// 交易过期后再等待一段时间，覆盖 Horizon 入库延迟
const sweepPendingGrace = time.Minute

// resolvePending 处理上次提交结果不明的归集交易
// 已成功入账直接标记；链上执行失败或超过有效期仍未入账才允许重新构造。
func (s *SweepService) resolvePending(ctx context.Context, payment *models.Payment, result *SweepResult) (pendingOutcome, string, string) {
	hash := payment.SweepPendingTxHash
	status, err := s.ledger.TransactionStatus(ctx, hash)
	switch {
	case err == nil && status.Successful:
		logger.Infow("sweep_pending_tx_landed", "run_id", result.RunID, "payment_id", payment.ID, "tx_hash", hash)
		return pendingLanded, "", ""
	case err == nil:
		logger.Warnw("sweep_pending_tx_failed_onchain", "run_id", result.RunID, "payment_id", payment.ID, "tx_hash", hash)
	case errors.Is(err, ledger.ErrTransactionNotFound):
		if payment.SweepPendingUntil == nil || !s.now().After(payment.SweepPendingUntil.Add(sweepPendingGrace)) {
			return pendingBlocked, constants.SweepSkipPendingUnconfirmed, fmt.Sprintf("transaction %s not yet on ledger", hash)
		}
		logger.Warnw("sweep_pending_tx_expired", "run_id", result.RunID, "payment_id", payment.ID, "tx_hash", hash)
	default:
		return pendingBlocked, constants.SweepSkipStatusCheckFailed, err.Error()
	}

	cleared, err := s.paymentRepo.ClearSweepPending(payment.ID, hash, s.now())
	if err != nil {
		return pendingBlocked, constants.SweepSkipPendingMarkFailed, err.Error()
	}
	if !cleared {
		return pendingBlocked, constants.SweepSkipAlreadySwept, "payment sweep state changed concurrently"
	}
	return pendingCleared, "", ""
}

// finishSwept 交易已入账后落库
func (s *SweepService) finishSwept(payment *models.Payment, txHash string, amount decimal.Decimal, result *SweepResult) (decimal.Decimal, string, string) {
	result.TxHashes = append(result.TxHashes, txHash)
	marked, err := s.paymentRepo.MarkSwept(payment.ID, txHash, s.now())
	if err != nil || !marked {
		// 资金已转出但未落库，待确认哈希仍保留，下次运行按哈希补记
		logger.Errorw("sweep_mark_failed_after_submit",
			"run_id", result.RunID,
			"payment_id", payment.ID,
			"tx_hash", txHash,
			"marked", marked,
			"error", err,
		)
		if err != nil {
			return decimal.Zero, constants.SweepSkipMarkFailed, err.Error()
		}
		return decimal.Zero, constants.SweepSkipAlreadySwept, "payment was marked swept concurrently"
	}
	logger.Infow("sweep_payment_swept",
		"run_id", result.RunID,
		"payment_id", payment.ID,
		"custody_address", payment.CustodyAddress,
		"amount", models.FormatAmount(amount),
		"tx_hash", txHash,
	)
	return amount, "", ""
}

func (s *SweepService) audit(ctx context.Context, entry SweepAuditEntry, action string) {
	if s.auditor == nil {
		return
	}
	entry.Action = action
	if err := s.auditor.Record(ctx, entry); err != nil {
		logger.Warnw("sweep_audit_record_failed", "run_id", entry.RunID, "action", action, "error", err)
	}
}
