package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/settlepay/internal/cache"
	"github.com/settlepay/internal/config"
	"github.com/settlepay/internal/constants"
	"github.com/settlepay/internal/ledger"
	"github.com/settlepay/internal/logger"
	"github.com/settlepay/internal/models"
	"github.com/settlepay/internal/queue"
	"github.com/settlepay/internal/repository"

	"github.com/shopspring/decimal"
)

// ObserverTickResult 单次轮询汇总
type ObserverTickResult struct {
	Expired int  `json:"expired"`
	Checked int  `json:"checked"`
	Updated int  `json:"updated"`
	Settled int  `json:"settled"`
	Failed  int  `json:"failed"`
	Skipped bool `json:"skipped"`
}

type observeOutcome int

const (
	outcomeUnchanged observeOutcome = iota
	outcomeUpdated
	outcomeSettled
)

// ObserverService 账本观察器：轮询托管地址余额并推进收款状态
type ObserverService struct {
	paymentRepo repository.PaymentRepository
	ledger      ledger.Client
	dispatcher  SettlementDispatcher
	cfg         config.ObserverConfig

	mu  sync.Mutex
	now func() time.Time
}

// NewObserverService 创建观察器
func NewObserverService(cfg config.ObserverConfig, paymentRepo repository.PaymentRepository, ledgerClient ledger.Client, dispatcher SettlementDispatcher) *ObserverService {
	return &ObserverService{
		paymentRepo: paymentRepo,
		ledger:      ledgerClient,
		dispatcher:  dispatcher,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Interval 轮询间隔
func (s *ObserverService) Interval() time.Duration {
	return s.cfg.Interval()
}

// Tick 执行一次轮询，同一时刻只允许一个 tick
func (s *ObserverService) Tick(ctx context.Context) (*ObserverTickResult, error) {
	if !s.mu.TryLock() {
		return &ObserverTickResult{Skipped: true}, ErrObserverBusy
	}
	defer s.mu.Unlock()

	lock, err := cache.AcquireLock(ctx, constants.LockKeyObserverTick, s.cfg.LockTTL())
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			return &ObserverTickResult{Skipped: true}, ErrObserverBusy
		}
		return nil, fmt.Errorf("acquire observer lock failed: %w", err)
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			logger.Warnw("observer_lock_release_failed", "error", err)
		}
	}()

	return s.tick(ctx)
}

func (s *ObserverService) tick(ctx context.Context) (*ObserverTickResult, error) {
	started := s.now()
	result := &ObserverTickResult{}

	expired, err := s.paymentRepo.ExpireStale(started)
	if err != nil {
		return nil, fmt.Errorf("expire stale payments failed: %w", err)
	}
	result.Expired = int(expired)

	payments, err := s.paymentRepo.ListActive(started, s.batchSize())
	if err != nil {
		return nil, fmt.Errorf("list active payments failed: %w", err)
	}

	for i := range payments {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		payment := &payments[i]
		result.Checked++
		outcome, err := s.observe(ctx, payment, started)
		if err != nil {
			result.Failed++
			logger.Warnw("observer_payment_failed",
				"payment_id", payment.ID,
				"custody_address", payment.CustodyAddress,
				"status", payment.Status,
				"error", err,
			)
			continue
		}
		switch outcome {
		case outcomeSettled:
			result.Settled++
			result.Updated++
		case outcomeUpdated:
			result.Updated++
		}
	}

	logger.Infow("observer_tick_summary",
		"expired", result.Expired,
		"checked", result.Checked,
		"updated", result.Updated,
		"settled", result.Settled,
		"failed", result.Failed,
		"elapsed_ms", s.now().Sub(started).Milliseconds(),
	)
	return result, nil
}

// observe 比对单笔收款
func (s *ObserverService) observe(ctx context.Context, payment *models.Payment, now time.Time) (observeOutcome, error) {
	expected, err := models.ParseAmount(payment.ExpectedAmount)
	if err != nil {
		return outcomeUnchanged, fmt.Errorf("expected amount: %w", err)
	}
	asset := payment.Asset()

	balance, err := s.ledger.Balance(ctx, payment.CustodyAddress, asset)
	if err != nil {
		if !errors.Is(err, ledger.ErrAccountNotFound) {
			return outcomeUnchanged, fmt.Errorf("load balance: %w", err)
		}
		balance = decimal.Zero
	}
	transfers, err := s.ledger.Payments(ctx, payment.CustodyAddress, payment.LastCursor, s.pageSize())
	if err != nil {
		if !errors.Is(err, ledger.ErrAccountNotFound) {
			return outcomeUnchanged, fmt.Errorf("load payments: %w", err)
		}
		transfers = nil
	}

	cursor, latest := scanTransfers(payment, asset, transfers)
	status := ClassifyPayment(payment, balance, expected, now)

	statusChanged := status != payment.Status
	cursorAdvanced := ledger.CompareCursor(cursor, payment.LastCursor) > 0
	if !statusChanged && !cursorAdvanced {
		return outcomeUnchanged, nil
	}

	update := repository.ObservationUpdate{
		ID:             payment.ID,
		FromStatus:     payment.Status,
		FromCursor:     payment.LastCursor,
		Status:         status,
		Cursor:         cursor,
		TxHash:         payment.TransactionHash,
		SenderAddress:  payment.SenderAddress,
		ReceivedAmount: models.FormatAmount(balance),
		UpdatedAt:      now,
	}
	if latest != nil {
		update.TxHash = latest.TxHash
		update.SenderAddress = latest.From
	}
	settled := statusChanged && isSettledStatus(status)
	if settled && payment.ConfirmedAt == nil {
		confirmedAt := now
		update.ConfirmedAt = &confirmedAt
	}

	applied, err := s.paymentRepo.UpdateObservation(update)
	if err != nil {
		return outcomeUnchanged, fmt.Errorf("persist observation: %w", err)
	}
	if !applied {
		logger.Debugw("observer_payment_stale_snapshot", "payment_id", payment.ID, "status", payment.Status, "cursor", payment.LastCursor)
		return outcomeUnchanged, nil
	}
	if statusChanged {
		logger.Infow("observer_payment_status_changed",
			"payment_id", payment.ID,
			"from", payment.Status,
			"to", status,
			"received", update.ReceivedAmount,
			"expected", payment.ExpectedAmount,
			"tx_hash", update.TxHash,
		)
	}
	if !settled {
		return outcomeUpdated, nil
	}

	s.dispatchSettled(ctx, payment, update, now)
	return outcomeSettled, nil
}

// scanTransfers 计算最大游标与最近一笔匹配资产的入账
func scanTransfers(payment *models.Payment, asset models.Asset, transfers []ledger.Transfer) (string, *ledger.Transfer) {
	cursor := payment.LastCursor
	var latest *ledger.Transfer
	for i := range transfers {
		transfer := &transfers[i]
		cursor = ledger.MaxCursor(cursor, transfer.Cursor)
		if !transfer.Transferable || transfer.To != payment.CustodyAddress || !transfer.Asset.Equal(asset) {
			continue
		}
		if latest == nil || ledger.CompareCursor(transfer.Cursor, latest.Cursor) > 0 {
			latest = transfer
		}
	}
	return cursor, latest
}

func (s *ObserverService) dispatchSettled(ctx context.Context, payment *models.Payment, update repository.ObservationUpdate, now time.Time) {
	if s.dispatcher == nil {
		return
	}
	switch {
	case isSettledStatus(payment.Status):
		// confirmed → overpaid 时核验已在首次到账时派发
		logger.Debugw("observer_verification_already_dispatched", "payment_id", payment.ID, "from", payment.Status, "to", update.Status)
	case update.TxHash == "":
		logger.Warnw("observer_verification_skipped_missing_tx", "payment_id", payment.ID, "status", update.Status)
	default:
		if err := s.dispatcher.DispatchVerification(ctx, queue.PaymentVerifyPayload{
			PaymentID: payment.ID,
			TxHash:    update.TxHash,
			Amount:    payment.ExpectedAmount,
		}); err != nil {
			logger.Warnw("observer_verification_dispatch_failed", "payment_id", payment.ID, "tx_hash", update.TxHash, "error", err)
		}
	}

	confirmedAt := now
	if payment.ConfirmedAt != nil {
		confirmedAt = *payment.ConfirmedAt
	}
	if err := s.dispatcher.NotifySettled(ctx, queue.PaymentSettledPayload{
		PaymentID:      payment.ID,
		MerchantID:     payment.MerchantID,
		Status:         update.Status,
		ExpectedAmount: payment.ExpectedAmount,
		ReceivedAmount: update.ReceivedAmount,
		AssetCode:      payment.AssetCode,
		AssetIssuer:    payment.AssetIssuer,
		TxHash:         update.TxHash,
		ConfirmedAt:    confirmedAt.Unix(),
	}); err != nil {
		logger.Warnw("observer_settled_notify_failed", "payment_id", payment.ID, "error", err)
	}
}

// Run 按固定间隔轮询，ctx 取消即退出
func (s *ObserverService) Run(ctx context.Context) {
	runOnce := func() {
		if _, err := s.Tick(ctx); err != nil {
			if errors.Is(err, ErrObserverBusy) {
				logger.Infow("observer_tick_skipped_busy")
				return
			}
			if ctx.Err() != nil {
				return
			}
			logger.Errorw("observer_tick_failed", "error", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

func (s *ObserverService) batchSize() int {
	return intOrDefault(s.cfg.BatchSize, 200)
}

func (s *ObserverService) pageSize() int {
	return intOrDefault(s.cfg.PageSize, 10)
}
