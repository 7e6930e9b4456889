package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/settlepay/internal/config"
	"github.com/settlepay/internal/logger"
	"github.com/settlepay/internal/models"
	"github.com/settlepay/internal/queue"
	"github.com/settlepay/internal/repository"
	"github.com/settlepay/internal/verifier"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
)

// VerificationService 链上核验服务
type VerificationService struct {
	paymentRepo repository.PaymentRepository
	client      verifier.Client

	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	pollAttempts   int
	pollInterval   time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewVerificationService 创建核验服务，client 为空表示核验未启用
func NewVerificationService(cfg config.VerifierConfig, paymentRepo repository.PaymentRepository, client verifier.Client) *VerificationService {
	return &VerificationService{
		paymentRepo:    paymentRepo,
		client:         client,
		maxAttempts:    intOrDefault(cfg.MaxAttempts, 3),
		initialBackoff: millisOrDefault(cfg.InitialBackoffMS, 1000),
		maxBackoff:     millisOrDefault(cfg.MaxBackoffMS, 10000),
		pollAttempts:   intOrDefault(cfg.PollAttempts, 10),
		pollInterval:   millisOrDefault(cfg.PollIntervalMS, 2000),
		now:            time.Now,
		sleep:          sleepContext,
	}
}

// VerifyPayload 处理队列载荷
func (s *VerificationService) VerifyPayload(ctx context.Context, payload queue.PaymentVerifyPayload) (bool, error) {
	amount, err := models.ParseAmount(payload.Amount)
	if err != nil {
		reason := fmt.Sprintf("invalid verification amount: %v", err)
		if markErr := s.paymentRepo.MarkVerificationFailed(payload.PaymentID, reason, s.now()); markErr != nil {
			logger.Warnw("verification_mark_failed_error", "payment_id", payload.PaymentID, "error", markErr)
		}
		return false, err
	}
	return s.Verify(ctx, payload.PaymentID, payload.TxHash, amount)
}

// Verify 提交核验并轮询结果，按指数退避重试
// 全部失败后记录原因并要求人工介入，不改变收款状态与归集资格。
func (s *VerificationService) Verify(ctx context.Context, paymentID, txHash string, amount decimal.Decimal) (bool, error) {
	paymentID = strings.TrimSpace(paymentID)
	txHash = strings.TrimSpace(txHash)
	if s.client == nil {
		logger.Warnw("verification_skipped_disabled", "payment_id", paymentID)
		return false, ErrVerifierDisabled
	}
	stroops := models.AmountToStroops(amount)
	if paymentID == "" || txHash == "" || stroops <= 0 {
		err := fmt.Errorf("%w: payment_id, tx_hash and positive amount are required", ErrPaymentNotVerifiable)
		if paymentID != "" {
			s.markFailed(paymentID, txHash, 0, err)
		}
		return false, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialBackoff
	b.MaxInterval = s.maxBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.maxAttempts-1)), ctx)

	attempts := 0
	var lastErr error
	var verifiedTx string
	operation := func() error {
		attempts++
		tx, err := s.attempt(ctx, verifier.Request{PaymentID: paymentID, TxHash: txHash, Amount: stroops})
		if err != nil {
			lastErr = err
			logger.Warnw("verification_attempt_failed",
				"payment_id", paymentID,
				"tx_hash", txHash,
				"attempt", attempts,
				"max_attempts", s.maxAttempts,
				"error", err,
			)
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		verifiedTx = tx
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		if ctx.Err() != nil {
			// 进程退出导致的中断不记为最终失败
			logger.Warnw("verification_interrupted", "payment_id", paymentID, "attempts", attempts, "error", ctx.Err())
			return false, ctx.Err()
		}
		if lastErr == nil {
			lastErr = err
		}
		s.markFailed(paymentID, txHash, attempts, lastErr)
		return false, fmt.Errorf("%w: %v", ErrVerificationExhausted, lastErr)
	}

	if verifiedTx == "" {
		verifiedTx = txHash
	}
	if err := s.paymentRepo.MarkVerified(paymentID, verifiedTx, s.now()); err != nil {
		logger.Errorw("verification_mark_verified_failed", "payment_id", paymentID, "verification_tx_hash", verifiedTx, "error", err)
		return true, err
	}
	logger.Infow("verification_succeeded", "payment_id", paymentID, "verification_tx_hash", verifiedTx, "attempts", attempts)
	return true, nil
}

// attempt 单次提交 + 轮询
func (s *VerificationService) attempt(ctx context.Context, req verifier.Request) (string, error) {
	receipt, err := s.client.Submit(ctx, req)
	if err != nil {
		return "", err
	}
	switch receipt.Status {
	case verifier.ReceiptSuccess:
		return "", nil
	case verifier.ReceiptFailed:
		return "", fmt.Errorf("%w: receipt %s failed", ErrVerificationRejected, receipt.ID)
	}

	var pollErr error
	for i := 0; i < s.pollAttempts; i++ {
		if err := s.sleep(ctx, s.pollInterval); err != nil {
			return "", err
		}
		status, err := s.client.Status(ctx, receipt.ID)
		if err != nil {
			// 回执尚未可查或网络抖动，继续轮询
			pollErr = err
			continue
		}
		switch status.Status {
		case verifier.ReceiptSuccess:
			return status.TxHash, nil
		case verifier.ReceiptFailed:
			return "", fmt.Errorf("%w: %s", ErrVerificationRejected, status.Error)
		}
	}
	if pollErr != nil && !errors.Is(pollErr, verifier.ErrReceiptNotFound) {
		return "", fmt.Errorf("%w: %v", ErrVerificationPending, pollErr)
	}
	return "", fmt.Errorf("%w: receipt %s", ErrVerificationPending, receipt.ID)
}

func (s *VerificationService) markFailed(paymentID, txHash string, attempts int, cause error) {
	reason := cause.Error()
	if err := s.paymentRepo.MarkVerificationFailed(paymentID, reason, s.now()); err != nil {
		logger.Warnw("verification_mark_failed_error", "payment_id", paymentID, "error", err)
	}
	logger.Errorw("verification_manual_intervention_required",
		"payment_id", paymentID,
		"tx_hash", txHash,
		"attempts", attempts,
		"error", reason,
	)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func intOrDefault(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func millisOrDefault(value, fallback int) time.Duration {
	return time.Duration(intOrDefault(value, fallback)) * time.Millisecond
}
