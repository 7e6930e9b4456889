package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/settlepay/internal/logger"
	"github.com/settlepay/internal/provider"
	"github.com/settlepay/internal/queue"
	"github.com/settlepay/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPaymentVerify, c.handlePaymentVerify)
	mux.HandleFunc(queue.TaskPaymentSettled, c.handlePaymentSettled)
}

func (c *Consumer) handlePaymentVerify(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payment_verify_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PaymentVerifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_verify_unmarshal_failed", "error", err)
		return err
	}
	if strings.TrimSpace(payload.PaymentID) == "" {
		logger.Debugw("worker_payment_verify_skip_invalid_payload", "payment_id", payload.PaymentID)
		return nil
	}
	if c.VerificationService == nil {
		logger.Warnw("worker_payment_verify_skip_service_nil", "payment_id", payload.PaymentID)
		return nil
	}
	ok, err := c.VerificationService.VerifyPayload(ctx, payload)
	if err != nil {
		// 退避重试与失败落库都在核验服务内完成，队列层不再重试
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		logger.Warnw("worker_payment_verify_failed", "payment_id", payload.PaymentID, "tx_hash", payload.TxHash, "error", err)
		return nil
	}
	logger.Debugw("worker_payment_verify_done", "payment_id", payload.PaymentID, "verified", ok)
	return nil
}

func (c *Consumer) handlePaymentSettled(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payment_settled_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PaymentSettledPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_settled_unmarshal_failed", "error", err)
		return err
	}
	if strings.TrimSpace(payload.PaymentID) == "" {
		logger.Debugw("worker_payment_settled_skip_invalid_payload")
		return nil
	}
	channel := ""
	if c.Config != nil {
		channel = c.Config.Notify.Channel
	}
	if err := service.PublishSettledEvent(ctx, channel, payload); err != nil {
		logger.Warnw("worker_payment_settled_publish_failed", "payment_id", payload.PaymentID, "channel", channel, "error", err)
		return err
	}
	return nil
}
