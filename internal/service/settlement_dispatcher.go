package service

import (
	"context"
	"errors"
	"sync"

	"github.com/settlepay/internal/cache"
	"github.com/settlepay/internal/constants"
	"github.com/settlepay/internal/logger"
	"github.com/settlepay/internal/queue"
)

// SettlementDispatcher 到账后的异步动作：核验派发与事件通知
// 调用方不等待结果，失败只记录日志。
type SettlementDispatcher interface {
	DispatchVerification(ctx context.Context, payload queue.PaymentVerifyPayload) error
	NotifySettled(ctx context.Context, payload queue.PaymentSettledPayload) error
}

// ErrDispatcherClosed 派发器已关闭，不再接收进程内任务
var ErrDispatcherClosed = errors.New("dispatcher closed")

// QueueSettlementDispatcher 优先走 asynq 队列，队列未启用时退化为进程内协程
type QueueSettlementDispatcher struct {
	queueClient *queue.Client
	verifier    *VerificationService
	channel     string
	publish     func(ctx context.Context, channel string, payload queue.PaymentSettledPayload) error

	ctx    context.Context
	cancel context.CancelFunc

	// mu 保证 closed 判断与 wg.Add 原子，避免与 Close 中的 Wait 并发
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueueSettlementDispatcher 创建派发器
func NewQueueSettlementDispatcher(queueClient *queue.Client, verifier *VerificationService, channel string) *QueueSettlementDispatcher {
	if channel == "" {
		channel = constants.DefaultSettledChannel
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &QueueSettlementDispatcher{
		queueClient: queueClient,
		verifier:    verifier,
		channel:     channel,
		publish:     PublishSettledEvent,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// DispatchVerification 派发链上核验
func (d *QueueSettlementDispatcher) DispatchVerification(_ context.Context, payload queue.PaymentVerifyPayload) error {
	if d.queueClient.Enabled() {
		return d.queueClient.EnqueuePaymentVerify(payload)
	}
	if d.verifier == nil {
		return ErrVerifierDisabled
	}
	return d.spawn(func(ctx context.Context) {
		if _, err := d.verifier.VerifyPayload(ctx, payload); err != nil {
			logger.Warnw("verification_inline_dispatch_failed",
				"payment_id", payload.PaymentID,
				"tx_hash", payload.TxHash,
				"error", err,
			)
		}
	})
}

// NotifySettled 发布到账事件，不阻塞调用方
func (d *QueueSettlementDispatcher) NotifySettled(_ context.Context, payload queue.PaymentSettledPayload) error {
	if d.queueClient.Enabled() {
		return d.queueClient.EnqueuePaymentSettled(payload)
	}
	return d.spawn(func(ctx context.Context) {
		if err := d.publish(ctx, d.channel, payload); err != nil {
			logger.Warnw("settled_event_inline_publish_failed",
				"payment_id", payload.PaymentID,
				"channel", d.channel,
				"error", err,
			)
		}
	})
}

// spawn 在进程内协程执行任务，关闭后拒绝
func (d *QueueSettlementDispatcher) spawn(task func(ctx context.Context)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		task(d.ctx)
	}()
	return nil
}

// Close 停止接收新任务，等待进程内任务完成，ctx 到期后强制取消
func (d *QueueSettlementDispatcher) Close(ctx context.Context) {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	d.cancel()
	d.wg.Wait()
}

// SettledEvent 推送给下游 webhook 分发的事件体
type SettledEvent struct {
	Event string                      `json:"event"`
	Data  queue.PaymentSettledPayload `json:"data"`
}

// PublishSettledEvent 向 Redis 频道发布到账事件
func PublishSettledEvent(ctx context.Context, channel string, payload queue.PaymentSettledPayload) error {
	if !cache.Enabled() {
		logger.Debugw("settled_event_publish_skip_redis_disabled", "payment_id", payload.PaymentID)
		return nil
	}
	return cache.PublishJSON(ctx, channel, SettledEvent{
		Event: constants.SettlementEventSettled,
		Data:  payload,
	})
}
