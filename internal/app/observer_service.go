package app

import (
	"context"
	"errors"
	"sync"

	"github.com/settlepay/internal/service"
)

// ObserverService 账本观察器常驻服务
type ObserverService struct {
	name     string
	observer *service.ObserverService

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewObserverService 创建观察器服务
func NewObserverService(observer *service.ObserverService) *ObserverService {
	return &ObserverService{
		name:     "observer",
		observer: observer,
	}
}

// Name 服务名称
func (s *ObserverService) Name() string {
	if s == nil || s.name == "" {
		return "observer"
	}
	return s.name
}

// Start 启动轮询，阻塞直到 ctx 取消或 Stop
func (s *ObserverService) Start(ctx context.Context) error {
	if s == nil || s.observer == nil {
		return errors.New("observer not initialized")
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	defer close(done)
	s.observer.Run(runCtx)
	return nil
}

// Stop 取消轮询并等待当前 tick 退出
func (s *ObserverService) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
