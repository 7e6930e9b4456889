package app

import (
	"context"
	"errors"

	"github.com/settlepay/internal/cache"
	"github.com/settlepay/internal/config"
	"github.com/settlepay/internal/logger"
	"github.com/settlepay/internal/provider"
	"github.com/settlepay/internal/router"
	"github.com/settlepay/internal/worker"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	container, err := provider.NewContainer(cfg)
	if err != nil {
		return nil, err
	}

	var services []Service

	// 初始化 HTTP 服务
	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		httpService := NewHTTPService(addr, engine)
		services = append(services, httpService)
	}

	// 初始化 Worker 服务与账本观察器
	if mode == ModeAll || mode == ModeWorker {
		if cfg.Queue.Enabled {
			consumer := worker.NewConsumer(container)
			workerService, err := worker.NewService(&cfg.Queue, consumer)
			if err != nil {
				return nil, err
			}
			services = append(services, workerService)
		} else {
			logger.Warnw("app_queue_disabled", "fallback", "inline_dispatch")
		}
		if cfg.Observer.Enabled {
			services = append(services, NewObserverService(container.ObserverService))
		}
	}

	// 如果没有服务被启动（例如模式错误或配置导致都没起），应该报错或至少打日志
	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}

	runner := NewRunner(services...)
	runner.OnShutdown(func(ctx context.Context) {
		container.Dispatcher.Close(ctx)
		if err := container.QueueClient.Close(); err != nil {
			logger.Warnw("app_queue_client_close_failed", "error", err)
		}
		if err := cache.Close(); err != nil {
			logger.Warnw("app_redis_close_failed", "error", err)
		}
	})
	return runner, nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}

	addr := opts.Config.Server.Host + ":" + opts.Config.Server.Port
	opts.Logger.Infow("app_start", "addr", addr, "mode", opts.Mode)
	return RunWithOptions(runner, opts)
}
