package provider

import (
	"fmt"

	"github.com/settlepay/internal/authz"
	"github.com/settlepay/internal/cache"
	"github.com/settlepay/internal/config"
	"github.com/settlepay/internal/custody"
	"github.com/settlepay/internal/ledger"
	"github.com/settlepay/internal/ledger/horizon"
	"github.com/settlepay/internal/logger"
	"github.com/settlepay/internal/models"
	"github.com/settlepay/internal/queue"
	"github.com/settlepay/internal/repository"
	"github.com/settlepay/internal/service"
	"github.com/settlepay/internal/verifier"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	QueueClient *queue.Client

	// 外部协作方
	LedgerClient   ledger.Client
	VerifierClient verifier.Client
	Deriver        *custody.Deriver

	// Repositories
	PaymentRepo    repository.PaymentRepository
	SweepAuditRepo repository.SweepAuditRepository

	// Services
	AuthzService        *authz.Service
	AuthService         *service.AuthService
	VerificationService *service.VerificationService
	Dispatcher          *service.QueueSettlementDispatcher
	ObserverService     *service.ObserverService
	SweepService        *service.SweepService
	SweepAuditService   *service.SweepAuditService
	PaymentAdminService *service.PaymentAdminService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) (*Container, error) {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient, _ = queue.NewClient(nil)
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化外部协作方
	if err := c.initClients(); err != nil {
		return nil, err
	}

	// 2. 初始化 Repositories
	c.initRepositories()

	// 3. 初始化 Services
	c.initServices()

	return c, nil
}

func (c *Container) initClients() error {
	ledgerClient, err := horizon.NewClient(c.Config.Ledger)
	if err != nil {
		return fmt.Errorf("init ledger client failed: %w", err)
	}
	c.LedgerClient = ledgerClient

	deriver, err := custody.NewDeriver(c.Config.Custody.RootSecret)
	if err != nil {
		// 未配置根密钥时观察器照常运行，归集会逐笔跳过
		logger.Errorw("provider_init_custody_deriver_failed", "error", err)
	} else {
		c.Deriver = deriver
	}

	verifierCfg := c.Config.Verifier
	if verifierCfg.Enabled {
		client, err := verifier.NewHTTPClient(verifier.Config{
			Endpoint:   verifierCfg.Endpoint,
			AuthToken:  verifierCfg.AuthToken,
			ContractID: verifierCfg.ContractID,
			Timeout:    verifierCfg.Timeout(),
		})
		if err != nil {
			logger.Warnw("provider_init_verifier_failed", "error", err)
		} else {
			c.VerifierClient = client
		}
	}
	return nil
}

func (c *Container) initRepositories() {
	db := models.DB
	c.DB = db
	c.PaymentRepo = repository.NewPaymentRepository(db)
	c.SweepAuditRepo = repository.NewSweepAuditRepository(db)
}

func (c *Container) initServices() {
	if c.Config.Authz.Enabled {
		c.initAuthz()
	}
	c.AuthService = service.NewAuthService(&c.Config.JWT)
	c.VerificationService = service.NewVerificationService(c.Config.Verifier, c.PaymentRepo, c.VerifierClient)
	c.Dispatcher = service.NewQueueSettlementDispatcher(c.QueueClient, c.VerificationService, c.Config.Notify.Channel)
	c.ObserverService = service.NewObserverService(c.Config.Observer, c.PaymentRepo, c.LedgerClient, c.Dispatcher)
	c.SweepAuditService = service.NewSweepAuditService(c.SweepAuditRepo)
	c.SweepService = service.NewSweepService(c.Config.Sweep, c.Config.Vault.Address, c.PaymentRepo, c.LedgerClient, c.Deriver, c.SweepAuditService)
	c.PaymentAdminService = service.NewPaymentAdminService(c.PaymentRepo, c.Dispatcher)
}

func (c *Container) initAuthz() {
	if c.DB == nil {
		logger.Warnw("provider_init_authz_skipped", "reason", "db_not_initialized")
		return
	}
	authzService, err := authz.NewService(c.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		return
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_authz_bootstrap_roles_failed", "error", err)
	}
	if err := authzService.BootstrapOperatorRoles(c.Config.Authz.OperatorRoles); err != nil {
		logger.Errorw("provider_authz_bootstrap_operators_failed", "error", err)
	}
	c.AuthzService = authzService
}
