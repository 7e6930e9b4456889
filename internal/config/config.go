package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/settlepay/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Vault    VaultConfig    `mapstructure:"vault"`
	Custody  CustodyConfig  `mapstructure:"custody"`
	Observer ObserverConfig `mapstructure:"observer"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Verifier VerifierConfig `mapstructure:"verifier"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Security SecurityConfig `mapstructure:"security"`
	Authz    AuthzConfig    `mapstructure:"authz"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig 管理端 JWT 配置
type JWTConfig struct {
	SecretKey   string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// LedgerConfig 账本（Horizon）配置
type LedgerConfig struct {
	HorizonURL        string `mapstructure:"horizon_url"`
	NetworkPassphrase string `mapstructure:"network_passphrase"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	TxTimeoutSeconds  int64  `mapstructure:"tx_timeout_seconds"`
	BaseFee           int64  `mapstructure:"base_fee"`
}

// Timeout 单次账本调用超时
func (c LedgerConfig) Timeout() time.Duration {
	return secondsOrDefault(c.TimeoutSeconds, 20)
}

// VaultConfig 归集目标地址
type VaultConfig struct {
	Address string `mapstructure:"address"`
}

// CustodyConfig 托管地址派生配置
type CustodyConfig struct {
	RootSecret string `mapstructure:"root_secret"`
}

// ObserverConfig 账本观察器配置
type ObserverConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds"`
	BatchSize       int  `mapstructure:"batch_size"`
	PageSize        int  `mapstructure:"page_size"`
	LockTTLSeconds  int  `mapstructure:"lock_ttl_seconds"`
}

// Interval 轮询间隔
func (c ObserverConfig) Interval() time.Duration {
	return secondsOrDefault(c.IntervalSeconds, 90)
}

// LockTTL 单飞锁租期
func (c ObserverConfig) LockTTL() time.Duration {
	return secondsOrDefault(c.LockTTLSeconds, 600)
}

// SweepConfig 归集配置
type SweepConfig struct {
	DefaultLimit   int `mapstructure:"default_limit"`
	MaxLimit       int `mapstructure:"max_limit"`
	LockTTLSeconds int `mapstructure:"lock_ttl_seconds"`
}

// LockTTL 单飞锁租期
func (c SweepConfig) LockTTL() time.Duration {
	return secondsOrDefault(c.LockTTLSeconds, 900)
}

// VerifierConfig 链上核验合约网关配置
type VerifierConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Endpoint         string `mapstructure:"endpoint"`
	AuthToken        string `mapstructure:"auth_token"`
	ContractID       string `mapstructure:"contract_id"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxAttempts      int    `mapstructure:"max_attempts"`
	InitialBackoffMS int    `mapstructure:"initial_backoff_ms"`
	MaxBackoffMS     int    `mapstructure:"max_backoff_ms"`
	PollAttempts     int    `mapstructure:"poll_attempts"`
	PollIntervalMS   int    `mapstructure:"poll_interval_ms"`
}

// Timeout 单次核验调用超时
func (c VerifierConfig) Timeout() time.Duration {
	return secondsOrDefault(c.TimeoutSeconds, 15)
}

// NotifyConfig 结算事件通知配置
type NotifyConfig struct {
	Channel string `mapstructure:"channel"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	AdminActionRateLimit RateLimitConfig `mapstructure:"admin_action_rate_limit"`
}

// AuthzConfig 运维操作人 RBAC 配置
type AuthzConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// OperatorRoles 启动时覆盖写入的操作人角色（操作人名统一小写）
	OperatorRoles map[string][]string `mapstructure:"operator_roles"`
}

// RateLimitConfig 运维操作限流配置（归集、手动轮询）
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

func secondsOrDefault(value int, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("./etc")

	setDefaults()

	// 本地开发可用 .env 注入环境变量，已存在的环境变量优先
	if err := godotenv.Load(); err == nil {
		logger.Infow("config_dotenv_loaded", "file", ".env")
	}

	// 环境变量支持（例如 ledger.horizon_url -> LEDGER_HORIZON_URL）
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}

	return &cfg
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("log.dir", "")
	viper.SetDefault("log.filename", "settlement.log")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 7)
	viper.SetDefault("log.max_age_days", 30)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "./db/settlement.db")
	viper.SetDefault("database.pool.max_open_conns", 1)
	viper.SetDefault("database.pool.max_idle_conns", 1)
	viper.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	viper.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expire_hours", 24)
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "127.0.0.1")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "sp")
	viper.SetDefault("queue.enabled", true)
	viper.SetDefault("queue.host", "127.0.0.1")
	viper.SetDefault("queue.port", 6379)
	viper.SetDefault("queue.password", "")
	viper.SetDefault("queue.db", 1)
	viper.SetDefault("queue.concurrency", 10)
	viper.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	viper.SetDefault("ledger.horizon_url", "https://horizon-testnet.stellar.org")
	viper.SetDefault("ledger.network_passphrase", "Test SDF Network ; September 2015")
	viper.SetDefault("ledger.timeout_seconds", 20)
	viper.SetDefault("ledger.tx_timeout_seconds", 300)
	viper.SetDefault("ledger.base_fee", 100)
	viper.SetDefault("vault.address", "")
	viper.SetDefault("custody.root_secret", "")
	viper.SetDefault("observer.enabled", true)
	viper.SetDefault("observer.interval_seconds", 90)
	viper.SetDefault("observer.batch_size", 200)
	viper.SetDefault("observer.page_size", 10)
	viper.SetDefault("observer.lock_ttl_seconds", 600)
	viper.SetDefault("sweep.default_limit", 50)
	viper.SetDefault("sweep.max_limit", 500)
	viper.SetDefault("sweep.lock_ttl_seconds", 900)
	viper.SetDefault("verifier.enabled", true)
	viper.SetDefault("verifier.endpoint", "")
	viper.SetDefault("verifier.auth_token", "")
	viper.SetDefault("verifier.contract_id", "")
	viper.SetDefault("verifier.timeout_seconds", 15)
	viper.SetDefault("verifier.max_attempts", 3)
	viper.SetDefault("verifier.initial_backoff_ms", 1000)
	viper.SetDefault("verifier.max_backoff_ms", 10000)
	viper.SetDefault("verifier.poll_attempts", 10)
	viper.SetDefault("verifier.poll_interval_ms", 2000)
	viper.SetDefault("notify.channel", "settlement:events")
	viper.SetDefault("cors.allowed_origins", []string{"*"})
	viper.SetDefault("cors.allow_credentials", false)
	viper.SetDefault("cors.max_age", 600)
	viper.SetDefault("security.admin_action_rate_limit.window_seconds", 60)
	viper.SetDefault("security.admin_action_rate_limit.max_requests", 10)
	viper.SetDefault("authz.enabled", false)
}
