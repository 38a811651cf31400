package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	CashBack  CashBackConfig  `mapstructure:"cashback"`
	Reaper    ReaperConfig    `mapstructure:"reaper"`
	Deposits  DepositsConfig  `mapstructure:"deposits"`
	Events    EventsConfig    `mapstructure:"events"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test

	// InternalToken guards /internal routes; empty disables them.
	InternalToken string `mapstructure:"internal_token"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	// Session limits; zero leaves the server default.
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	LockTimeout      time.Duration `mapstructure:"lock_timeout"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// RedisConfig backs the resubmit guard and the rate limiter. Both issue
// single short commands, so tight timeouts keep a slow Redis from stalling
// ledger requests.
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig describes the tokens minted by the external auth service.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// LedgerConfig tunes the transfer engine.
type LedgerConfig struct {
	Currency       string        `mapstructure:"currency"`
	TxTimeout      time.Duration `mapstructure:"tx_timeout"`
	ResubmitTTL    time.Duration `mapstructure:"resubmit_ttl"`
	LedgerPageSize int           `mapstructure:"ledger_page_size"`
}

// CashBackConfig holds fallbacks used when the settings table has no row.
type CashBackConfig struct {
	DefaultThreshold   string `mapstructure:"default_threshold"`
	DefaultExpiredDays int    `mapstructure:"default_expired_days"`
}

type ReaperConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

// DepositsConfig controls provider top-up orders and the background job
// that polls pending ones.
type DepositsConfig struct {
	OrderTTL      time.Duration `mapstructure:"order_ttl"`
	Subject       string        `mapstructure:"subject"`
	SyncEnabled   bool          `mapstructure:"sync_enabled"`
	SyncInterval  time.Duration `mapstructure:"sync_interval"`
	SyncBatchSize int           `mapstructure:"sync_batch_size"`
}

// EventsConfig controls post-commit transfer events. With no brokers,
// events are written to the log.
type EventsConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// GatewayConfig registers an HTTP payout gateway next to the manual provider.
type GatewayConfig struct {
	Name           string          `mapstructure:"name"`
	BaseURL        string          `mapstructure:"base_url"`
	AppID          string          `mapstructure:"app_id"`
	Secret         string          `mapstructure:"secret"`
	Timeout        time.Duration   `mapstructure:"timeout"`
	RetryIntervals []time.Duration `mapstructure:"retry_intervals"`
}

type RateLimitConfig struct {
	Limit  int64         `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: WLE_ (Wallet Ledger Engine).
// Nested keys use underscore: WLE_DATABASE_HOST, WLE_LEDGER_TX_TIMEOUT, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.internal_token", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "wallet_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.statement_timeout", "10s")
	v.SetDefault("database.lock_timeout", "3s")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", "2s")
	v.SetDefault("redis.read_timeout", "500ms")
	v.SetDefault("redis.write_timeout", "500ms")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("ledger.currency", "CNY")
	v.SetDefault("ledger.tx_timeout", "5s")
	v.SetDefault("ledger.resubmit_ttl", "300s")
	v.SetDefault("ledger.ledger_page_size", 20)
	v.SetDefault("cashback.default_threshold", "1000")
	v.SetDefault("cashback.default_expired_days", 365)
	v.SetDefault("reaper.enabled", true)
	v.SetDefault("reaper.interval", "24h")
	v.SetDefault("reaper.batch_size", 500)
	v.SetDefault("deposits.order_ttl", "2h")
	v.SetDefault("deposits.subject", "Wallet top-up")
	v.SetDefault("deposits.sync_enabled", true)
	v.SetDefault("deposits.sync_interval", "1m")
	v.SetDefault("deposits.sync_batch_size", 100)
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", []string{})
	v.SetDefault("events.topic", "wallet-ledger.transfers")
	v.SetDefault("gateway.timeout", "10s")
	v.SetDefault("gateway.retry_intervals", []string{"1s", "5s"})
	v.SetDefault("ratelimit.limit", 60)
	v.SetDefault("ratelimit.window", "1m")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// WLE_LEDGER_TX_TIMEOUT -> ledger.tx_timeout
	v.SetEnvPrefix("WLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A config file is optional; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
