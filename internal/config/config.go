// Package config provides configuration management for the portfolio rebalancer.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Store backends
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Store    StoreConfig
	Database DatabaseConfig
	Engine   EngineConfig
	Retry    RetryConfig
	Logging  LoggingConfig
}

// StoreConfig selects the key-value backend holding engine state
type StoreConfig struct {
	Backend   string
	KeyPrefix string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// URL returns the connection URL used by migrations
func (c *PostgresConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database,
	)
}

// ClickHouseConfig holds ClickHouse configuration. History mirroring is
// disabled when Enabled is false.
type ClickHouseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// EngineConfig holds the owner-controlled protocol parameters
type EngineConfig struct {
	Registrar             common.Address
	Oracle                common.Address
	FeeRecipient          common.Address
	BaseFeeBps            uint64
	MaxPerformanceFeeBps  uint64
	RebalanceWindow       uint64 // logical height units
	DeviationThresholdBps uint64
	MaxSlippageBps        uint64
	MaxTrades             int
	MaxTokens             int
	BaseCost              uint64
	CostPerTrade          uint64
}

// RetryConfig holds store retry configuration
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	engine, err := loadEngineConfig()
	if err != nil {
		return nil, err
	}

	config := &Config{
		Store: StoreConfig{
			Backend:   strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
			KeyPrefix: getEnv("STORE_KEY_PREFIX", "rebalancer"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "rebalancer"),
				User:           getEnv("POSTGRES_USER", "rebalancer"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Enabled:  getEnvAsBool("CLICKHOUSE_ENABLED", false),
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "rebalancer"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Engine: engine,
		Retry: RetryConfig{
			MaxAttempts:  getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			InitialDelay: getEnvAsDuration("RETRY_INITIAL_DELAY", 100*time.Millisecond),
			MaxDelay:     getEnvAsDuration("RETRY_MAX_DELAY", 2*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	switch config.Store.Backend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", config.Store.Backend)
	}

	return config, nil
}

func loadEngineConfig() (EngineConfig, error) {
	registrar, err := getEnvAsAddress("ENGINE_REGISTRAR", common.Address{})
	if err != nil {
		return EngineConfig{}, err
	}
	oracle, err := getEnvAsAddress("ENGINE_ORACLE", registrar)
	if err != nil {
		return EngineConfig{}, err
	}
	feeRecipient, err := getEnvAsAddress("ENGINE_FEE_RECIPIENT", registrar)
	if err != nil {
		return EngineConfig{}, err
	}

	cfg := EngineConfig{
		Registrar:             registrar,
		Oracle:                oracle,
		FeeRecipient:          feeRecipient,
		BaseFeeBps:            getEnvAsUint64("ENGINE_BASE_FEE_BPS", 50),
		MaxPerformanceFeeBps:  getEnvAsUint64("ENGINE_MAX_PERFORMANCE_FEE_BPS", 2000),
		RebalanceWindow:       getEnvAsUint64("ENGINE_REBALANCE_WINDOW", 144),
		DeviationThresholdBps: getEnvAsUint64("ENGINE_DEVIATION_THRESHOLD_BPS", 100),
		MaxSlippageBps:        getEnvAsUint64("ENGINE_MAX_SLIPPAGE_BPS", 500),
		MaxTrades:             getEnvAsInt("ENGINE_MAX_TRADES", 20),
		MaxTokens:             getEnvAsInt("ENGINE_MAX_TOKENS", 20),
		BaseCost:              getEnvAsUint64("ENGINE_BASE_COST", 50_000),
		CostPerTrade:          getEnvAsUint64("ENGINE_COST_PER_TRADE", 25_000),
	}

	if cfg.MaxPerformanceFeeBps > 10_000 {
		return EngineConfig{}, fmt.Errorf("ENGINE_MAX_PERFORMANCE_FEE_BPS must not exceed 10000")
	}
	if cfg.MaxSlippageBps > 10_000 {
		return EngineConfig{}, fmt.Errorf("ENGINE_MAX_SLIPPAGE_BPS must not exceed 10000")
	}

	return cfg, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsUint64 gets an environment variable as an unsigned integer with a default value
func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsAddress gets an environment variable as a hex identity. A malformed
// value is an error, never the default.
func getEnvAsAddress(key string, defaultValue common.Address) (common.Address, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	if !common.IsHexAddress(valueStr) {
		return common.Address{}, fmt.Errorf("%s is not a valid hex address: %q", key, valueStr)
	}
	return common.HexToAddress(valueStr), nil
}
