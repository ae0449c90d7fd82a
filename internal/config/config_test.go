package config

import (
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestLoadConfig(t *testing.T) {
	// Set some test environment variables
	if err := os.Setenv("STORE_BACKEND", "Redis"); err != nil {
		t.Fatalf("Failed to set STORE_BACKEND: %v", err)
	}
	if err := os.Setenv("POSTGRES_HOST", "testhost"); err != nil {
		t.Fatalf("Failed to set POSTGRES_HOST: %v", err)
	}
	if err := os.Setenv("RETRY_MAX_DELAY", "5s"); err != nil {
		t.Fatalf("Failed to set RETRY_MAX_DELAY: %v", err)
	}
	if err := os.Setenv("ENGINE_REGISTRAR", "0x00000000000000000000000000000000000000a1"); err != nil {
		t.Fatalf("Failed to set ENGINE_REGISTRAR: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("STORE_BACKEND")
		_ = os.Unsetenv("POSTGRES_HOST")
		_ = os.Unsetenv("RETRY_MAX_DELAY")
		_ = os.Unsetenv("ENGINE_REGISTRAR")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Store.Backend != BackendRedis {
		t.Errorf("Store.Backend = %v, want %v", cfg.Store.Backend, BackendRedis)
	}

	if cfg.Database.Postgres.Host != "testhost" {
		t.Errorf("Database.Postgres.Host = %v, want %v", cfg.Database.Postgres.Host, "testhost")
	}

	if cfg.Retry.MaxDelay != 5*time.Second {
		t.Errorf("Retry.MaxDelay = %v, want %v", cfg.Retry.MaxDelay, 5*time.Second)
	}

	registrar := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	if cfg.Engine.Registrar != registrar {
		t.Errorf("Engine.Registrar = %v, want %v", cfg.Engine.Registrar, registrar)
	}

	// oracle and fee recipient default to the registrar
	if cfg.Engine.Oracle != registrar || cfg.Engine.FeeRecipient != registrar {
		t.Errorf("Engine.Oracle = %v, FeeRecipient = %v, want registrar", cfg.Engine.Oracle, cfg.Engine.FeeRecipient)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Store.Backend != BackendMemory {
		t.Errorf("Store.Backend = %v, want %v", cfg.Store.Backend, BackendMemory)
	}
	if cfg.Engine.BaseFeeBps != 50 {
		t.Errorf("Engine.BaseFeeBps = %v, want 50", cfg.Engine.BaseFeeBps)
	}
	if cfg.Engine.RebalanceWindow != 144 {
		t.Errorf("Engine.RebalanceWindow = %v, want 144", cfg.Engine.RebalanceWindow)
	}
	if cfg.Engine.MaxSlippageBps != 500 {
		t.Errorf("Engine.MaxSlippageBps = %v, want 500", cfg.Engine.MaxSlippageBps)
	}
	if cfg.Engine.MaxTrades != 20 {
		t.Errorf("Engine.MaxTrades = %v, want 20", cfg.Engine.MaxTrades)
	}
	if cfg.Database.ClickHouse.Enabled {
		t.Error("Database.ClickHouse.Enabled = true, want false")
	}
}

func TestLoadConfigRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown backend", "STORE_BACKEND", "etcd"},
		{"malformed registrar", "ENGINE_REGISTRAR", "not-an-address"},
		{"slippage ceiling above 100%", "ENGINE_MAX_SLIPPAGE_BPS", "10001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := LoadConfig(); err == nil {
				t.Errorf("LoadConfig() error = nil, want error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestPostgresURL(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: "5432", Database: "rb", User: "u", Password: "p"}
	want := "postgres://u:p@db:5432/rb?sslmode=disable"
	if got := cfg.URL(); got != want {
		t.Errorf("URL() = %v, want %v", got, want)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_KEY",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "NONEXISTENT_KEY",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				if err := os.Setenv(tt.key, tt.envValue); err != nil {
					t.Fatalf("Failed to set env var: %v", err)
				}
				defer func() {
					_ = os.Unsetenv(tt.key)
				}()
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		want         int
	}{
		{
			name:         "returns integer when valid",
			key:          "TEST_INT",
			defaultValue: 100,
			envValue:     "200",
			want:         200,
		},
		{
			name:         "returns default when invalid",
			key:          "TEST_INT_INVALID",
			defaultValue: 100,
			envValue:     "invalid",
			want:         100,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_INT_NOTSET",
			defaultValue: 100,
			envValue:     "",
			want:         100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				if err := os.Setenv(tt.key, tt.envValue); err != nil {
					t.Fatalf("Failed to set env var: %v", err)
				}
				defer func() {
					_ = os.Unsetenv(tt.key)
				}()
			}

			got := getEnvAsInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{
			name:         "returns duration when valid",
			key:          "TEST_DURATION",
			defaultValue: 10 * time.Second,
			envValue:     "30s",
			want:         30 * time.Second,
		},
		{
			name:         "returns default when invalid",
			key:          "TEST_DURATION_INVALID",
			defaultValue: 10 * time.Second,
			envValue:     "invalid",
			want:         10 * time.Second,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_DURATION_NOTSET",
			defaultValue: 10 * time.Second,
			envValue:     "",
			want:         10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				if err := os.Setenv(tt.key, tt.envValue); err != nil {
					t.Fatalf("Failed to set env var: %v", err)
				}
				defer func() {
					_ = os.Unsetenv(tt.key)
				}()
			}

			got := getEnvAsDuration(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsUint64(t *testing.T) {
	t.Setenv("TEST_UINT", "18446744073709551615")
	if got := getEnvAsUint64("TEST_UINT", 1); got != 18446744073709551615 {
		t.Errorf("getEnvAsUint64() = %v, want max uint64", got)
	}

	t.Setenv("TEST_UINT_NEG", "-5")
	if got := getEnvAsUint64("TEST_UINT_NEG", 7); got != 7 {
		t.Errorf("getEnvAsUint64() = %v, want default 7", got)
	}
}

func TestGetEnvAsAddress(t *testing.T) {
	def := common.HexToAddress("0x0000000000000000000000000000000000000001")

	got, err := getEnvAsAddress("TEST_ADDR_NOTSET", def)
	if err != nil || got != def {
		t.Errorf("getEnvAsAddress() = %v, %v, want default", got, err)
	}

	t.Setenv("TEST_ADDR", "0x00000000000000000000000000000000000000ff")
	got, err = getEnvAsAddress("TEST_ADDR", def)
	if err != nil {
		t.Fatalf("getEnvAsAddress() error = %v", err)
	}
	if got != common.HexToAddress("0xff") {
		t.Errorf("getEnvAsAddress() = %v", got)
	}

	t.Setenv("TEST_ADDR_BAD", "0x123")
	if _, err := getEnvAsAddress("TEST_ADDR_BAD", def); err == nil {
		t.Error("getEnvAsAddress() error = nil, want error for short address")
	}
}
