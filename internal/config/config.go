// Package config loads gateway configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger backend names.
const (
	LedgerBackendPostgres = "postgres"
	LedgerBackendMemory   = "memory"
)

// Config holds infrastructure-level configuration for the gateway.
type Config struct {
	// Database (required for the postgres ledger backend)
	PostgresDSN   string
	LedgerBackend string // postgres or memory

	// Chain
	RPCURL         string
	WalletAddress  common.Address
	GatewayAddress common.Address
	// RelayerKeyHex funds execution broadcasts. It carries no authorization
	// power; leaving it empty disables the execution path (verify-only mode).
	RelayerKeyHex string

	// Signer policy
	Roster    []common.Address
	Threshold int

	// Server
	Port           int
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		PostgresDSN:    getEnv("POSTGRES_DSN", ""),
		LedgerBackend:  getEnv("LEDGER_BACKEND", LedgerBackendPostgres),
		RPCURL:         getEnv("RPC_URL", ""),
		RelayerKeyHex:  getEnv("RELAYER_PRIVATE_KEY", ""),
		Port:           getEnvInt("PORT", 8080),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 100),
	}

	var err error
	if cfg.WalletAddress, err = parseAddress("WALLET_ADDRESS"); err != nil {
		return nil, err
	}
	if cfg.GatewayAddress, err = parseAddress("GATEWAY_ADDRESS"); err != nil {
		return nil, err
	}
	if cfg.Roster, err = parseRoster(os.Getenv("SIGNER_ROSTER")); err != nil {
		return nil, err
	}
	cfg.Threshold = getEnvInt("SIGNER_THRESHOLD", 0)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.LedgerBackend {
	case LedgerBackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when LEDGER_BACKEND is 'postgres'")
		}
	case LedgerBackendMemory:
	default:
		return fmt.Errorf("LEDGER_BACKEND must be 'postgres' or 'memory', got: %s", c.LedgerBackend)
	}

	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if len(c.Roster) == 0 {
		return fmt.Errorf("SIGNER_ROSTER is required")
	}
	if c.Threshold < 1 || c.Threshold > len(c.Roster) {
		return fmt.Errorf("SIGNER_THRESHOLD must be between 1 and %d, got: %d", len(c.Roster), c.Threshold)
	}
	return nil
}

func parseAddress(key string) (common.Address, error) {
	v := os.Getenv(key)
	if v == "" {
		return common.Address{}, fmt.Errorf("%s is required", key)
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("%s is not a valid address: %s", key, v)
	}
	return common.HexToAddress(v), nil
}

// parseRoster parses a comma-separated address list, preserving order.
func parseRoster(v string) ([]common.Address, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	parts := strings.Split(v, ",")
	roster := make([]common.Address, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if !common.IsHexAddress(p) {
			return nil, fmt.Errorf("SIGNER_ROSTER contains an invalid address: %s", p)
		}
		roster = append(roster, common.HexToAddress(p))
	}
	return roster, nil
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable with a default value.
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvFloat gets a float environment variable with a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
