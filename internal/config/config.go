// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds every setting of the holderd process.
type Config struct {
	RPCEndpoint string `env:"SOLANA_RPC_ENDPOINT" envDefault:"https://api.mainnet-beta.solana.com"`

	StoreDriver   string `env:"STORE_DRIVER"   envDefault:"sqlite"`
	SQLitePath    string `env:"SQLITE_PATH"    envDefault:"data/holder-roles.db"`
	PostgresDSN   string `env:"POSTGRES_DSN"`
	ClickhouseDSN string `env:"CLICKHOUSE_DSN"`

	// DisableRemoveRoles runs sweeps read-only: nothing is revoked and nothing is persisted.
	DisableRemoveRoles    bool `env:"DISABLE_REMOVE_ROLES"`
	ReloadIntervalMinutes int  `env:"RELOAD_INTERVAL_MINUTES" envDefault:"0"`
	CommunityDonation     int  `env:"COMMUNITY_DONATION"      envDefault:"0"`
	MaxFreeVerifications  int  `env:"MAX_FREE_VERIFICATIONS"  envDefault:"-1"`

	// DonationAuthority is the update authority of donation NFTs.
	DonationAuthority string `env:"UPDATE_AUTHORITY"`

	DiscordBotToken string `env:"DISCORD_BOT_TOKEN"`
	DiscordAPIBase  string `env:"DISCORD_API_BASE"`

	RPCConcurrency      int `env:"RPC_CONCURRENCY"      envDefault:"5"`
	HolderConcurrency   int `env:"HOLDER_CONCURRENCY"   envDefault:"10"`
	MetadataConcurrency int `env:"METADATA_CONCURRENCY" envDefault:"25"`
	ProjectConcurrency  int `env:"PROJECT_CONCURRENCY"  envDefault:"10"`
	RPCMaxAttempts      int `env:"RPC_MAX_ATTEMPTS"     envDefault:"10"`

	// RPCTimeout bounds one JSON-RPC request. Zero disables the limit.
	RPCTimeout time.Duration `env:"RPC_TIMEOUT" envDefault:"30s"`

	MetricsAddr        string        `env:"METRICS_ADDR"           envDefault:":9090"`
	OTelEndpoint       string        `env:"OTEL_EXPORTER_ENDPOINT"`
	RevalidateInterval time.Duration `env:"REVALIDATE_INTERVAL"    envDefault:"1h"`
}

// Load reads the .env file at path, if any, and parses the environment.
// Callers apply overrides and then call Validate.
func Load(path string) (*Config, error) {
	LoadEnvFile(path)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Validate checks settings that cannot be expressed as defaults.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the %s store", DriverSQLite)
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the %s store", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (memory, sqlite, postgres)", c.StoreDriver)
	}
	if c.RPCEndpoint == "" {
		return fmt.Errorf("SOLANA_RPC_ENDPOINT is required")
	}
	if c.RPCConcurrency <= 0 || c.HolderConcurrency <= 0 || c.ProjectConcurrency <= 0 {
		return fmt.Errorf("concurrency limits must be positive")
	}
	if c.RPCMaxAttempts <= 0 {
		return fmt.Errorf("RPC_MAX_ATTEMPTS must be positive, got %d", c.RPCMaxAttempts)
	}
	if c.RevalidateInterval <= 0 {
		return fmt.Errorf("REVALIDATE_INTERVAL must be positive, got %s", c.RevalidateInterval)
	}
	return nil
}

// ReloadInterval is the minimum gap between two sweeps of one project.
func (c *Config) ReloadInterval() time.Duration {
	if c.ReloadIntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(c.ReloadIntervalMinutes) * time.Minute
}

// LoadEnvFile loads environment variables from path if it exists.
// Variables already set in the environment win.
func LoadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		if _, ok := os.LookupEnv(key); !ok {
			os.Setenv(key, value)
		}
	}
}
