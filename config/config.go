package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

const (
	StoreMemory = "memory"
	StoreBadger = "badger"
	StoreRedis  = "redis"
)

// LedgerConfig controls how clients reach and poll a ledger node.
type LedgerConfig struct {
	Endpoint       string        `env:"LEDGER_RPC_URL"         envDefault:"http://localhost:8899"`
	ConfirmTimeout time.Duration `env:"LEDGER_CONFIRM_TIMEOUT" envDefault:"30s"`
	PollInterval   time.Duration `env:"LEDGER_POLL_INTERVAL"   envDefault:"500ms"`
}

func (c *LedgerConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New("ledger endpoint is required")
	}
	if c.ConfirmTimeout <= 0 {
		return errors.Errorf("confirm timeout must be positive, got %s", c.ConfirmTimeout)
	}
	if c.PollInterval <= 0 {
		return errors.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

type DemoConfig struct {
	Ledger LedgerConfig

	AccountSize     uint64 `env:"DEMO_ACCOUNT_SIZE"     envDefault:"1000"`
	AirdropLamports uint64 `env:"DEMO_AIRDROP_LAMPORTS" envDefault:"5000000000"`
	// SkipTamper submits the re-parsed transaction without modifying it.
	SkipTamper bool `env:"DEMO_SKIP_TAMPER"`
	Debug      bool `env:"DEBUG"`
}

func (c *DemoConfig) Validate() error {
	if err := c.Ledger.Validate(); err != nil {
		return err
	}
	if c.AirdropLamports == 0 {
		return errors.New("airdrop lamports must be positive")
	}
	return nil
}

// DevnetConfig configures the local ledger node.
type DevnetConfig struct {
	ListenAddr     string        `env:"DEVNET_LISTEN_ADDR"     envDefault:":8899"`
	Store          string        `env:"DEVNET_STORE"           envDefault:"memory"`
	DataDir        string        `env:"DEVNET_DATA_DIR"        envDefault:"./devnet-data"`
	RedisAddr      string        `env:"DEVNET_REDIS_ADDR"      envDefault:"localhost:6379"`
	RedisDB        int           `env:"DEVNET_REDIS_DB"        envDefault:"0"`
	SlotInterval   time.Duration `env:"DEVNET_SLOT_INTERVAL"   envDefault:"400ms"`
	FaucetSeed     string        `env:"DEVNET_FAUCET_SEED"     envDefault:"devnet-faucet"`
	FaucetLamports uint64        `env:"DEVNET_FAUCET_LAMPORTS" envDefault:"500000000000000000"`
	Debug          bool          `env:"DEBUG"`
}

func (c *DevnetConfig) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StoreBadger:
		if c.DataDir == "" {
			return errors.New("data dir is required for the badger store")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("redis address is required for the redis store")
		}
	default:
		return errors.Errorf("unknown store %q", c.Store)
	}
	if c.SlotInterval <= 0 {
		return errors.Errorf("slot interval must be positive, got %s", c.SlotInterval)
	}
	if c.FaucetSeed == "" {
		return errors.New("faucet seed is required")
	}
	return nil
}

func LoadDemoConfig() (*DemoConfig, error) {
	return load(&DemoConfig{})
}

func LoadDevnetConfig() (*DevnetConfig, error) {
	return load(&DevnetConfig{})
}

func load[T any](cfg *T) (*T, error) {
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse env")
	}
	return cfg, nil
}
