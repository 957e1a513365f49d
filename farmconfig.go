package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// FarmConfig is the daemon/CLI configuration, loaded from a yaml file with
// FARM_ environment overrides (FARM_LISTEN, FARM_DB_PATH, and for nested
// keys a double underscore: FARM_BOOSTED__STAKE_TOKEN).
type FarmConfig struct {
	Listen           string          `koanf:"listen"`
	DBPath           string          `koanf:"db_path"`
	Owner            string          `koanf:"owner"`
	Custody          string          `koanf:"custody"`
	SnapshotInterval int             `koanf:"snapshot_interval"` // seconds, 0 disables
	Tokens           []TokenConfig   `koanf:"tokens"`
	Boosted          BoostedConfig   `koanf:"boosted"`
	Minter           MinterConfig    `koanf:"minter"`
	Balances         []BalanceConfig `koanf:"balances"`
}

// TokenConfig declares a stakeable token known to the daemon.
type TokenConfig struct {
	ID  string `koanf:"id"`
	APY int64  `koanf:"apy"` // 0 keeps the default
}

// BoostedConfig declares the boosted ledger's token pair and the LP pool
// figures used by the converter.
type BoostedConfig struct {
	StakeToken  string `koanf:"stake_token"`
	RewardToken string `koanf:"reward_token"`
	PoolReserve string `koanf:"pool_reserve"`
	PoolSupply  string `koanf:"pool_supply"`
}

// MinterConfig declares the NFT minter: its display identity, the token its
// flat minting fee is paid in, and the metadata uri prefix.
type MinterConfig struct {
	Name      string `koanf:"name"`
	Symbol    string `koanf:"symbol"`
	FeeToken  string `koanf:"fee_token"`
	Fee       string `koanf:"fee"` // empty keeps the default
	URIPrefix string `koanf:"uri_prefix"`
}

// BalanceConfig seeds an account balance on a token at startup.
type BalanceConfig struct {
	Token   string `koanf:"token"`
	Account string `koanf:"account"`
	Amount  string `koanf:"amount"`
}

func loadConfig(path string) (*FarmConfig, error) {
	k := koanf.New(".")
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	}
	err := k.Load(env.Provider("FARM_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "FARM_")), "__", ".", -1)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}
	cfg := &FarmConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (cfg *FarmConfig) applyDefaults() {
	if cfg.Listen == "" {
		cfg.Listen = ":8778"
	}
	if cfg.Owner == "" {
		cfg.Owner = "owner"
	}
	if cfg.Custody == "" {
		cfg.Custody = "custody"
	}
	if cfg.SnapshotInterval == 0 {
		cfg.SnapshotInterval = 60
	}
	if cfg.Boosted.StakeToken == "" {
		cfg.Boosted.StakeToken = "umi"
	}
	if cfg.Boosted.RewardToken == "" {
		cfg.Boosted.RewardToken = "umi"
	}
	if cfg.Minter.Name == "" {
		cfg.Minter.Name = "NftMinter"
	}
	if cfg.Minter.Symbol == "" {
		cfg.Minter.Symbol = "Nft"
	}
	if cfg.Minter.FeeToken == "" {
		cfg.Minter.FeeToken = cfg.Boosted.RewardToken
	}
	if cfg.Minter.URIPrefix == "" {
		cfg.Minter.URIPrefix = "https://umi.digital/"
	}
}
