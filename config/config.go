package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"admarket/native/campaign"
	"admarket/native/marketplace"
)

// Config carries the marketplace operating parameters. Monetary fields are
// decimal strings of minimal units so no precision is lost in transit.
type Config struct {
	DataDir                  string `toml:"DataDir"`
	JournalPath              string `toml:"JournalPath"`
	AdminAddress             string `toml:"AdminAddress"`
	BotAddress               string `toml:"BotAddress"`
	RegistryAddress          string `toml:"RegistryAddress"`
	DeploymentFee            string `toml:"DeploymentFee"`
	MinReserveBuffer         string `toml:"MinReserveBuffer"`
	MinReplenishAmount       string `toml:"MinReplenishAmount"`
	LowBalanceThreshold      string `toml:"LowBalanceThreshold"`
	MaxAffiliatesPerCampaign uint64 `toml:"MaxAffiliatesPerCampaign"`
	LeaderboardSize          int    `toml:"LeaderboardSize"`
}

// Load reads the configuration from path, writing a default file first if
// none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	cfg := Default()
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the parameters written into a fresh config file.
func Default() *Config {
	return &Config{
		DataDir:                  "./data",
		JournalPath:              "./data/events.journal",
		DeploymentFee:            "1000000000",
		MinReserveBuffer:         "2000000000",
		MinReplenishAmount:       "100",
		LowBalanceThreshold:      "0",
		MaxAffiliatesPerCampaign: 10_000,
		LeaderboardSize:          10,
	}
}

// Validate checks that every monetary field parses and that the identities,
// when set, are well-formed 20-byte hex addresses.
func (c *Config) Validate() error {
	for name, field := range map[string]string{
		"DeploymentFee":       c.DeploymentFee,
		"MinReserveBuffer":    c.MinReserveBuffer,
		"MinReplenishAmount":  c.MinReplenishAmount,
		"LowBalanceThreshold": c.LowBalanceThreshold,
	} {
		if _, err := parseAmount(field); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	for name, field := range map[string]string{
		"AdminAddress":    c.AdminAddress,
		"BotAddress":      c.BotAddress,
		"RegistryAddress": c.RegistryAddress,
	} {
		if strings.TrimSpace(field) == "" {
			continue
		}
		if _, err := parseAddress(field); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.LeaderboardSize < 0 {
		return fmt.Errorf("LeaderboardSize must be non-negative")
	}
	return nil
}

// CampaignLimits converts the tunable campaign parameters into engine limits.
func (c *Config) CampaignLimits() (campaign.Limits, error) {
	minReplenish, err := parseAmount(c.MinReplenishAmount)
	if err != nil {
		return campaign.Limits{}, fmt.Errorf("MinReplenishAmount: %w", err)
	}
	threshold, err := parseAmount(c.LowBalanceThreshold)
	if err != nil {
		return campaign.Limits{}, fmt.Errorf("LowBalanceThreshold: %w", err)
	}
	return campaign.Limits{
		MaxAffiliates:       c.MaxAffiliatesPerCampaign,
		MinReplenish:        minReplenish,
		LowBalanceThreshold: threshold,
		LeaderboardSize:     c.LeaderboardSize,
	}, nil
}

// RegistryParams converts the identity and reserve settings into registry
// parameters.
func (c *Config) RegistryParams() (marketplace.Params, error) {
	fee, err := parseAmount(c.DeploymentFee)
	if err != nil {
		return marketplace.Params{}, fmt.Errorf("DeploymentFee: %w", err)
	}
	buffer, err := parseAmount(c.MinReserveBuffer)
	if err != nil {
		return marketplace.Params{}, fmt.Errorf("MinReserveBuffer: %w", err)
	}
	params := marketplace.Params{DeploymentFee: fee, MinReserveBuffer: buffer}
	if params.Admin, err = parseAddress(c.AdminAddress); err != nil {
		return marketplace.Params{}, fmt.Errorf("AdminAddress: %w", err)
	}
	if params.Bot, err = parseAddress(c.BotAddress); err != nil {
		return marketplace.Params{}, fmt.Errorf("BotAddress: %w", err)
	}
	if params.Address, err = parseAddress(c.RegistryAddress); err != nil {
		return marketplace.Params{}, fmt.Errorf("RegistryAddress: %w", err)
	}
	return params, nil
}

func parseAmount(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func parseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if raw == "" {
		return addr, nil
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q", raw)
	}
	if len(decoded) != 20 {
		return addr, fmt.Errorf("address %q must be 20 bytes", raw)
	}
	copy(addr[:], decoded)
	return addr, nil
}
