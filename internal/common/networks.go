package common

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"crypto-custody-go/internal/models"
	"crypto-custody-go/internal/store"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

type NetworkEntry struct {
	Network               string `yaml:"network"`
	ChainId               int64  `yaml:"chain_id"`
	NativeSymbol          string `yaml:"native_symbol"`
	WithdrawalFee         string `yaml:"withdrawal_fee"`
	MinWithdrawal         string `yaml:"min_withdrawal"`
	RequiredConfirmations int    `yaml:"required_confirmations"`
	Enabled               bool   `yaml:"enabled"`
}

type NetworksConfig struct {
	Networks []NetworkEntry `yaml:"networks"`
}

func LoadNetworkConfig(networksFile string) ([]models.NetworkConfig, error) {
	var networksPath string
	if filepath.IsAbs(networksFile) {
		networksPath = networksFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		networksPath = filepath.Join(wd, networksFile)
	}

	data, err := os.ReadFile(networksPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", networksFile, err)
	}

	var config NetworksConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", networksFile, err)
	}

	configs := make([]models.NetworkConfig, 0, len(config.Networks))
	for i, entry := range config.Networks {
		if entry.Network == "" {
			return nil, fmt.Errorf("network at index %d missing name", i)
		}
		fee, err := decimal.NewFromString(entry.WithdrawalFee)
		if err != nil {
			return nil, fmt.Errorf("network %s: invalid withdrawal_fee %q: %w", entry.Network, entry.WithdrawalFee, err)
		}
		minWithdrawal, err := decimal.NewFromString(entry.MinWithdrawal)
		if err != nil {
			return nil, fmt.Errorf("network %s: invalid min_withdrawal %q: %w", entry.Network, entry.MinWithdrawal, err)
		}
		configs = append(configs, models.NetworkConfig{
			Network:               entry.Network,
			ChainId:               entry.ChainId,
			NativeSymbol:          entry.NativeSymbol,
			WithdrawalFee:         fee,
			MinWithdrawal:         minWithdrawal,
			RequiredConfirmations: entry.RequiredConfirmations,
			Enabled:               entry.Enabled,
		})
	}

	return configs, nil
}

// SeedNetworkConfigs loads the networks file and upserts every entry.
func SeedNetworkConfigs(ctx context.Context, s store.CustodyStore, networksFile string) (int, error) {
	configs, err := LoadNetworkConfig(networksFile)
	if err != nil {
		return 0, err
	}
	for _, cfg := range configs {
		if err := s.UpsertNetworkConfig(ctx, cfg); err != nil {
			return 0, err
		}
	}
	return len(configs), nil
}
