/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"crypto-custody-go/internal/models"
	"crypto-custody-go/internal/store"

	"go.uber.org/zap"
)

// GetNetworkConfig returns the withdrawal policy for a network, or
// ErrNotFound for an unsupported one.
func (s *Service) GetNetworkConfig(ctx context.Context, network string) (*models.NetworkConfig, error) {
	cfg, err := scanNetworkConfig(s.db.QueryRowContext(ctx, queryGetNetworkConfig, network))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("network %s - %w", network, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get network config: %w", err)
	}
	return cfg, nil
}

// ListNetworkConfigs returns all configured networks.
func (s *Service) ListNetworkConfigs(ctx context.Context) ([]models.NetworkConfig, error) {
	rows, err := s.db.QueryContext(ctx, queryListNetworkConfigs)
	if err != nil {
		return nil, fmt.Errorf("failed to list network configs: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var configs []models.NetworkConfig
	for rows.Next() {
		cfg, err := scanNetworkConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan network config: %w", err)
		}
		configs = append(configs, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating network config rows: %w", err)
	}
	return configs, nil
}

// UpsertNetworkConfig inserts or updates a network's policy. Changes
// apply to new requests only; pending requests keep their frozen fee.
func (s *Service) UpsertNetworkConfig(ctx context.Context, cfg models.NetworkConfig) error {
	if cfg.WithdrawalFee.IsNegative() || cfg.MinWithdrawal.IsNegative() {
		return fmt.Errorf("network %s: fee and minimum must be non-negative", cfg.Network)
	}

	if _, err := s.db.ExecContext(ctx, queryUpsertNetworkConfig,
		cfg.Network, cfg.ChainId, cfg.NativeSymbol,
		cfg.WithdrawalFee.String(), cfg.MinWithdrawal.String(),
		cfg.RequiredConfirmations, cfg.Enabled); err != nil {
		return fmt.Errorf("failed to upsert network config: %w", err)
	}

	zap.L().Info("Network config updated",
		zap.String("network", cfg.Network),
		zap.Int64("chain_id", cfg.ChainId),
		zap.String("withdrawal_fee", cfg.WithdrawalFee.String()),
		zap.String("min_withdrawal", cfg.MinWithdrawal.String()),
		zap.Bool("enabled", cfg.Enabled))
	return nil
}

func scanNetworkConfig(row rowScanner) (*models.NetworkConfig, error) {
	var cfg models.NetworkConfig
	var feeStr, minStr string
	if err := row.Scan(&cfg.Network, &cfg.ChainId, &cfg.NativeSymbol,
		&feeStr, &minStr, &cfg.RequiredConfirmations, &cfg.Enabled, &cfg.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if cfg.WithdrawalFee, err = parseDecimal(feeStr, "withdrawal_fee"); err != nil {
		return nil, err
	}
	if cfg.MinWithdrawal, err = parseDecimal(minStr, "min_withdrawal"); err != nil {
		return nil, err
	}
	return &cfg, nil
}
