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
	"strings"
	"time"

	"crypto-custody-go/internal/models"
	"crypto-custody-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AllocateDepositAddress returns the user's deposit address for
// (network, symbol), deriving and persisting one if it does not exist
// yet. Allocation is idempotent: repeated calls return the same row,
// and a user keeps one derivation index across all EVM networks.
func (s *Service) AllocateDepositAddress(ctx context.Context, params store.AllocateAddressParams) (*models.DepositAddress, bool, error) {
	if existing, err := s.getDepositAddress(ctx, params.UserId, params.Network, params.Symbol); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Re-check inside the transaction; another caller may have raced
	// us between the read above and BeginTx.
	var existing models.DepositAddress
	err = tx.QueryRowContext(ctx, queryGetDepositAddress, params.UserId, params.Network, params.Symbol).
		Scan(&existing.Id, &existing.UserId, &existing.Symbol, &existing.Network,
			&existing.Address, &existing.DerivationIndex, &existing.CreatedAt)
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to check existing address: %w", err)
	}

	index, err := s.getOrAssignIndexTx(ctx, tx, params.UserId)
	if err != nil {
		return nil, false, err
	}

	address, err := params.Derive(index)
	if err != nil {
		return nil, false, fmt.Errorf("failed to derive address at index %d: %w", index, err)
	}

	addr := &models.DepositAddress{
		Id:              uuid.New().String(),
		UserId:          params.UserId,
		Symbol:          params.Symbol,
		Network:         params.Network,
		Address:         address,
		DerivationIndex: index,
		CreatedAt:       time.Now().UTC(),
	}

	if _, err := tx.ExecContext(ctx, queryInsertDepositAddress,
		addr.Id, addr.UserId, addr.Symbol, addr.Network, addr.Address, addr.DerivationIndex, addr.CreatedAt); err != nil {
		if isUniqueConstraintErr(err) {
			// Concurrent allocation won; return the committed row.
			if err := tx.Rollback(); err != nil {
				zap.L().Warn("Rollback failed after unique conflict", zap.Error(err))
			}
			committed, rerr := s.getDepositAddress(ctx, params.UserId, params.Network, params.Symbol)
			if rerr != nil {
				return nil, false, rerr
			}
			if committed != nil {
				return committed, false, nil
			}
		}
		return nil, false, fmt.Errorf("failed to insert deposit address: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Deposit address allocated",
		zap.String("user_id", params.UserId),
		zap.String("network", params.Network),
		zap.String("symbol", params.Symbol),
		zap.String("address", address),
		zap.Uint32("derivation_index", index))

	return addr, true, nil
}

// getOrAssignIndexTx returns the user's derivation index, assigning
// the next monotonic one (max+1, never 0: index 0 is the operator's
// master address) on first use.
func (s *Service) getOrAssignIndexTx(ctx context.Context, tx *sql.Tx, userId string) (uint32, error) {
	var index uint32
	err := tx.QueryRowContext(ctx, queryGetUserIndex, userId).Scan(&index)
	if err == nil {
		return index, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to get derivation index: %w", err)
	}

	var maxIndex uint32
	if err := tx.QueryRowContext(ctx, queryGetMaxIndex).Scan(&maxIndex); err != nil {
		return 0, fmt.Errorf("failed to get max derivation index: %w", err)
	}
	index = maxIndex + 1

	if _, err := tx.ExecContext(ctx, queryInsertUserIndex, userId, index); err != nil {
		return 0, fmt.Errorf("failed to assign derivation index %d: %w", index, err)
	}
	return index, nil
}

func (s *Service) getDepositAddress(ctx context.Context, userId, network, symbol string) (*models.DepositAddress, error) {
	var addr models.DepositAddress
	err := s.db.QueryRowContext(ctx, queryGetDepositAddress, userId, network, symbol).
		Scan(&addr.Id, &addr.UserId, &addr.Symbol, &addr.Network,
			&addr.Address, &addr.DerivationIndex, &addr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit address: %w", err)
	}
	return &addr, nil
}

// GetUserDepositAddresses returns all addresses allocated to the user.
func (s *Service) GetUserDepositAddresses(ctx context.Context, userId string) ([]models.DepositAddress, error) {
	rows, err := s.db.QueryContext(ctx, queryGetUserDepositAddresses, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit addresses: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var addresses []models.DepositAddress
	for rows.Next() {
		var addr models.DepositAddress
		if err := rows.Scan(&addr.Id, &addr.UserId, &addr.Symbol, &addr.Network,
			&addr.Address, &addr.DerivationIndex, &addr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deposit address: %w", err)
		}
		addresses = append(addresses, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating address rows: %w", err)
	}
	return addresses, nil
}

// FindUserByDepositAddress resolves an on-chain address back to its
// owner, case-insensitively. Returns (nil, nil, nil) when the address
// is not one of ours.
func (s *Service) FindUserByDepositAddress(ctx context.Context, address string) (*models.User, *models.DepositAddress, error) {
	var user models.User
	var addr models.DepositAddress
	err := s.db.QueryRowContext(ctx, queryFindUserByDepositAddress, address).
		Scan(&user.Id, &user.Name, &user.Email, &user.Role, &user.Active, &user.CreatedAt, &user.UpdatedAt,
			&addr.Id, &addr.UserId, &addr.Symbol, &addr.Network, &addr.Address, &addr.DerivationIndex, &addr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user by address: %w", err)
	}
	return &user, &addr, nil
}

func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
