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
	"time"

	"crypto-custody-go/internal/models"
	"crypto-custody-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// appendRetries bounds the re-validating retry loop on optimistic
// version conflicts. Each retry re-reads the balance and re-checks the
// non-negative invariant from scratch.
const appendRetries = 3

// AppendEntry atomically reads the current balance, validates the
// non-negative invariant and appends a ledger entry together with the
// projection update. Delta is signed; a debit that would take the
// balance below zero fails with InsufficientBalanceError.
func (s *Service) AppendEntry(ctx context.Context, params store.AppendEntryParams) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	var err error
	for attempt := 0; attempt < appendRetries; attempt++ {
		entry, err = s.appendEntryOnce(ctx, params)
		if err == nil || !errors.Is(err, store.ErrConcurrentModification) {
			return entry, err
		}
		zap.L().Warn("Ledger append lost version race, re-validating",
			zap.String("user_id", params.UserId),
			zap.String("symbol", params.Symbol),
			zap.Int("attempt", attempt+1))
	}
	return nil, err
}

func (s *Service) appendEntryOnce(ctx context.Context, params store.AppendEntryParams) (*models.LedgerEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	entry, err := s.appendEntryTx(ctx, tx, params)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return entry, nil
}

// appendEntryTx performs the append inside an existing transaction so
// callers (withdrawal approval, admin adjustments) can combine it with
// their own writes into one atomic unit.
func (s *Service) appendEntryTx(ctx context.Context, tx *sql.Tx, params store.AppendEntryParams) (*models.LedgerEntry, error) {
	zap.L().Info("Appending ledger entry",
		zap.String("user_id", params.UserId),
		zap.String("symbol", params.Symbol),
		zap.String("entry_type", params.EntryType),
		zap.String("delta", params.Delta.String()))

	var accountId, balanceStr string
	var version int64
	err := tx.QueryRowContext(ctx, queryGetAccountBalance, params.UserId, params.Symbol).
		Scan(&accountId, &balanceStr, &version)

	var balanceBefore decimal.Decimal
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First entry for this (user, symbol): absence of entries
		// implies balance 0.
		accountId = uuid.New().String()
		balanceBefore = decimal.Zero
		version = 1
		if _, err := tx.ExecContext(ctx, queryInsertAccountBalance,
			accountId, params.UserId, params.Symbol, "0", version); err != nil {
			return nil, fmt.Errorf("failed to create account balance: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to get current balance: %w", err)
	default:
		balanceBefore, err = decimal.NewFromString(balanceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse current balance %q: %w", balanceStr, err)
		}
	}

	balanceAfter := balanceBefore.Add(params.Delta)
	if balanceAfter.IsNegative() {
		return nil, &store.InsufficientBalanceError{
			Balance:  balanceBefore,
			Required: params.Delta.Neg(),
		}
	}

	now := time.Now().UTC()
	entry := &models.LedgerEntry{
		Id:            uuid.New().String(),
		UserId:        params.UserId,
		Symbol:        params.Symbol,
		Network:       params.Network,
		EntryType:     params.EntryType,
		Amount:        params.Delta.Abs(),
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		ReferenceType: params.ReferenceType,
		ReferenceId:   params.ReferenceId,
		TxHash:        params.TxHash,
		AdminId:       params.AdminId,
		Note:          params.Note,
		CreatedAt:     now,
	}

	if _, err := tx.ExecContext(ctx, queryInsertLedgerEntry,
		entry.Id, entry.UserId, entry.Symbol, entry.Network, entry.EntryType,
		entry.Amount.String(), entry.BalanceBefore.String(), entry.BalanceAfter.String(),
		entry.ReferenceType, entry.ReferenceId, entry.TxHash, entry.AdminId, entry.Note,
		entry.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	result, err := tx.ExecContext(ctx, queryUpdateAccountBalance,
		balanceAfter.String(), entry.Id, params.UserId, params.Symbol, version)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	zap.L().Info("Ledger entry appended",
		zap.String("entry_id", entry.Id),
		zap.String("user_id", params.UserId),
		zap.String("symbol", params.Symbol),
		zap.String("balance_before", balanceBefore.String()),
		zap.String("balance_after", balanceAfter.String()))

	return entry, nil
}

// GetBalance returns the current balance for (user, symbol) from the
// materialized projection (O(1) lookup); zero if no entries exist.
func (s *Service) GetBalance(ctx context.Context, userId, symbol string) (decimal.Decimal, error) {
	var balanceStr string
	err := s.db.QueryRowContext(ctx, queryGetBalance, userId, symbol).Scan(&balanceStr)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("user_id", userId), zap.String("symbol", symbol), zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse balance %q: %w", balanceStr, err)
	}
	return balance, nil
}

// GetAllBalances returns one balance per symbol the user has ever
// transacted in.
func (s *Service) GetAllBalances(ctx context.Context, userId string) ([]models.AccountBalance, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAllUserBalances, userId)
	if err != nil {
		zap.L().Error("Failed to get all balances", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to get all balances: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var balances []models.AccountBalance
	for rows.Next() {
		var balance models.AccountBalance
		var balanceStr string
		if err := rows.Scan(&balance.Id, &balance.UserId, &balance.Symbol, &balanceStr,
			&balance.LastEntryId, &balance.Version, &balance.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balance.Balance, err = decimal.NewFromString(balanceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance %q: %w", balanceStr, err)
		}
		balances = append(balances, balance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}
	return balances, nil
}

// GetLedgerHistory returns the user's ledger entries newest first,
// ordered by insertion sequence rather than wall clock.
func (s *Service) GetLedgerHistory(ctx context.Context, userId string, limit, offset int) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryGetLedgerHistory, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger history: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var entries []models.LedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger rows: %w", err)
	}
	return entries, nil
}

// RecordDeposit credits an observed on-chain deposit to the user
// owning the deposit address, idempotent per transaction hash.
func (s *Service) RecordDeposit(ctx context.Context, params store.RecordDepositParams) (*models.LedgerEntry, error) {
	if params.TxHash != "" {
		var existingId string
		err := s.db.QueryRowContext(ctx, queryCheckDuplicateTxHash, params.TxHash, models.EntryTypeDeposit).Scan(&existingId)
		if err == nil {
			zap.L().Warn("Duplicate deposit transaction hash, skipping",
				zap.String("tx_hash", params.TxHash),
				zap.String("existing_entry_id", existingId))
			return nil, fmt.Errorf("%w: tx hash %s already credited", store.ErrDuplicateEntry, params.TxHash)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to check for duplicate deposit: %w", err)
		}
	}

	user, addr, err := s.FindUserByDepositAddress(ctx, params.Address)
	if err != nil {
		return nil, fmt.Errorf("error finding user by address: %w", err)
	}
	if user == nil {
		zap.L().Warn("Deposit to unknown address", zap.String("address", params.Address))
		return nil, fmt.Errorf("%w for address %s", store.ErrUserNotFound, params.Address)
	}

	// Credit under the canonical symbol from the address row, not the
	// caller's label, which may vary per network.
	symbol := params.Symbol
	if symbol == "" {
		symbol = addr.Symbol
	}

	entry, err := s.AppendEntry(ctx, store.AppendEntryParams{
		UserId:        user.Id,
		Symbol:        symbol,
		Network:       params.Network,
		EntryType:     models.EntryTypeDeposit,
		Delta:         params.Amount,
		ReferenceType: "blockchain_deposit",
		TxHash:        params.TxHash,
	})
	if err != nil {
		// The unique index on deposit tx hashes catches a concurrent
		// credit that slipped past the pre-check above.
		if isUniqueConstraintErr(err) {
			return nil, fmt.Errorf("%w: tx hash %s already credited", store.ErrDuplicateEntry, params.TxHash)
		}
		return nil, fmt.Errorf("error crediting deposit: %w", err)
	}

	zap.L().Info("Deposit credited",
		zap.String("user_id", user.Id),
		zap.String("symbol", symbol),
		zap.String("network", params.Network),
		zap.String("amount", params.Amount.String()))
	return entry, nil
}

// ReconcileBalance verifies the projection matches the sum of signed
// deltas in the append-only log.
func (s *Service) ReconcileBalance(ctx context.Context, userId, symbol string) error {
	currentBalance, err := s.GetBalance(ctx, userId, symbol)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}

	// Exact decimal arithmetic; a float sum could report a false
	// mismatch on a long ledger.
	rows, err := s.db.QueryContext(ctx, queryReconcileBalance, userId, symbol)
	if err != nil {
		return fmt.Errorf("failed to read ledger for reconciliation: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	calculatedBalance := decimal.Zero
	for rows.Next() {
		var entryType, amountStr string
		if err := rows.Scan(&entryType, &amountStr); err != nil {
			return fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		amount, err := parseDecimal(amountStr, "amount")
		if err != nil {
			return err
		}
		switch entryType {
		case models.EntryTypeWithdrawal, models.EntryTypeAdminDebit:
			calculatedBalance = calculatedBalance.Sub(amount)
		default:
			calculatedBalance = calculatedBalance.Add(amount)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating ledger rows: %w", err)
	}

	if !currentBalance.Equal(calculatedBalance) {
		zap.L().Error("Balance reconciliation failed",
			zap.String("user_id", userId),
			zap.String("symbol", symbol),
			zap.String("current_balance", currentBalance.String()),
			zap.String("calculated_balance", calculatedBalance.String()))
		return fmt.Errorf("balance mismatch: current=%s, calculated=%s",
			currentBalance.String(), calculatedBalance.String())
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func parseDecimal(value, column string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s %q: %w", column, value, err)
	}
	return d, nil
}

func scanLedgerEntry(row rowScanner) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	var amountStr, beforeStr, afterStr string
	if err := row.Scan(&entry.Id, &entry.UserId, &entry.Symbol, &entry.Network, &entry.EntryType,
		&amountStr, &beforeStr, &afterStr,
		&entry.ReferenceType, &entry.ReferenceId, &entry.TxHash, &entry.AdminId, &entry.Note,
		&entry.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}

	var err error
	if entry.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amountStr, err)
	}
	if entry.BalanceBefore, err = decimal.NewFromString(beforeStr); err != nil {
		return nil, fmt.Errorf("failed to parse balance_before %q: %w", beforeStr, err)
	}
	if entry.BalanceAfter, err = decimal.NewFromString(afterStr); err != nil {
		return nil, fmt.Errorf("failed to parse balance_after %q: %w", afterStr, err)
	}
	return &entry, nil
}
