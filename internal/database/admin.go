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
	"fmt"

	"crypto-custody-go/internal/models"
	"crypto-custody-go/internal/store"

	"go.uber.org/zap"
)

// AdjustBalance applies a direct administrator balance correction and
// records the audit action in the same transaction. A debit that would
// take the balance negative fails with InsufficientBalanceError.
func (s *Service) AdjustBalance(ctx context.Context, params store.AdjustBalanceParams) (*models.LedgerEntry, error) {
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("adjustment amount must be positive, got %s", params.Amount.String())
	}

	var entryType string
	delta := params.Amount
	switch params.Direction {
	case "credit":
		entryType = models.EntryTypeAdminCredit
	case "debit":
		entryType = models.EntryTypeAdminDebit
		delta = delta.Neg()
	default:
		return nil, fmt.Errorf("invalid adjustment direction %q", params.Direction)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	entry, err := s.appendEntryTx(ctx, tx, store.AppendEntryParams{
		UserId:        params.TargetUserId,
		Symbol:        params.Symbol,
		EntryType:     entryType,
		Delta:         delta,
		ReferenceType: "admin_adjustment",
		AdminId:       params.AdminId,
		Note:          params.Note,
	})
	if err != nil {
		return nil, err
	}

	if err := insertAdminActionTx(ctx, tx, params.AdminId, params.TargetUserId, "balance_adjusted",
		fmt.Sprintf("%s %s %s note=%s", params.Direction, params.Amount.String(), params.Symbol, params.Note)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Balance adjusted",
		zap.String("admin_id", params.AdminId),
		zap.String("target_user_id", params.TargetUserId),
		zap.String("direction", params.Direction),
		zap.String("amount", params.Amount.String()),
		zap.String("symbol", params.Symbol))

	return entry, nil
}

// ListAdminActions returns the most recent audit records, newest
// first.
func (s *Service) ListAdminActions(ctx context.Context, limit int) ([]models.AdminAction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, queryListAdminActions, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list admin actions: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var actions []models.AdminAction
	for rows.Next() {
		var action models.AdminAction
		if err := rows.Scan(&action.Id, &action.AdminId, &action.TargetUserId,
			&action.ActionType, &action.Details, &action.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan admin action: %w", err)
		}
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating admin action rows: %w", err)
	}
	return actions, nil
}
