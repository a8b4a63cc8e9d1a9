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
	"go.uber.org/zap"
)

// CreateWithdrawal records a pending withdrawal request. The fee is
// frozen into the row at request time; a later fee change never
// affects requests already in flight. The user's balance must cover
// the full amount, of which net_amount = amount - fee reaches the
// destination.
func (s *Service) CreateWithdrawal(ctx context.Context, params store.CreateWithdrawalParams) (*models.WithdrawalRequest, error) {
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("withdrawal amount must be positive, got %s", params.Amount.String())
	}
	netAmount := params.Amount.Sub(params.Fee)
	if !netAmount.IsPositive() {
		return nil, fmt.Errorf("withdrawal amount %s does not cover fee %s",
			params.Amount.String(), params.Fee.String())
	}

	balance, err := s.GetBalance(ctx, params.UserId, params.Symbol)
	if err != nil {
		return nil, err
	}
	// Request-time sufficiency covers the amount plus the network fee;
	// approval later debits the amount alone.
	required := params.Amount.Add(params.Fee)
	if balance.LessThan(required) {
		return nil, &store.InsufficientBalanceError{Balance: balance, Required: required}
	}

	request := &models.WithdrawalRequest{
		Id:          uuid.New().String(),
		UserId:      params.UserId,
		Symbol:      params.Symbol,
		Network:     params.Network,
		Amount:      params.Amount,
		Fee:         params.Fee,
		NetAmount:   netAmount,
		ToAddress:   params.ToAddress,
		Status:      models.WithdrawalStatusPending,
		RequestedAt: time.Now().UTC(),
	}

	if _, err := s.db.ExecContext(ctx, queryInsertWithdrawal,
		request.Id, request.UserId, request.Symbol, request.Network,
		request.Amount.String(), request.Fee.String(), request.NetAmount.String(),
		request.ToAddress, request.Status, request.RequestedAt); err != nil {
		return nil, fmt.Errorf("failed to insert withdrawal request: %w", err)
	}

	zap.L().Info("Withdrawal request created",
		zap.String("request_id", request.Id),
		zap.String("user_id", request.UserId),
		zap.String("symbol", request.Symbol),
		zap.String("network", request.Network),
		zap.String("amount", request.Amount.String()),
		zap.String("net_amount", request.NetAmount.String()),
		zap.String("to_address", request.ToAddress))

	return request, nil
}

// GetWithdrawal returns the request with the given id, or ErrNotFound.
func (s *Service) GetWithdrawal(ctx context.Context, requestId string) (*models.WithdrawalRequest, error) {
	request, err := scanWithdrawal(s.db.QueryRowContext(ctx, queryGetWithdrawal, requestId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("withdrawal request %s - %w", requestId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal request: %w", err)
	}
	return request, nil
}

// GetUserWithdrawals returns the user's requests, newest first.
func (s *Service) GetUserWithdrawals(ctx context.Context, userId string) ([]models.WithdrawalRequest, error) {
	return s.queryWithdrawals(ctx, queryGetUserWithdrawals, userId)
}

// ListPendingWithdrawals returns all pending requests, oldest first,
// for the admin review queue.
func (s *Service) ListPendingWithdrawals(ctx context.Context) ([]models.WithdrawalRequest, error) {
	return s.queryWithdrawals(ctx, queryListPendingWithdrawals)
}

func (s *Service) queryWithdrawals(ctx context.Context, query string, args ...interface{}) ([]models.WithdrawalRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawals: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var requests []models.WithdrawalRequest
	for rows.Next() {
		request, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal request: %w", err)
		}
		requests = append(requests, *request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawal rows: %w", err)
	}
	return requests, nil
}

// ApproveWithdrawal transitions a pending request to completed and
// settles it in one transaction: the user is debited the full amount
// and the retained fee is credited to the platform fee account. A
// request that is no longer pending fails with ErrAlreadyProcessed
// and has no ledger effect; an insufficient balance at approval time
// leaves the request pending.
func (s *Service) ApproveWithdrawal(ctx context.Context, params store.ProcessWithdrawalParams) (*models.WithdrawalRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	request, err := scanWithdrawal(tx.QueryRowContext(ctx, queryGetWithdrawal, params.RequestId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("withdrawal request %s - %w", params.RequestId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal request: %w", err)
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, queryCompleteWithdrawal,
		params.TxHash, params.AdminId, params.Note, now, now, params.RequestId)
	if err != nil {
		return nil, fmt.Errorf("failed to update withdrawal status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Row exists but status is no longer pending.
		return nil, fmt.Errorf("withdrawal request %s is %s - %w",
			request.Id, request.Status, store.ErrAlreadyProcessed)
	}

	// Debit the full requested amount; the fee is retained out of it.
	if _, err := s.appendEntryTx(ctx, tx, store.AppendEntryParams{
		UserId:        request.UserId,
		Symbol:        request.Symbol,
		Network:       request.Network,
		EntryType:     models.EntryTypeWithdrawal,
		Delta:         request.Amount.Neg(),
		ReferenceType: "withdrawal_request",
		ReferenceId:   request.Id,
		TxHash:        params.TxHash,
		AdminId:       params.AdminId,
	}); err != nil {
		return nil, err
	}

	if params.FeeAccountId != "" && request.Fee.IsPositive() {
		if _, err := s.appendEntryTx(ctx, tx, store.AppendEntryParams{
			UserId:        params.FeeAccountId,
			Symbol:        request.Symbol,
			Network:       request.Network,
			EntryType:     models.EntryTypeWithdrawalFee,
			Delta:         request.Fee,
			ReferenceType: "withdrawal_request",
			ReferenceId:   request.Id,
			AdminId:       params.AdminId,
		}); err != nil {
			return nil, fmt.Errorf("failed to credit withdrawal fee: %w", err)
		}
	}

	if err := insertAdminActionTx(ctx, tx, params.AdminId, request.UserId, "withdrawal_approved",
		fmt.Sprintf("request=%s amount=%s %s net=%s tx_hash=%s",
			request.Id, request.Amount.String(), request.Symbol, request.NetAmount.String(), params.TxHash)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	request.Status = models.WithdrawalStatusCompleted
	request.TxHash = params.TxHash
	request.AdminId = params.AdminId
	request.AdminNote = params.Note
	request.ProcessedAt = &now
	request.CompletedAt = &now

	zap.L().Info("Withdrawal approved",
		zap.String("request_id", request.Id),
		zap.String("user_id", request.UserId),
		zap.String("admin_id", params.AdminId),
		zap.String("amount", request.Amount.String()),
		zap.String("tx_hash", params.TxHash))

	return request, nil
}

// RejectWithdrawal transitions a pending request to rejected. No
// ledger entry is written; the balance was never debited.
func (s *Service) RejectWithdrawal(ctx context.Context, params store.ProcessWithdrawalParams) (*models.WithdrawalRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	request, err := scanWithdrawal(tx.QueryRowContext(ctx, queryGetWithdrawal, params.RequestId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("withdrawal request %s - %w", params.RequestId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal request: %w", err)
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, queryRejectWithdrawal,
		params.AdminId, params.Note, now, now, params.RequestId)
	if err != nil {
		return nil, fmt.Errorf("failed to update withdrawal status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("withdrawal request %s is %s - %w",
			request.Id, request.Status, store.ErrAlreadyProcessed)
	}

	if err := insertAdminActionTx(ctx, tx, params.AdminId, request.UserId, "withdrawal_rejected",
		fmt.Sprintf("request=%s amount=%s %s reason=%s",
			request.Id, request.Amount.String(), request.Symbol, params.Note)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	request.Status = models.WithdrawalStatusRejected
	request.AdminId = params.AdminId
	request.RejectionReason = params.Note
	request.ProcessedAt = &now
	request.RejectedAt = &now

	zap.L().Info("Withdrawal rejected",
		zap.String("request_id", request.Id),
		zap.String("user_id", request.UserId),
		zap.String("admin_id", params.AdminId),
		zap.String("reason", params.Note))

	return request, nil
}

func scanWithdrawal(row rowScanner) (*models.WithdrawalRequest, error) {
	var request models.WithdrawalRequest
	var amountStr, feeStr, netStr string
	var processedAt, completedAt, rejectedAt sql.NullTime
	if err := row.Scan(&request.Id, &request.UserId, &request.Symbol, &request.Network,
		&amountStr, &feeStr, &netStr, &request.ToAddress, &request.Status,
		&request.TxHash, &request.AdminId, &request.AdminNote, &request.RejectionReason,
		&request.RequestedAt, &processedAt, &completedAt, &rejectedAt); err != nil {
		return nil, err
	}

	var err error
	if request.Amount, err = parseDecimal(amountStr, "amount"); err != nil {
		return nil, err
	}
	if request.Fee, err = parseDecimal(feeStr, "fee"); err != nil {
		return nil, err
	}
	if request.NetAmount, err = parseDecimal(netStr, "net_amount"); err != nil {
		return nil, err
	}

	if processedAt.Valid {
		request.ProcessedAt = &processedAt.Time
	}
	if completedAt.Valid {
		request.CompletedAt = &completedAt.Time
	}
	if rejectedAt.Valid {
		request.RejectedAt = &rejectedAt.Time
	}
	return &request, nil
}

func insertAdminActionTx(ctx context.Context, tx *sql.Tx, adminId, targetUserId, actionType, details string) error {
	if _, err := tx.ExecContext(ctx, queryInsertAdminAction,
		uuid.New().String(), adminId, targetUserId, actionType, details, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record admin action: %w", err)
	}
	return nil
}
