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

package api

import (
	"context"
	"fmt"

	"crypto-custody-go/internal/models"
	"crypto-custody-go/internal/store"
	"crypto-custody-go/internal/wallet"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CustodyService is the application surface of the custody core: it
// combines the HD wallet, the ledger store and the authorization
// policy. The wallet may be nil when the master mnemonic is not
// loaded; address operations then fail with ErrWalletNotInitialized
// while ledger and withdrawal operations keep working.
type CustodyService struct {
	store             store.CustodyStore
	wallet            *wallet.Wallet
	authz             AuthorizationPolicy
	platformAccountId string
}

func NewCustodyService(s store.CustodyStore, w *wallet.Wallet, authz AuthorizationPolicy, platformAccountId string) *CustodyService {
	return &CustodyService{
		store:             s,
		wallet:            w,
		authz:             authz,
		platformAccountId: platformAccountId,
	}
}

// RequestDepositAddress returns the user's deposit address for the
// network, deriving one on first call. The same user resolves to the
// same address on every EVM network.
func (s *CustodyService) RequestDepositAddress(ctx context.Context, userId, network, symbol string) (*models.DepositAddressResult, error) {
	if s.wallet == nil {
		return nil, store.ErrWalletNotInitialized
	}
	if !wallet.IsEVMNetwork(network) {
		return nil, fmt.Errorf("unsupported network %s - %w", network, store.ErrNotFound)
	}
	if _, err := s.store.GetUserById(ctx, userId); err != nil {
		return nil, err
	}

	addr, created, err := s.store.AllocateDepositAddress(ctx, store.AllocateAddressParams{
		UserId:  userId,
		Symbol:  symbol,
		Network: network,
		Derive:  s.wallet.DeriveAddress,
	})
	if err != nil {
		return nil, err
	}

	return &models.DepositAddressResult{
		Address:          addr.Address,
		DerivationIndex:  addr.DerivationIndex,
		IsNewlyAllocated: created,
	}, nil
}

// ListDepositAddresses returns all addresses allocated to the user.
func (s *CustodyService) ListDepositAddresses(ctx context.Context, userId string) ([]models.DepositAddress, error) {
	return s.store.GetUserDepositAddresses(ctx, userId)
}

// GetBalance returns the user's balance for one symbol; zero when the
// user has no ledger entries for it.
func (s *CustodyService) GetBalance(ctx context.Context, userId, symbol string) (decimal.Decimal, error) {
	return s.store.GetBalance(ctx, userId, symbol)
}

// GetAllBalances returns one balance per symbol the user holds.
func (s *CustodyService) GetAllBalances(ctx context.Context, userId string) ([]models.UserBalance, error) {
	balances, err := s.store.GetAllBalances(ctx, userId)
	if err != nil {
		return nil, err
	}
	result := make([]models.UserBalance, 0, len(balances))
	for _, b := range balances {
		result = append(result, models.UserBalance{Symbol: b.Symbol, Balance: b.Balance})
	}
	return result, nil
}

// GetLedgerHistory returns the user's ledger entries, newest first.
func (s *CustodyService) GetLedgerHistory(ctx context.Context, userId string, limit, offset int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.GetLedgerHistory(ctx, userId, limit, offset)
}

// RequestWithdrawal validates and records a pending withdrawal. The
// network fee in force right now is frozen into the request; the
// destination receives amount minus that fee once an administrator
// approves.
func (s *CustodyService) RequestWithdrawal(ctx context.Context, userId, symbol, network, toAddress string, amount decimal.Decimal) (*models.WithdrawalRequest, error) {
	if _, err := s.store.GetUserById(ctx, userId); err != nil {
		return nil, err
	}

	cfg, err := s.store.GetNetworkConfig(ctx, network)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("network %s is disabled for withdrawals - %w", network, store.ErrNotFound)
	}

	if !wallet.IsValidAddress(toAddress) {
		return nil, fmt.Errorf("%w: %s", store.ErrInvalidAddress, toAddress)
	}

	if amount.LessThan(cfg.MinWithdrawal) {
		return nil, &store.BelowMinimumError{
			Network: network,
			Minimum: cfg.MinWithdrawal,
			Amount:  amount,
		}
	}

	return s.store.CreateWithdrawal(ctx, store.CreateWithdrawalParams{
		UserId:    userId,
		Symbol:    symbol,
		Network:   network,
		Amount:    amount,
		Fee:       cfg.WithdrawalFee,
		ToAddress: toAddress,
	})
}

// GetWithdrawal returns one request by id.
func (s *CustodyService) GetWithdrawal(ctx context.Context, requestId string) (*models.WithdrawalRequest, error) {
	return s.store.GetWithdrawal(ctx, requestId)
}

// ListUserWithdrawals returns the user's own requests.
func (s *CustodyService) ListUserWithdrawals(ctx context.Context, userId string) ([]models.WithdrawalRequest, error) {
	return s.store.GetUserWithdrawals(ctx, userId)
}

// ListPendingWithdrawals returns the admin review queue.
func (s *CustodyService) ListPendingWithdrawals(ctx context.Context, callerId string) ([]models.WithdrawalRequest, error) {
	if err := s.authz.AuthorizeAdmin(ctx, callerId); err != nil {
		return nil, err
	}
	return s.store.ListPendingWithdrawals(ctx)
}

// ApproveWithdrawal settles a pending request: the user is debited the
// full amount and the frozen fee is retained by the platform account.
func (s *CustodyService) ApproveWithdrawal(ctx context.Context, callerId, requestId, txHash, note string) (*models.WithdrawalRequest, error) {
	if err := s.authz.AuthorizeAdmin(ctx, callerId); err != nil {
		return nil, err
	}
	return s.store.ApproveWithdrawal(ctx, store.ProcessWithdrawalParams{
		RequestId:    requestId,
		AdminId:      callerId,
		TxHash:       txHash,
		Note:         note,
		FeeAccountId: s.platformAccountId,
	})
}

// RejectWithdrawal declines a pending request with a reason. The
// balance is untouched; it was never debited at request time.
func (s *CustodyService) RejectWithdrawal(ctx context.Context, callerId, requestId, reason string) (*models.WithdrawalRequest, error) {
	if err := s.authz.AuthorizeAdmin(ctx, callerId); err != nil {
		return nil, err
	}
	return s.store.RejectWithdrawal(ctx, store.ProcessWithdrawalParams{
		RequestId: requestId,
		AdminId:   callerId,
		Note:      reason,
	})
}

// AdjustBalance applies a direct administrator correction.
func (s *CustodyService) AdjustBalance(ctx context.Context, callerId string, params store.AdjustBalanceParams) (*models.LedgerEntry, error) {
	if err := s.authz.AuthorizeAdmin(ctx, callerId); err != nil {
		return nil, err
	}
	if _, err := s.store.GetUserById(ctx, params.TargetUserId); err != nil {
		return nil, err
	}
	params.AdminId = callerId
	return s.store.AdjustBalance(ctx, params)
}

// ListAdminActions returns the most recent audit records.
func (s *CustodyService) ListAdminActions(ctx context.Context, callerId string, limit int) ([]models.AdminAction, error) {
	if err := s.authz.AuthorizeAdmin(ctx, callerId); err != nil {
		return nil, err
	}
	return s.store.ListAdminActions(ctx, limit)
}

// RecordDeposit credits an observed on-chain deposit, idempotent per
// transaction hash.
func (s *CustodyService) RecordDeposit(ctx context.Context, params store.RecordDepositParams) (*models.LedgerEntry, error) {
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("deposit amount must be positive, got %s", params.Amount.String())
	}
	return s.store.RecordDeposit(ctx, params)
}

// CreditEarning credits a platform-originated reward to the user.
func (s *CustodyService) CreditEarning(ctx context.Context, userId, symbol string, amount decimal.Decimal, note string) (*models.LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("earning amount must be positive, got %s", amount.String())
	}
	if _, err := s.store.GetUserById(ctx, userId); err != nil {
		return nil, err
	}
	return s.store.AppendEntry(ctx, store.AppendEntryParams{
		UserId:        userId,
		Symbol:        symbol,
		EntryType:     models.EntryTypeEarning,
		Delta:         amount,
		ReferenceType: "platform_earning",
		Note:          note,
	})
}

// Status reports whether the master wallet is loaded and, when it is,
// the operator's master address (derivation index 0).
func (s *CustodyService) Status(ctx context.Context) models.WalletStatus {
	status := models.WalletStatus{Initialized: s.wallet != nil}
	if s.wallet == nil {
		return status
	}
	master, err := s.wallet.MasterAddress()
	if err != nil {
		zap.L().Warn("Failed to derive master address", zap.Error(err))
		return status
	}
	status.MasterAddress = master
	return status
}
