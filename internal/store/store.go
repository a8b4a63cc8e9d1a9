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

package store

import (
	"context"

	"crypto-custody-go/internal/models"

	"github.com/shopspring/decimal"
)

// AppendEntryParams contains the parameters for appending a ledger
// entry. Delta is signed: positive credits, negative debits. The
// stored entry keeps the non-negative magnitude plus the entry type.
type AppendEntryParams struct {
	UserId        string
	Symbol        string
	Network       string
	EntryType     string
	Delta         decimal.Decimal
	ReferenceType string
	ReferenceId   string
	TxHash        string
	AdminId       string
	Note          string
}

// AllocateAddressParams contains the parameters for a deposit-address
// allocation. Derive maps a derivation index to its deterministic
// address; the store calls it at most once per user, under the same
// transaction that reserves the index.
type AllocateAddressParams struct {
	UserId  string
	Symbol  string
	Network string
	Derive  func(index uint32) (string, error)
}

// CreateWithdrawalParams contains the parameters for creating a
// pending withdrawal request. Fee is frozen into the request row.
type CreateWithdrawalParams struct {
	UserId    string
	Symbol    string
	Network   string
	Amount    decimal.Decimal
	Fee       decimal.Decimal
	ToAddress string
}

// ProcessWithdrawalParams contains the parameters for an administrator
// approving or rejecting a pending request. FeeAccountId names the
// platform account credited with the retained fee on approval.
type ProcessWithdrawalParams struct {
	RequestId    string
	AdminId      string
	TxHash       string
	Note         string
	FeeAccountId string
}

// AdjustBalanceParams contains the parameters for a direct
// administrator balance correction.
type AdjustBalanceParams struct {
	AdminId      string
	TargetUserId string
	Symbol       string
	Amount       decimal.Decimal
	Direction    string // "credit" or "debit"
	Note         string
}

// RecordDepositParams contains the parameters for crediting an
// observed on-chain deposit to the owning user, idempotent per TxHash.
type RecordDepositParams struct {
	Address string
	Symbol  string
	Network string
	Amount  decimal.Decimal
	TxHash  string
}

// CustodyStore defines the persistence contract of the custody core.
type CustodyStore interface {
	// --- Users ---
	GetUsers(ctx context.Context) ([]models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, userId, name, email, role string) error

	// --- Deposit addresses ---
	AllocateDepositAddress(ctx context.Context, params AllocateAddressParams) (*models.DepositAddress, bool, error)
	GetUserDepositAddresses(ctx context.Context, userId string) ([]models.DepositAddress, error)
	FindUserByDepositAddress(ctx context.Context, address string) (*models.User, *models.DepositAddress, error)

	// --- Ledger ---
	AppendEntry(ctx context.Context, params AppendEntryParams) (*models.LedgerEntry, error)
	GetBalance(ctx context.Context, userId, symbol string) (decimal.Decimal, error)
	GetAllBalances(ctx context.Context, userId string) ([]models.AccountBalance, error)
	GetLedgerHistory(ctx context.Context, userId string, limit, offset int) ([]models.LedgerEntry, error)
	RecordDeposit(ctx context.Context, params RecordDepositParams) (*models.LedgerEntry, error)
	ReconcileBalance(ctx context.Context, userId, symbol string) error

	// --- Withdrawals ---
	CreateWithdrawal(ctx context.Context, params CreateWithdrawalParams) (*models.WithdrawalRequest, error)
	GetWithdrawal(ctx context.Context, requestId string) (*models.WithdrawalRequest, error)
	GetUserWithdrawals(ctx context.Context, userId string) ([]models.WithdrawalRequest, error)
	ListPendingWithdrawals(ctx context.Context) ([]models.WithdrawalRequest, error)
	ApproveWithdrawal(ctx context.Context, params ProcessWithdrawalParams) (*models.WithdrawalRequest, error)
	RejectWithdrawal(ctx context.Context, params ProcessWithdrawalParams) (*models.WithdrawalRequest, error)

	// --- Administration ---
	AdjustBalance(ctx context.Context, params AdjustBalanceParams) (*models.LedgerEntry, error)
	ListAdminActions(ctx context.Context, limit int) ([]models.AdminAction, error)

	// --- Network configuration ---
	GetNetworkConfig(ctx context.Context, network string) (*models.NetworkConfig, error)
	ListNetworkConfigs(ctx context.Context) ([]models.NetworkConfig, error)
	UpsertNetworkConfig(ctx context.Context, cfg models.NetworkConfig) error

	// --- Lifecycle ---
	Close()
}
