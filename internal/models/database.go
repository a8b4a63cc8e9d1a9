package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a user in the system
type User struct {
	Id        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Role      string    `db:"role"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// User roles consulted by the role-based authorization policy.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DepositAddress represents a user's deposit address on one network.
// The same derivation index (and therefore the same address) is shared
// by every EVM-compatible network; one row exists per (user, network,
// symbol) so deposits can be attributed per network.
type DepositAddress struct {
	Id              string    `db:"id"`
	UserId          string    `db:"user_id"`
	Symbol          string    `db:"symbol"`
	Network         string    `db:"network"`
	Address         string    `db:"address"`
	DerivationIndex uint32    `db:"derivation_index"`
	CreatedAt       time.Time `db:"created_at"`
}

// AccountBalance represents current balance state (hot data)
type AccountBalance struct {
	Id          string          `db:"id"`
	UserId      string          `db:"user_id"`
	Symbol      string          `db:"symbol"`
	Balance     decimal.Decimal `db:"balance"`
	LastEntryId string          `db:"last_entry_id"`
	Version     int64           `db:"version"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

// LedgerEntry represents one immutable balance change (cold data).
// Amount is a non-negative magnitude; EntryType carries the sign
// convention (credits add, debits subtract).
type LedgerEntry struct {
	Id            string          `db:"id"`
	UserId        string          `db:"user_id"`
	Symbol        string          `db:"symbol"`
	Network       string          `db:"network"`
	EntryType     string          `db:"entry_type"`
	Amount        decimal.Decimal `db:"amount"`
	BalanceBefore decimal.Decimal `db:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after"`
	ReferenceType string          `db:"reference_type"`
	ReferenceId   string          `db:"reference_id"`
	TxHash        string          `db:"tx_hash"`
	AdminId       string          `db:"admin_id"`
	Note          string          `db:"note"`
	CreatedAt     time.Time       `db:"created_at"`
}

// Withdrawal request statuses. Pending requests move to completed or
// rejected; both are terminal.
const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusCompleted = "completed"
	WithdrawalStatusRejected  = "rejected"
)

// Ledger entry types.
const (
	EntryTypeDeposit       = "deposit"
	EntryTypeWithdrawal    = "withdrawal"
	EntryTypeWithdrawalFee = "withdrawal_fee"
	EntryTypeEarning       = "earning"
	EntryTypeAdminCredit   = "admin_credit"
	EntryTypeAdminDebit    = "admin_debit"
)

// WithdrawalRequest represents a user withdrawal awaiting (or past)
// administrator review. Fee and NetAmount are frozen at creation time;
// later fee changes never alter a pending request.
type WithdrawalRequest struct {
	Id              string          `db:"id"`
	UserId          string          `db:"user_id"`
	Symbol          string          `db:"symbol"`
	Network         string          `db:"network"`
	Amount          decimal.Decimal `db:"amount"`
	Fee             decimal.Decimal `db:"fee"`
	NetAmount       decimal.Decimal `db:"net_amount"`
	ToAddress       string          `db:"to_address"`
	Status          string          `db:"status"`
	TxHash          string          `db:"tx_hash"`
	AdminId         string          `db:"admin_id"`
	AdminNote       string          `db:"admin_note"`
	RejectionReason string          `db:"rejection_reason"`
	RequestedAt     time.Time       `db:"requested_at"`
	ProcessedAt     *time.Time      `db:"processed_at"`
	CompletedAt     *time.Time      `db:"completed_at"`
	RejectedAt      *time.Time      `db:"rejected_at"`
}

// AdminAction is an immutable audit record appended whenever an
// administrator mutates balances or withdrawal state.
type AdminAction struct {
	Id           string    `db:"id"`
	AdminId      string    `db:"admin_id"`
	TargetUserId string    `db:"target_user_id"`
	ActionType   string    `db:"action_type"`
	Details      string    `db:"details"`
	CreatedAt    time.Time `db:"created_at"`
}

// NetworkConfig holds per-network withdrawal policy and chain metadata.
type NetworkConfig struct {
	Network               string          `db:"network"`
	ChainId               int64           `db:"chain_id"`
	NativeSymbol          string          `db:"native_symbol"`
	WithdrawalFee         decimal.Decimal `db:"withdrawal_fee"`
	MinWithdrawal         decimal.Decimal `db:"min_withdrawal"`
	RequiredConfirmations int             `db:"required_confirmations"`
	Enabled               bool            `db:"enabled"`
	UpdatedAt             time.Time       `db:"updated_at"`
}
