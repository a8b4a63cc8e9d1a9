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

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.CustodyStore.
var _ store.CustodyStore = (*Service)(nil)

type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	// _txlock=immediate makes write transactions take the write lock at
	// BEGIN, so concurrent balance mutations queue on the busy timeout
	// instead of failing mid-transaction.
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

// NewServiceForDB wraps an already opened connection; used by tests.
func NewServiceForDB(db *sql.DB) (*Service, error) {
	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema() error {
	schema := `
	-- Users
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT 'user',
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	CREATE INDEX IF NOT EXISTS idx_users_active ON users(active);

	-- One derivation index per user, globally unique and monotonically
	-- assigned. Index 0 is reserved for the custodial master address.
	CREATE TABLE IF NOT EXISTS wallet_indexes (
		user_id TEXT PRIMARY KEY REFERENCES users(id),
		derivation_index INTEGER NOT NULL UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Deposit addresses: one row per (user, network, symbol); rows for
	-- the same user share the derivation index across EVM networks.
	CREATE TABLE IF NOT EXISTS deposit_addresses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		symbol TEXT NOT NULL,
		network TEXT NOT NULL,
		address TEXT NOT NULL,
		derivation_index INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, network, symbol)
	);

	CREATE INDEX IF NOT EXISTS idx_deposit_addresses_user ON deposit_addresses(user_id);
	CREATE INDEX IF NOT EXISTS idx_deposit_addresses_address ON deposit_addresses(address);

	-- Account balances (current state - hot data)
	CREATE TABLE IF NOT EXISTS account_balances (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0',
		last_entry_id TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, symbol)
	);

	CREATE INDEX IF NOT EXISTS idx_account_balances_user ON account_balances(user_id);

	-- Ledger entries (append-only audit trail - cold data)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		network TEXT NOT NULL DEFAULT '',
		entry_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		reference_type TEXT NOT NULL DEFAULT '',
		reference_id TEXT NOT NULL DEFAULT '',
		tx_hash TEXT NOT NULL DEFAULT '',
		admin_id TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_entries_user_symbol ON ledger_entries(user_id, symbol);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_tx_hash ON ledger_entries(tx_hash);
	-- One deposit credit per on-chain transaction, enforced at commit.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entries_deposit_tx_hash
		ON ledger_entries(tx_hash) WHERE tx_hash != '' AND entry_type = 'deposit';
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_reference ON ledger_entries(reference_type, reference_id);

	-- Withdrawal requests (never deleted - audit trail)
	CREATE TABLE IF NOT EXISTS withdrawal_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		symbol TEXT NOT NULL,
		network TEXT NOT NULL,
		amount TEXT NOT NULL,
		fee TEXT NOT NULL,
		net_amount TEXT NOT NULL,
		to_address TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		tx_hash TEXT NOT NULL DEFAULT '',
		admin_id TEXT NOT NULL DEFAULT '',
		admin_note TEXT NOT NULL DEFAULT '',
		rejection_reason TEXT NOT NULL DEFAULT '',
		requested_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		processed_at TIMESTAMP,
		completed_at TIMESTAMP,
		rejected_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_withdrawal_requests_user ON withdrawal_requests(user_id);
	CREATE INDEX IF NOT EXISTS idx_withdrawal_requests_status ON withdrawal_requests(status);

	-- Admin actions (immutable audit log)
	CREATE TABLE IF NOT EXISTS admin_actions (
		id TEXT PRIMARY KEY,
		admin_id TEXT NOT NULL,
		target_user_id TEXT NOT NULL,
		action_type TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_admin_actions_admin ON admin_actions(admin_id);
	CREATE INDEX IF NOT EXISTS idx_admin_actions_target ON admin_actions(target_user_id);

	-- Per-network withdrawal policy
	CREATE TABLE IF NOT EXISTS network_configs (
		network TEXT PRIMARY KEY,
		chain_id INTEGER NOT NULL,
		native_symbol TEXT NOT NULL,
		withdrawal_fee TEXT NOT NULL DEFAULT '0',
		min_withdrawal TEXT NOT NULL DEFAULT '0',
		required_confirmations INTEGER NOT NULL DEFAULT 12,
		enabled BOOLEAN NOT NULL DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}
