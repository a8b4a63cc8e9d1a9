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

const (
	// User queries
	queryGetActiveUsers = `
		SELECT id, name, email, role, active, created_at, updated_at
		FROM users
		WHERE active = 1
		ORDER BY created_at`

	queryInsertUser = `
		INSERT OR IGNORE INTO users (id, name, email, role) VALUES (?, ?, ?, ?)`

	queryGetUserById = `
		SELECT id, name, email, role, active, created_at, updated_at
		FROM users
		WHERE id = ? AND active = 1`

	queryGetUserByEmail = `
		SELECT id, name, email, role, active, created_at, updated_at
		FROM users
		WHERE email = ? AND active = 1`

	// Derivation index queries
	queryGetUserIndex = `
		SELECT derivation_index FROM wallet_indexes WHERE user_id = ?`

	queryGetMaxIndex = `
		SELECT COALESCE(MAX(derivation_index), 0) FROM wallet_indexes`

	queryInsertUserIndex = `
		INSERT INTO wallet_indexes (user_id, derivation_index) VALUES (?, ?)`

	// Deposit address queries
	queryGetDepositAddress = `
		SELECT id, user_id, symbol, network, address, derivation_index, created_at
		FROM deposit_addresses
		WHERE user_id = ? AND network = ? AND symbol = ?`

	queryInsertDepositAddress = `
		INSERT INTO deposit_addresses (id, user_id, symbol, network, address, derivation_index, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetUserDepositAddresses = `
		SELECT id, user_id, symbol, network, address, derivation_index, created_at
		FROM deposit_addresses
		WHERE user_id = ?
		ORDER BY network, symbol`

	queryFindUserByDepositAddress = `
		SELECT u.id, u.name, u.email, u.role, u.active, u.created_at, u.updated_at,
		       a.id, a.user_id, a.symbol, a.network, a.address, a.derivation_index, a.created_at
		FROM users u
		JOIN deposit_addresses a ON u.id = a.user_id
		WHERE LOWER(a.address) = LOWER(?) AND u.active = 1
		LIMIT 1`

	// Balance queries
	queryGetBalance = `
		SELECT balance
		FROM account_balances
		WHERE user_id = ? AND symbol = ?`

	queryGetAccountBalance = `
		SELECT id, balance, version
		FROM account_balances
		WHERE user_id = ? AND symbol = ?`

	queryInsertAccountBalance = `
		INSERT INTO account_balances (id, user_id, symbol, balance, version)
		VALUES (?, ?, ?, ?, ?)`

	queryUpdateAccountBalance = `
		UPDATE account_balances
		SET balance = ?, last_entry_id = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND symbol = ? AND version = ?`

	queryGetAllUserBalances = `
		SELECT id, user_id, symbol, balance, COALESCE(last_entry_id, ''), version, updated_at
		FROM account_balances
		WHERE user_id = ?
		ORDER BY symbol`

	queryReconcileBalance = `
		SELECT entry_type, amount
		FROM ledger_entries
		WHERE user_id = ? AND symbol = ?`

	// Ledger queries
	queryCheckDuplicateTxHash = `
		SELECT id FROM ledger_entries
		WHERE tx_hash = ? AND entry_type = ?
		LIMIT 1`

	queryInsertLedgerEntry = `
		INSERT INTO ledger_entries (
			id, user_id, symbol, network, entry_type, amount, balance_before, balance_after,
			reference_type, reference_id, tx_hash, admin_id, note, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetLedgerHistory = `
		SELECT id, user_id, symbol, network, entry_type, amount, balance_before, balance_after,
		       reference_type, reference_id, tx_hash, admin_id, note, created_at
		FROM ledger_entries
		WHERE user_id = ?
		ORDER BY rowid DESC
		LIMIT ? OFFSET ?`

	// Withdrawal queries
	queryInsertWithdrawal = `
		INSERT INTO withdrawal_requests (
			id, user_id, symbol, network, amount, fee, net_amount, to_address, status, requested_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetWithdrawal = `
		SELECT id, user_id, symbol, network, amount, fee, net_amount, to_address, status,
		       tx_hash, admin_id, admin_note, rejection_reason,
		       requested_at, processed_at, completed_at, rejected_at
		FROM withdrawal_requests
		WHERE id = ?`

	queryGetUserWithdrawals = `
		SELECT id, user_id, symbol, network, amount, fee, net_amount, to_address, status,
		       tx_hash, admin_id, admin_note, rejection_reason,
		       requested_at, processed_at, completed_at, rejected_at
		FROM withdrawal_requests
		WHERE user_id = ?
		ORDER BY requested_at DESC`

	queryListPendingWithdrawals = `
		SELECT id, user_id, symbol, network, amount, fee, net_amount, to_address, status,
		       tx_hash, admin_id, admin_note, rejection_reason,
		       requested_at, processed_at, completed_at, rejected_at
		FROM withdrawal_requests
		WHERE status = 'pending'
		ORDER BY requested_at`

	queryCompleteWithdrawal = `
		UPDATE withdrawal_requests
		SET status = 'completed', tx_hash = ?, admin_id = ?, admin_note = ?,
		    processed_at = ?, completed_at = ?
		WHERE id = ? AND status = 'pending'`

	queryRejectWithdrawal = `
		UPDATE withdrawal_requests
		SET status = 'rejected', admin_id = ?, rejection_reason = ?,
		    processed_at = ?, rejected_at = ?
		WHERE id = ? AND status = 'pending'`

	// Admin action queries
	queryInsertAdminAction = `
		INSERT INTO admin_actions (id, admin_id, target_user_id, action_type, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryListAdminActions = `
		SELECT id, admin_id, target_user_id, action_type, details, created_at
		FROM admin_actions
		ORDER BY rowid DESC
		LIMIT ?`

	// Network config queries
	queryGetNetworkConfig = `
		SELECT network, chain_id, native_symbol, withdrawal_fee, min_withdrawal,
		       required_confirmations, enabled, updated_at
		FROM network_configs
		WHERE network = ?`

	queryListNetworkConfigs = `
		SELECT network, chain_id, native_symbol, withdrawal_fee, min_withdrawal,
		       required_confirmations, enabled, updated_at
		FROM network_configs
		ORDER BY network`

	queryUpsertNetworkConfig = `
		INSERT INTO network_configs (
			network, chain_id, native_symbol, withdrawal_fee, min_withdrawal,
			required_confirmations, enabled, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(network) DO UPDATE SET
			chain_id = excluded.chain_id,
			native_symbol = excluded.native_symbol,
			withdrawal_fee = excluded.withdrawal_fee,
			min_withdrawal = excluded.min_withdrawal,
			required_confirmations = excluded.required_confirmations,
			enabled = excluded.enabled,
			updated_at = CURRENT_TIMESTAMP`
)
