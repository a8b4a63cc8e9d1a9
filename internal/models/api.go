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

package models

import (
	"github.com/shopspring/decimal"
)

// DepositAddressResult is returned when a user requests a deposit
// address; IsNewlyAllocated distinguishes a fresh allocation from a
// previously assigned address.
type DepositAddressResult struct {
	Address          string `json:"address"`
	DerivationIndex  uint32 `json:"derivation_index"`
	IsNewlyAllocated bool   `json:"is_newly_allocated"`
}

// UserBalance represents a user's balance for a specific symbol
type UserBalance struct {
	Symbol  string          `json:"symbol"`
	Balance decimal.Decimal `json:"balance"`
}

// WalletStatus reports whether address derivation is available and, if
// so, the custodial master address (derivation index 0).
type WalletStatus struct {
	Initialized   bool   `json:"initialized"`
	MasterAddress string `json:"master_address,omitempty"`
}
