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

package main

import (
	"context"
	"flag"
	"fmt"

	"crypto-custody-go/internal/common"
	"crypto-custody-go/internal/config"
	"crypto-custody-go/internal/database"
	"crypto-custody-go/internal/models"

	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers        int
	totalBalances     int
	usersWithBalances int
}

func formatEntryId(entryId string) string {
	if entryId == "" {
		return "none"
	}
	if len(entryId) > 8 {
		return entryId[:8] + "..."
	}
	return entryId
}

func printBalance(balance models.AccountBalance, isLast bool) {
	prefix := common.BoxPrefix(isLast)
	lastEntry := formatEntryId(balance.LastEntryId)

	fmt.Printf("%s %-10s: %20s (v%d, last_entry: %s, updated: %s)\n",
		prefix,
		balance.Symbol,
		balance.Balance.String(),
		balance.Version,
		lastEntry,
		balance.UpdatedAt.Format("2006-01-02 15:04:05"))
}

func printHistory(entries []models.LedgerEntry) {
	for i, entry := range entries {
		prefix := common.BoxPrefix(i == len(entries)-1)
		fmt.Printf("%s %-16s %12s %-6s  %s -> %s\n",
			prefix,
			entry.EntryType,
			entry.Amount.String(),
			entry.Symbol,
			entry.BalanceBefore.String(),
			entry.BalanceAfter.String())
	}
}

func processUser(ctx context.Context, user models.User, dbService *database.Service, historyLimit int) (int, error) {
	balances, err := dbService.GetAllBalances(ctx, user.Id)
	if err != nil {
		return 0, fmt.Errorf("failed to get balances: %w", err)
	}

	if len(balances) == 0 {
		return 0, nil
	}

	fmt.Printf("\n┌─ User: %s (%s)\n", user.Name, user.Email)
	fmt.Printf("│  ID: %s\n", user.Id)
	fmt.Printf("│  Assets: %d\n", len(balances))
	for i, balance := range balances {
		printBalance(balance, i == len(balances)-1)
	}

	if historyLimit > 0 {
		entries, err := dbService.GetLedgerHistory(ctx, user.Id, historyLimit, 0)
		if err != nil {
			return 0, fmt.Errorf("failed to get ledger history: %w", err)
		}
		fmt.Printf("│  Recent entries: %d\n", len(entries))
		printHistory(entries)
	}

	return len(balances), nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	historyFlag := flag.Int("history", 0, "Show the N most recent ledger entries per user")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	users, err := common.InitializeUsers(ctx, dbService, *emailFlag)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	common.PrintHeader("USER BALANCE REPORT", common.DefaultWidth)

	stats := balanceStats{}
	for _, user := range users {
		stats.totalUsers++

		balanceCount, err := processUser(ctx, user, dbService, *historyFlag)
		if err != nil {
			logger.Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.String("user_name", user.Name),
				zap.Error(err))
			continue
		}

		if balanceCount > 0 {
			stats.usersWithBalances++
			stats.totalBalances += balanceCount
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d users with balances (%d total balances across %d users queried)",
		stats.usersWithBalances, stats.totalBalances, stats.totalUsers)
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_balances", stats.usersWithBalances),
		zap.Int("total_balances", stats.totalBalances))
}
