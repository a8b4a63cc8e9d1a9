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
	"os"

	"crypto-custody-go/internal/common"
	"crypto-custody-go/internal/config"
	"crypto-custody-go/internal/models"
	"crypto-custody-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const usage = `Usage: admin <command> [flags]

Commands:
  list-pending   List pending withdrawal requests
  approve        Approve a pending withdrawal
  reject         Reject a pending withdrawal
  adjust         Credit or debit a user's balance
  deposit        Record an observed on-chain deposit
  networks       Show network withdrawal policies
  logs           Show recent admin actions
  user           Show a user's balances, addresses and withdrawals
`

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	switch command {
	case "list-pending":
		runListPending(ctx, services, args, logger)
	case "approve":
		runApprove(ctx, services, args, logger)
	case "reject":
		runReject(ctx, services, args, logger)
	case "adjust":
		runAdjust(ctx, services, args, logger)
	case "deposit":
		runDeposit(ctx, services, args, logger)
	case "networks":
		runNetworks(ctx, services, logger)
	case "logs":
		runLogs(ctx, services, args, logger)
	case "user":
		runUserDetail(ctx, services, args, logger)
	default:
		fmt.Print(usage)
		os.Exit(1)
	}
}

func printPending(requests []models.WithdrawalRequest) {
	for i, request := range requests {
		prefix := common.BoxPrefix(i == len(requests)-1)
		fmt.Printf("%s %s  user=%s  %s %s -> %s (net %s, requested %s)\n",
			prefix,
			request.Id,
			request.UserId,
			request.Amount.String(),
			request.Symbol,
			request.ToAddress,
			request.NetAmount.String(),
			request.RequestedAt.Format("2006-01-02 15:04"))
	}
}

func runListPending(ctx context.Context, services *common.Services, args []string, logger *zap.Logger) {
	fs := flag.NewFlagSet("list-pending", flag.ExitOnError)
	adminId := fs.String("admin-id", "", "Acting administrator id")
	_ = fs.Parse(args)

	requests, err := services.Custody.ListPendingWithdrawals(ctx, *adminId)
	if err != nil {
		logger.Fatal("Failed to list pending withdrawals", zap.Error(err))
	}

	common.PrintHeader("PENDING WITHDRAWALS", common.DefaultWidth)
	if len(requests) == 0 {
		fmt.Println("No pending requests")
	} else {
		printPending(requests)
	}
	common.PrintSeparator("=", common.DefaultWidth)
}

func runApprove(ctx context.Context, services *common.Services, args []string, logger *zap.Logger) {
	fs := flag.NewFlagSet("approve", flag.ExitOnError)
	adminId := fs.String("admin-id", "", "Acting administrator id")
	requestId := fs.String("request", "", "Withdrawal request id")
	txHash := fs.String("tx-hash", "", "On-chain transaction hash of the payout")
	note := fs.String("note", "", "Optional administrator note")
	_ = fs.Parse(args)

	if *requestId == "" {
		logger.Fatal("-request is required")
	}

	request, err := services.Custody.ApproveWithdrawal(ctx, *adminId, *requestId, *txHash, *note)
	if err != nil {
		logger.Fatal("Failed to approve withdrawal", zap.String("request_id", *requestId), zap.Error(err))
	}

	fmt.Printf("Approved %s: debited %s %s from user %s (net %s to %s)\n",
		request.Id, request.Amount.String(), request.Symbol,
		request.UserId, request.NetAmount.String(), request.ToAddress)
}

func runReject(ctx context.Context, services *common.Services, args []string, logger *zap.Logger) {
	fs := flag.NewFlagSet("reject", flag.ExitOnError)
	adminId := fs.String("admin-id", "", "Acting administrator id")
	requestId := fs.String("request", "", "Withdrawal request id")
	reason := fs.String("reason", "", "Rejection reason")
	_ = fs.Parse(args)

	if *requestId == "" {
		logger.Fatal("-request is required")
	}

	request, err := services.Custody.RejectWithdrawal(ctx, *adminId, *requestId, *reason)
	if err != nil {
		logger.Fatal("Failed to reject withdrawal", zap.String("request_id", *requestId), zap.Error(err))
	}

	fmt.Printf("Rejected %s (user %s, %s %s): %s\n",
		request.Id, request.UserId, request.Amount.String(), request.Symbol, *reason)
}

func runAdjust(ctx context.Context, services *common.Services, args []string, logger *zap.Logger) {
	fs := flag.NewFlagSet("adjust", flag.ExitOnError)
	adminId := fs.String("admin-id", "", "Acting administrator id")
	targetUserId := fs.String("user-id", "", "Target user id")
	symbol := fs.String("symbol", "USDT", "Asset symbol")
	amountFlag := fs.String("amount", "", "Adjustment amount (positive)")
	direction := fs.String("direction", "credit", "credit or debit")
	note := fs.String("note", "", "Reason for the adjustment")
	_ = fs.Parse(args)

	if *targetUserId == "" || *amountFlag == "" {
		logger.Fatal("-user-id and -amount are required")
	}
	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		logger.Fatal("Invalid amount", zap.String("amount", *amountFlag), zap.Error(err))
	}

	entry, err := services.Custody.AdjustBalance(ctx, *adminId, store.AdjustBalanceParams{
		TargetUserId: *targetUserId,
		Symbol:       *symbol,
		Amount:       amount,
		Direction:    *direction,
		Note:         *note,
	})
	if err != nil {
		logger.Fatal("Failed to adjust balance", zap.Error(err))
	}

	fmt.Printf("Adjusted user %s: %s %s %s, balance %s -> %s\n",
		*targetUserId, *direction, amount.String(), *symbol,
		entry.BalanceBefore.String(), entry.BalanceAfter.String())
}

func runDeposit(ctx context.Context, services *common.Services, args []string, logger *zap.Logger) {
	fs := flag.NewFlagSet("deposit", flag.ExitOnError)
	address := fs.String("address", "", "Deposit address the funds arrived at")
	symbol := fs.String("symbol", "", "Asset symbol (defaults to the address's symbol)")
	network := fs.String("network", "ERC20", "Network the deposit arrived on")
	amountFlag := fs.String("amount", "", "Deposited amount")
	txHash := fs.String("tx-hash", "", "On-chain transaction hash")
	_ = fs.Parse(args)

	if *address == "" || *amountFlag == "" {
		logger.Fatal("-address and -amount are required")
	}
	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		logger.Fatal("Invalid amount", zap.String("amount", *amountFlag), zap.Error(err))
	}

	entry, err := services.Custody.RecordDeposit(ctx, store.RecordDepositParams{
		Address: *address,
		Symbol:  *symbol,
		Network: *network,
		Amount:  amount,
		TxHash:  *txHash,
	})
	if err != nil {
		logger.Fatal("Failed to record deposit", zap.Error(err))
	}

	fmt.Printf("Credited %s %s to user %s, balance %s -> %s\n",
		entry.Amount.String(), entry.Symbol, entry.UserId,
		entry.BalanceBefore.String(), entry.BalanceAfter.String())
}

func runNetworks(ctx context.Context, services *common.Services, logger *zap.Logger) {
	configs, err := services.DbService.ListNetworkConfigs(ctx)
	if err != nil {
		logger.Fatal("Failed to list network configs", zap.Error(err))
	}

	common.PrintHeader("NETWORK WITHDRAWAL POLICIES", common.DefaultWidth)
	for i, cfg := range configs {
		prefix := common.BoxPrefix(i == len(configs)-1)
		fmt.Printf("%s %-10s chain=%-6d fee=%-8s min=%-8s confirmations=%-3d enabled=%t\n",
			prefix, cfg.Network, cfg.ChainId,
			cfg.WithdrawalFee.String(), cfg.MinWithdrawal.String(),
			cfg.RequiredConfirmations, cfg.Enabled)
	}
	common.PrintSeparator("=", common.DefaultWidth)
}

func runUserDetail(ctx context.Context, services *common.Services, args []string, logger *zap.Logger) {
	fs := flag.NewFlagSet("user", flag.ExitOnError)
	userId := fs.String("user-id", "", "User id (optional when -email is set)")
	email := fs.String("email", "", "User email (optional when -user-id is set)")
	_ = fs.Parse(args)

	user, err := common.ResolveUser(ctx, services.DbService, *userId, *email)
	if err != nil {
		logger.Fatal("Failed to resolve user", zap.Error(err))
	}

	balances, err := services.DbService.GetAllBalances(ctx, user.Id)
	if err != nil {
		logger.Fatal("Failed to get balances", zap.Error(err))
	}
	addresses, err := services.DbService.GetUserDepositAddresses(ctx, user.Id)
	if err != nil {
		logger.Fatal("Failed to get addresses", zap.Error(err))
	}
	withdrawals, err := services.DbService.GetUserWithdrawals(ctx, user.Id)
	if err != nil {
		logger.Fatal("Failed to get withdrawals", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("USER: %s (%s, role=%s)", user.Name, user.Email, user.Role), common.DefaultWidth)
	fmt.Printf("ID: %s\n", user.Id)

	fmt.Printf("\nBalances (%d):\n", len(balances))
	for i, balance := range balances {
		prefix := common.BoxPrefix(i == len(balances)-1)
		fmt.Printf("%s %-10s %20s (v%d)\n", prefix, balance.Symbol, balance.Balance.String(), balance.Version)
	}

	fmt.Printf("\nDeposit addresses (%d):\n", len(addresses))
	for i, addr := range addresses {
		prefix := common.BoxPrefix(i == len(addresses)-1)
		fmt.Printf("%s %-10s %-6s %s (index %d)\n", prefix, addr.Network, addr.Symbol, addr.Address, addr.DerivationIndex)
	}

	fmt.Printf("\nWithdrawals (%d):\n", len(withdrawals))
	for i, request := range withdrawals {
		prefix := common.BoxPrefix(i == len(withdrawals)-1)
		fmt.Printf("%s %s  %-9s %12s %-6s -> %s\n",
			prefix, request.RequestedAt.Format("2006-01-02 15:04"),
			request.Status, request.Amount.String(), request.Symbol, request.ToAddress)
	}
	common.PrintSeparator("=", common.DefaultWidth)
}

func runLogs(ctx context.Context, services *common.Services, args []string, logger *zap.Logger) {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	adminId := fs.String("admin-id", "", "Acting administrator id")
	limit := fs.Int("limit", 50, "Maximum number of records")
	_ = fs.Parse(args)

	actions, err := services.Custody.ListAdminActions(ctx, *adminId, *limit)
	if err != nil {
		logger.Fatal("Failed to list admin actions", zap.Error(err))
	}

	common.PrintHeader("ADMIN ACTION LOG", common.WideWidth)
	for i, action := range actions {
		prefix := common.BoxPrefix(i == len(actions)-1)
		fmt.Printf("%s %s  %-20s admin=%s target=%s  %s\n",
			prefix,
			action.CreatedAt.Format("2006-01-02 15:04:05"),
			action.ActionType,
			action.AdminId,
			action.TargetUserId,
			action.Details)
	}
	common.PrintSeparator("=", common.WideWidth)
}
