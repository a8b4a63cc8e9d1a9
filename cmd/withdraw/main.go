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
	"errors"
	"flag"
	"fmt"

	"crypto-custody-go/internal/common"
	"crypto-custody-go/internal/config"
	"crypto-custody-go/internal/models"
	"crypto-custody-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func printWithdrawal(request models.WithdrawalRequest, isLast bool) {
	prefix := common.BoxPrefix(isLast)
	fmt.Printf("%s %s  %-9s %12s %-6s -> %s (fee %s, net %s)\n",
		prefix,
		request.RequestedAt.Format("2006-01-02 15:04"),
		request.Status,
		request.Amount.String(),
		request.Symbol,
		request.ToAddress,
		request.Fee.String(),
		request.NetAmount.String())
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userId := flag.String("user-id", "", "User id (optional when -email is set)")
	email := flag.String("email", "", "User email (optional when -user-id is set)")
	symbol := flag.String("symbol", "USDT", "Asset symbol")
	network := flag.String("network", "ERC20", "Withdrawal network")
	amountFlag := flag.String("amount", "", "Amount to withdraw (gross, fee is deducted)")
	toAddress := flag.String("to", "", "Destination address")
	list := flag.Bool("list", false, "List the user's withdrawal requests instead of creating one")
	flag.Parse()

	logger.Info("Starting withdrawal tool")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	user, err := common.ResolveUser(ctx, services.DbService, *userId, *email)
	if err != nil {
		logger.Fatal("Failed to resolve user", zap.Error(err))
	}

	if *list {
		requests, err := services.Custody.ListUserWithdrawals(ctx, user.Id)
		if err != nil {
			logger.Fatal("Failed to list withdrawals", zap.Error(err))
		}
		common.PrintHeader(fmt.Sprintf("WITHDRAWALS: %s (%s)", user.Name, user.Email), common.DefaultWidth)
		if len(requests) == 0 {
			fmt.Println("No withdrawal requests")
		}
		for i, request := range requests {
			printWithdrawal(request, i == len(requests)-1)
		}
		common.PrintSeparator("=", common.DefaultWidth)
		return
	}

	if *amountFlag == "" || *toAddress == "" {
		logger.Fatal("Both -amount and -to are required")
	}
	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		logger.Fatal("Invalid amount", zap.String("amount", *amountFlag), zap.Error(err))
	}

	request, err := services.Custody.RequestWithdrawal(ctx, user.Id, *symbol, *network, *toAddress, amount)
	if err != nil {
		var insufficientErr *store.InsufficientBalanceError
		var minimumErr *store.BelowMinimumError
		switch {
		case errors.As(err, &insufficientErr):
			logger.Fatal("Insufficient balance",
				zap.String("balance", insufficientErr.Balance.String()),
				zap.String("required", insufficientErr.Required.String()))
		case errors.As(err, &minimumErr):
			logger.Fatal("Amount below network minimum",
				zap.String("network", minimumErr.Network),
				zap.String("minimum", minimumErr.Minimum.String()),
				zap.String("amount", minimumErr.Amount.String()))
		case errors.Is(err, store.ErrInvalidAddress):
			logger.Fatal("Invalid destination address", zap.String("address", *toAddress))
		default:
			logger.Fatal("Failed to create withdrawal request", zap.Error(err))
		}
	}

	common.PrintHeader("WITHDRAWAL REQUEST SUBMITTED", common.DefaultWidth)
	fmt.Printf("Request:  %s\n", request.Id)
	fmt.Printf("User:     %s (%s)\n", user.Name, user.Email)
	fmt.Printf("Amount:   %s %s\n", request.Amount.String(), request.Symbol)
	fmt.Printf("Fee:      %s %s\n", request.Fee.String(), request.Symbol)
	fmt.Printf("Net:      %s %s\n", request.NetAmount.String(), request.Symbol)
	fmt.Printf("To:       %s (%s)\n", request.ToAddress, request.Network)
	fmt.Printf("Status:   %s\n", request.Status)
	common.PrintFooter("The request is pending administrator review.", common.DefaultWidth)

	logger.Info("Withdrawal request submitted",
		zap.String("request_id", request.Id),
		zap.String("user_id", user.Id),
		zap.String("amount", request.Amount.String()),
		zap.String("symbol", request.Symbol))
}
