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
	"crypto-custody-go/internal/models"

	"go.uber.org/zap"
)

func printAddresses(addresses []models.DepositAddress) {
	for i, addr := range addresses {
		prefix := common.BoxPrefix(i == len(addresses)-1)
		fmt.Printf("%s %-10s %-6s %s (index %d)\n",
			prefix, addr.Network, addr.Symbol, addr.Address, addr.DerivationIndex)
	}
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userId := flag.String("user-id", "", "User id (optional when -email is set)")
	email := flag.String("email", "", "User email (optional when -user-id is set)")
	network := flag.String("network", "ERC20", "Network to allocate the address on")
	symbol := flag.String("symbol", "USDT", "Asset symbol")
	list := flag.Bool("list", false, "List the user's existing addresses instead of allocating")
	flag.Parse()

	logger.Info("Starting deposit address tool")

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
		addresses, err := services.Custody.ListDepositAddresses(ctx, user.Id)
		if err != nil {
			logger.Fatal("Failed to list addresses", zap.Error(err))
		}
		common.PrintHeader(fmt.Sprintf("DEPOSIT ADDRESSES: %s (%s)", user.Name, user.Email), common.DefaultWidth)
		if len(addresses) == 0 {
			fmt.Println("No addresses allocated yet")
		} else {
			printAddresses(addresses)
		}
		common.PrintSeparator("=", common.DefaultWidth)
		return
	}

	result, err := services.Custody.RequestDepositAddress(ctx, user.Id, *network, *symbol)
	if err != nil {
		logger.Fatal("Failed to allocate deposit address",
			zap.String("user_id", user.Id),
			zap.String("network", *network),
			zap.String("symbol", *symbol),
			zap.Error(err))
	}

	common.PrintHeader("DEPOSIT ADDRESS", common.DefaultWidth)
	fmt.Printf("User:     %s (%s)\n", user.Name, user.Email)
	fmt.Printf("Network:  %s\n", *network)
	fmt.Printf("Symbol:   %s\n", *symbol)
	fmt.Printf("Address:  %s\n", result.Address)
	fmt.Printf("Index:    %d\n", result.DerivationIndex)
	fmt.Printf("New:      %t\n", result.IsNewlyAllocated)
	common.PrintSeparator("=", common.DefaultWidth)

	logger.Info("Deposit address ready",
		zap.String("user_id", user.Id),
		zap.String("address", result.Address),
		zap.Bool("newly_allocated", result.IsNewlyAllocated))
}
