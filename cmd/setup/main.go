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
	"crypto-custody-go/internal/wallet"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	generateMnemonic := flag.Bool("generate-mnemonic", false, "Generate a new master mnemonic and exit")
	userId := flag.String("user-id", "", "Create a user with this id (optional, generated when empty)")
	name := flag.String("name", "", "Name for the created user")
	email := flag.String("email", "", "Email for the created user")
	role := flag.String("role", "user", "Role for the created user (user or admin)")
	flag.Parse()

	if *generateMnemonic {
		mnemonic, err := wallet.NewMnemonic()
		if err != nil {
			logger.Fatal("Failed to generate mnemonic", zap.Error(err))
		}
		common.PrintHeader("MASTER WALLET MNEMONIC", common.DefaultWidth)
		fmt.Println(mnemonic)
		common.PrintFooter("Store this phrase offline. It controls every derived deposit address.", common.DefaultWidth)
		return
	}

	logger.Info("Starting custody setup")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	seeded, err := common.SeedNetworkConfigs(ctx, services.DbService, cfg.Custody.NetworksFile)
	if err != nil {
		logger.Fatal("Failed to seed network configs", zap.Error(err))
	}
	logger.Info("Network configs seeded", zap.Int("count", seeded))

	if *email != "" {
		id := *userId
		if id == "" {
			id = uuid.New().String()
		}
		if err := services.DbService.CreateUser(ctx, id, *name, *email, *role); err != nil {
			logger.Fatal("Failed to create user", zap.Error(err))
		}
		fmt.Printf("Created user %s (%s, role=%s)\n", id, *email, *role)
	}

	status := services.Custody.Status(ctx)
	common.PrintHeader("CUSTODY SETUP COMPLETE", common.DefaultWidth)
	fmt.Printf("Database:        %s\n", cfg.Database.Path)
	fmt.Printf("Networks seeded: %d\n", seeded)
	fmt.Printf("Wallet loaded:   %t\n", status.Initialized)
	if status.Initialized {
		fmt.Printf("Master address:  %s\n", status.MasterAddress)
	}
	common.PrintSeparator("=", common.DefaultWidth)

	logger.Info("Setup completed")
}
