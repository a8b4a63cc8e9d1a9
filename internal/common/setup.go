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

package common

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"crypto-custody-go/internal/api"
	"crypto-custody-go/internal/database"
	"crypto-custody-go/internal/models"
	"crypto-custody-go/internal/wallet"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	}
}

type Services struct {
	DbService *database.Service
	Wallet    *wallet.Wallet
	Custody   *api.CustodyService
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires the database, the HD wallet and the custody
// service. The master mnemonic comes from MASTER_WALLET_MNEMONIC; when
// it is absent the wallet stays nil and address derivation is
// unavailable while ledger operations keep working.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	hdWallet, err := loadMasterWallet()
	if err != nil {
		dbService.Close()
		return nil, err
	}
	if hdWallet == nil {
		zap.L().Warn("MASTER_WALLET_MNEMONIC not set, deposit address derivation unavailable")
	}

	custody := api.NewCustodyService(dbService, hdWallet,
		buildAuthPolicy(cfg.Custody.AuthPolicy, dbService), cfg.Custody.PlatformAccountId)

	return &Services{
		DbService: dbService,
		Wallet:    hdWallet,
		Custody:   custody,
	}, nil
}

// InitializeDatabaseOnly initializes just the database service.
// Useful for read-only operations like querying balances.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func loadMasterWallet() (*wallet.Wallet, error) {
	mnemonic := strings.TrimSpace(os.Getenv("MASTER_WALLET_MNEMONIC"))
	if mnemonic == "" {
		return nil, nil
	}
	hdWallet, err := wallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("invalid MASTER_WALLET_MNEMONIC: %w", err)
	}
	return hdWallet, nil
}

func buildAuthPolicy(policy string, dbService *database.Service) api.AuthorizationPolicy {
	switch policy {
	case "allow":
		zap.L().Warn("AUTH_POLICY=allow, all callers treated as administrators")
		return api.AlwaysAllow{}
	default:
		return api.RoleBased{Store: dbService}
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
