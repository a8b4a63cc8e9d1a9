package api

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"crypto-custody-go/internal/database"
	"crypto-custody-go/internal/models"
	"crypto-custody-go/internal/store"
	"crypto-custody-go/internal/wallet"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Well-known development mnemonic with published derivation vectors.
const testMnemonic = "test test test test test test test test test test test junk"

const platformAccount = "platform"

func setupCustodyService(t *testing.T) (*CustodyService, *database.Service, func()) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	dbService, err := database.NewServiceForDB(db)
	if err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}

	ctx := context.Background()
	seed := []struct {
		id, name, email, role string
	}{
		{"user1", "Alice", "alice@example.com", "user"},
		{"admin1", "Carol", "carol@example.com", "admin"},
		{platformAccount, "Platform", "platform@example.com", "admin"},
	}
	for _, u := range seed {
		if err := dbService.CreateUser(ctx, u.id, u.name, u.email, u.role); err != nil {
			t.Fatalf("Failed to insert test user %s: %v", u.id, err)
		}
	}

	networks := []models.NetworkConfig{
		{Network: "ERC20", ChainId: 1, NativeSymbol: "ETH",
			WithdrawalFee: decimal.RequireFromString("2"), MinWithdrawal: decimal.RequireFromString("10"),
			RequiredConfirmations: 12, Enabled: true},
		{Network: "BSC20", ChainId: 56, NativeSymbol: "BNB",
			WithdrawalFee: decimal.RequireFromString("0.5"), MinWithdrawal: decimal.RequireFromString("5"),
			RequiredConfirmations: 15, Enabled: true},
		{Network: "Optimism", ChainId: 10, NativeSymbol: "ETH",
			WithdrawalFee: decimal.RequireFromString("0.3"), MinWithdrawal: decimal.RequireFromString("5"),
			RequiredConfirmations: 6, Enabled: false},
	}
	for _, cfg := range networks {
		if err := dbService.UpsertNetworkConfig(ctx, cfg); err != nil {
			t.Fatalf("Failed to seed network %s: %v", cfg.Network, err)
		}
	}

	w, err := wallet.NewFromMnemonic(testMnemonic)
	if err != nil {
		t.Fatalf("Failed to build test wallet: %v", err)
	}

	service := NewCustodyService(dbService, w, RoleBased{Store: dbService}, platformAccount)
	cleanup := func() {
		db.Close()
	}
	return service, dbService, cleanup
}

func TestRequestDepositAddress_Deterministic(t *testing.T) {
	service, _, cleanup := setupCustodyService(t)
	defer cleanup()

	ctx := context.Background()
	result, err := service.RequestDepositAddress(ctx, "user1", "ERC20", "USDT")
	if err != nil {
		t.Fatalf("RequestDepositAddress failed: %v", err)
	}
	if !result.IsNewlyAllocated {
		t.Error("Expected first call to allocate")
	}
	if result.DerivationIndex != 1 {
		t.Errorf("Expected index 1, got %d", result.DerivationIndex)
	}
	// Index 1 of the development mnemonic.
	if result.Address != "0x70997970C51812dc3A010C7d01b50e0d17dc79C8" {
		t.Errorf("Unexpected address %s", result.Address)
	}

	again, err := service.RequestDepositAddress(ctx, "user1", "ERC20", "USDT")
	if err != nil {
		t.Fatalf("Second call failed: %v", err)
	}
	if again.IsNewlyAllocated {
		t.Error("Expected second call to return the existing address")
	}
	if again.Address != result.Address {
		t.Errorf("Address changed between calls: %s vs %s", again.Address, result.Address)
	}
}

func TestRequestDepositAddress_SameAcrossEVMNetworks(t *testing.T) {
	service, _, cleanup := setupCustodyService(t)
	defer cleanup()

	ctx := context.Background()
	erc20, err := service.RequestDepositAddress(ctx, "user1", "ERC20", "USDT")
	if err != nil {
		t.Fatalf("ERC20 allocation failed: %v", err)
	}
	bsc20, err := service.RequestDepositAddress(ctx, "user1", "BSC20", "USDT")
	if err != nil {
		t.Fatalf("BSC20 allocation failed: %v", err)
	}
	if erc20.Address != bsc20.Address {
		t.Errorf("Expected the same address on both networks, got %s vs %s", erc20.Address, bsc20.Address)
	}
}

func TestRequestDepositAddress_UnsupportedNetwork(t *testing.T) {
	service, _, cleanup := setupCustodyService(t)
	defer cleanup()

	if _, err := service.RequestDepositAddress(context.Background(), "user1", "Solana", "SOL"); err == nil {
		t.Fatal("Expected error for non-EVM network")
	}
}

func TestRequestDepositAddress_WalletNotInitialized(t *testing.T) {
	_, dbService, cleanup := setupCustodyService(t)
	defer cleanup()

	service := NewCustodyService(dbService, nil, AlwaysAllow{}, platformAccount)
	_, err := service.RequestDepositAddress(context.Background(), "user1", "ERC20", "USDT")
	if !errors.Is(err, store.ErrWalletNotInitialized) {
		t.Fatalf("Expected ErrWalletNotInitialized, got %v", err)
	}

	status := service.Status(context.Background())
	if status.Initialized {
		t.Error("Expected status to report uninitialized wallet")
	}
}

func TestRequestWithdrawal_Validation(t *testing.T) {
	service, dbService, cleanup := setupCustodyService(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := dbService.AdjustBalance(ctx, store.AdjustBalanceParams{
		AdminId: "admin1", TargetUserId: "user1", Symbol: "USDT",
		Amount: decimal.RequireFromString("100"), Direction: "credit", Note: "seed",
	}); err != nil {
		t.Fatalf("Failed to seed balance: %v", err)
	}

	destination := "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"

	// Below the ERC20 minimum of 10.
	_, err := service.RequestWithdrawal(ctx, "user1", "USDT", "ERC20", destination, decimal.RequireFromString("9"))
	var minimumErr *store.BelowMinimumError
	if !errors.As(err, &minimumErr) {
		t.Fatalf("Expected BelowMinimumError, got %v", err)
	}
	if !minimumErr.Minimum.Equal(decimal.RequireFromString("10")) {
		t.Errorf("Expected minimum 10, got %s", minimumErr.Minimum.String())
	}

	// Malformed destination.
	_, err = service.RequestWithdrawal(ctx, "user1", "USDT", "ERC20", "0x1234", decimal.RequireFromString("20"))
	if !errors.Is(err, store.ErrInvalidAddress) {
		t.Fatalf("Expected ErrInvalidAddress, got %v", err)
	}

	// Disabled network.
	_, err = service.RequestWithdrawal(ctx, "user1", "USDT", "Optimism", destination, decimal.RequireFromString("20"))
	if err == nil {
		t.Fatal("Expected error for disabled network")
	}

	// Unknown network.
	_, err = service.RequestWithdrawal(ctx, "user1", "USDT", "Tron", destination, decimal.RequireFromString("20"))
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for unknown network, got %v", err)
	}

	// Valid request freezes the current network fee.
	request, err := service.RequestWithdrawal(ctx, "user1", "USDT", "ERC20", destination, decimal.RequireFromString("40"))
	if err != nil {
		t.Fatalf("RequestWithdrawal failed: %v", err)
	}
	if !request.Fee.Equal(decimal.RequireFromString("2")) {
		t.Errorf("Expected frozen fee 2, got %s", request.Fee.String())
	}
	if !request.NetAmount.Equal(decimal.RequireFromString("38")) {
		t.Errorf("Expected net amount 38, got %s", request.NetAmount.String())
	}
}

func TestWithdrawalLifecycle(t *testing.T) {
	service, _, cleanup := setupCustodyService(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.AdjustBalance(ctx, "admin1", store.AdjustBalanceParams{
		TargetUserId: "user1", Symbol: "USDT",
		Amount: decimal.RequireFromString("100"), Direction: "credit", Note: "seed",
	}); err != nil {
		t.Fatalf("Failed to seed balance: %v", err)
	}

	destination := "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
	request, err := service.RequestWithdrawal(ctx, "user1", "USDT", "ERC20", destination, decimal.RequireFromString("40"))
	if err != nil {
		t.Fatalf("RequestWithdrawal failed: %v", err)
	}

	pending, err := service.ListPendingWithdrawals(ctx, "admin1")
	if err != nil {
		t.Fatalf("ListPendingWithdrawals failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Id != request.Id {
		t.Fatalf("Expected the new request in the queue, got %+v", pending)
	}

	approved, err := service.ApproveWithdrawal(ctx, "admin1", request.Id, "0xpayout", "ok")
	if err != nil {
		t.Fatalf("ApproveWithdrawal failed: %v", err)
	}
	if approved.Status != models.WithdrawalStatusCompleted {
		t.Errorf("Expected completed, got %s", approved.Status)
	}

	balance, err := service.GetBalance(ctx, "user1", "USDT")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("60")) {
		t.Errorf("Expected balance 60, got %s", balance.String())
	}

	feeBalance, err := service.GetBalance(ctx, platformAccount, "USDT")
	if err != nil {
		t.Fatalf("GetBalance for platform failed: %v", err)
	}
	if !feeBalance.Equal(decimal.RequireFromString("2")) {
		t.Errorf("Expected platform fee balance 2, got %s", feeBalance.String())
	}
}

func TestAuthorization_RoleBased(t *testing.T) {
	service, _, cleanup := setupCustodyService(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.ListPendingWithdrawals(ctx, "user1"); !errors.Is(err, store.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for non-admin, got %v", err)
	}
	if _, err := service.ListPendingWithdrawals(ctx, ""); !errors.Is(err, store.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for empty caller, got %v", err)
	}
	if _, err := service.ListPendingWithdrawals(ctx, "admin1"); err != nil {
		t.Errorf("Expected admin caller to be authorized, got %v", err)
	}

	if _, err := service.AdjustBalance(ctx, "user1", store.AdjustBalanceParams{
		TargetUserId: "user1", Symbol: "USDT",
		Amount: decimal.RequireFromString("1"), Direction: "credit",
	}); !errors.Is(err, store.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for non-admin adjustment, got %v", err)
	}
}

type staticVerifier struct {
	principal string
	err       error
}

func (v staticVerifier) Verify(ctx context.Context, token string) (string, error) {
	return v.principal, v.err
}

func TestAuthorization_ExternalToken(t *testing.T) {
	_, dbService, cleanup := setupCustodyService(t)
	defer cleanup()

	policy := ExternalTokenVerified{
		Verifier: staticVerifier{principal: "admin1"},
		Store:    dbService,
	}

	// Missing token.
	if err := policy.AuthorizeAdmin(context.Background(), "admin1"); !errors.Is(err, store.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized without token, got %v", err)
	}

	// Valid token for an admin principal.
	ctx := WithToken(context.Background(), "token123")
	if err := policy.AuthorizeAdmin(ctx, "admin1"); err != nil {
		t.Errorf("Expected verified admin to be authorized, got %v", err)
	}

	// Subject mismatch.
	if err := policy.AuthorizeAdmin(ctx, "user1"); !errors.Is(err, store.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized on subject mismatch, got %v", err)
	}

	// Verifier rejection.
	failing := ExternalTokenVerified{
		Verifier: staticVerifier{err: errors.New("expired")},
		Store:    dbService,
	}
	if err := failing.AuthorizeAdmin(ctx, "admin1"); !errors.Is(err, store.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized on verifier failure, got %v", err)
	}
}

func TestCreditEarning(t *testing.T) {
	service, _, cleanup := setupCustodyService(t)
	defer cleanup()

	ctx := context.Background()
	entry, err := service.CreditEarning(ctx, "user1", "USDT", decimal.RequireFromString("1.25"), "staking reward")
	if err != nil {
		t.Fatalf("CreditEarning failed: %v", err)
	}
	if entry.EntryType != models.EntryTypeEarning {
		t.Errorf("Expected earning entry, got %s", entry.EntryType)
	}

	if _, err := service.CreditEarning(ctx, "user1", "USDT", decimal.RequireFromString("-1"), "bad"); err == nil {
		t.Error("Expected error for non-positive earning")
	}
}

func TestStatus_WithWallet(t *testing.T) {
	service, _, cleanup := setupCustodyService(t)
	defer cleanup()

	status := service.Status(context.Background())
	if !status.Initialized {
		t.Fatal("Expected initialized wallet")
	}
	// Index 0 of the development mnemonic.
	if status.MasterAddress != "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266" {
		t.Errorf("Unexpected master address %s", status.MasterAddress)
	}
}
