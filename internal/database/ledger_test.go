package database

import (
	"context"
	"errors"
	"sync"
	"testing"

	"crypto-custody-go/internal/models"
	"crypto-custody-go/internal/store"

	"github.com/shopspring/decimal"
)

func credit(t *testing.T, service *Service, userId, symbol, amount string) {
	t.Helper()
	_, err := service.AppendEntry(context.Background(), store.AppendEntryParams{
		UserId:    userId,
		Symbol:    symbol,
		EntryType: models.EntryTypeDeposit,
		Delta:     decimal.RequireFromString(amount),
	})
	if err != nil {
		t.Fatalf("Failed to credit %s %s to %s: %v", amount, symbol, userId, err)
	}
}

func TestGetBalance_NoEntries(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	balance, err := service.GetBalance(context.Background(), "user1", "USDT")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(decimal.Zero) {
		t.Errorf("Expected balance 0, got %s", balance.String())
	}
}

func TestAppendEntry_CreditThenDebit(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	entry, err := service.AppendEntry(ctx, store.AppendEntryParams{
		UserId:    "user1",
		Symbol:    "USDT",
		EntryType: models.EntryTypeDeposit,
		Delta:     decimal.RequireFromString("100.5"),
	})
	if err != nil {
		t.Fatalf("AppendEntry credit failed: %v", err)
	}
	if !entry.BalanceBefore.Equal(decimal.Zero) {
		t.Errorf("Expected balance_before 0, got %s", entry.BalanceBefore.String())
	}
	if !entry.BalanceAfter.Equal(decimal.RequireFromString("100.5")) {
		t.Errorf("Expected balance_after 100.5, got %s", entry.BalanceAfter.String())
	}

	entry, err = service.AppendEntry(ctx, store.AppendEntryParams{
		UserId:    "user1",
		Symbol:    "USDT",
		EntryType: models.EntryTypeWithdrawal,
		Delta:     decimal.RequireFromString("-40.5"),
	})
	if err != nil {
		t.Fatalf("AppendEntry debit failed: %v", err)
	}
	if !entry.Amount.Equal(decimal.RequireFromString("40.5")) {
		t.Errorf("Expected stored magnitude 40.5, got %s", entry.Amount.String())
	}
	if !entry.BalanceAfter.Equal(decimal.RequireFromString("60")) {
		t.Errorf("Expected balance_after 60, got %s", entry.BalanceAfter.String())
	}

	balance, err := service.GetBalance(ctx, "user1", "USDT")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("60")) {
		t.Errorf("Expected balance 60, got %s", balance.String())
	}
}

func TestAppendEntry_InsufficientBalance(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	credit(t, service, "user1", "USDT", "10")

	_, err := service.AppendEntry(ctx, store.AppendEntryParams{
		UserId:    "user1",
		Symbol:    "USDT",
		EntryType: models.EntryTypeWithdrawal,
		Delta:     decimal.RequireFromString("-10.01"),
	})
	if err == nil {
		t.Fatal("Expected insufficient balance error")
	}
	var insufficientErr *store.InsufficientBalanceError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("Expected InsufficientBalanceError, got %v", err)
	}
	if !insufficientErr.Balance.Equal(decimal.RequireFromString("10")) {
		t.Errorf("Expected reported balance 10, got %s", insufficientErr.Balance.String())
	}
	if !insufficientErr.Required.Equal(decimal.RequireFromString("10.01")) {
		t.Errorf("Expected required 10.01, got %s", insufficientErr.Required.String())
	}
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Error("Expected error to unwrap to ErrInsufficientBalance")
	}

	// The failed debit must leave no trace.
	balance, err := service.GetBalance(ctx, "user1", "USDT")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("10")) {
		t.Errorf("Expected balance unchanged at 10, got %s", balance.String())
	}
	entries, err := service.GetLedgerHistory(ctx, "user1", 10, 0)
	if err != nil {
		t.Fatalf("GetLedgerHistory failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 ledger entry, got %d", len(entries))
	}
}

func TestAppendEntry_ConcurrentDebits(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	credit(t, service, "user1", "USDT", "100")

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.AppendEntry(ctx, store.AppendEntryParams{
				UserId:    "user1",
				Symbol:    "USDT",
				EntryType: models.EntryTypeWithdrawal,
				Delta:     decimal.RequireFromString("-60"),
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var failures []error
	for err := range results {
		if err != nil {
			failures = append(failures, err)
		}
	}
	if len(failures) != 1 {
		t.Fatalf("Expected exactly one debit to fail, got %d failures", len(failures))
	}
	if !errors.Is(failures[0], store.ErrInsufficientBalance) {
		t.Errorf("Expected the losing debit to fail with ErrInsufficientBalance, got %v", failures[0])
	}

	balance, err := service.GetBalance(ctx, "user1", "USDT")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("40")) {
		t.Errorf("Expected final balance 40, got %s", balance.String())
	}
}

func TestGetLedgerHistory_NewestFirst(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	credit(t, service, "user1", "USDT", "1")
	credit(t, service, "user1", "USDT", "2")
	credit(t, service, "user1", "USDT", "3")

	entries, err := service.GetLedgerHistory(ctx, "user1", 2, 0)
	if err != nil {
		t.Fatalf("GetLedgerHistory failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if !entries[0].Amount.Equal(decimal.RequireFromString("3")) {
		t.Errorf("Expected newest entry first (amount 3), got %s", entries[0].Amount.String())
	}
	if !entries[1].Amount.Equal(decimal.RequireFromString("2")) {
		t.Errorf("Expected amount 2 second, got %s", entries[1].Amount.String())
	}

	offsetEntries, err := service.GetLedgerHistory(ctx, "user1", 2, 2)
	if err != nil {
		t.Fatalf("GetLedgerHistory with offset failed: %v", err)
	}
	if len(offsetEntries) != 1 {
		t.Fatalf("Expected 1 entry at offset 2, got %d", len(offsetEntries))
	}
	if !offsetEntries[0].Amount.Equal(decimal.RequireFromString("1")) {
		t.Errorf("Expected oldest entry (amount 1), got %s", offsetEntries[0].Amount.String())
	}
}

func TestRecordDeposit_IdempotentPerTxHash(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	address := "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	_, _, err := service.AllocateDepositAddress(ctx, store.AllocateAddressParams{
		UserId:  "user1",
		Symbol:  "USDT",
		Network: "ERC20",
		Derive:  func(index uint32) (string, error) { return address, nil },
	})
	if err != nil {
		t.Fatalf("AllocateDepositAddress failed: %v", err)
	}

	params := store.RecordDepositParams{
		Address: address,
		Network: "ERC20",
		Amount:  decimal.RequireFromString("25"),
		TxHash:  "0xabc123",
	}
	if _, err := service.RecordDeposit(ctx, params); err != nil {
		t.Fatalf("RecordDeposit failed: %v", err)
	}

	if _, err := service.RecordDeposit(ctx, params); !errors.Is(err, store.ErrDuplicateEntry) {
		t.Fatalf("Expected ErrDuplicateEntry on replay, got %v", err)
	}

	balance, err := service.GetBalance(ctx, "user1", "USDT")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("25")) {
		t.Errorf("Expected balance 25 after replayed deposit, got %s", balance.String())
	}
}

func TestRecordDeposit_DuplicateTxHashBlockedAtCommit(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.AppendEntry(ctx, store.AppendEntryParams{
		UserId:    "user1",
		Symbol:    "USDT",
		Network:   "ERC20",
		EntryType: models.EntryTypeDeposit,
		Delta:     decimal.RequireFromString("25"),
		TxHash:    "0xaaa111",
	}); err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}

	// A second deposit with the same hash must be rejected by the
	// unique index even when it skips the read-side duplicate check.
	_, err := service.AppendEntry(ctx, store.AppendEntryParams{
		UserId:    "user1",
		Symbol:    "USDT",
		Network:   "ERC20",
		EntryType: models.EntryTypeDeposit,
		Delta:     decimal.RequireFromString("25"),
		TxHash:    "0xaaa111",
	})
	if !isUniqueConstraintErr(err) {
		t.Fatalf("Expected unique constraint violation, got %v", err)
	}

	// A withdrawal may reuse the hash; the index only covers deposits.
	credit(t, service, "user2", "USDT", "50")
	if _, err := service.AppendEntry(ctx, store.AppendEntryParams{
		UserId:    "user2",
		Symbol:    "USDT",
		Network:   "ERC20",
		EntryType: models.EntryTypeWithdrawal,
		Delta:     decimal.RequireFromString("-10"),
		TxHash:    "0xaaa111",
	}); err != nil {
		t.Fatalf("Withdrawal entry with reused hash failed: %v", err)
	}

	balance, err := service.GetBalance(ctx, "user1", "USDT")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("25")) {
		t.Errorf("Expected single credit of 25, got %s", balance.String())
	}
}

func TestRecordDeposit_UnknownAddress(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := service.RecordDeposit(context.Background(), store.RecordDepositParams{
		Address: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Network: "ERC20",
		Amount:  decimal.RequireFromString("5"),
		TxHash:  "0xdef456",
	})
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestReconcileBalance(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	credit(t, service, "user1", "USDT", "100")
	if _, err := service.AppendEntry(ctx, store.AppendEntryParams{
		UserId:    "user1",
		Symbol:    "USDT",
		EntryType: models.EntryTypeWithdrawal,
		Delta:     decimal.RequireFromString("-30"),
	}); err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}

	if err := service.ReconcileBalance(ctx, "user1", "USDT"); err != nil {
		t.Errorf("ReconcileBalance failed: %v", err)
	}
}

func TestReconcileBalance_ExactBeyondFloatPrecision(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	// Amounts chosen so that a float64 sum would round away the tail.
	ctx := context.Background()
	credit(t, service, "user1", "USDT", "123456789012345678901234567890.000000000000000001")
	credit(t, service, "user1", "USDT", "0.000000000000000002")
	if _, err := service.AppendEntry(ctx, store.AppendEntryParams{
		UserId:    "user1",
		Symbol:    "USDT",
		EntryType: models.EntryTypeWithdrawal,
		Delta:     decimal.RequireFromString("-0.000000000000000001"),
	}); err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}

	if err := service.ReconcileBalance(ctx, "user1", "USDT"); err != nil {
		t.Errorf("ReconcileBalance failed: %v", err)
	}

	balance, err := service.GetBalance(ctx, "user1", "USDT")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	expected := decimal.RequireFromString("123456789012345678901234567890.000000000000000002")
	if !balance.Equal(expected) {
		t.Errorf("Expected balance %s, got %s", expected.String(), balance.String())
	}
}
