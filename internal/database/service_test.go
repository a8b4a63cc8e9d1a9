package database

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB opens an in-memory database with the full schema and a
// few users. One connection only, matching SQLite's single-writer
// model.
func setupTestDB(t *testing.T) (*Service, func()) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	service, err := NewServiceForDB(db)
	if err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}

	ctx := context.Background()
	users := []struct {
		id, name, email, role string
	}{
		{"user1", "Alice", "alice@example.com", "user"},
		{"user2", "Bob", "bob@example.com", "user"},
		{"admin1", "Carol", "carol@example.com", "admin"},
		{"platform", "Platform", "platform@example.com", "admin"},
	}
	for _, u := range users {
		if err := service.CreateUser(ctx, u.id, u.name, u.email, u.role); err != nil {
			t.Fatalf("Failed to insert test user %s: %v", u.id, err)
		}
	}

	cleanup := func() {
		db.Close()
	}
	return service, cleanup
}

func TestGetUserById(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user, err := service.GetUserById(ctx, "user1")
	if err != nil {
		t.Fatalf("GetUserById failed: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("Expected alice@example.com, got %s", user.Email)
	}
	if user.Role != "user" {
		t.Errorf("Expected role user, got %s", user.Role)
	}
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.GetUserByEmail(ctx, "nobody@example.com"); err == nil {
		t.Fatal("Expected error for unknown email")
	}
}

func TestGetUsers(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	users, err := service.GetUsers(ctx)
	if err != nil {
		t.Fatalf("GetUsers failed: %v", err)
	}
	if len(users) != 4 {
		t.Errorf("Expected 4 users, got %d", len(users))
	}
}
