package common

import (
	"context"
	"fmt"

	"crypto-custody-go/internal/models"
	"crypto-custody-go/internal/store"
)

// ResolveUser finds a user by id or email, id taking precedence.
func ResolveUser(ctx context.Context, s store.CustodyStore, userId, email string) (*models.User, error) {
	if userId != "" {
		return s.GetUserById(ctx, userId)
	}
	if email != "" {
		return s.GetUserByEmail(ctx, email)
	}
	return nil, fmt.Errorf("either -user-id or -email is required")
}

// InitializeUsers returns the users to operate on: all active users,
// or the single one matching the email filter.
func InitializeUsers(ctx context.Context, s store.CustodyStore, emailFilter string) ([]models.User, error) {
	if emailFilter != "" {
		user, err := s.GetUserByEmail(ctx, emailFilter)
		if err != nil {
			return nil, err
		}
		return []models.User{*user}, nil
	}
	return s.GetUsers(ctx)
}
