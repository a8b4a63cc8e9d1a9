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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"crypto-custody-go/internal/models"
	"crypto-custody-go/internal/store"

	"go.uber.org/zap"
)

// GetUsers returns all active users.
func (s *Service) GetUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, queryGetActiveUsers)
	if err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.Id, &user.Name, &user.Email, &user.Role,
			&user.Active, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

// GetUserById returns the active user with the given id, or
// ErrUserNotFound.
func (s *Service) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, queryGetUserById, userId).
		Scan(&user.Id, &user.Name, &user.Email, &user.Role, &user.Active, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s - %w", userId, store.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetUserByEmail returns the active user with the given email, or
// ErrUserNotFound.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, queryGetUserByEmail, email).
		Scan(&user.Id, &user.Name, &user.Email, &user.Role, &user.Active, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s - %w", email, store.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// CreateUser inserts a user record; inserting an existing id is a
// no-op.
func (s *Service) CreateUser(ctx context.Context, userId, name, email, role string) error {
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return fmt.Errorf("invalid role %q", role)
	}

	if _, err := s.db.ExecContext(ctx, queryInsertUser, userId, name, email, role); err != nil {
		zap.L().Error("Failed to create user", zap.String("user_id", userId), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	zap.L().Info("User created",
		zap.String("user_id", userId),
		zap.String("email", email),
		zap.String("role", role))
	return nil
}
