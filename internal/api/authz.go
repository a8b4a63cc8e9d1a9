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

package api

import (
	"context"
	"fmt"

	"crypto-custody-go/internal/models"
	"crypto-custody-go/internal/store"
)

// AuthorizationPolicy decides whether a caller may perform privileged
// operations (processing withdrawals, adjusting balances, reading the
// audit log). The policy is injected explicitly; there is no ambient
// "current user".
type AuthorizationPolicy interface {
	AuthorizeAdmin(ctx context.Context, callerId string) error
}

// AlwaysAllow authorizes every caller. Intended for tests and local
// tooling only.
type AlwaysAllow struct{}

func (AlwaysAllow) AuthorizeAdmin(ctx context.Context, callerId string) error {
	return nil
}

// RoleBased authorizes callers whose stored user record carries the
// admin role.
type RoleBased struct {
	Store store.CustodyStore
}

func (p RoleBased) AuthorizeAdmin(ctx context.Context, callerId string) error {
	if callerId == "" {
		return fmt.Errorf("missing caller id - %w", store.ErrUnauthorized)
	}
	user, err := p.Store.GetUserById(ctx, callerId)
	if err != nil {
		return fmt.Errorf("caller %s - %w", callerId, store.ErrUnauthorized)
	}
	if user.Role != models.RoleAdmin {
		return fmt.Errorf("caller %s lacks admin role - %w", callerId, store.ErrUnauthorized)
	}
	return nil
}

// TokenVerifier validates an externally issued credential and returns
// the authenticated principal id.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// ExternalTokenVerified authorizes callers whose token verifies to the
// caller id and whose record carries the admin role.
type ExternalTokenVerified struct {
	Verifier TokenVerifier
	Store    store.CustodyStore
}

// tokenContextKey carries the caller's credential through the context.
type tokenContextKey struct{}

// WithToken returns a context carrying the caller's credential for
// ExternalTokenVerified policies.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, token)
}

func (p ExternalTokenVerified) AuthorizeAdmin(ctx context.Context, callerId string) error {
	token, _ := ctx.Value(tokenContextKey{}).(string)
	if token == "" {
		return fmt.Errorf("missing credential - %w", store.ErrUnauthorized)
	}
	principal, err := p.Verifier.Verify(ctx, token)
	if err != nil {
		return fmt.Errorf("credential verification failed - %w", store.ErrUnauthorized)
	}
	if principal != callerId {
		return fmt.Errorf("credential subject mismatch - %w", store.ErrUnauthorized)
	}
	return RoleBased{Store: p.Store}.AuthorizeAdmin(ctx, callerId)
}
