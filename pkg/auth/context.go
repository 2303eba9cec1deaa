// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
)

// AccessTokenContextKey is the key used to store the verified AccessToken in
// the request context.
//
// Using an empty struct as the key prevents collisions with other context
// keys, as each empty struct type is distinct even if they have the same name
// in different packages.
type AccessTokenContextKey struct{}

// WithAccessToken stores a verified AccessToken in the context.
// If token is nil, the original context is returned unchanged.
//
// This is called by the bearer middleware after successful verification so
// that tool handlers can read the request-scoped identity. The identity is
// never stored in process-wide state.
func WithAccessToken(ctx context.Context, token *AccessToken) context.Context {
	if token == nil {
		return ctx
	}
	return context.WithValue(ctx, AccessTokenContextKey{}, token)
}

// AccessTokenFromContext retrieves the verified AccessToken from the context.
// Returns the token and true if present, nil and false otherwise.
func AccessTokenFromContext(ctx context.Context) (*AccessToken, bool) {
	token, ok := ctx.Value(AccessTokenContextKey{}).(*AccessToken)
	return token, ok
}
