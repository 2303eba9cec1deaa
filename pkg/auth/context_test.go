// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenContextRoundTrip(t *testing.T) {
	t.Parallel()

	token := &AccessToken{Token: "secret", ClientID: "Patient/1"}
	ctx := WithAccessToken(context.Background(), token)

	got, ok := AccessTokenFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, token, got)
}

func TestAccessTokenFromEmptyContext(t *testing.T) {
	t.Parallel()

	got, ok := AccessTokenFromContext(context.Background())
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestWithAccessTokenNil(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Equal(t, ctx, WithAccessToken(ctx, nil))
}

func TestAccessTokenRedaction(t *testing.T) {
	t.Parallel()

	token := &AccessToken{
		Token:    "super-secret-bearer",
		ClientID: "Patient/1",
		Scopes:   []string{"openid"},
		Claims:   jwt.MapClaims{"sub": "Patient/1"},
	}

	assert.NotContains(t, token.String(), "super-secret-bearer")

	data, err := json.Marshal(token)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "super-secret-bearer"),
		"bearer credential leaked into JSON: %s", data)
	assert.Contains(t, string(data), "REDACTED")
}
