// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPatientID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		claims  jwt.MapClaims
		want    string
		wantErr bool
	}{
		{
			name:   "direct patient claim used verbatim",
			claims: jwt.MapClaims{"patient": "-20140000008325"},
			want:   "-20140000008325",
		},
		{
			name: "patient claim wins over fhir_user and sub",
			claims: jwt.MapClaims{
				"patient":   "111",
				"fhir_user": "https://x/Patient/222",
				"sub":       "Patient/333",
			},
			want: "111",
		},
		{
			name:   "fhir_user full URL with history segment",
			claims: jwt.MapClaims{"fhir_user": "https://x/Patient/123/_history/1"},
			want:   "123",
		},
		{
			name:   "fhir_user relative reference with query string",
			claims: jwt.MapClaims{"fhir_user": "Patient/abc?foo=bar"},
			want:   "abc",
		},
		{
			name:   "fhir_user bare reference",
			claims: jwt.MapClaims{"fhir_user": "Patient/xyz"},
			want:   "xyz",
		},
		{
			name:   "fhir_user without Patient segment falls through to sub",
			claims: jwt.MapClaims{"fhir_user": "https://x/Practitioner/5", "sub": "Patient/999"},
			want:   "999",
		},
		{
			name:   "sub with Patient prefix",
			claims: jwt.MapClaims{"sub": "Patient/999"},
			want:   "999",
		},
		{
			name:    "sub without Patient prefix is not a patient id",
			claims:  jwt.MapClaims{"sub": "user-42"},
			wantErr: true,
		},
		{
			name:    "no matching claims",
			claims:  jwt.MapClaims{"name": "Jane"},
			wantErr: true,
		},
		{
			name:    "empty claims",
			claims:  jwt.MapClaims{},
			wantErr: true,
		},
		{
			name:    "non-string patient claim is ignored",
			claims:  jwt.MapClaims{"patient": 42},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ExtractPatientID(tt.claims)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrNoPatientID)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeScopes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   []string
	}{
		{
			name:   "space-delimited string",
			claims: jwt.MapClaims{"scope": "a b c"},
			want:   []string{"a", "b", "c"},
		},
		{
			name:   "string sequence",
			claims: jwt.MapClaims{"scope": []any{"a", "b"}},
			want:   []string{"a", "b"},
		},
		{
			name:   "native string slice",
			claims: jwt.MapClaims{"scope": []string{"a", "b"}},
			want:   []string{"a", "b"},
		},
		{
			name:   "absent scope key",
			claims: jwt.MapClaims{},
			want:   []string{},
		},
		{
			name:   "unexpected shape normalizes to empty",
			claims: jwt.MapClaims{"scope": 17},
			want:   []string{},
		},
		{
			name:   "extra whitespace collapsed",
			claims: jwt.MapClaims{"scope": "  openid   profile "},
			want:   []string{"openid", "profile"},
		},
		{
			name:   "mixed sequence keeps only strings",
			claims: jwt.MapClaims{"scope": []any{"a", 1, "b"}},
			want:   []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, NormalizeScopes(tt.claims))
		})
	}
}
