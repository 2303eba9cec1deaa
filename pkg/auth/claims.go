// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoPatientID indicates a token that verified successfully but whose
// claims contain no resolvable patient resource identifier. This is a
// provider/claim-shape mismatch, distinct from "not authenticated".
var ErrNoPatientID = errors.New("no patient id in token")

const patientRefPrefix = "Patient/"

// patientIDStrategy resolves a patient resource id from a claim mapping.
// Strategies are pure functions applied in fixed priority order until one
// succeeds; there is no merging across claim shapes.
type patientIDStrategy func(jwt.MapClaims) (string, bool)

// patientIDStrategies is the fixed priority order of claim encodings the
// Blue Button identity endpoint has been observed to return.
var patientIDStrategies = []patientIDStrategy{
	directPatientClaim,
	fhirUserClaim,
	subPatientClaim,
}

// ExtractPatientID resolves the patient resource identifier from upstream
// claims. Returns ErrNoPatientID when no known claim shape matches.
func ExtractPatientID(claims jwt.MapClaims) (string, error) {
	for _, strategy := range patientIDStrategies {
		if id, ok := strategy(claims); ok {
			return id, nil
		}
	}
	return "", ErrNoPatientID
}

// directPatientClaim uses a 'patient' claim verbatim.
func directPatientClaim(claims jwt.MapClaims) (string, bool) {
	patient, ok := claims["patient"].(string)
	if !ok || patient == "" {
		return "", false
	}
	return patient, true
}

// fhirUserClaim extracts the id from a 'fhir_user' resource reference such as
// "https://x/Patient/123/_history/1" or "Patient/abc?foo=bar": the substring
// after the last "Patient/", truncated at the first subsequent '/' or '?'.
func fhirUserClaim(claims jwt.MapClaims) (string, bool) {
	fhirUser, ok := claims["fhir_user"].(string)
	if !ok {
		return "", false
	}

	idx := strings.LastIndex(fhirUser, patientRefPrefix)
	if idx == -1 {
		return "", false
	}

	id := fhirUser[idx+len(patientRefPrefix):]
	if cut := strings.IndexAny(id, "/?"); cut != -1 {
		id = id[:cut]
	}
	if id == "" {
		return "", false
	}
	return id, true
}

// subPatientClaim falls back to a 'sub' claim of the form "Patient/<id>".
func subPatientClaim(claims jwt.MapClaims) (string, bool) {
	sub, ok := claims["sub"].(string)
	if !ok || !strings.HasPrefix(sub, patientRefPrefix) {
		return "", false
	}

	id := sub[strings.LastIndex(sub, patientRefPrefix)+len(patientRefPrefix):]
	if id == "" {
		return "", false
	}
	return id, true
}

// NormalizeScopes converts an upstream 'scope' claim into a canonical scope
// list. A space-delimited string is split on whitespace, a sequence is passed
// through element-wise, and any other shape (including absence) normalizes to
// an empty list. Scope strings are not validated against the advertised
// catalog here; that check belongs to the proxy at authorization time.
func NormalizeScopes(claims jwt.MapClaims) []string {
	switch scope := claims["scope"].(type) {
	case string:
		return strings.Fields(scope)
	case []string:
		return scope
	case []any:
		// JSON arrays decode as []any; keep only the string members.
		scopes := make([]string, 0, len(scope))
		for _, s := range scope {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
		return scopes
	default:
		return []string{}
	}
}
