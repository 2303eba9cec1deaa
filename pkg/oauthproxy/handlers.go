// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauthproxy

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/healthbridge-ai/bluebutton-mcp/pkg/logger"
)

// maxRegistrationBodySize caps dynamic client registration request bodies.
const maxRegistrationBodySize = 64 * 1024

// AuthorizeHandler starts an authorization-code flow. It validates the
// downstream request, parks it under a fresh internal state, and redirects
// the resource owner to the upstream provider with the fixed client ID.
func (p *Proxy) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	clientID := q.Get("client_id")
	redirectURI := q.Get("redirect_uri")

	client, ok := p.store.GetClient(clientID)
	if !ok {
		// Unknown client: never redirect, the URI is unvetted.
		http.Error(w, "unknown client", http.StatusBadRequest)
		return
	}
	if redirectURI == "" || !client.MatchesRedirectURI(redirectURI) {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	state := q.Get("state")

	if rt := q.Get("response_type"); rt != "code" {
		redirectWithError(w, r, redirectURI, state, "unsupported_response_type",
			"only the authorization code flow is supported")
		return
	}

	codeChallenge := q.Get("code_challenge")
	codeChallengeMethod := q.Get("code_challenge_method")
	if codeChallenge == "" {
		redirectWithError(w, r, redirectURI, state, "invalid_request", "code_challenge is required")
		return
	}
	if codeChallengeMethod == "" {
		codeChallengeMethod = "S256"
	}
	if codeChallengeMethod != "S256" {
		redirectWithError(w, r, redirectURI, state, "invalid_request",
			"only the S256 code_challenge_method is supported")
		return
	}

	scopes := strings.Fields(q.Get("scope"))
	for _, scope := range scopes {
		if !p.scopeAllowed(scope) {
			redirectWithError(w, r, redirectURI, state, "invalid_scope",
				"unsupported scope: "+scope)
			return
		}
	}
	if len(scopes) == 0 {
		scopes = append(scopes, p.config.ValidScopes...)
	}

	internalState := randomToken()
	p.store.StorePending(internalState, &PendingAuthorization{
		ClientID:            clientID,
		RedirectURI:         redirectURI,
		State:               state,
		Scopes:              scopes,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
		CreatedAt:           time.Now(),
	})

	logger.Debugw("starting upstream authorization", "client_id", clientID)
	http.Redirect(w, r, p.upstream.AuthorizationURL(p.CallbackURL(), internalState, scopes),
		http.StatusFound)
}

// CallbackHandler receives the upstream redirect, redeems the upstream
// code with the fixed credentials, and sends the downstream client a
// freshly minted code bound to the stored token response.
func (p *Proxy) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	internalState := q.Get("state")
	if internalState == "" {
		http.Error(w, "missing state", http.StatusBadRequest)
		return
	}

	pending, ok := p.store.ConsumePending(internalState)
	if !ok {
		// Unknown, expired, or replayed state. Either way the flow is dead.
		http.Error(w, "unknown or expired authorization request", http.StatusBadRequest)
		return
	}

	if upstreamErr := q.Get("error"); upstreamErr != "" {
		logger.Debugw("upstream authorization denied",
			"error", upstreamErr, "client_id", pending.ClientID)
		redirectWithError(w, r, pending.RedirectURI, pending.State, "access_denied",
			"the authorization request was denied")
		return
	}

	code := q.Get("code")
	if code == "" {
		redirectWithError(w, r, pending.RedirectURI, pending.State, "invalid_request",
			"missing authorization code")
		return
	}

	tokens, err := p.upstream.ExchangeCode(r.Context(), code, p.CallbackURL())
	if err != nil {
		logger.Errorw("upstream code exchange failed", "client_id", pending.ClientID, "error", err)
		redirectWithError(w, r, pending.RedirectURI, pending.State, "server_error",
			"failed to complete authorization")
		return
	}

	downstreamCode := randomToken()
	p.store.StoreGrant(downstreamCode, &issuedGrant{
		ClientID:            pending.ClientID,
		RedirectURI:         pending.RedirectURI,
		CodeChallenge:       pending.CodeChallenge,
		CodeChallengeMethod: pending.CodeChallengeMethod,
		Tokens:              tokens,
	})

	dest, err := url.Parse(pending.RedirectURI)
	if err != nil {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}
	dq := dest.Query()
	dq.Set("code", downstreamCode)
	if pending.State != "" {
		dq.Set("state", pending.State)
	}
	dest.RawQuery = dq.Encode()

	logger.Infow("authorization completed", "client_id", pending.ClientID)
	http.Redirect(w, r, dest.String(), http.StatusFound)
}

// TokenHandler implements the downstream token endpoint. Authorization
// codes return the stored upstream token response after the PKCE check;
// refresh grants are forwarded upstream with the fixed credentials.
func (p *Proxy) TokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeTokenError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		p.handleAuthorizationCodeGrant(w, r)
	case "refresh_token":
		p.handleRefreshGrant(w, r)
	default:
		writeTokenError(w, http.StatusBadRequest, "unsupported_grant_type",
			"supported grant types are authorization_code and refresh_token")
	}
}

func (p *Proxy) handleAuthorizationCodeGrant(w http.ResponseWriter, r *http.Request) {
	code := r.PostForm.Get("code")
	if code == "" {
		writeTokenError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	grant, ok := p.store.ConsumeGrant(code)
	if !ok {
		writeTokenError(w, http.StatusBadRequest, "invalid_grant",
			"authorization code is invalid, expired, or already used")
		return
	}

	if clientID := r.PostForm.Get("client_id"); clientID != grant.ClientID {
		writeTokenError(w, http.StatusBadRequest, "invalid_grant", "client_id mismatch")
		return
	}
	if redirectURI := r.PostForm.Get("redirect_uri"); redirectURI != "" && redirectURI != grant.RedirectURI {
		writeTokenError(w, http.StatusBadRequest, "invalid_grant", "redirect_uri mismatch")
		return
	}

	verifier := r.PostForm.Get("code_verifier")
	if verifier == "" {
		writeTokenError(w, http.StatusBadRequest, "invalid_request", "code_verifier is required")
		return
	}
	challenge := oauth2.S256ChallengeFromVerifier(verifier)
	if subtle.ConstantTimeCompare([]byte(challenge), []byte(grant.CodeChallenge)) != 1 {
		writeTokenError(w, http.StatusBadRequest, "invalid_grant", "PKCE verification failed")
		return
	}

	writeTokenResponse(w, grant.Tokens)
}

func (p *Proxy) handleRefreshGrant(w http.ResponseWriter, r *http.Request) {
	refreshToken := r.PostForm.Get("refresh_token")
	if refreshToken == "" {
		writeTokenError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	tokens, err := p.upstream.RefreshTokens(r.Context(), refreshToken)
	if err != nil {
		writeTokenError(w, http.StatusBadRequest, "invalid_grant", "refresh token rejected")
		return
	}
	writeTokenResponse(w, tokens)
}

// RegisterHandler implements RFC 7591 dynamic client registration. Every
// registration gets a fresh client ID; no secret is issued.
func (p *Proxy) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegistrationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRegistrationBodySize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, &RegistrationError{
			Error:            "invalid_client_metadata",
			ErrorDescription: "malformed registration request",
		})
		return
	}

	client, regErr := validateRegistration(&req)
	if regErr != nil {
		writeJSON(w, http.StatusBadRequest, regErr)
		return
	}

	p.store.RegisterClient(client)
	logger.Infow("registered oauth client", "client_id", client.ID, "client_name", client.Name)

	writeJSON(w, http.StatusCreated, &RegistrationResponse{
		ClientID:                client.ID,
		ClientName:              client.Name,
		RedirectURIs:            client.RedirectURIs,
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		ResponseTypes:           []string{"code"},
		TokenEndpointAuthMethod: "none",
		ClientIDIssuedAt:        time.Now().Unix(),
	})
}

func redirectWithError(w http.ResponseWriter, r *http.Request, redirectURI, state, code, description string) {
	dest, err := url.Parse(redirectURI)
	if err != nil {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}
	q := dest.Query()
	q.Set("error", code)
	if description != "" {
		q.Set("error_description", description)
	}
	if state != "" {
		q.Set("state", state)
	}
	dest.RawQuery = q.Encode()
	http.Redirect(w, r, dest.String(), http.StatusFound)
}

func writeTokenResponse(w http.ResponseWriter, tokens *TokenResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	if err := json.NewEncoder(w).Encode(tokens); err != nil {
		logger.Errorw("failed to write token response", "error", err)
	}
}

func writeTokenError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status, &tokenErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorw("failed to write response", "error", err)
	}
}
