// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package oauthproxy implements a minimal OAuth 2.0 authorization server
// facade in front of an upstream identity provider that only supports a
// single fixed client registration.
//
// MCP clients expect an authorization server with dynamic client
// registration (RFC 7591), per-client redirect URIs, and PKCE. Upstream
// providers such as Blue Button hand out exactly one client ID with a
// pre-registered callback. This package bridges the two: it registers
// downstream clients dynamically, runs the authorization-code flow against
// the upstream provider using the fixed credentials, and hands the
// upstream-issued tokens back to the downstream client verbatim. The proxy
// never mints tokens of its own, so any access token a client holds is an
// upstream token and can be verified with a userinfo round trip.
package oauthproxy
