// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauthproxy

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the proxy's OAuth endpoints on the given router.
// The paths match the ones advertised by MetadataHandler.
func (p *Proxy) RegisterRoutes(r chi.Router) {
	r.Get("/authorize", p.AuthorizeHandler)
	r.Get("/auth/callback", p.CallbackHandler)
	r.Post("/token", p.TokenHandler)
	r.Post("/register", p.RegisterHandler)

	r.Get("/.well-known/oauth-authorization-server", p.MetadataHandler)
	r.Options("/.well-known/oauth-authorization-server", p.MetadataHandler)
	r.Get("/.well-known/openid-configuration", p.MetadataHandler)
	r.Options("/.well-known/openid-configuration", p.MetadataHandler)
}
