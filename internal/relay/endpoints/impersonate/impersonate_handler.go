// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package impersonate provides the handlers for the admin and the support impersonation flows.
package impersonate

import (
	"context"
	"net/http"

	"go.credrelay.dev/internal/httputil/httperr"
	"go.credrelay.dev/internal/httputil/requestutil"
	"go.credrelay.dev/internal/relay/credential"
	"go.credrelay.dev/internal/relay/impersonation"
)

// Issuer is implemented by *impersonation.Issuer.
type Issuer interface {
	IssueAdmin(ctx context.Context, w http.ResponseWriter, caller *credential.Resolution, g impersonation.AdminGrant) error
	IssueSupport(ctx context.Context, w http.ResponseWriter, caller *credential.Resolution, g impersonation.SupportGrant) error
}

// NewAdminHandler handles an administrator's request to act as another user.
func NewAdminHandler(extractor *credential.Extractor, issuer Issuer) http.Handler {
	return newHandler(func(w http.ResponseWriter, r *http.Request) error {
		var g impersonation.AdminGrant
		if err := requestutil.DecodeJSONBody(w, r, &g); err != nil {
			return err
		}
		return issuer.IssueAdmin(r.Context(), w, extractor.Extract(r.Context(), r.Header), g)
	})
}

// NewSupportHandler handles the exchange of a support token for a support session.
func NewSupportHandler(extractor *credential.Extractor, issuer Issuer) http.Handler {
	return newHandler(func(w http.ResponseWriter, r *http.Request) error {
		var g impersonation.SupportGrant
		if err := requestutil.DecodeJSONBody(w, r, &g); err != nil {
			return err
		}
		return issuer.IssueSupport(r.Context(), w, extractor.Extract(r.Context(), r.Header), g)
	})
}

func newHandler(issue httperr.HandlerFunc) http.Handler {
	return httperr.HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		if r.Method != http.MethodPost {
			return httperr.Newf(http.StatusMethodNotAllowed, "%s (try POST)", r.Method)
		}
		return issue(w, r)
	})
}
