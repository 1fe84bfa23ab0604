// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package logout provides a handler which ends a relay session.
package logout

import (
	"context"
	"net/http"

	"go.credrelay.dev/internal/httputil/httperr"
	"go.credrelay.dev/internal/plog"
	"go.credrelay.dev/internal/relay/backend"
	"go.credrelay.dev/internal/relay/cookies"
	"go.credrelay.dev/internal/relay/credential"
)

// Caller is implemented by *backend.Client.
type Caller interface {
	Do(ctx context.Context, req backend.Request) (*backend.Response, error)
}

// NewHandler returns a handler which tells the backend about the logout and then expires every relay
// cookie. The backend call is best effort: the cookies are cleared whatever the backend answers.
func NewHandler(
	caller Caller,
	logoutPath string,
	extractor *credential.Extractor,
	cookieBuilder *cookies.Builder,
	logger plog.Logger,
) http.Handler {
	return httperr.HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		if r.Method != http.MethodPost {
			return httperr.Newf(http.StatusMethodNotAllowed, "%s (try POST)", r.Method)
		}

		res := extractor.Extract(r.Context(), r.Header)
		if len(res.Header) != 0 {
			resp, err := caller.Do(r.Context(), backend.Request{
				Method: http.MethodPost,
				Path:   logoutPath,
				Header: res.Header,
			})
			switch {
			case err != nil:
				logger.WarningErr("backend logout failed, clearing cookies anyway", err)
			case !resp.Is2xx():
				logger.Debug("backend logout was not accepted, clearing cookies anyway", "status", resp.StatusCode)
			}
		}

		cookieBuilder.ClearAll(w)
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
}
