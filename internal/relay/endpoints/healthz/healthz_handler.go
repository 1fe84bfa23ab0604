// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package healthz provides the liveness endpoint of the relay.
package healthz

import (
	"net/http"

	"go.credrelay.dev/internal/httputil/httperr"
)

// NewHandler reports that the process is serving. It never calls the backend.
func NewHandler() http.Handler {
	return httperr.HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			return httperr.Newf(http.StatusMethodNotAllowed, "%s (try GET)", r.Method)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
		return nil
	})
}
