// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package securityheader implements an HTTP middleware for setting security-related response headers
// on responses which may carry credential cookies.
package securityheader

import (
	"net/http"
)

// Wrap the provided http.Handler so it sets appropriate security-related response headers.
// The wrapped handler may still override any of these, e.g. when relaying a backend's own Cache-Control.
func Wrap(wrapped http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		// responses are per-user since they depend on the credential cookies
		h.Set("Cache-Control", "no-cache,no-store,max-age=0,must-revalidate")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
		h.Add("Vary", "Cookie")
		h.Add("Vary", "Authorization")
		wrapped.ServeHTTP(w, r)
	})
}
