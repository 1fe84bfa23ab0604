// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package requestid tags every inbound request with a random ID which is echoed to the
// client and attached to log lines.
package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// HeaderRequestID is the response header which carries the ID of the request.
const HeaderRequestID = "X-Request-Id"

type contextKey struct{}

// NewRequestWithRequestID is public for use in unit tests. Production code should use WithRequestID().
func NewRequestWithRequestID(r *http.Request, newRequestIDFunc func() string) (*http.Request, string) {
	requestID := newRequestIDFunc()
	return r.WithContext(context.WithValue(r.Context(), contextKey{}, requestID)), requestID
}

func WithRequestID(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Add a randomly generated request ID to the context for this request.
		r, requestID := NewRequestWithRequestID(r, func() string {
			return uuid.New().String()
		})

		w.Header().Set(HeaderRequestID, requestID)

		handler.ServeHTTP(w, r)
	})
}

// FromContext returns the request ID of the request, or the empty string when there is none.
func FromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(contextKey{}).(string)
	return requestID
}
