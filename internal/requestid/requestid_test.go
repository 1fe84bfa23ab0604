// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package requestid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestWithRequestID(t *testing.T) {
	var seen string
	handler := WithRequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/relay/workspaces", nil))

	require.NotEmpty(t, seen)
	require.Equal(t, seen, rec.Header().Get(HeaderRequestID))
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
}

func TestNewRequestWithRequestID(t *testing.T) {
	r, id := NewRequestWithRequestID(httptest.NewRequest(http.MethodGet, "/", nil), func() string { return "some-id" })

	require.Equal(t, "some-id", id)
	require.Equal(t, "some-id", FromContext(r.Context()))
}

func TestFromContextEmpty(t *testing.T) {
	require.Empty(t, FromContext(context.Background()))
}
