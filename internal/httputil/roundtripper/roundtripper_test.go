// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package roundtripper

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithUserAgent(t *testing.T) {
	var seen []string
	base := Func(func(req *http.Request) (*http.Response, error) {
		seen = append(seen, req.Header.Get("User-Agent"))
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	})
	rt := WithUserAgent(base, "credential-relay/v1")

	req := httptest.NewRequest(http.MethodGet, "https://backend.example.com/me", nil)
	_, err := rt.RoundTrip(req) //nolint:bodyclose // http.NoBody
	require.NoError(t, err)
	require.Empty(t, req.Header.Get("User-Agent"), "original request must not be mutated")

	req.Header.Set("User-Agent", "caller/2")
	_, err = rt.RoundTrip(req) //nolint:bodyclose // http.NoBody
	require.NoError(t, err)

	require.Equal(t, []string{"credential-relay/v1", "caller/2"}, seen)
}
