// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package otp

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.credrelay.dev/internal/plog"
	"go.credrelay.dev/internal/relay/backend"
	"go.credrelay.dev/internal/relay/cookies"
	"go.credrelay.dev/internal/testutil"
)

const (
	verifyPath = "/auth/otp/verify"

	userPayload = `{"user":{"id":"u-1","email":"ada@example.com","name":"Ada","workspaceId":"ws-1","role":" Owner ","isSuperAdmin":"TRUE "},"accessToken":"should.not.leak"}`
)

var sessionMarker = regexp.MustCompile(`^session_id=[0-9a-f]{64};`)

func maskSessionMarker(setCookies []string) []string {
	out := make([]string, 0, len(setCookies))
	for _, c := range setCookies {
		out = append(out, sessionMarker.ReplaceAllString(c, "session_id=MARKER;"))
	}
	return out
}

func TestOTPHandler(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		body           string
		backend        http.HandlerFunc
		wantStatus     int
		wantBody       string
		wantSetCookies []string
		wantBackendReq string
	}{
		{
			name:   "success issues a full session after the backend's own cookies",
			method: http.MethodPost,
			body:   `{"email":" ada@example.com ","code":"123456"}`,
			backend: testutil.Respond(http.StatusOK, userPayload,
				"access_token=a.b.c; Path=/; HttpOnly",
				"refresh_token=x.y.z; Path=/; HttpOnly",
			),
			wantStatus: http.StatusOK,
			wantBody:   `{"user":{"id":"u-1","email":"ada@example.com","name":"Ada","workspaceId":"ws-1","role":"admin","isSuperAdmin":true}}`,
			wantSetCookies: []string{
				"access_token=a.b.c; Path=/; HttpOnly",
				"refresh_token=x.y.z; Path=/; HttpOnly",
				"session_id=MARKER; Path=/; Max-Age=604800; HttpOnly; Secure; SameSite=Lax",
				"user_role=admin; Path=/; Max-Age=604800; HttpOnly; Secure; SameSite=Lax",
				"is_super_admin=true; Path=/; Max-Age=604800; HttpOnly; Secure; SameSite=Lax",
				"support_mode=; Path=/; Max-Age=0; HttpOnly; Secure; SameSite=Lax",
			},
			wantBackendReq: `{"email":"ada@example.com","code":"123456"}`,
		},
		{
			name:   "matching confirmation is compared case insensitively",
			method: http.MethodPost,
			body:   `{"email":"ada@example.com","emailConfirmation":"ADA@example.com ","code":"123456"}`,
			backend: testutil.Respond(http.StatusOK,
				`{"user":{"id":"u-1","email":"ada@example.com","role":"janitor","isSuperAdmin":false}}`,
			),
			wantStatus: http.StatusOK,
			wantBody:   `{"user":{"id":"u-1","email":"ada@example.com","name":"","workspaceId":"","role":"agent","isSuperAdmin":false}}`,
			wantSetCookies: []string{
				"session_id=MARKER; Path=/; Max-Age=604800; HttpOnly; Secure; SameSite=Lax",
				"user_role=agent; Path=/; Max-Age=604800; HttpOnly; Secure; SameSite=Lax",
				"is_super_admin=false; Path=/; Max-Age=604800; HttpOnly; Secure; SameSite=Lax",
				"support_mode=; Path=/; Max-Age=0; HttpOnly; Secure; SameSite=Lax",
			},
			wantBackendReq: `{"email":"ada@example.com","code":"123456"}`,
		},
		{
			name:       "mismatched confirmation",
			method:     http.MethodPost,
			body:       `{"email":"ada@example.com","emailConfirmation":"eve@example.com","code":"123456"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"message":"email confirmation does not match"}`,
		},
		{
			name:       "missing email",
			method:     http.MethodPost,
			body:       `{"code":"123456"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"message":"email is required"}`,
		},
		{
			name:       "missing code",
			method:     http.MethodPost,
			body:       `{"email":"ada@example.com","code":"  "}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"message":"code is required"}`,
		},
		{
			name:       "not an email",
			method:     http.MethodPost,
			body:       `{"email":"ada","code":"123456"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"message":"email is invalid"}`,
		},
		{
			name:       "not json",
			method:     http.MethodPost,
			body:       `email=ada@example.com`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"message":"invalid request body"}`,
		},
		{
			name:       "wrong method",
			method:     http.MethodGet,
			wantStatus: http.StatusMethodNotAllowed,
			wantBody:   `{"message":"GET (try POST)"}`,
		},
		{
			name:           "backend rejection is forwarded without cookies",
			method:         http.MethodPost,
			body:           `{"email":"ada@example.com","code":"000000"}`,
			backend:        testutil.Respond(http.StatusUnauthorized, `{"message":"invalid code"}`, "attempts=1; Path=/"),
			wantStatus:     http.StatusUnauthorized,
			wantBody:       `{"message":"invalid code"}`,
			wantBackendReq: `{"email":"ada@example.com","code":"000000"}`,
		},
		{
			name:           "backend success without a user",
			method:         http.MethodPost,
			body:           `{"email":"ada@example.com","code":"123456"}`,
			backend:        testutil.Respond(http.StatusOK, `{"ok":true}`, "access_token=a.b.c; Path=/"),
			wantStatus:     http.StatusBadGateway,
			wantBody:       `{"message":"backend returned an invalid user payload"}`,
			wantBackendReq: `{"email":"ada@example.com","code":"123456"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeBackend(t)
			if tt.backend != nil {
				fake.On(verifyPath, tt.backend)
			}
			logger, _ := plog.TestLogger(t)
			handler := NewHandler(
				backend.New(http.DefaultClient, fake.URL, 5*time.Second, logger),
				verifyPath,
				cookies.NewBuilder(testutil.CookiesSpec()),
				logger,
			)

			req := httptest.NewRequest(tt.method, "/api/auth/otp/verify", strings.NewReader(tt.body))
			req.Header.Set("Cookie", "access_token=old.access.token; refresh_token=old.refresh.token")
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			require.JSONEq(t, tt.wantBody, rec.Body.String())
			require.NotContains(t, rec.Body.String(), "should.not.leak")
			if tt.wantSetCookies == nil {
				require.Empty(t, rec.Header().Values("Set-Cookie"))
			} else {
				require.Equal(t, tt.wantSetCookies, maskSessionMarker(rec.Header().Values("Set-Cookie")))
			}

			calls := fake.Calls()
			if tt.wantBackendReq == "" {
				require.Empty(t, calls, "invalid requests never reach the backend")
				return
			}
			require.Len(t, calls, 1)
			require.Equal(t, http.MethodPost, calls[0].Method)
			require.JSONEq(t, tt.wantBackendReq, calls[0].Body)
			require.Empty(t, calls[0].Header.Get("Authorization"), "verification never carries credentials")
			require.Empty(t, calls[0].Header.Get("Cookie"), "verification never carries credentials")
		})
	}
}

func TestOTPHandlerBackendUnreachable(t *testing.T) {
	fake := testutil.NewFakeBackend(t)
	fake.Close()
	logger, _ := plog.TestLogger(t)

	handler := NewHandler(
		backend.New(http.DefaultClient, fake.URL, 5*time.Second, logger),
		verifyPath,
		cookies.NewBuilder(testutil.CookiesSpec()),
		logger,
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/otp/verify",
		strings.NewReader(`{"email":"ada@example.com","code":"123456"}`)))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.JSONEq(t, `{"message":"backend unavailable"}`, rec.Body.String())
	require.Empty(t, rec.Header().Values("Set-Cookie"))
}
