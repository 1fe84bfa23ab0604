// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package impersonate

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.credrelay.dev/internal/plog"
	"go.credrelay.dev/internal/relay/backend"
	"go.credrelay.dev/internal/relay/cookies"
	"go.credrelay.dev/internal/relay/credential"
	"go.credrelay.dev/internal/relay/impersonation"
	"go.credrelay.dev/internal/testutil"
)

const (
	adminPath   = "/admin/impersonate"
	supportPath = "/support/impersonate"

	targetUser = `{"id":"u-2","email":"bob@example.com","name":"Bob","workspaceId":"ws-1","role":"member","isSuperAdmin":true}`
)

func newSubject(t *testing.T) (*testutil.FakeBackend, *credential.Extractor, *impersonation.Issuer) {
	t.Helper()

	fake := testutil.NewFakeBackend(t)
	logger, _ := plog.TestLogger(t)
	spec := testutil.CookiesSpec()

	issuer := impersonation.NewIssuer(
		backend.New(http.DefaultClient, fake.URL, 5*time.Second, logger),
		cookies.NewBuilder(spec),
		impersonation.Config{AdminPath: adminPath, SupportPath: supportPath, MaxTTL: spec.ImpersonationTTL.Duration()},
		logger,
	)
	return fake, credential.NewExtractor(spec.AccessToken.Name, spec.RefreshToken.Name), issuer
}

func TestAdminHandler(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		backend    http.HandlerFunc
		wantStatus int
		wantBody   string
		wantCookie bool
		wantCalls  int
	}{
		{
			name:       "success",
			method:     http.MethodPost,
			body:       `{"workspaceId":"ws-1","userId":"u-2","reason":"ticket 1234"}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"user":{"id":"u-2","email":"bob@example.com","name":"Bob","workspaceId":"ws-1","role":"agent","isSuperAdmin":false}}`,
			wantCookie: true,
			wantCalls:  1,
		},
		{
			name:       "missing userId",
			method:     http.MethodPost,
			body:       `{"workspaceId":"ws-1"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"message":"userId is required"}`,
		},
		{
			name:       "missing workspaceId",
			method:     http.MethodPost,
			body:       `{"userId":"u-2"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"message":"workspaceId is required"}`,
		},
		{
			name:       "malformed body",
			method:     http.MethodPost,
			body:       `{"workspaceId":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"message":"invalid request body"}`,
		},
		{
			name:       "wrong method",
			method:     http.MethodPut,
			body:       `{"workspaceId":"ws-1","userId":"u-2"}`,
			wantStatus: http.StatusMethodNotAllowed,
			wantBody:   `{"message":"PUT (try POST)"}`,
		},
		{
			name:       "backend refuses",
			method:     http.MethodPost,
			body:       `{"workspaceId":"ws-1","userId":"u-2"}`,
			backend:    testutil.Respond(http.StatusForbidden, `{"message":"not an administrator"}`),
			wantStatus: http.StatusForbidden,
			wantBody:   `{"message":"not an administrator"}`,
			wantCalls:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, extractor, issuer := newSubject(t)
			handlerFunc := tt.backend
			if handlerFunc == nil {
				token := testutil.MintTokenExpiringAt(t, "u-2", time.Now().Add(time.Hour))
				handlerFunc = testutil.Respond(http.StatusOK, `{"user":`+targetUser+`,"accessToken":"`+token+`"}`)
			}
			fake.On(adminPath, handlerFunc)

			req := httptest.NewRequest(tt.method, "/api/admin/impersonate", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Cookie", "access_token=admin.access.token; refresh_token=admin.refresh.token")
			rec := httptest.NewRecorder()

			NewAdminHandler(extractor, issuer).ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			require.JSONEq(t, tt.wantBody, rec.Body.String())

			got := testutil.SetCookiesByName(rec.Header().Values("Set-Cookie"))
			if !tt.wantCookie {
				require.Empty(t, got, "no cookies are issued unless impersonation succeeds")
			} else {
				require.NotEmpty(t, got["access_token"].Value)
				require.Equal(t, -1, got["refresh_token"].MaxAge)
				require.Equal(t, "true", got["support_mode"].Value)
				require.Equal(t, "false", got["is_super_admin"].Value)
				require.Equal(t, "agent", got["user_role"].Value)
			}

			calls := fake.CallsTo(adminPath)
			require.Len(t, calls, tt.wantCalls)
			for _, call := range calls {
				require.Equal(t, "Bearer admin.access.token", call.Header.Get("Authorization"), "the caller's own credentials authorize the exchange")
			}
		})
	}
}

func TestSupportHandler(t *testing.T) {
	fake, extractor, issuer := newSubject(t)
	token := testutil.MintTokenExpiringAt(t, "u-2", time.Now().Add(time.Hour))
	fake.On(supportPath, testutil.Respond(http.StatusOK, `{"user":`+targetUser+`}`, "access_token="+token+"; Path=/; HttpOnly"))

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewSupportHandler(extractor, issuer).ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "/api/auth/support/impersonate", strings.NewReader(`{}`)))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.JSONEq(t, `{"message":"token is required"}`, rec.Body.String())
		require.Empty(t, fake.CallsTo(supportPath))
	})

	t.Run("success", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewSupportHandler(extractor, issuer).ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "/api/auth/support/impersonate", strings.NewReader(`{"token":"support-123"}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		got := testutil.SetCookiesByName(rec.Header().Values("Set-Cookie"))
		require.Equal(t, token, got["access_token"].Value)
		require.Equal(t, "true", got["support_mode"].Value)
		require.Equal(t, -1, got["refresh_token"].MaxAge)

		calls := fake.CallsTo(supportPath)
		require.Len(t, calls, 1)
		require.JSONEq(t, `{"token":"support-123"}`, calls[0].Body)
	})
}
