// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"

	"go.credrelay.dev/internal/plog"
)

func defaultPaths() PathsSpec {
	return PathsSpec{
		Refresh:            "/auth/refresh",
		OTPVerify:          "/auth/otp/verify",
		Impersonate:        "/admin/impersonate",
		SupportImpersonate: "/support/impersonate",
		Logout:             "/auth/logout",
	}
}

func defaultCookies() CookiesSpec {
	return CookiesSpec{
		Secure:           ptr.To(true),
		AccessToken:      CookieSpec{Name: "access_token", TTL: Duration(15 * time.Minute)},
		RefreshToken:     CookieSpec{Name: "refresh_token", TTL: Duration(7 * 24 * time.Hour)},
		Session:          CookieSpec{Name: "session_id", TTL: Duration(7 * 24 * time.Hour)},
		Role:             CookieSpec{Name: "user_role", TTL: Duration(7 * 24 * time.Hour)},
		SuperAdmin:       CookieSpec{Name: "is_super_admin", TTL: Duration(7 * 24 * time.Hour)},
		SupportMode:      CookieSpec{Name: "support_mode", TTL: Duration(15 * time.Minute)},
		ImpersonationTTL: Duration(15 * time.Minute),
	}
}

func TestFromPath(t *testing.T) {
	tests := []struct {
		name       string
		yaml       string
		env        map[string]string
		wantConfig *Config
		wantError  string
	}{
		{
			name: "Happy",
			yaml: heredoc.Doc(`
				---
				backend:
				  baseURL: https://api.example.com/v1/
				  timeout: 5s
				  userAgent: crm-web/1.0
				  paths:
				    refresh: /session/refresh
				cookies:
				  secure: false
				  accessToken:
				    name: crm_at
				    ttl: 10m
				  supportMode:
				    ttl: 5m
				  impersonationTTL: 5m
				endpoints:
				  http:
				    network: unix
				    address: /var/run/relay.sock
				log:
				  level: debug
				  format: text
			`),
			wantConfig: &Config{
				Backend: BackendSpec{
					BaseURL:   "https://api.example.com/v1",
					Timeout:   Duration(5 * time.Second),
					UserAgent: "crm-web/1.0",
					Paths: func() PathsSpec {
						p := defaultPaths()
						p.Refresh = "/session/refresh"
						return p
					}(),
				},
				Cookies: func() CookiesSpec {
					c := defaultCookies()
					c.Secure = ptr.To(false)
					c.AccessToken = CookieSpec{Name: "crm_at", TTL: Duration(10 * time.Minute)}
					c.SupportMode.TTL = Duration(5 * time.Minute)
					c.ImpersonationTTL = Duration(5 * time.Minute)
					return c
				}(),
				Endpoints: &Endpoints{
					HTTP: &Endpoint{Network: NetworkUnix, Address: "/var/run/relay.sock"},
				},
				Log: plog.LogSpec{Level: plog.LevelDebug, Format: plog.FormatText},
			},
		},
		{
			name: "When only the required fields are present, causes other fields to be defaulted",
			yaml: heredoc.Doc(`
				---
				backend:
				  baseURL: http://backend.internal:3000
			`),
			wantConfig: &Config{
				Backend: BackendSpec{
					BaseURL:   "http://backend.internal:3000",
					Timeout:   Duration(10 * time.Second),
					UserAgent: "credential-relay",
					Paths:     defaultPaths(),
				},
				Cookies: defaultCookies(),
				Endpoints: &Endpoints{
					HTTP: &Endpoint{Network: NetworkTCP, Address: ":8080"},
				},
			},
		},
		{
			name: "impersonation ttl follows a configured access token ttl",
			yaml: heredoc.Doc(`
				---
				backend:
				  baseURL: http://backend.internal:3000
				cookies:
				  accessToken:
				    ttl: 20m
			`),
			wantConfig: &Config{
				Backend: BackendSpec{
					BaseURL:   "http://backend.internal:3000",
					Timeout:   Duration(10 * time.Second),
					UserAgent: "credential-relay",
					Paths:     defaultPaths(),
				},
				Cookies: func() CookiesSpec {
					c := defaultCookies()
					c.AccessToken.TTL = Duration(20 * time.Minute)
					c.ImpersonationTTL = Duration(20 * time.Minute)
					return c
				}(),
				Endpoints: &Endpoints{
					HTTP: &Endpoint{Network: NetworkTCP, Address: ":8080"},
				},
			},
		},
		{
			name: "environment overrides the file",
			yaml: heredoc.Doc(`
				---
				backend:
				  baseURL: http://from-file
			`),
			env: map[string]string{
				"RELAY_BACKEND_BASE_URL": "https://from-env.example.com",
				"RELAY_BACKEND_TIMEOUT":  "3s",
				"RELAY_HTTP_ADDRESS":     "127.0.0.1:9090",
				"RELAY_LOG_LEVEL":        "info",
			},
			wantConfig: &Config{
				Backend: BackendSpec{
					BaseURL:   "https://from-env.example.com",
					Timeout:   Duration(3 * time.Second),
					UserAgent: "credential-relay",
					Paths:     defaultPaths(),
				},
				Cookies: defaultCookies(),
				Endpoints: &Endpoints{
					HTTP: &Endpoint{Network: NetworkTCP, Address: "127.0.0.1:9090"},
				},
				Log: plog.LogSpec{Level: plog.LevelInfo},
			},
		},
		{
			name: "Missing baseURL",
			yaml: heredoc.Doc(`
				---
				backend: {}
			`),
			wantError: "validate backend: baseURL is required",
		},
		{
			name: "baseURL with unsupported scheme",
			yaml: heredoc.Doc(`
				---
				backend:
				  baseURL: ftp://files.example.com
			`),
			wantError: `validate backend: baseURL scheme must be http or https, got "ftp"`,
		},
		{
			name: "baseURL with query",
			yaml: heredoc.Doc(`
				---
				backend:
				  baseURL: https://api.example.com?tenant=1
			`),
			wantError: "validate backend: baseURL must not have a query or fragment",
		},
		{
			name: "relative paths",
			yaml: heredoc.Doc(`
				---
				backend:
				  baseURL: https://api.example.com
				  paths:
				    refresh: auth/refresh
				    logout: auth/logout
			`),
			wantError: "validate backend: paths must start with /: logout, refresh",
		},
		{
			name: "negative timeout",
			yaml: heredoc.Doc(`
				---
				backend:
				  baseURL: https://api.example.com
				  timeout: -1s
			`),
			wantError: "validate backend: timeout must be positive",
		},
		{
			name: "duplicate cookie names",
			yaml: heredoc.Doc(`
				---
				backend:
				  baseURL: https://api.example.com
				cookies:
				  role:
				    name: session_id
			`),
			wantError: `validate cookies: role: cookie name "session_id" is already used by session`,
		},
		{
			name: "invalid cookie name",
			yaml: heredoc.Doc(`
				---
				backend:
				  baseURL: https://api.example.com
				cookies:
				  refreshToken:
				    name: "refresh token"
			`),
			wantError: `validate cookies: refreshToken: invalid cookie name "refresh token"`,
		},
		{
			name: "unknown endpoint network",
			yaml: heredoc.Doc(`
				---
				backend:
				  baseURL: https://api.example.com
				endpoints:
				  http:
				    network: disabled
			`),
			wantError: `validate http endpoint: unknown network "disabled"`,
		},
		{
			name: "unknown field",
			yaml: heredoc.Doc(`
				---
				backend:
				  baseURL: https://api.example.com
				  baseAddress: https://typo.example.com
			`),
			wantError: `decode yaml: error unmarshaling JSON: while decoding JSON: json: unknown field "baseAddress"`,
		},
		{
			name: "bad log level",
			yaml: heredoc.Doc(`
				---
				backend:
				  baseURL: https://api.example.com
				log:
				  level: loud
			`),
			wantError: "validate log: invalid log level, valid choices are the empty string, info, debug, trace and all",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Cleanup(func() {
				require.NoError(t, plog.ValidateAndSetLogLevelAndFormatGlobally(plog.LogSpec{}))
			})

			for k, v := range test.env {
				t.Setenv(k, v)
			}

			path := filepath.Join(t.TempDir(), "relay.yaml")
			require.NoError(t, os.WriteFile(path, []byte(test.yaml), 0o600))

			config, err := FromPath(path)

			if test.wantError != "" {
				require.EqualError(t, err, test.wantError)
			} else {
				require.NoError(t, err)
				require.Equal(t, test.wantConfig, config)
			}
		})
	}
}

func TestFromPathMissingFile(t *testing.T) {
	_, err := FromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "read file: ")
}
