// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"net/http"
	"time"

	"k8s.io/utils/ptr"

	"go.credrelay.dev/internal/config/relay"
)

// CookiesSpec returns the cookie configuration which FromPath defaults to.
func CookiesSpec() relay.CookiesSpec {
	return relay.CookiesSpec{
		Secure:           ptr.To(true),
		AccessToken:      relay.CookieSpec{Name: "access_token", TTL: relay.Duration(15 * time.Minute)},
		RefreshToken:     relay.CookieSpec{Name: "refresh_token", TTL: relay.Duration(7 * 24 * time.Hour)},
		Session:          relay.CookieSpec{Name: "session_id", TTL: relay.Duration(7 * 24 * time.Hour)},
		Role:             relay.CookieSpec{Name: "user_role", TTL: relay.Duration(7 * 24 * time.Hour)},
		SuperAdmin:       relay.CookieSpec{Name: "is_super_admin", TTL: relay.Duration(7 * 24 * time.Hour)},
		SupportMode:      relay.CookieSpec{Name: "support_mode", TTL: relay.Duration(15 * time.Minute)},
		ImpersonationTTL: relay.Duration(15 * time.Minute),
	}
}

// SetCookiesByName parses the Set-Cookie values of a response header by cookie name. Later values win.
func SetCookiesByName(setCookies []string) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range (&http.Response{Header: http.Header{"Set-Cookie": setCookies}}).Cookies() {
		out[c.Name] = c
	}
	return out
}
