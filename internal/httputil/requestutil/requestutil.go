// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package requestutil contains helpers for reading inbound requests, including the ambient cookie jar
// which same-process callers may attach to a context instead of sending a Cookie header.
package requestutil

import (
	"context"
	"net/http"
	"strings"
)

func SNIServerName(req *http.Request) string {
	name := ""
	if req.TLS != nil {
		name = req.TLS.ServerName
	}
	return name
}

// contextKey type is unexported to prevent collisions.
type contextKey int

const cookieJarKey contextKey = iota

// WithCookies returns a copy of ctx which carries the given cookies as the ambient cookie jar.
// The relay's own HTTP handlers never install a jar. It exists for callers embedding the relay handlers
// in the same process, for example a server-side renderer which holds the browser's cookies but builds
// requests without a Cookie header.
func WithCookies(ctx context.Context, cookies []*http.Cookie) context.Context {
	return context.WithValue(ctx, cookieJarKey, cookies)
}

// CookiesFromContext returns the ambient cookie jar, or nil when the context does not carry one.
func CookiesFromContext(ctx context.Context) []*http.Cookie {
	cookies, _ := ctx.Value(cookieJarKey).([]*http.Cookie)
	return cookies
}

// ParseCookieHeader parses the value of a Cookie request header.
func ParseCookieHeader(raw string) []*http.Cookie {
	if len(strings.TrimSpace(raw)) == 0 {
		return nil
	}
	r := http.Request{Header: http.Header{"Cookie": []string{raw}}}
	return r.Cookies()
}

// CookieHeader renders cookies as the value of a Cookie request header.
func CookieHeader(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || len(c.Name) == 0 {
			continue
		}
		parts = append(parts, (&http.Cookie{Name: c.Name, Value: c.Value}).String())
	}
	return strings.Join(parts, "; ")
}
