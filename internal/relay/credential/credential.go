// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package credential resolves which credentials apply to an inbound request and renders the header set
// which is presented to the backend.
//
// Resolution order:
//  1. An inbound Authorization header is passed through unchanged.
//  2. Cookies come from the inbound Cookie header. Only when the request has no Cookie header at all are
//     they taken from the ambient cookie jar of the request context, and an equivalent Cookie header is
//     reconstituted from it.
//  3. The resolved Cookie header is forwarded whole. When there was no Authorization header, a bearer
//     Authorization header is synthesized from the access token cookie.
package credential

import (
	"context"
	"net/http"
	"strings"

	"go.credrelay.dev/internal/httputil/requestutil"
)

// Source describes where the cookies of a Resolution came from.
type Source string

const (
	SourceNone    Source = "none"
	SourceHeader  Source = "header"
	SourceContext Source = "context"
)

// Resolution is the result of extracting credentials from an inbound request.
type Resolution struct {
	// Header holds only the Authorization and Cookie headers to send to the backend.
	Header http.Header

	AccessToken  string
	RefreshToken string

	// RefreshPresent is true whenever a refresh cookie exists, even with an empty or malformed value.
	RefreshPresent bool
	// RefreshWellFormed is true when the refresh cookie structurally looks like a signed token.
	RefreshWellFormed bool

	Source Source

	accessCookieName string
}

// Extractor resolves credentials using the configured cookie names.
type Extractor struct {
	accessCookieName  string
	refreshCookieName string
}

func NewExtractor(accessCookieName, refreshCookieName string) *Extractor {
	return &Extractor{
		accessCookieName:  accessCookieName,
		refreshCookieName: refreshCookieName,
	}
}

// Extract never returns nil. The inbound header is not modified.
func (e *Extractor) Extract(ctx context.Context, in http.Header) *Resolution {
	res := &Resolution{
		Header:           http.Header{},
		Source:           SourceNone,
		accessCookieName: e.accessCookieName,
	}

	authorization, hasAuthorization := in["Authorization"]
	if hasAuthorization {
		// explicit beats implicit
		res.Header["Authorization"] = append([]string(nil), authorization...)
	}

	var cookies []*http.Cookie
	if rawCookies, ok := in["Cookie"]; ok {
		res.Source = SourceHeader
		res.Header["Cookie"] = append([]string(nil), rawCookies...)
		for _, raw := range rawCookies {
			cookies = append(cookies, requestutil.ParseCookieHeader(raw)...)
		}
	} else if jar := requestutil.CookiesFromContext(ctx); len(jar) > 0 {
		res.Source = SourceContext
		cookies = jar
		if header := requestutil.CookieHeader(jar); len(header) != 0 {
			res.Header.Set("Cookie", header)
		}
	}

	if access, ok := findCookie(cookies, e.accessCookieName); ok {
		res.AccessToken = access.Value
	}
	if refresh, ok := findCookie(cookies, e.refreshCookieName); ok {
		res.RefreshPresent = true
		res.RefreshToken = refresh.Value
		res.RefreshWellFormed = LooksLikeToken(refresh.Value)
	}

	if !hasAuthorization && len(res.AccessToken) != 0 {
		res.Header.Set("Authorization", bearer(res.AccessToken))
	}

	return res
}

// WithAccessToken returns a copy of r whose outbound Authorization and Cookie headers carry the given
// access token in place of the original one.
func (r *Resolution) WithAccessToken(token string) *Resolution {
	out := *r
	out.AccessToken = token
	out.Header = r.Header.Clone()
	if out.Header == nil {
		out.Header = http.Header{}
	}
	out.Header.Set("Authorization", bearer(token))

	var cookies []*http.Cookie
	for _, raw := range r.Header.Values("Cookie") {
		cookies = append(cookies, requestutil.ParseCookieHeader(raw)...)
	}
	replaced := false
	for i, c := range cookies {
		if c.Name == r.accessCookieName {
			cookies[i] = &http.Cookie{Name: c.Name, Value: token}
			replaced = true
		}
	}
	if !replaced {
		cookies = append(cookies, &http.Cookie{Name: r.accessCookieName, Value: token})
	}
	out.Header.Set("Cookie", requestutil.CookieHeader(cookies))

	return &out
}

// LooksLikeToken reports whether s has exactly three non-empty dot separated segments, like a compact
// signed token. This is a structural check only and never verifies a signature.
func LooksLikeToken(s string) bool {
	segments := strings.Split(s, ".")
	if len(segments) != 3 {
		return false
	}
	for _, segment := range segments {
		if len(segment) == 0 {
			return false
		}
	}
	return true
}

func findCookie(cookies []*http.Cookie, name string) (*http.Cookie, bool) {
	for _, c := range cookies {
		if c != nil && c.Name == name {
			return c, true
		}
	}
	return nil, false
}

func bearer(token string) string {
	return "Bearer " + token
}
