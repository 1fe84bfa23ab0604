// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package cookies writes every cookie issued by the relay. All relay cookies are httpOnly, SameSite=Lax
// and scoped to path "/".
package cookies

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/securecookie"

	"go.credrelay.dev/internal/config/relay"
)

// sessionMarkerBytes is the amount of entropy in a session marker.
const sessionMarkerBytes = 32

// Grant describes the cookies to issue for one authentication event.
type Grant struct {
	Role       Role
	SuperAdmin bool
	// SupportMode marks an impersonated session.
	SupportMode bool
	// IssueRefresh is false for sessions which must not renew themselves. The backend's own access and
	// refresh cookies are then withheld and the refresh cookie is cleared.
	IssueRefresh bool

	// AccessToken, when set, is written as the access cookie with AccessTTL.
	AccessToken string
	AccessTTL   time.Duration
}

// Builder writes relay cookies using the configured names, lifetimes and Secure attribute.
type Builder struct {
	spec         relay.CookiesSpec
	secure       bool
	randomMarker func() (string, error)
}

func NewBuilder(spec relay.CookiesSpec) *Builder {
	return &Builder{
		spec:         spec,
		secure:       spec.Secure == nil || *spec.Secure,
		randomMarker: newSessionMarker,
	}
}

// Names returns the configured access and refresh cookie names.
func (b *Builder) Names() (access, refresh string) {
	return b.spec.AccessToken.Name, b.spec.RefreshToken.Name
}

// Write forwards the backend's Set-Cookie values byte for byte, then appends the cookies of g. It must
// be called before the response status is written. It performs no network calls.
func (b *Builder) Write(w http.ResponseWriter, backendSetCookies []string, g Grant) error {
	// mint the marker first so that a failure leaves the response untouched
	marker, err := b.randomMarker()
	if err != nil {
		return err
	}

	for _, raw := range backendSetCookies {
		if !g.IssueRefresh && b.namesCredential(raw) {
			continue
		}
		w.Header().Add("Set-Cookie", raw)
	}

	if len(g.AccessToken) != 0 {
		b.set(w, b.spec.AccessToken.Name, g.AccessToken, g.AccessTTL)
	}
	if !g.IssueRefresh {
		b.clear(w, b.spec.RefreshToken.Name)
	}

	b.set(w, b.spec.Session.Name, marker, b.spec.Session.TTL.Duration())
	b.set(w, b.spec.Role.Name, string(g.Role), b.spec.Role.TTL.Duration())
	b.set(w, b.spec.SuperAdmin.Name, strconv.FormatBool(g.SuperAdmin), b.spec.SuperAdmin.TTL.Duration())
	if g.SupportMode {
		b.set(w, b.spec.SupportMode.Name, "true", b.spec.SupportMode.TTL.Duration())
	} else {
		// a new non-impersonated session must not inherit the flag of an earlier impersonation
		b.clear(w, b.spec.SupportMode.Name)
	}

	return nil
}

// ClearCredentials expires the access and refresh cookies.
func (b *Builder) ClearCredentials(w http.ResponseWriter) {
	b.clear(w, b.spec.AccessToken.Name)
	b.clear(w, b.spec.RefreshToken.Name)
}

// ClearAll expires every cookie issued by the relay.
func (b *Builder) ClearAll(w http.ResponseWriter) {
	b.ClearCredentials(w)
	b.clear(w, b.spec.Session.Name)
	b.clear(w, b.spec.Role.Name)
	b.clear(w, b.spec.SuperAdmin.Name)
	b.clear(w, b.spec.SupportMode.Name)
}

func (b *Builder) namesCredential(rawSetCookie string) bool {
	for _, c := range (&http.Response{Header: http.Header{"Set-Cookie": {rawSetCookie}}}).Cookies() {
		if c.Name == b.spec.AccessToken.Name || c.Name == b.spec.RefreshToken.Name {
			return true
		}
	}
	return false
}

func (b *Builder) set(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, b.cookie(name, value, maxAge(ttl)))
}

// clear writes an empty value with Max-Age=0.
func (b *Builder) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, b.cookie(name, "", -1))
}

func (b *Builder) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   b.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// maxAge rounds up so that a positive lifetime never turns into a session cookie.
func maxAge(ttl time.Duration) int {
	seconds := int((ttl + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

func newSessionMarker() (string, error) {
	key := securecookie.GenerateRandomKey(sessionMarkerBytes)
	if key == nil {
		return "", errors.New("could not generate session marker")
	}
	return hex.EncodeToString(key), nil
}
