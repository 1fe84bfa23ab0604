// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"go.credrelay.dev/internal/plog"
)

// Config contains knobs to setup an instance of the credential relay.
type Config struct {
	Backend   BackendSpec  `json:"backend"`
	Cookies   CookiesSpec  `json:"cookies"`
	Endpoints *Endpoints   `json:"endpoints"`
	Log       plog.LogSpec `json:"log"`
}

// BackendSpec configures how the relay reaches the backend identity/API service.
type BackendSpec struct {
	// BaseURL is the scheme, host and optional path prefix of the backend, e.g. https://api.example.com/v1.
	BaseURL string `json:"baseURL"`
	// Timeout bounds every single backend call (original, refresh and replay each get their own budget).
	Timeout Duration `json:"timeout"`
	// UserAgent is sent on every backend call.
	UserAgent string    `json:"userAgent"`
	Paths     PathsSpec `json:"paths"`

	// CABundlePath optionally names a PEM file of certificate authorities to trust for an https backend
	// instead of the system roots.
	CABundlePath string `json:"caBundlePath,omitempty"`
}

// PathsSpec names the backend operations consumed by the relay.
type PathsSpec struct {
	Refresh            string `json:"refresh"`
	OTPVerify          string `json:"otpVerify"`
	Impersonate        string `json:"impersonate"`
	SupportImpersonate string `json:"supportImpersonate"`
	Logout             string `json:"logout"`
}

// CookiesSpec configures the cookies consumed and issued by the relay.
type CookiesSpec struct {
	// Secure sets the Secure attribute on every cookie issued by the relay. It defaults to true.
	Secure *bool `json:"secure"`

	AccessToken  CookieSpec `json:"accessToken"`
	RefreshToken CookieSpec `json:"refreshToken"`
	Session      CookieSpec `json:"session"`
	Role         CookieSpec `json:"role"`
	SuperAdmin   CookieSpec `json:"superAdmin"`
	SupportMode  CookieSpec `json:"supportMode"`

	// ImpersonationTTL is the upper bound for the lifetime of an impersonation access cookie.
	ImpersonationTTL Duration `json:"impersonationTTL"`
}

// CookieSpec is the name and lifetime of a single cookie.
type CookieSpec struct {
	Name string   `json:"name"`
	TTL  Duration `json:"ttl"`
}

type Endpoints struct {
	HTTP *Endpoint `json:"http,omitempty"`
}

type Endpoint struct {
	Network string `json:"network"`
	Address string `json:"address"`
}

// Duration is a time.Duration which is written as a Go duration string in config files, e.g. "15m".
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string such as \"15m\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
