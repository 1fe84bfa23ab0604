// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package relay contains functionality to load Config's for the credential relay from a YAML file
// and the environment.
package relay

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/yaml"

	"go.credrelay.dev/internal/plog"
)

const (
	NetworkUnix = "unix"
	NetworkTCP  = "tcp"

	// EnvPrefix is the prefix of environment variables which override values from the config file,
	// e.g. RELAY_BACKEND_BASE_URL.
	EnvPrefix = "relay"

	defaultBackendTimeout = 10 * time.Second
	defaultUserAgent      = "credential-relay"
	defaultAccessTTL      = 15 * time.Minute
	defaultRefreshTTL     = 7 * 24 * time.Hour
	defaultSessionTTL     = 7 * 24 * time.Hour
)

// envOverrides are applied on top of the config file. Zero values mean "not set".
type envOverrides struct {
	BackendBaseURL string        `envconfig:"BACKEND_BASE_URL"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT"`
	HTTPAddress    string        `envconfig:"HTTP_ADDRESS"`
	LogLevel       string        `envconfig:"LOG_LEVEL"`
	LogFormat      string        `envconfig:"LOG_FORMAT"`
}

// FromPath loads a Config from a provided local file path, applies environment overrides, inserts any
// defaults (from the Config documentation), and verifies that the config is valid (Config documentation).
// As a side effect, the global log level and format are set from the config.
func FromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var config Config
	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	var overrides envOverrides
	if err := envconfig.Process(EnvPrefix, &overrides); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	applyEnvOverrides(&config, overrides)

	maybeSetBackendDefaults(&config.Backend)
	maybeSetCookieDefaults(&config.Cookies)

	// support setting this to null or {} or empty in the YAML
	if config.Endpoints == nil {
		config.Endpoints = &Endpoints{}
	}
	maybeSetEndpointDefault(&config.Endpoints.HTTP, Endpoint{
		Network: NetworkTCP,
		Address: ":8080",
	})

	if err := validateBackend(config.Backend); err != nil {
		return nil, fmt.Errorf("validate backend: %w", err)
	}

	if err := validateCookies(config.Cookies); err != nil {
		return nil, fmt.Errorf("validate cookies: %w", err)
	}

	if err := validateEndpoint(*config.Endpoints.HTTP); err != nil {
		return nil, fmt.Errorf("validate http endpoint: %w", err)
	}

	if err := plog.ValidateAndSetLogLevelAndFormatGlobally(config.Log); err != nil {
		return nil, fmt.Errorf("validate log: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(config *Config, overrides envOverrides) {
	if len(overrides.BackendBaseURL) != 0 {
		config.Backend.BaseURL = overrides.BackendBaseURL
	}
	if overrides.BackendTimeout != 0 {
		config.Backend.Timeout = Duration(overrides.BackendTimeout)
	}
	if len(overrides.HTTPAddress) != 0 {
		if config.Endpoints == nil {
			config.Endpoints = &Endpoints{}
		}
		config.Endpoints.HTTP = &Endpoint{Network: NetworkTCP, Address: overrides.HTTPAddress}
	}
	if len(overrides.LogLevel) != 0 {
		config.Log.Level = plog.LogLevel(overrides.LogLevel)
	}
	if len(overrides.LogFormat) != 0 {
		config.Log.Format = plog.LogFormat(overrides.LogFormat)
	}
}

func maybeSetBackendDefaults(backend *BackendSpec) {
	backend.BaseURL = strings.TrimSuffix(backend.BaseURL, "/")
	maybeSetDurationDefault(&backend.Timeout, defaultBackendTimeout)
	maybeSetStringDefault(&backend.UserAgent, defaultUserAgent)
	maybeSetStringDefault(&backend.Paths.Refresh, "/auth/refresh")
	maybeSetStringDefault(&backend.Paths.OTPVerify, "/auth/otp/verify")
	maybeSetStringDefault(&backend.Paths.Impersonate, "/admin/impersonate")
	maybeSetStringDefault(&backend.Paths.SupportImpersonate, "/support/impersonate")
	maybeSetStringDefault(&backend.Paths.Logout, "/auth/logout")
}

func maybeSetCookieDefaults(cookies *CookiesSpec) {
	if cookies.Secure == nil {
		cookies.Secure = ptr.To(true)
	}
	maybeSetCookieDefault(&cookies.AccessToken, "access_token", defaultAccessTTL)
	maybeSetCookieDefault(&cookies.RefreshToken, "refresh_token", defaultRefreshTTL)
	maybeSetCookieDefault(&cookies.Session, "session_id", defaultSessionTTL)
	maybeSetCookieDefault(&cookies.Role, "user_role", defaultSessionTTL)
	maybeSetCookieDefault(&cookies.SuperAdmin, "is_super_admin", defaultSessionTTL)
	maybeSetCookieDefault(&cookies.SupportMode, "support_mode", defaultAccessTTL)
	// an impersonated session lives exactly as long as a normal access credential unless configured otherwise
	maybeSetDurationDefault(&cookies.ImpersonationTTL, cookies.AccessToken.TTL.Duration())
}

func maybeSetCookieDefault(cookie *CookieSpec, name string, ttl time.Duration) {
	maybeSetStringDefault(&cookie.Name, name)
	maybeSetDurationDefault(&cookie.TTL, ttl)
}

func maybeSetStringDefault(s *string, defaultValue string) {
	if len(*s) == 0 {
		*s = defaultValue
	}
}

func maybeSetDurationDefault(d *Duration, defaultValue time.Duration) {
	if *d == 0 {
		*d = Duration(defaultValue)
	}
}

func maybeSetEndpointDefault(endpoint **Endpoint, defaultEndpoint Endpoint) {
	if *endpoint != nil {
		return
	}
	*endpoint = &defaultEndpoint
}

func validateBackend(backend BackendSpec) error {
	if len(backend.BaseURL) == 0 {
		return errors.New("baseURL is required")
	}
	u, err := url.Parse(backend.BaseURL)
	if err != nil {
		return fmt.Errorf("baseURL is invalid: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("baseURL scheme must be http or https, got %q", u.Scheme)
	}
	if len(u.Host) == 0 {
		return errors.New("baseURL must have a host")
	}
	if len(u.RawQuery) != 0 || len(u.Fragment) != 0 {
		return errors.New("baseURL must not have a query or fragment")
	}
	if backend.Timeout < 0 {
		return errors.New("timeout must be positive")
	}

	paths := map[string]string{
		"refresh":            backend.Paths.Refresh,
		"otpVerify":          backend.Paths.OTPVerify,
		"impersonate":        backend.Paths.Impersonate,
		"supportImpersonate": backend.Paths.SupportImpersonate,
		"logout":             backend.Paths.Logout,
	}
	badPaths := []string{}
	for name, p := range paths {
		if !strings.HasPrefix(p, "/") {
			badPaths = append(badPaths, name)
		}
	}
	if len(badPaths) > 0 {
		slices.Sort(badPaths)
		return errors.New("paths must start with /: " + strings.Join(badPaths, ", "))
	}

	return nil
}

func validateCookies(cookies CookiesSpec) error {
	all := []struct {
		field string
		spec  CookieSpec
	}{
		{"accessToken", cookies.AccessToken},
		{"refreshToken", cookies.RefreshToken},
		{"session", cookies.Session},
		{"role", cookies.Role},
		{"superAdmin", cookies.SuperAdmin},
		{"supportMode", cookies.SupportMode},
	}

	seen := map[string]string{}
	for _, c := range all {
		if !isCookieName(c.spec.Name) {
			return fmt.Errorf("%s: invalid cookie name %q", c.field, c.spec.Name)
		}
		if other, ok := seen[c.spec.Name]; ok {
			return fmt.Errorf("%s: cookie name %q is already used by %s", c.field, c.spec.Name, other)
		}
		seen[c.spec.Name] = c.field
		if c.spec.TTL < 0 {
			return fmt.Errorf("%s: ttl must be positive", c.field)
		}
	}

	if cookies.ImpersonationTTL < 0 {
		return errors.New("impersonationTTL must be positive")
	}

	return nil
}

// isCookieName reports whether s is a valid cookie-name token per RFC 6265.
func isCookieName(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if r <= ' ' || r >= 0x7f || strings.ContainsRune(`()<>@,;:\"/[]?={}`, r) {
			return false
		}
	}
	return true
}

func validateEndpoint(endpoint Endpoint) error {
	switch n := endpoint.Network; n {
	case NetworkTCP, NetworkUnix:
		if len(endpoint.Address) == 0 {
			return fmt.Errorf("address must be set with %q network", n)
		}
		return nil
	default:
		return fmt.Errorf("unknown network %q", n)
	}
}
