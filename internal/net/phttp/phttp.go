// Copyright 2021-2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package phttp builds the http.Client used by the relay to reach its backend.
package phttp

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	"go.credrelay.dev/internal/httputil/roundtripper"
	"go.credrelay.dev/internal/plog"
)

// New returns a client that never follows redirects so that the relay can forward them (and any cookies
// they carry) to the browser. Per-call deadlines are expected to come from the request context.
func New(userAgent string, rootCAs *x509.CertPool) *http.Client {
	baseRT := defaultTransport()
	baseRT.TLSClientConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    rootCAs,
	}
	// enable h2 for https backends now that TLSClientConfig has been replaced
	if err := http2.ConfigureTransport(baseRT); err != nil {
		plog.WarningErr("could not configure http2 for backend transport", err)
	}

	return &http.Client{
		Transport: defaultWrap(baseRT, userAgent),
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Timeout: 3 * time.Hour, // make it impossible for requests to hang indefinitely
	}
}

func defaultTransport() *http.Transport {
	baseRT := http.DefaultTransport.(*http.Transport).Clone()
	baseRT.MaxIdleConnsPerHost = 25
	return baseRT
}

func defaultWrap(rt http.RoundTripper, userAgent string) http.RoundTripper {
	rt = safeTraceWrapper(rt, plog.New().WithName("backend-transport"), func() bool { return plog.Enabled(plog.LevelTrace) })
	rt = roundtripper.WithUserAgent(rt, userAgent)
	return rt
}
