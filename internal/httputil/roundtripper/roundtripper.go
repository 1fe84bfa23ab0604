// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package roundtripper

import "net/http"

var _ http.RoundTripper = Func(nil)

type Func func(*http.Request) (*http.Response, error)

func (f Func) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// WithUserAgent wraps rt so that every outbound request carries the given User-Agent unless
// the caller already set one.
func WithUserAgent(rt http.RoundTripper, userAgent string) http.RoundTripper {
	return Func(func(req *http.Request) (*http.Response, error) {
		if len(req.Header.Get("User-Agent")) != 0 {
			return rt.RoundTrip(req)
		}
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", userAgent)
		return rt.RoundTrip(req)
	})
}
