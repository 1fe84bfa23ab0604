// Copyright 2021-2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package phttp

import (
	"net/http"
	"net/url"
	"time"

	"go.credrelay.dev/internal/httputil/roundtripper"
	"go.credrelay.dev/internal/plog"
)

func safeTraceWrapper(rt http.RoundTripper, log plog.Logger, shouldLog func() bool) http.RoundTripper {
	return roundtripper.Func(func(req *http.Request) (*http.Response, error) {
		// note: do not make this entire wrapper conditional on shouldLog() - the output is allowed to change at runtime
		if !shouldLog() {
			return rt.RoundTrip(req)
		}

		start := time.Now()
		resp, err := rt.RoundTrip(req)

		// cookies and bearer tokens must never reach the logs
		cleanedReq := cleanReq(req)
		keysAndValues := []any{
			"method", cleanedReq.Method,
			"url", cleanedReq.URL.String(),
			"requestHeaders", cleanedReq.Header,
			"latency", time.Since(start),
		}
		if cleanedResp := cleanResp(resp); cleanedResp != nil {
			keysAndValues = append(keysAndValues, "status", cleanedResp.Status, "responseHeaders", cleanedResp.Header)
		}
		if err != nil {
			log.TraceErr("backend round trip failed", err, keysAndValues...)
		} else {
			log.Trace("backend round trip", keysAndValues...)
		}

		return resp, err
	})
}

func cleanReq(req *http.Request) *http.Request {
	// only pass back things we know to be safe to log
	return &http.Request{
		Method: req.Method,
		URL:    cleanURL(req.URL),
		Header: cleanHeader(req.Header),
	}
}

func cleanResp(resp *http.Response) *http.Response {
	if resp == nil {
		return nil
	}

	// only pass back things we know to be safe to log
	return &http.Response{
		Status: resp.Status,
		Header: cleanHeader(resp.Header),
	}
}

func cleanURL(u *url.URL) *url.URL {
	var user *url.Userinfo
	if len(u.User.Username()) > 0 {
		user = url.User("masked_username")
	}

	var fragment string
	if len(u.Fragment) > 0 || len(u.RawFragment) > 0 {
		fragment = "masked_fragment"
	}

	return &url.URL{
		Scheme:   u.Scheme,
		User:     user,
		Host:     u.Host,
		Path:     u.Path,
		RawPath:  u.RawPath,
		RawQuery: cleanQuery(u.Query()),
		Fragment: fragment,
	}
}

func cleanQuery(query url.Values) string {
	if len(query) == 0 {
		return ""
	}

	out := url.Values(cleanHeader(http.Header(query))) // cast so we can re-use logic
	return out.Encode()
}

func cleanHeader(header http.Header) http.Header {
	if len(header) == 0 {
		return nil
	}

	mask := []string{"masked_value"}
	out := make(http.Header, len(header))
	for key := range header {
		out[key] = mask // only copy the keys
	}

	return out
}
