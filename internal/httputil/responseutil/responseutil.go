// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package responseutil

import (
	"net/http"
	"net/textproto"
	"strings"
)

// hopHeaders are removed when relaying a response, see RFC 9110 section 7.6.1.
//
//nolint:gochecknoglobals // please treat this as a readonly const, do not mutate
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// CopyEndToEndHeaders copies src into dst, replacing any values already in dst, while skipping
// hop-by-hop headers, Content-Length (the body is rewritten by the caller) and Set-Cookie (cookies
// are always written explicitly so that their order is under the caller's control).
func CopyEndToEndHeaders(dst, src http.Header) {
	skip := map[string]bool{
		"Content-Length": true,
		"Set-Cookie":     true,
	}
	for _, h := range hopHeaders {
		skip[h] = true
	}
	// headers named by the Connection header are hop-by-hop too
	for _, v := range src.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = textproto.TrimString(name); len(name) != 0 {
				skip[textproto.CanonicalMIMEHeaderKey(name)] = true
			}
		}
	}

	for k, vv := range src {
		if skip[textproto.CanonicalMIMEHeaderKey(k)] {
			continue
		}
		dst[k] = append([]string(nil), vv...)
	}
}
