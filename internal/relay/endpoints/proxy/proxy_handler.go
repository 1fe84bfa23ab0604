// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package proxy provides a handler which relays authenticated GET requests to the backend.
package proxy

import (
	"net/http"
	"strings"

	"go.credrelay.dev/internal/httputil/httperr"
	"go.credrelay.dev/internal/plog"
	"go.credrelay.dev/internal/relay/backend"
	"go.credrelay.dev/internal/relay/cookies"
	"go.credrelay.dev/internal/relay/credential"
	"go.credrelay.dev/internal/relay/refresh"
)

// forwardedHeaders are the only inbound headers, other than credentials, which reach the backend.
var forwardedHeaders = []string{"Accept", "Accept-Language"} //nolint:gochecknoglobals // read only

// NewHandler returns a handler which strips pathPrefix from the escaped request path and performs the
// rest of the path and the raw query against the backend.
func NewHandler(
	pathPrefix string,
	extractor *credential.Extractor,
	coordinator *refresh.Coordinator,
	cookieBuilder *cookies.Builder,
	logger plog.Logger,
) http.Handler {
	return httperr.HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		if r.Method != http.MethodGet {
			return httperr.Newf(http.StatusMethodNotAllowed, "%s (try GET)", r.Method)
		}

		path := strings.TrimPrefix(r.URL.EscapedPath(), pathPrefix)
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}

		header := http.Header{}
		for _, name := range forwardedHeaders {
			if v := r.Header.Values(name); len(v) > 0 {
				header[name] = append([]string(nil), v...)
			}
		}

		result, err := coordinator.Do(r.Context(), backend.Request{
			Method:   http.MethodGet,
			Path:     path,
			RawQuery: r.URL.RawQuery,
			Header:   header,
		}, extractor.Extract(r.Context(), r.Header))
		if err != nil {
			logger.WarningErr("relayed call failed", err, "path", path)
			return httperr.Wrap(http.StatusBadGateway, "backend unavailable", err)
		}

		logger.Debug("relayed call finished", "path", path, "outcome", result.Outcome, "status", result.Response.StatusCode)

		var clearCredentials func(http.ResponseWriter)
		if result.ClearCredentials {
			clearCredentials = cookieBuilder.ClearCredentials
		}
		result.Response.Forward(w, result.SetCookies, clearCredentials)
		return nil
	})
}
