// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package requestlogger logs one line when a request is received and one when it completes.
// Credentials never appear in these logs: cookies and headers are not logged, and query
// parameters are redacted.
package requestlogger

import (
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/felixge/httpsnoop"
	"k8s.io/utils/clock"

	"go.credrelay.dev/internal/httputil/requestutil"
	"go.credrelay.dev/internal/plog"
	"go.credrelay.dev/internal/requestid"
)

func WithHTTPRequestLogging(handler http.Handler, logger plog.Logger) http.Handler {
	return withHTTPRequestLogging(handler, logger, clock.RealClock{})
}

func withHTTPRequestLogging(handler http.Handler, logger plog.Logger, c clock.Clock) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		rl := newRequestLogger(req, logger, c)

		rl.logRequestReceived()
		defer rl.logRequestComplete(w)

		handler.ServeHTTP(rl.wrap(w), req)
	})
}

type requestLogger struct {
	startTime time.Time
	clock     clock.Clock // clock is used to calculate the response latency, and useful for unit tests.

	statusRecorded bool
	status         int

	req       *http.Request
	userAgent string

	logger plog.Logger
}

func newRequestLogger(req *http.Request, logger plog.Logger, c clock.Clock) *requestLogger {
	return &requestLogger{
		req:       req,
		startTime: c.Now(),
		clock:     c,
		userAgent: req.UserAgent(), // cache this from the req to avoid any possibility of concurrent read/write problems with headers map
		logger:    logger,
	}
}

func internalPaths() []string {
	return []string{
		"/healthz",
	}
}

// log sends probes to debug so that they do not drown out real traffic at the default level.
func (rl *requestLogger) log(msg string, keysAndValues ...any) {
	keysAndValues = append([]any{"requestID", requestid.FromContext(rl.req.Context())}, keysAndValues...)
	if slices.Contains(internalPaths(), rl.req.URL.Path) {
		rl.logger.Debug(msg, keysAndValues...)
		return
	}
	rl.logger.Info(msg, keysAndValues...)
}

func (rl *requestLogger) logRequestReceived() {
	r := rl.req

	rl.log("HTTP Request Received",
		"proto", r.Proto,
		"method", r.Method,
		"host", r.Host,
		"serverName", requestutil.SNIServerName(r),
		"path", r.URL.Path,
		"userAgent", rl.userAgent,
		"remoteAddr", r.RemoteAddr,
	)
}

func (rl *requestLogger) logRequestComplete(w http.ResponseWriter) {
	rl.log("HTTP Request Completed",
		"path", rl.req.URL.Path, // include the path again to make it easy to "grep -v healthz"
		"latency", rl.clock.Since(rl.startTime),
		"responseStatus", rl.status,
		"location", redactedLocation(w.Header().Get("Location")),
	)
}

func redactedLocation(location string) string {
	if location == "" {
		return "no location header"
	}

	parsedLocation, err := url.Parse(location)
	if err != nil {
		return "unparsable location header"
	}

	// We don't know what this `Location` header is used for, so redact all query params
	redactedParams := parsedLocation.Query()
	for k, v := range redactedParams {
		for i := range v {
			redactedParams[k][i] = "redacted"
		}
	}
	parsedLocation.RawQuery = redactedParams.Encode()
	return parsedLocation.String()
}

// wrap returns a ResponseWriter which records the status code while preserving the optional
// interfaces (http.Flusher, http.Hijacker, etc.) of w.
func (rl *requestLogger) wrap(w http.ResponseWriter) http.ResponseWriter {
	return httpsnoop.Wrap(w, httpsnoop.Hooks{
		WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
			return func(code int) {
				rl.recordStatus(code)
				next(code)
			}
		},
		Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
			return func(b []byte) (int, error) {
				rl.recordStatus(http.StatusOK) // Default if WriteHeader hasn't been called
				return next(b)
			}
		},
	})
}

func (rl *requestLogger) recordStatus(status int) {
	if rl.statusRecorded {
		return
	}
	rl.status = status
	rl.statusRecorded = true
}
