// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package backend performs calls to the backend identity/API service.
package backend

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"go.credrelay.dev/internal/httputil/responseutil"
	"go.credrelay.dev/internal/plog"
)

// maxBodyBytes bounds how much of a backend response body is buffered. Larger bodies are refused
// rather than forwarded cut short.
const maxBodyBytes = 10 << 20

// Request is a single call to the backend. Path is appended to the configured base URL as is.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// Response is a fully buffered backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client calls the backend. Every call gets its own timeout derived from the caller's context, so
// cancelling the inbound request aborts the call.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	logger     plog.Logger

	maxBodyBytes int64
}

func New(httpClient *http.Client, baseURL string, timeout time.Duration, logger plog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		timeout:    timeout,
		logger:     logger,

		maxBodyBytes: maxBodyBytes,
	}
}

// Do returns a *ConnectivityError when the backend could not be reached or did not answer in time.
// Any HTTP status, including 5xx, is returned as a Response.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	target, err := c.targetURL(req.Path, req.RawQuery)
	if err != nil {
		return nil, errors.Wrap(err, "build backend url")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, errors.Wrap(err, "build backend request")
	}
	for k, vv := range req.Header {
		httpReq.Header[k] = append([]string(nil), vv...)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.DebugErr("backend call failed", err, "method", req.Method, "path", req.Path)
		return nil, &ConnectivityError{cause: errors.Wrapf(err, "%s %s", req.Method, req.Path)}
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, c.maxBodyBytes+1))
	if err != nil {
		c.logger.DebugErr("backend response could not be read", err, "method", req.Method, "path", req.Path)
		return nil, &ConnectivityError{cause: errors.Wrapf(err, "read response of %s %s", req.Method, req.Path)}
	}
	if int64(len(respBody)) > c.maxBodyBytes {
		c.logger.Warning("backend response body is too large", "method", req.Method, "path", req.Path, "limit", c.maxBodyBytes)
		return nil, &ConnectivityError{cause: errors.Errorf("response of %s %s exceeds %d bytes", req.Method, req.Path, c.maxBodyBytes)}
	}

	c.logger.Debug("backend call completed",
		"method", req.Method,
		"path", req.Path,
		"status", httpResp.StatusCode,
		"latency", time.Since(start),
	)

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
	}, nil
}

func (c *Client) targetURL(path, rawQuery string) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", err
	}
	u.RawQuery = rawQuery
	return u.String(), nil
}

// SetCookies returns the raw Set-Cookie values of the response in the order the backend sent them.
func (r *Response) SetCookies() []string {
	return append([]string(nil), r.Header.Values("Set-Cookie")...)
}

// Cookie returns the last cookie with the given name set by the response.
func (r *Response) Cookie(name string) (*http.Cookie, bool) {
	var found *http.Cookie
	for _, c := range (&http.Response{Header: r.Header}).Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found, found != nil
}

// Is2xx reports whether the backend accepted the call.
func (r *Response) Is2xx() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Forward writes the response to w. The given Set-Cookie values are written instead of the response's
// own, so that callers control which cookies are forwarded and in which order. Additional cookies may
// be appended by the caller through extra before the status line is written.
func (r *Response) Forward(w http.ResponseWriter, setCookies []string, extra func(http.ResponseWriter)) {
	responseutil.CopyEndToEndHeaders(w.Header(), r.Header)
	for _, c := range setCookies {
		w.Header().Add("Set-Cookie", c)
	}
	if extra != nil {
		extra(w)
	}
	w.WriteHeader(r.StatusCode)
	_, _ = w.Write(r.Body)
}
