// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package refresh wraps backend calls with a single transparent renewal of an expired access token.
//
// A call which ends in 401 is handled as follows:
//   - no refresh cookie: the 401 is forwarded unchanged (AuthExpired).
//   - malformed refresh cookie: no refresh is attempted, the 401 is forwarded and the access and
//     refresh cookies are cleared (Degraded).
//   - well-formed refresh cookie: the backend refresh operation is called once. When it answers 2xx
//     with a new access cookie, the original call is replayed once with the new token and the replay is
//     returned (Refreshed). A 401 or 403, or a 2xx without an access cookie, forwards the original 401
//     and clears the access and refresh cookies (RefreshFailed). Anything else is a connectivity error.
//
// There is at most one refresh and one replay per call.
package refresh

import (
	"context"
	"fmt"
	"net/http"

	"go.credrelay.dev/internal/plog"
	"go.credrelay.dev/internal/relay/backend"
	"go.credrelay.dev/internal/relay/credential"
)

// Outcome names the final state of a call.
type Outcome string

const (
	Authorized    Outcome = "Authorized"
	Upstream      Outcome = "Upstream" // any other non-401 status, forwarded as is
	AuthExpired   Outcome = "AuthExpired"
	Degraded      Outcome = "Degraded"
	Refreshed     Outcome = "Refreshed"
	RefreshFailed Outcome = "RefreshFailed"
)

// Caller is implemented by *backend.Client.
type Caller interface {
	Do(ctx context.Context, req backend.Request) (*backend.Response, error)
}

// Result is what should be written back to the client.
type Result struct {
	Outcome Outcome

	// Response is the original response, or the replay's response when Outcome is Refreshed.
	Response *backend.Response

	// SetCookies are the backend Set-Cookie values to forward, in order.
	SetCookies []string

	// ClearCredentials asks the caller to expire the access and refresh cookies.
	ClearCredentials bool
}

type Coordinator struct {
	caller           Caller
	refreshPath      string
	accessCookieName string
	logger           plog.Logger
}

func NewCoordinator(caller Caller, refreshPath, accessCookieName string, logger plog.Logger) *Coordinator {
	return &Coordinator{
		caller:           caller,
		refreshPath:      refreshPath,
		accessCookieName: accessCookieName,
		logger:           logger,
	}
}

// Do performs req with the credentials of res. The Header of req is extended with the outbound
// credential headers. Errors are always *backend.ConnectivityError.
func (c *Coordinator) Do(ctx context.Context, req backend.Request, res *credential.Resolution) (*Result, error) {
	original, err := c.caller.Do(ctx, withCredentials(req, res))
	if err != nil {
		return nil, err
	}

	if original.StatusCode != http.StatusUnauthorized {
		outcome := Authorized
		if !original.Is2xx() {
			outcome = Upstream
		}
		return &Result{Outcome: outcome, Response: original, SetCookies: original.SetCookies()}, nil
	}

	expired := func(outcome Outcome, clearCredentials bool) *Result {
		return &Result{Outcome: outcome, Response: original, SetCookies: original.SetCookies(), ClearCredentials: clearCredentials}
	}

	switch {
	case !res.RefreshPresent:
		c.logger.Debug("backend rejected credentials and there is no refresh cookie", "path", req.Path)
		return expired(AuthExpired, false), nil
	case !res.RefreshWellFormed:
		// a 401 next to a refresh cookie which is not even shaped like a token means it is corrupted or forged
		c.logger.Info("backend rejected credentials and the refresh cookie is malformed, clearing cookies", "path", req.Path)
		return expired(Degraded, true), nil
	}

	refreshResp, err := c.caller.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   c.refreshPath,
		Header: cookieOnly(res.Header),
	})
	if err != nil {
		return nil, err
	}

	switch {
	case refreshResp.StatusCode == http.StatusUnauthorized, refreshResp.StatusCode == http.StatusForbidden:
		c.logger.Info("refresh rejected, clearing cookies", "path", req.Path, "refreshStatus", refreshResp.StatusCode)
		return expired(RefreshFailed, true), nil
	case !refreshResp.Is2xx():
		return nil, backend.NewConnectivityError(fmt.Sprintf("refresh returned status %d", refreshResp.StatusCode))
	}

	access, ok := refreshResp.Cookie(c.accessCookieName)
	if !ok || len(access.Value) == 0 {
		c.logger.Info("refresh succeeded without issuing an access cookie, clearing cookies", "path", req.Path)
		return expired(RefreshFailed, true), nil
	}

	replay, err := c.caller.Do(ctx, withCredentials(req, res.WithAccessToken(access.Value)))
	if err != nil {
		return nil, err
	}

	c.logger.Debug("access token refreshed and call replayed", "path", req.Path, "replayStatus", replay.StatusCode)

	// the refresh response may rotate the refresh cookie too, so its cookies are forwarded first
	return &Result{
		Outcome:    Refreshed,
		Response:   replay,
		SetCookies: append(refreshResp.SetCookies(), replay.SetCookies()...),
	}, nil
}

func withCredentials(req backend.Request, res *credential.Resolution) backend.Request {
	header := req.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	for k, vv := range res.Header {
		header[k] = append([]string(nil), vv...)
	}
	req.Header = header
	return req
}

func cookieOnly(h http.Header) http.Header {
	out := http.Header{}
	if cookies, ok := h["Cookie"]; ok {
		out["Cookie"] = append([]string(nil), cookies...)
	}
	return out
}
