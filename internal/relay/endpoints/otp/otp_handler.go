// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package otp provides a handler which exchanges an email and one time code for a relay session.
package otp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/asaskevich/govalidator"

	"go.credrelay.dev/internal/httputil/httperr"
	"go.credrelay.dev/internal/httputil/requestutil"
	"go.credrelay.dev/internal/plog"
	"go.credrelay.dev/internal/relay/backend"
	"go.credrelay.dev/internal/relay/cookies"
)

// Caller is implemented by *backend.Client.
type Caller interface {
	Do(ctx context.Context, req backend.Request) (*backend.Response, error)
}

type verifyRequest struct {
	Email string `json:"email"`
	// EmailConfirmation is optional. When present it must match Email.
	EmailConfirmation *string `json:"emailConfirmation"`
	Code              string  `json:"code"`
}

// backendVerifyRequest is the body sent to the backend. It never carries the confirmation.
type backendVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (v verifyRequest) validate() error {
	email := strings.TrimSpace(v.Email)
	switch {
	case len(email) == 0:
		return httperr.New(http.StatusBadRequest, "email is required")
	case len(strings.TrimSpace(v.Code)) == 0:
		return httperr.New(http.StatusBadRequest, "code is required")
	case !govalidator.IsEmail(email):
		return httperr.New(http.StatusBadRequest, "email is invalid")
	case v.EmailConfirmation != nil && !strings.EqualFold(strings.TrimSpace(*v.EmailConfirmation), email):
		return httperr.New(http.StatusBadRequest, "email confirmation does not match")
	}
	return nil
}

// NewHandler returns a handler which validates the request, performs the backend's verification and on
// success issues a full session, including the backend's own access and refresh cookies.
func NewHandler(caller Caller, verifyPath string, cookieBuilder *cookies.Builder, logger plog.Logger) http.Handler {
	return httperr.HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		if r.Method != http.MethodPost {
			return httperr.Newf(http.StatusMethodNotAllowed, "%s (try POST)", r.Method)
		}

		var req verifyRequest
		if err := requestutil.DecodeJSONBody(w, r, &req); err != nil {
			return err
		}
		if err := req.validate(); err != nil {
			return err
		}

		body, err := json.Marshal(backendVerifyRequest{Email: strings.TrimSpace(req.Email), Code: strings.TrimSpace(req.Code)})
		if err != nil {
			return httperr.Wrap(http.StatusInternalServerError, "could not encode verification request", err)
		}

		resp, err := caller.Do(r.Context(), backend.Request{
			Method: http.MethodPost,
			Path:   verifyPath,
			Header: http.Header{
				"Content-Type": {"application/json"},
				"Accept":       {"application/json"},
			},
			Body: body,
		})
		if err != nil {
			logger.WarningErr("otp verification backend call failed", err)
			return httperr.Wrap(http.StatusBadGateway, "backend unavailable", err)
		}

		if !resp.Is2xx() {
			logger.Debug("backend rejected otp verification", "status", resp.StatusCode)
			resp.Forward(w, nil, nil)
			return nil
		}

		payload, err := cookies.DecodeAuthPayload(resp.Body)
		if err != nil {
			return httperr.Wrap(http.StatusBadGateway, "backend returned an invalid user payload", err)
		}
		user := payload.User.Public()

		if err := cookieBuilder.Write(w, resp.SetCookies(), cookies.Grant{
			Role:         user.Role,
			SuperAdmin:   user.IsSuperAdmin,
			IssueRefresh: true,
		}); err != nil {
			return httperr.Wrap(http.StatusInternalServerError, "could not issue session", err)
		}

		logger.Info("otp verification succeeded", "userID", user.ID, "workspaceID", user.WorkspaceID, "role", user.Role)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(cookies.PublicBody{User: user})
		return nil
	})
}
