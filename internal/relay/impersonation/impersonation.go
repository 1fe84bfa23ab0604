// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package impersonation issues time boxed sessions which act as another user and can never renew
// themselves: the access cookie lifetime is bounded and any refresh cookie is cleared.
package impersonation

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"k8s.io/utils/clock"

	"go.credrelay.dev/internal/httputil/httperr"
	"go.credrelay.dev/internal/plog"
	"go.credrelay.dev/internal/relay/backend"
	"go.credrelay.dev/internal/relay/cookies"
	"go.credrelay.dev/internal/relay/credential"
)

// AdminGrant is an administrator's request to act as a user of a workspace.
type AdminGrant struct {
	WorkspaceID string `json:"workspaceId"`
	UserID      string `json:"userId"`
	Reason      string `json:"reason,omitempty"`
}

func (g AdminGrant) validate() error {
	switch {
	case len(strings.TrimSpace(g.WorkspaceID)) == 0:
		return httperr.New(http.StatusBadRequest, "workspaceId is required")
	case len(strings.TrimSpace(g.UserID)) == 0:
		return httperr.New(http.StatusBadRequest, "userId is required")
	default:
		return nil
	}
}

// SupportGrant is the self-service support flow where a user hands a support token to the support team.
type SupportGrant struct {
	Token string `json:"token"`
}

func (g SupportGrant) validate() error {
	if len(strings.TrimSpace(g.Token)) == 0 {
		return httperr.New(http.StatusBadRequest, "token is required")
	}
	return nil
}

// Config holds the backend paths and the upper bound for the lifetime of an impersonation session.
type Config struct {
	AdminPath   string
	SupportPath string
	MaxTTL      time.Duration
}

type Issuer struct {
	caller  Caller
	cookies *cookies.Builder
	config  Config
	clock   clock.PassiveClock
	logger  plog.Logger
}

// Caller is implemented by *backend.Client. Impersonation never goes through the refresh coordinator.
type Caller interface {
	Do(ctx context.Context, req backend.Request) (*backend.Response, error)
}

func NewIssuer(caller Caller, cookieBuilder *cookies.Builder, config Config, logger plog.Logger) *Issuer {
	return &Issuer{
		caller:  caller,
		cookies: cookieBuilder,
		config:  config,
		clock:   clock.RealClock{},
		logger:  logger,
	}
}

// IssueAdmin validates g before any backend call, and otherwise behaves like issue.
func (i *Issuer) IssueAdmin(ctx context.Context, w http.ResponseWriter, caller *credential.Resolution, g AdminGrant) error {
	if err := g.validate(); err != nil {
		return err
	}
	return i.issue(ctx, w, caller, i.config.AdminPath, g)
}

// IssueSupport validates g before any backend call, and otherwise behaves like issue.
func (i *Issuer) IssueSupport(ctx context.Context, w http.ResponseWriter, caller *credential.Resolution, g SupportGrant) error {
	if err := g.validate(); err != nil {
		return err
	}
	return i.issue(ctx, w, caller, i.config.SupportPath, g)
}

// issue forwards the caller's credentials to the backend so that it can authorize the exchange. A
// non 2xx answer is forwarded with its status and body and no cookies. Returned errors are Responders.
func (i *Issuer) issue(ctx context.Context, w http.ResponseWriter, caller *credential.Resolution, path string, grant any) error {
	body, err := json.Marshal(grant)
	if err != nil {
		return httperr.Wrap(http.StatusInternalServerError, "could not encode impersonation request", err)
	}

	header := caller.Header.Clone()
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")

	resp, err := i.caller.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   path,
		Header: header,
		Body:   body,
	})
	if err != nil {
		i.logger.WarningErr("impersonation backend call failed", err, "path", path)
		return httperr.Wrap(http.StatusBadGateway, "backend unavailable", err)
	}

	if !resp.Is2xx() {
		i.logger.Info("backend rejected impersonation", "path", path, "status", resp.StatusCode)
		resp.Forward(w, nil, nil)
		return nil
	}

	payload, err := cookies.DecodeAuthPayload(resp.Body)
	if err != nil {
		return httperr.Wrap(http.StatusBadGateway, "backend returned an invalid user payload", err)
	}

	accessToken := payload.AccessToken
	if len(accessToken) == 0 {
		accessName, _ := i.cookies.Names()
		if c, ok := resp.Cookie(accessName); ok {
			accessToken = c.Value
		}
	}
	if len(accessToken) == 0 {
		return httperr.New(http.StatusBadGateway, "backend did not issue an impersonation credential")
	}

	ttl := i.accessTTL(accessToken)
	if ttl <= 0 {
		return httperr.New(http.StatusBadGateway, "backend issued an expired impersonation credential")
	}

	// the role comes from the impersonated user, super admin never carries over into an impersonated session
	user := payload.User.Public()
	user.IsSuperAdmin = false

	if err := i.cookies.Write(w, resp.SetCookies(), cookies.Grant{
		Role:         user.Role,
		SuperAdmin:   false,
		SupportMode:  true,
		IssueRefresh: false,
		AccessToken:  accessToken,
		AccessTTL:    ttl,
	}); err != nil {
		return httperr.Wrap(http.StatusInternalServerError, "could not issue session", err)
	}

	i.logger.Info("impersonation session issued",
		"path", path,
		"userID", user.ID,
		"workspaceID", user.WorkspaceID,
		"ttl", ttl,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(cookies.PublicBody{User: user})
	return nil
}

// accessTTL is the configured maximum, shortened to the token's own remaining lifetime when the token
// carries a readable exp claim.
func (i *Issuer) accessTTL(token string) time.Duration {
	ttl := i.config.MaxTTL
	if exp, ok := credential.Expiry(token); ok {
		if remaining := exp.Sub(i.clock.Now()); remaining < ttl {
			ttl = remaining
		}
	}
	return ttl
}
