// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package endpointsmanager assembles the HTTP surface of the relay.
package endpointsmanager

import (
	"net/http"

	"github.com/gorilla/mux"

	"go.credrelay.dev/internal/config/relay"
	"go.credrelay.dev/internal/httputil/httperr"
	"go.credrelay.dev/internal/httputil/securityheader"
	"go.credrelay.dev/internal/plog"
	"go.credrelay.dev/internal/relay/backend"
	"go.credrelay.dev/internal/relay/cookies"
	"go.credrelay.dev/internal/relay/credential"
	"go.credrelay.dev/internal/relay/endpoints/healthz"
	"go.credrelay.dev/internal/relay/endpoints/impersonate"
	"go.credrelay.dev/internal/relay/endpoints/logout"
	"go.credrelay.dev/internal/relay/endpoints/otp"
	"go.credrelay.dev/internal/relay/endpoints/proxy"
	"go.credrelay.dev/internal/relay/impersonation"
	"go.credrelay.dev/internal/relay/refresh"
	"go.credrelay.dev/internal/relay/requestlogger"
	"go.credrelay.dev/internal/requestid"
)

const (
	ProxyPathPrefix        = "/api/relay"
	OTPVerifyPath          = "/api/auth/otp/verify"
	SupportImpersonatePath = "/api/auth/support/impersonate"
	AdminImpersonatePath   = "/api/admin/impersonate"
	LogoutPath             = "/api/auth/logout"
	HealthzPath            = "/healthz"
)

// Manager owns the handler chain of the relay. It holds no per-request state and is safe for
// concurrent use.
type Manager struct {
	handlerChain http.Handler
}

// NewManager wires every relay component from config. httpClient is used for all backend calls.
func NewManager(config *relay.Config, httpClient *http.Client, logger plog.Logger) *Manager {
	caller := backend.New(httpClient, config.Backend.BaseURL, config.Backend.Timeout.Duration(), logger.WithName("backend"))

	accessName, refreshName := config.Cookies.AccessToken.Name, config.Cookies.RefreshToken.Name
	extractor := credential.NewExtractor(accessName, refreshName)
	cookieBuilder := cookies.NewBuilder(config.Cookies)
	coordinator := refresh.NewCoordinator(caller, config.Backend.Paths.Refresh, accessName, logger.WithName("refresh"))
	issuer := impersonation.NewIssuer(caller, cookieBuilder, impersonation.Config{
		AdminPath:   config.Backend.Paths.Impersonate,
		SupportPath: config.Backend.Paths.SupportImpersonate,
		MaxTTL:      config.Cookies.ImpersonationTTL.Duration(),
	}, logger.WithName("impersonation"))

	router := mux.NewRouter()
	// relayed paths are passed on as sent, so neither clean nor decode them before routing
	router.SkipClean(true)
	router.UseEncodedPath()
	router.NotFoundHandler = httperr.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) error {
		return httperr.New(http.StatusNotFound, "not found")
	})
	router.MethodNotAllowedHandler = httperr.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) error {
		return httperr.Newf(http.StatusMethodNotAllowed, "%s not allowed", r.Method)
	})

	router.PathPrefix(ProxyPathPrefix + "/").Methods(http.MethodGet).
		Handler(proxy.NewHandler(ProxyPathPrefix, extractor, coordinator, cookieBuilder, logger.WithName("proxy")))
	router.Path(OTPVerifyPath).Methods(http.MethodPost).
		Handler(otp.NewHandler(caller, config.Backend.Paths.OTPVerify, cookieBuilder, logger.WithName("otp")))
	router.Path(SupportImpersonatePath).Methods(http.MethodPost).
		Handler(impersonate.NewSupportHandler(extractor, issuer))
	router.Path(AdminImpersonatePath).Methods(http.MethodPost).
		Handler(impersonate.NewAdminHandler(extractor, issuer))
	router.Path(LogoutPath).Methods(http.MethodPost).
		Handler(logout.NewHandler(caller, config.Backend.Paths.Logout, extractor, cookieBuilder, logger.WithName("logout")))
	router.Path(HealthzPath).Methods(http.MethodGet, http.MethodHead).
		Handler(healthz.NewHandler())

	m := &Manager{}
	m.buildHandlerChain(router, logger)
	return m
}

func (m *Manager) HandlerChain() http.Handler {
	return m.handlerChain
}

func (m *Manager) buildHandlerChain(router http.Handler, logger plog.Logger) {
	// every response may carry credential cookies
	handler := securityheader.Wrap(router)
	// log all requests, including the request ID
	handler = requestlogger.WithHTTPRequestLogging(handler, logger.WithName("requests"))
	// add a random request ID to the request context and response headers
	handler = requestid.WithRequestID(handler)
	m.handlerChain = handler
}
