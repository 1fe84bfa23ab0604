// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"github.com/pkg/errors"
)

// ConnectivityError means that the backend could not be reached, did not answer in time, or answered
// in a way which does not allow the relay to continue. It is always surfaced to the client as a 502.
type ConnectivityError struct {
	cause error
}

// NewConnectivityError is used by callers which decide that a backend answer is unusable.
func NewConnectivityError(msg string) error {
	return &ConnectivityError{cause: errors.New(msg)}
}

func (e *ConnectivityError) Error() string {
	return "backend unavailable: " + e.cause.Error()
}

func (e *ConnectivityError) Unwrap() error {
	return e.cause
}

// IsConnectivityError reports whether any error in err's chain is a *ConnectivityError.
func IsConnectivityError(err error) bool {
	var connErr *ConnectivityError
	return errors.As(err, &connErr)
}
