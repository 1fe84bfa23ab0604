// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"
)

// MintToken returns a real ES256 signed compact token with the given claims, signed by a throwaway key.
func MintToken(t *testing.T, claims jwt.Claims) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.ES256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)

	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	require.NoError(t, err)

	return token
}

// MintTokenExpiringAt is a convenience wrapper for MintToken.
func MintTokenExpiringAt(t *testing.T, subject string, exp time.Time) string {
	t.Helper()

	return MintToken(t, jwt.Claims{
		Subject: subject,
		Expiry:  jwt.NewNumericDate(exp),
	})
}
