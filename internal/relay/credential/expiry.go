// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// signatureAlgorithms are the algorithms accepted when reading the claims of a backend token.
//
//nolint:gochecknoglobals // please treat this as a readonly const, do not mutate
var signatureAlgorithms = []jose.SignatureAlgorithm{
	jose.HS256, jose.HS384, jose.HS512,
	jose.RS256, jose.RS384, jose.RS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.EdDSA,
}

// Expiry returns the exp claim of a compact signed token. The signature is not verified, so the
// result may only be used to shorten a lifetime, never to grant one. The second return value is false
// when the token cannot be parsed or carries no exp claim.
func Expiry(token string) (time.Time, bool) {
	parsed, err := jwt.ParseSigned(token, signatureAlgorithms)
	if err != nil {
		return time.Time{}, false
	}

	var claims jwt.Claims
	if err := parsed.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return time.Time{}, false
	}
	if claims.Expiry == nil {
		return time.Time{}, false
	}

	return claims.Expiry.Time(), true
}
