// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"time"

	"github.com/lestrrat-go/jwx/jwt"
)

// TokenExpiry returns the exp claim of a JWT without verifying its
// signature. The CMS owns the signing key, so the claim is only used to
// drop tokens early. ok is false for opaque tokens and tokens without exp.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	t, err := jwt.ParseString(token)
	if err != nil {
		return time.Time{}, false
	}
	exp = t.Expiration()
	if exp.IsZero() {
		return time.Time{}, false
	}
	return exp, true
}

// Expired reports whether the token's exp claim is before now. Tokens
// without a readable exp never count as expired; the CMS decides.
func Expired(token string, now time.Time) bool {
	exp, ok := TokenExpiry(token)
	return ok && !now.Before(exp)
}
