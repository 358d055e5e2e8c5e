// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ajwan-web/ajwan-admin/internal/cms"
)

const rolePrefix = "me:"

// RoleCache remembers the CMS user behind a session token so the access
// gate does not call users/me on every request. Tokens are stored hashed.
type RoleCache struct {
	users *TypedCache[cms.User]
	raw   Cacher
}

// NewRoleCache wraps c with entries living for ttl.
func NewRoleCache(c Cacher, ttl time.Duration) *RoleCache {
	return &RoleCache{users: NewTypedCache[cms.User](c, ttl), raw: c}
}

// User returns the cached user for token, calling fetch on a miss. Failed
// lookups are not cached.
func (r *RoleCache) User(ctx context.Context, token string, fetch func(context.Context) (*cms.User, error)) (*cms.User, error) {
	return r.users.GetOrSet(ctx, tokenKey(token), func() (*cms.User, error) {
		return fetch(ctx)
	})
}

// Forget drops the entry for token.
func (r *RoleCache) Forget(ctx context.Context, token string) {
	if token == "" {
		return
	}
	_ = r.users.Delete(ctx, tokenKey(token))
}

// Stats returns the counters of the underlying cache when it keeps any.
func (r *RoleCache) Stats() (Stats, bool) {
	sp, ok := r.raw.(StatsProvider)
	if !ok {
		return Stats{}, false
	}
	return sp.Stats(), true
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return rolePrefix + hex.EncodeToString(sum[:])
}
