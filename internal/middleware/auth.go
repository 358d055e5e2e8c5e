// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// authorization, and request protection.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ajwan-web/ajwan-admin/internal/cms"
	"github.com/ajwan-web/ajwan-admin/internal/model"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// Context keys for user data.
const (
	ContextKeyUser        ContextKey = "user"
	ContextKeyRequestPath ContextKey = "request_path"
)

// Flash messages shown on the login page.
const (
	FlashSessionExpired = "Your session has expired. Please sign in again."
	FlashNoAccess       = "Your account does not have access to the dashboard."
	FlashSignIn         = "Please sign in to continue."
)

// Sessions is the part of the session store the gate needs.
type Sessions interface {
	Token(ctx context.Context) string
	Clear(ctx context.Context)
	Flash(ctx context.Context, message, flashType string)
}

// UserLookup resolves the user behind the token of a request. The role
// cache satisfies it.
type UserLookup interface {
	User(ctx context.Context, token string, fetch func(context.Context) (*cms.User, error)) (*cms.User, error)
	Forget(ctx context.Context, token string)
}

// GateConfig configures RequireAdmin.
type GateConfig struct {
	Sessions    Sessions
	Users       UserLookup
	Me          func(ctx context.Context) (*cms.User, error)
	AdminRoleID int64
	LoginPath   string
}

// RequireAdmin lets a request through only when its session carries a CMS
// token whose user has the admin role. The user is stored in the request
// context. Everything else is redirected to the login page with a flash.
func RequireAdmin(cfg GateConfig) func(http.Handler) http.Handler {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := cfg.Sessions.Token(ctx)
			if token == "" {
				cfg.Sessions.Flash(ctx, FlashSignIn, "info")
				http.Redirect(w, r, cfg.LoginPath, http.StatusSeeOther)
				return
			}

			user, err := cfg.Users.User(ctx, token, cfg.Me)
			if err != nil {
				if cms.IsAuthExpired(err) {
					cfg.Sessions.Flash(ctx, FlashSessionExpired, "error")
					http.Redirect(w, r, cfg.LoginPath, http.StatusSeeOther)
					return
				}
				slog.Error("checking dashboard access failed",
					"error", err,
					"path", r.URL.Path,
					"category", model.EventCategoryAuth,
				)
				http.Error(w, "The CMS is unavailable. Please try again shortly.", http.StatusBadGateway)
				return
			}

			if !user.HasRole(cfg.AdminRoleID) {
				slog.Warn("access denied",
					"status", http.StatusForbidden,
					"path", r.URL.Path,
					"username", user.Username,
					"user_id", user.ID,
					"required_role", cfg.AdminRoleID,
					"remote_addr", r.RemoteAddr,
					"category", model.EventCategoryAuth,
				)
				cfg.Users.Forget(ctx, token)
				cfg.Sessions.Clear(ctx)
				cfg.Sessions.Flash(ctx, FlashNoAccess, "error")
				http.Redirect(w, r, cfg.LoginPath, http.StatusSeeOther)
				return
			}

			ctx = context.WithValue(ctx, ContextKeyUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser retrieves the current user from the request context.
// Returns nil if no user is in context.
func GetUser(r *http.Request) *cms.User {
	user, _ := r.Context().Value(ContextKeyUser).(*cms.User)
	return user
}

// GetUsername returns the current user's name, or "" when not signed in.
func GetUsername(r *http.Request) string {
	if user := GetUser(r); user != nil {
		return user.Username
	}
	return ""
}

// RequestPath creates middleware that stores the request path in the context.
func RequestPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), ContextKeyRequestPath, r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestPath retrieves the request path from the context.
func GetRequestPath(ctx context.Context) string {
	path, _ := ctx.Value(ContextKeyRequestPath).(string)
	return path
}
