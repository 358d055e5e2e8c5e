// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mileusna/useragent"

	"github.com/ajwan-web/ajwan-admin/internal/admin"
	"github.com/ajwan-web/ajwan-admin/internal/cms"
	"github.com/ajwan-web/ajwan-admin/internal/middleware"
	"github.com/ajwan-web/ajwan-admin/internal/model"
	"github.com/ajwan-web/ajwan-admin/internal/render"
	"github.com/ajwan-web/ajwan-admin/internal/resource"
	"github.com/ajwan-web/ajwan-admin/internal/session"
)

// Authenticator signs editors in against the CMS. *cms.Client satisfies it.
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (string, error)
	Me(ctx context.Context) (*cms.User, error)
}

// AuthHandler handles authentication routes.
type AuthHandler struct {
	auth            Authenticator
	renderer        *render.Renderer
	sessions        *session.Store
	users           middleware.UserLookup
	registry        *admin.Registry
	loginProtection *middleware.LoginProtection
	adminRoleID     int64
}

// AuthConfig holds the collaborators of AuthHandler.
type AuthConfig struct {
	Auth            Authenticator
	Renderer        *render.Renderer
	Sessions        *session.Store
	Users           middleware.UserLookup
	Registry        *admin.Registry
	LoginProtection *middleware.LoginProtection
	AdminRoleID     int64
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(cfg AuthConfig) *AuthHandler {
	return &AuthHandler{
		auth:            cfg.Auth,
		renderer:        cfg.Renderer,
		sessions:        cfg.Sessions,
		users:           cfg.Users,
		registry:        cfg.Registry,
		loginProtection: cfg.LoginProtection,
		adminRoleID:     cfg.AdminRoleID,
	}
}

// LoginForm renders the login page. Browsers that already hold a token go
// to the dashboard, where the role gate decides.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if h.sessions.Token(r.Context()) != "" {
		http.Redirect(w, r, redirectAdmin, http.StatusSeeOther)
		return
	}

	renderPage(w, r, h.renderer, http.StatusOK, "auth/login", render.TemplateData{
		Title: "Sign in",
	})
}

// Login handles the login form submission.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		flashError(w, r, h.renderer, redirectLogin, "Invalid form data.")
		return
	}

	identifier := strings.TrimSpace(r.FormValue("identifier"))
	password := r.FormValue("password")
	if identifier == "" || password == "" {
		flashError(w, r, h.renderer, redirectLogin, "Email or username and password are required.")
		return
	}

	ctx := r.Context()
	clientIP := middleware.ClientIP(r)

	if h.loginProtection != nil {
		if locked, remaining := h.loginProtection.IsLocked(identifier); locked {
			slog.Warn("login attempt on locked account",
				"identifier", identifier,
				"ip", clientIP,
				"category", model.EventCategoryAuth,
			)
			flashError(w, r, h.renderer, redirectLogin,
				fmt.Sprintf("Too many failed attempts. Try again in %s.", formatDuration(remaining)))
			return
		}
	}

	token, err := h.auth.Login(ctx, identifier, password)
	if err != nil {
		if errors.Is(err, cms.ErrInvalidCredentials) {
			slog.Warn("login failed",
				"identifier", identifier,
				"ip", clientIP,
				"category", model.EventCategoryAuth,
			)
			flashError(w, r, h.renderer, redirectLogin, h.failedAttemptMessage(identifier))
			return
		}
		slog.Error("login request failed", "error", err, "category", model.EventCategoryAuth)
		flashError(w, r, h.renderer, redirectLogin, resource.UserMessage(err))
		return
	}

	previous := h.sessions.Username(ctx)
	if err := h.sessions.SetToken(ctx, token); err != nil {
		logAndInternalError(w, "failed to renew session", "error", err)
		return
	}

	user, err := h.users.User(ctx, token, h.auth.Me)
	if err != nil {
		slog.Error("loading signed in user failed", "error", err, "category", model.EventCategoryAuth)
		h.sessions.Clear(ctx)
		flashError(w, r, h.renderer, redirectLogin, resource.UserMessage(err))
		return
	}

	if !user.HasRole(h.adminRoleID) {
		slog.Warn("login without dashboard role",
			"username", user.Username,
			"user_id", user.ID,
			"ip", clientIP,
			"category", model.EventCategoryAuth,
		)
		h.users.Forget(ctx, token)
		h.sessions.Clear(ctx)
		flashError(w, r, h.renderer, redirectLogin, middleware.FlashNoAccess)
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccessfulLogin(identifier)
	}
	// Drafts kept across an expired token belong to the previous user.
	if previous != "" && previous != user.Username {
		if key := h.sessions.PeekWorkspaceKey(ctx); key != "" {
			h.registry.Drop(key)
		}
	}
	h.sessions.SetUsername(ctx, user.Username)

	ua := useragent.Parse(r.UserAgent())
	slog.Info("user logged in",
		"username", user.Username,
		"user_id", user.ID,
		"ip", clientIP,
		"browser", ua.Name,
		"os", ua.OS,
		"device", deviceType(ua),
		"category", model.EventCategoryAuth,
	)

	flashSuccess(w, r, h.renderer, redirectAdmin, "Welcome back, "+user.Username+".")
}

// failedAttemptMessage records a failed attempt and returns the text shown
// to the editor.
func (h *AuthHandler) failedAttemptMessage(identifier string) string {
	const invalid = "Invalid email, username or password."
	if h.loginProtection == nil {
		return invalid
	}

	if locked, lockDuration := h.loginProtection.RecordFailedAttempt(identifier); locked {
		slog.Warn("account locked due to failed attempts",
			"identifier", identifier,
			"duration", lockDuration.String(),
			"category", model.EventCategoryAuth,
		)
		return fmt.Sprintf("Too many failed attempts. Try again in %s.", formatDuration(lockDuration))
	}

	if remaining := h.loginProtection.RemainingAttempts(identifier); remaining > 0 && remaining <= 3 {
		return fmt.Sprintf("%s %d attempts remaining.", invalid, remaining)
	}
	return invalid
}

// Logout drops the workspace, forgets the cached role check and ends the
// session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	username := h.sessions.Username(ctx)
	if token := h.sessions.Token(ctx); token != "" {
		h.users.Forget(ctx, token)
	}
	if key := h.sessions.PeekWorkspaceKey(ctx); key != "" {
		h.registry.Drop(key)
	}

	if err := h.sessions.Destroy(ctx); err != nil {
		slog.Error("failed to destroy session", "error", err)
	}

	slog.Info("user logged out", "username", username, "category", model.EventCategoryAuth)
	flashAndRedirect(w, r, h.renderer, redirectLogin, "You have been signed out.", flashTypeInfo)
}

func deviceType(ua useragent.UserAgent) string {
	switch {
	case ua.Mobile:
		return "mobile"
	case ua.Tablet:
		return "tablet"
	case ua.Bot:
		return "bot"
	default:
		return "desktop"
	}
}

// formatDuration formats a duration for display in lockout messages.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", mins)
	}
	hours := int(d.Hours())
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
