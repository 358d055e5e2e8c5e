// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ajwan-web/ajwan-admin/internal/middleware"
)

// Handlers bundles the dashboard handlers for route registration.
type Handlers struct {
	Auth          *AuthHandler
	Dashboard     *DashboardHandler
	Collections   *CollectionHandler
	Notifications *NotificationsHandler
	Health        *HealthHandler
}

// RegisterRoutes mounts every route on r. gate guards /admin and
// loginGuard guards the login form; either may be nil.
func (h Handlers) RegisterRoutes(r chi.Router, gate, loginGuard func(http.Handler) http.Handler) {
	r.Get(RouteHealth, h.Health.Health)
	r.Get(RouteRoot, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, redirectAdmin, http.StatusSeeOther)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.NoStore)
		if loginGuard != nil {
			r.Use(loginGuard)
		}
		r.Get(RouteLogin, h.Auth.LoginForm)
		r.Post(RouteLogin, h.Auth.Login)
		r.Post(RouteLogout, h.Auth.Logout)
	})

	r.Route(RouteAdmin, func(r chi.Router) {
		r.Use(middleware.NoStore)
		if gate != nil {
			r.Use(gate)
		}

		r.Get(RouteRoot, h.Dashboard.Dashboard)
		r.Get(RouteActivity, h.Dashboard.Activity)
		r.Post(RouteNotificationDismiss, h.Notifications.Dismiss)

		r.Route(RouteCollection, func(r chi.Router) {
			c := h.Collections
			r.Get(RouteRoot, c.List)
			r.Get(RouteSuffixNew, c.New)
			r.Get(RouteSuffixForm, c.ShowForm)
			r.Post(RouteSuffixForm, c.SubmitForm)
			r.Get(RouteSuffixStaged, c.StagedPreview)
			r.Get(RouteParamKey, c.Edit)
			r.Get(RouteParamKey+RouteSuffixDelete, c.ConfirmDelete)
			r.Post(RouteParamKey+RouteSuffixDelete, c.Delete)
		})
	})
}
