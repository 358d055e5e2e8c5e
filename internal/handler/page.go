// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"strings"

	"github.com/ajwan-web/ajwan-admin/internal/admin"
	"github.com/ajwan-web/ajwan-admin/internal/locale"
	"github.com/ajwan-web/ajwan-admin/internal/middleware"
	"github.com/ajwan-web/ajwan-admin/internal/render"
	"github.com/ajwan-web/ajwan-admin/internal/session"
)

// Base holds what every dashboard page needs: the renderer, the session
// store and the workspace registry.
type Base struct {
	Renderer *render.Renderer
	Sessions *session.Store
	Registry *admin.Registry
	Locales  locale.Locales
}

// workspace returns the workspace of the requesting browser.
func (b Base) workspace(r *http.Request) *admin.Workspace {
	return b.Registry.Get(b.Sessions.WorkspaceKey(r.Context()))
}

// localeOf resolves the locale query parameter, falling back to fallback
// and then to the primary locale.
func (b Base) localeOf(r *http.Request, fallback string) string {
	if code := strings.TrimSpace(r.URL.Query().Get("locale")); code != "" {
		return b.Locales.Resolve(code)
	}
	if fallback != "" {
		return b.Locales.Resolve(fallback)
	}
	return b.Locales.Primary()
}

// page builds the template data shared by every dashboard page.
func (b Base) page(r *http.Request, ws *admin.Workspace, title string, data any) render.TemplateData {
	td := render.TemplateData{
		Title:         title,
		Data:          data,
		Username:      middleware.GetUsername(r),
		CurrentPath:   r.URL.RequestURI(),
		Notifications: ws.Notes().List(),
	}
	if td.Username == "" {
		td.Username = b.Sessions.Username(r.Context())
	}

	td.Nav = append(td.Nav, render.NavItem{
		Label:  "Dashboard",
		Path:   RouteAdmin,
		Active: r.URL.Path == RouteAdmin,
	})
	for _, res := range ws.Resources() {
		path := collectionPath(res.Collection())
		td.Nav = append(td.Nav, render.NavItem{
			Label:  res.Name(),
			Path:   path,
			Active: r.URL.Path == path || strings.HasPrefix(r.URL.Path, path+"/"),
		})
	}
	td.Nav = append(td.Nav, render.NavItem{
		Label:  "Activity",
		Path:   RouteAdmin + RouteActivity,
		Active: r.URL.Path == RouteAdmin+RouteActivity,
	})
	return td
}

// localeOption is a language switch link.
type localeOption struct {
	Code   string
	Label  string
	Active bool
}

func (b Base) localeOptions(active string) []localeOption {
	all := b.Locales.All()
	out := make([]localeOption, 0, len(all))
	for _, code := range all {
		out = append(out, localeOption{Code: code, Label: b.Locales.Label(code), Active: code == active})
	}
	return out
}
