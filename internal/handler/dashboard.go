// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/ajwan-web/ajwan-admin/internal/admin"
	"github.com/ajwan-web/ajwan-admin/internal/model"
	"github.com/ajwan-web/ajwan-admin/internal/resource"
	"github.com/ajwan-web/ajwan-admin/internal/scheduler"
	"github.com/ajwan-web/ajwan-admin/internal/store"
)

// JobLister lists the scheduled jobs. *scheduler.Scheduler satisfies it.
type JobLister interface {
	List() []scheduler.JobInfo
}

// DashboardHandler handles the dashboard and the activity log.
type DashboardHandler struct {
	Base
	queries *store.Queries
	jobs    JobLister
}

// NewDashboardHandler creates a new DashboardHandler. jobs may be nil.
func NewDashboardHandler(base Base, queries *store.Queries, jobs JobLister) *DashboardHandler {
	return &DashboardHandler{Base: base, queries: queries, jobs: jobs}
}

// countView is one tile of the dashboard.
type countView struct {
	admin.Count
	Path  string
	Error string
}

// DashboardData holds data for the dashboard template.
type DashboardData struct {
	Locale       string
	Locales      []localeOption
	Counts       []countView
	RecentEvents []store.Event
	Jobs         []scheduler.JobInfo
}

// Dashboard handles GET /admin.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	code := h.localeOf(r, "")

	data := DashboardData{
		Locale:  code,
		Locales: h.localeOptions(code),
	}

	for _, c := range ws.Counts(r.Context(), code) {
		if redirectIfExpired(w, r, h.Renderer, c.Err) {
			return
		}
		view := countView{Count: c, Path: collectionPath(c.Collection)}
		if c.Err != nil {
			slog.Warn("counting entries failed", "collection", c.Collection, "error", c.Err)
			view.Error = resource.UserMessage(c.Err)
		}
		data.Counts = append(data.Counts, view)
	}

	events, err := h.queries.ListRecentEvents(r.Context(), recentEventsLimit)
	if err != nil {
		slog.Error("failed to list recent events", "error", err)
	}
	data.RecentEvents = normalizeLevels(events)

	if h.jobs != nil {
		data.Jobs = h.jobs.List()
	}

	td := h.page(r, ws, "Dashboard", data)
	td.Lang = code
	renderPage(w, r, h.Renderer, http.StatusOK, "admin/dashboard", td)
}

// ActivityData holds data for the activity log template.
type ActivityData struct {
	Events     []store.Event
	Category   string
	Level      string
	Categories []string
	Levels     []string
}

// Activity handles GET /admin/activity?category=&level=.
func (h *DashboardHandler) Activity(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	category := r.URL.Query().Get("category")
	level := r.URL.Query().Get("level")

	categories := []string{
		model.EventCategoryAuth,
		model.EventCategoryContent,
		model.EventCategoryMedia,
		model.EventCategorySession,
		model.EventCategoryCache,
		model.EventCategoryConfig,
		model.EventCategorySystem,
	}
	if !slices.Contains(categories, category) {
		category = ""
	}

	var (
		events []store.Event
		err    error
	)
	if category != "" {
		events, err = h.queries.ListRecentEventsByCategory(r.Context(), category, activityPageLimit)
	} else {
		events, err = h.queries.ListRecentEvents(r.Context(), activityPageLimit)
	}
	if err != nil {
		logAndInternalError(w, "failed to list events", "error", err)
		return
	}

	events = normalizeLevels(events)
	if level != "" {
		level = model.EventLevel(level)
		events = slices.DeleteFunc(events, func(e store.Event) bool { return e.Level != level })
	}

	renderPage(w, r, h.Renderer, http.StatusOK, "admin/activity", h.page(r, ws, "Activity", ActivityData{
		Events:     events,
		Category:   category,
		Level:      level,
		Categories: categories,
		Levels:     []string{model.EventLevelInfo, model.EventLevelWarning, model.EventLevelError},
	}))
}

func normalizeLevels(events []store.Event) []store.Event {
	for i := range events {
		events[i].Level = model.EventLevel(events[i].Level)
	}
	return events
}

// NotificationsHandler dismisses notifications.
type NotificationsHandler struct {
	Base
}

// NewNotificationsHandler creates a new NotificationsHandler.
func NewNotificationsHandler(base Base) *NotificationsHandler {
	return &NotificationsHandler{Base: base}
}

// Dismiss handles POST /admin/notifications/{id}/dismiss. Unknown ids are
// ignored. The browser returns to the page it came from.
func (h *NotificationsHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	ws.Notes().Dismiss(chiParam(r, "id"))

	back := r.FormValue("back")
	if !isLocalPath(back) {
		back = redirectAdmin
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}
