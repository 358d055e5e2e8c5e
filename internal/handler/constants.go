// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

// Route pattern constants for chi router registration.
const (
	// RouteRoot is the root path.
	RouteRoot = "/"
	// RouteLogin is the sign in page.
	RouteLogin = "/login"
	// RouteLogout signs the browser out.
	RouteLogout = "/logout"
	// RouteHealth is the health check.
	RouteHealth = "/health"
	// RouteAdmin is the dashboard.
	RouteAdmin = "/admin"

	// RouteCollection is the list of a collection.
	RouteCollection = "/{collection}"
	// RouteSuffixNew is the suffix for "new" routes.
	RouteSuffixNew = "/new"
	// RouteSuffixForm is the open form of a collection.
	RouteSuffixForm = "/form"
	// RouteSuffixStaged serves a preview of a staged file.
	RouteSuffixStaged = "/form/staged/{index}"
	// RouteParamKey is the entry key pattern.
	RouteParamKey = "/{key}"
	// RouteSuffixDelete is the suffix for delete routes.
	RouteSuffixDelete = "/delete"

	// RouteActivity lists activity events.
	RouteActivity = "/activity"
	// RouteNotificationDismiss dismisses one notification.
	RouteNotificationDismiss = "/notifications/{id}/dismiss"
)

// Redirect targets.
const (
	redirectLogin = RouteLogin
	redirectAdmin = RouteAdmin
)

// Flash message types.
const (
	flashTypeError   = "error"
	flashTypeSuccess = "success"
	flashTypeInfo    = "info"
)

// recentEventsLimit is the number of events on the dashboard.
const recentEventsLimit = 15

// activityPageLimit is the number of events on the activity page.
const activityPageLimit = 200

// collectionPath returns the list URL of a collection.
func collectionPath(collection string) string {
	return RouteAdmin + "/" + collection
}
