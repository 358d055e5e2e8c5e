// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model holds the values shared by the activity log writers and
// readers.
package model

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryAuth    = "auth"
	EventCategoryContent = "content"
	EventCategoryMedia   = "media"
	EventCategorySession = "session"
	EventCategoryConfig  = "config"
	EventCategoryCache   = "cache"
	EventCategorySystem  = "system"
)

// EventLevel maps a level name to itself when known, and to info otherwise.
func EventLevel(s string) string {
	switch s {
	case EventLevelWarning, EventLevelError:
		return s
	default:
		return EventLevelInfo
	}
}
