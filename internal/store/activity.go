// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ajwan-web/ajwan-admin/internal/model"
	"github.com/ajwan-web/ajwan-admin/internal/resource"
)

var actionVerbs = map[string]string{
	resource.ActionCreate:   "Created",
	resource.ActionLocalize: "Added translation to",
	resource.ActionUpdate:   "Updated",
	resource.ActionDelete:   "Deleted",
}

// ActivityLog records successful content mutations as info events.
type ActivityLog struct {
	queries *Queries
	actor   func(context.Context) string
	now     func() time.Time
}

// NewActivityLog returns an ActivityLog writing to db. actor, when set,
// names the editor behind the request context.
func NewActivityLog(db DBTX, actor func(context.Context) string) *ActivityLog {
	return &ActivityLog{queries: New(db), actor: actor, now: time.Now}
}

// RecordActivity stores a.
func (l *ActivityLog) RecordActivity(ctx context.Context, a resource.Activity) error {
	verb, ok := actionVerbs[a.Action]
	if !ok {
		verb = a.Action
	}

	metadata, err := json.Marshal(map[string]string{
		"action":      a.Action,
		"collection":  a.Collection,
		"document_id": a.DocumentID,
		"locale":      a.Locale,
	})
	if err != nil {
		return fmt.Errorf("encoding activity metadata: %w", err)
	}

	var username string
	if l.actor != nil {
		username = l.actor(ctx)
	}

	_, err = l.queries.CreateEvent(ctx, CreateEventParams{
		Level:     model.EventLevelInfo,
		Category:  model.EventCategoryContent,
		Message:   fmt.Sprintf("%s %s %q", verb, a.Collection, a.Label),
		Username:  username,
		Metadata:  string(metadata),
		CreatedAt: l.now(),
	})
	if err != nil {
		return fmt.Errorf("recording activity: %w", err)
	}
	return nil
}
