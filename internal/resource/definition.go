// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package resource implements the bilingual CRUD manager shared by every
// collection screen. A Manager loads one collection for one locale, filters
// it, drives its form and runs the ordered save and delete flows against
// the CMS.
package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ajwan-web/ajwan-admin/internal/cms"
	"github.com/ajwan-web/ajwan-admin/internal/form"
)

// Errors returned by Manager operations.
var (
	ErrBusy           = errors.New("resource: another save or delete is in progress")
	ErrCancelled      = errors.New("resource: cancelled")
	ErrNotFound       = errors.New("resource: entry not found")
	ErrNoForm         = errors.New("resource: no open form")
	ErrCreateDisabled = errors.New("resource: creating entries is disabled")
)

// UploadError wraps a failed media upload. It aborts the owning save.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("resource: upload failed: %v", e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// API is the part of the CMS client a Manager uses.
type API interface {
	Token(ctx context.Context) string
	List(ctx context.Context, collection, locale string) ([]json.RawMessage, error)
	Create(ctx context.Context, collection, locale string, p cms.Payload) (json.RawMessage, error)
	Update(ctx context.Context, collection, key, locale string, p cms.Payload) (json.RawMessage, error)
	Localize(ctx context.Context, collection, documentID, locale string, p cms.Payload) (json.RawMessage, error)
	Delete(ctx context.Context, collection, key string) error
	Upload(ctx context.Context, files []cms.UploadFile) ([]cms.MediaRecord, error)
	DeleteMedia(ctx context.Context, id int64) error
}

// Notifier receives user-facing notifications.
type Notifier interface {
	Success(title, message string) string
	Warning(title, message string) string
	Error(title, message string) string
}

// Activity describes a successful mutation.
type Activity struct {
	Action     string
	Collection string
	DocumentID string
	Locale     string
	Label      string
}

// Activity actions.
const (
	ActionCreate   = "create"
	ActionLocalize = "localize"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
)

// ActivityRecorder stores successful mutations.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, a Activity) error
}

// Confirmer asks the editor a yes/no question before a destructive call.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool {
	return f(ctx, prompt)
}

// Confirmed is a Confirmer with a fixed answer, used when the answer was
// already collected, for example from a confirmation page.
type Confirmed bool

// Confirm returns the fixed answer.
func (c Confirmed) Confirm(context.Context, string) bool {
	return bool(c)
}

// Definition describes one collection.
type Definition[E Entity] struct {
	// Name is the plural display name, Singular the singular one.
	Name     string
	Singular string
	// Collection is the REST path segment, for example "service-items".
	Collection string
	Schema     form.Schema
	Decode     func(Item) (E, error)
	// RawBody sends create and update bodies without the data envelope.
	RawBody bool
	// KeyByID addresses entries by numeric id instead of documentId.
	KeyByID bool
	// NoCreate hides and refuses the create flow.
	NoCreate bool
	// LinkEligible reports whether a primary entry may receive a new
	// translation. linked holds the documentIds that already have one.
	// When nil, entries without a translation are eligible.
	LinkEligible func(primary E, linked map[string]bool) bool
	// BeforeSave may adjust the payload, for example to derive a slug.
	BeforeSave func(d form.Draft, payload map[string]any)
}

func (d Definition[E]) eligible(e E, linked map[string]bool) bool {
	if d.LinkEligible != nil {
		return d.LinkEligible(e, linked)
	}
	return !linked[e.EntityMeta().DocumentID]
}
