// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package admin

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/ajwan-web/ajwan-admin/internal/form"
	"github.com/ajwan-web/ajwan-admin/internal/resource"
)

// Row is the list view of one entry.
type Row struct {
	Key          string
	Label        string
	Summary      string
	Locale       string
	Status       resource.Status
	UpdatedAt    *time.Time
	Thumb        string
	ThumbIsVideo bool
}

// Resource is a collection manager seen without its entry type, so one
// set of handlers serves every collection.
type Resource interface {
	Name() string
	Singular() string
	Collection() string
	Schema() form.Schema
	Creatable() bool

	State() resource.State
	Locale() string
	LoadErr() error
	Load(ctx context.Context, locale string) error
	Rows(term string) []Row
	Row(key string) (Row, bool)
	Count(ctx context.Context, locale string) (int, error)
	Choices(ctx context.Context, locale string) ([]resource.Choice, error)

	Form() *form.Controller
	StartCreate(ctx context.Context, locale string) error
	StartEdit(key string) error
	LinkOptions() []resource.Choice
	Save(ctx context.Context) error
	CloseForm()
	Delete(ctx context.Context, key string, confirm resource.Confirmer) error
}

// view adapts a typed manager to Resource.
type view[E resource.Entity] struct {
	m *resource.Manager[E]
}

func newView[E resource.Entity](m *resource.Manager[E]) *view[E] {
	return &view[E]{m: m}
}

func (v *view[E]) Name() string                   { return v.m.Definition().Name }
func (v *view[E]) Singular() string               { return v.m.Definition().Singular }
func (v *view[E]) Collection() string             { return v.m.Definition().Collection }
func (v *view[E]) Schema() form.Schema            { return v.m.Definition().Schema }
func (v *view[E]) Creatable() bool                { return !v.m.Definition().NoCreate }
func (v *view[E]) State() resource.State          { return v.m.State() }
func (v *view[E]) Locale() string                 { return v.m.Locale() }
func (v *view[E]) LoadErr() error                 { return v.m.LoadErr() }
func (v *view[E]) Form() *form.Controller         { return v.m.Form() }
func (v *view[E]) CloseForm()                     { v.m.CloseForm() }
func (v *view[E]) Save(ctx context.Context) error { return v.m.Save(ctx) }

func (v *view[E]) Load(ctx context.Context, locale string) error {
	return v.m.Load(ctx, locale)
}

func (v *view[E]) Rows(term string) []Row {
	items := v.m.Filter(term)
	rows := make([]Row, 0, len(items))
	for _, e := range items {
		rows = append(rows, v.row(e))
	}
	return rows
}

func (v *view[E]) Row(key string) (Row, bool) {
	e, ok := v.m.Find(key)
	if !ok {
		return Row{}, false
	}
	return v.row(e), true
}

func (v *view[E]) row(e E) Row {
	meta := e.EntityMeta()
	r := Row{
		Key:       v.m.Key(e),
		Label:     e.Label(),
		Locale:    meta.Locale,
		Status:    meta.Status,
		UpdatedAt: meta.UpdatedAt,
	}
	if text := e.SearchText(); len(text) > 1 {
		r.Summary = excerpt(text[1], 120)
	}
	if m := e.EntityMedia(); len(m) > 0 {
		r.Thumb = m[0].URL
		r.ThumbIsVideo = IsVideo(m[0].Name)
	}
	return r
}

func (v *view[E]) Count(ctx context.Context, locale string) (int, error) {
	choices, err := v.m.Choices(ctx, locale)
	if err != nil {
		return 0, err
	}
	return len(choices), nil
}

func (v *view[E]) Choices(ctx context.Context, locale string) ([]resource.Choice, error) {
	return v.m.Choices(ctx, locale)
}

func (v *view[E]) StartCreate(ctx context.Context, locale string) error {
	return v.m.StartCreate(ctx, locale)
}

func (v *view[E]) StartEdit(key string) error {
	e, ok := v.m.Find(key)
	if !ok {
		return resource.ErrNotFound
	}
	v.m.StartEdit(e)
	return nil
}

func (v *view[E]) LinkOptions() []resource.Choice {
	items := v.m.LinkOptions()
	out := make([]resource.Choice, 0, len(items))
	for _, e := range items {
		meta := e.EntityMeta()
		out = append(out, resource.Choice{ID: meta.ID, DocumentID: meta.DocumentID, Label: e.Label()})
	}
	return out
}

func (v *view[E]) Delete(ctx context.Context, key string, confirm resource.Confirmer) error {
	return v.m.Delete(ctx, key, confirm)
}

// excerpt shortens s to at most n runes on a word boundary.
func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := r[:n]
	for i := n - 1; i > n/2; i-- {
		if cut[i] == ' ' {
			cut = cut[:i]
			break
		}
	}
	return string(cut) + "…"
}

var videoExts = map[string]bool{
	".mp4": true, ".m4v": true, ".mov": true, ".webm": true, ".ogv": true, ".avi": true, ".mkv": true,
}

// IsVideo reports whether a media file name has a video extension.
func IsVideo(name string) bool {
	return videoExts[strings.ToLower(path.Ext(name))]
}
