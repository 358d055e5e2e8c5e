// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package form tracks the editable draft of a single entry: field values
// for both languages, field errors, staged uploads and the existing media
// the editor keeps or removes.
package form

import (
	"mime"
	"path/filepath"
	"strings"
)

// Kind selects how a field value is validated and encoded.
type Kind int

// Field kinds.
const (
	KindText Kind = iota
	KindRichText
	KindEmail
	KindDecimal
	KindInt
	KindBool
	KindDate
)

// DateLayout is the wire and input format of date fields.
const DateLayout = "2006-01-02"

// Field describes one attribute of a collection.
type Field struct {
	Name      string
	Label     string
	Kind      Kind
	Required  bool
	Localized bool
	// Min and Max bound KindInt values when Max > Min.
	Min int
	Max int
}

// Accept is the MIME class a media field takes.
type Accept int

// Accepted media classes.
const (
	AcceptImage Accept = iota
	AcceptImageVideo
)

// Allows reports whether a MIME type belongs to the class.
func (a Accept) Allows(mimeType string) bool {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return true
	case strings.HasPrefix(mimeType, "video/"):
		return a == AcceptImageVideo
	default:
		return false
	}
}

// String returns the HTML accept attribute value.
func (a Accept) String() string {
	if a == AcceptImageVideo {
		return "image/*,video/*"
	}
	return "image/*"
}

// MediaField describes the media attribute of a collection.
type MediaField struct {
	Name     string
	Label    string
	Accept   Accept
	Multiple bool
}

// RelationField describes a relation to another collection.
type RelationField struct {
	Name       string
	Label      string
	Collection string
	Multiple   bool
}

// Schema is the field set of a collection.
type Schema struct {
	Fields    []Field
	Media     *MediaField
	Relations []RelationField
	// Localized collections keep one row per locale and suffix their
	// localized draft keys with the language.
	Localized bool
	// Publishable collections carry a draft/published state.
	Publishable bool
}

// Field returns the field named name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Relation returns the relation named name.
func (s Schema) Relation(name string) (RelationField, bool) {
	for _, r := range s.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return RelationField{}, false
}

// Key returns the draft key of a field for a language suffix, for example
// "title_en". Fields that are not localized use their plain name.
func (s Schema) Key(f Field, suffix string) string {
	if !s.Localized || !f.Localized || suffix == "" {
		return f.Name
	}
	return f.Name + "_" + suffix
}

// detectMIME returns the content type of a file, falling back to the file
// extension when the browser sent none or a generic one.
func detectMIME(name, contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		if i := strings.IndexByte(byExt, ';'); i >= 0 {
			byExt = byExt[:i]
		}
		return byExt
	}
	return ct
}
