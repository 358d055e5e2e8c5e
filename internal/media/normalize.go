// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package media turns the media fields returned by the CMS into a uniform
// list of references. The CMS returns the same relation in several shapes
// depending on the endpoint and version:
//
//	null
//	{"data": [ {...}, ... ]}      wrapped collection
//	[ {...}, ... ]                raw array
//	{"data": {...}}               wrapped single item
//	{...}                         raw single item
//
// Items may additionally carry their fields inside an "attributes" object.
// The shape is resolved once here so the rest of the code only ever sees
// Reference values.
package media

import (
	"bytes"
	"encoding/json"
	"path"
	"strconv"
	"strings"
)

// Reference is a normalized media item.
type Reference struct {
	ID   int64  `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// shape identifies which raw layout a media field arrived in.
type shape int

const (
	shapeNone shape = iota
	shapeWrappedList
	shapeList
	shapeWrappedOne
	shapeOne
	shapeReferences
)

// raw is the tagged union produced by classify.
type raw struct {
	kind  shape
	items []map[string]any
	refs  []Reference
}

// Normalizer converts raw CMS media fields using a fixed CMS origin for
// relative URLs.
type Normalizer struct {
	origin string
}

// NewNormalizer creates a Normalizer. The origin is the CMS base URL, for
// example "https://cms.example.com"; a trailing slash is ignored.
func NewNormalizer(origin string) *Normalizer {
	return &Normalizer{origin: strings.TrimRight(origin, "/")}
}

// Origin returns the configured CMS origin.
func (n *Normalizer) Origin() string {
	return n.origin
}

// Normalize returns every usable media reference in the raw field. Items
// without a URL are dropped. The result is never nil.
func (n *Normalizer) Normalize(v any) []Reference {
	r := classify(v)

	switch r.kind {
	case shapeNone:
		return []Reference{}
	case shapeReferences:
		out := make([]Reference, 0, len(r.refs))
		for _, ref := range r.refs {
			if ref.URL == "" {
				continue
			}
			ref.URL = n.AbsoluteURL(ref.URL)
			out = append(out, ref)
		}
		return out
	}

	out := make([]Reference, 0, len(r.items))
	for _, item := range r.items {
		if ref, ok := n.fromItem(item); ok {
			out = append(out, ref)
		}
	}
	return out
}

// NormalizeOne returns the first usable reference, or nil when the field is
// empty or holds no usable item.
func (n *Normalizer) NormalizeOne(v any) *Reference {
	refs := n.Normalize(v)
	if len(refs) == 0 {
		return nil
	}
	ref := refs[0]
	return &ref
}

// AbsoluteURL prefixes relative URLs with the CMS origin.
func (n *Normalizer) AbsoluteURL(u string) string {
	if u == "" || IsAbsolute(u) || n.origin == "" {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return n.origin + u
}

// IsAbsolute reports whether u starts with an http or https scheme.
func IsAbsolute(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// IDs returns the ids of the given references in order.
func IDs(refs []Reference) []int64 {
	ids := make([]int64, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	return ids
}

func (n *Normalizer) fromItem(item map[string]any) (Reference, bool) {
	fields := item
	if attrs, ok := item["attributes"].(map[string]any); ok {
		fields = attrs
	}

	u, _ := fields["url"].(string)
	u = strings.TrimSpace(u)
	if u == "" {
		return Reference{}, false
	}

	id, ok := ToInt64(item["id"])
	if !ok {
		id, _ = ToInt64(fields["id"])
	}

	name, _ := fields["name"].(string)
	if name == "" {
		name, _ = fields["alternativeText"].(string)
	}
	if name == "" {
		name = path.Base(u)
	}

	return Reference{ID: id, URL: n.AbsoluteURL(u), Name: name}, true
}

// classify resolves a raw media field into one of the known shapes.
func classify(v any) raw {
	switch t := v.(type) {
	case nil:
		return raw{kind: shapeNone}
	case json.RawMessage:
		return classifyJSON(t)
	case []byte:
		return classifyJSON(t)
	case Reference:
		return raw{kind: shapeReferences, refs: []Reference{t}}
	case *Reference:
		if t == nil {
			return raw{kind: shapeNone}
		}
		return raw{kind: shapeReferences, refs: []Reference{*t}}
	case []Reference:
		return raw{kind: shapeReferences, refs: t}
	case []map[string]any:
		return raw{kind: shapeList, items: t}
	case []any:
		return raw{kind: shapeList, items: objects(t)}
	case map[string]any:
		if data, ok := t["data"]; ok {
			switch d := data.(type) {
			case []any:
				return raw{kind: shapeWrappedList, items: objects(d)}
			case map[string]any:
				return raw{kind: shapeWrappedOne, items: []map[string]any{d}}
			default:
				return raw{kind: shapeNone}
			}
		}
		return raw{kind: shapeOne, items: []map[string]any{t}}
	default:
		return raw{kind: shapeNone}
	}
}

func classifyJSON(b []byte) raw {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return raw{kind: shapeNone}
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return raw{kind: shapeNone}
	}
	return classify(v)
}

func objects(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, el := range list {
		if m, ok := el.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// ToInt64 converts the numeric representations found in decoded JSON.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return i, true
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}
