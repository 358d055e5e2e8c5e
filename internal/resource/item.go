// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ajwan-web/ajwan-admin/internal/media"
)

// Item is a raw CMS entry decoded for field access. Entries wrapped in an
// "attributes" object are read through it transparently.
type Item struct {
	top    map[string]any
	fields map[string]any
	media  *media.Normalizer
}

// NewItem decodes one raw entry.
func NewItem(raw json.RawMessage, n *media.Normalizer) (Item, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var top map[string]any
	if err := dec.Decode(&top); err != nil {
		return Item{}, fmt.Errorf("decoding entry: %w", err)
	}
	if top == nil {
		return Item{}, fmt.Errorf("decoding entry: not an object")
	}
	return itemOf(top, n), nil
}

func itemOf(top map[string]any, n *media.Normalizer) Item {
	fields := top
	if attrs, ok := top["attributes"].(map[string]any); ok {
		fields = attrs
	}
	if n == nil {
		n = media.NewNormalizer("")
	}
	return Item{top: top, fields: fields, media: n}
}

func (it Item) get(key string) any {
	if v, ok := it.fields[key]; ok {
		return v
	}
	return it.top[key]
}

// Meta extracts id, documentId, locale, timestamps and publication state.
func (it Item) Meta() Meta {
	id, _ := media.ToInt64(it.top["id"])
	m := Meta{
		ID:          id,
		DocumentID:  it.String("documentId"),
		Locale:      it.String("locale"),
		PublishedAt: it.Time("publishedAt"),
		CreatedAt:   it.Time("createdAt"),
		UpdatedAt:   it.Time("updatedAt"),
		Status:      StatusDraft,
	}
	if m.PublishedAt != nil {
		m.Status = StatusPublished
	}
	return m
}

// String returns a text field, or "" when missing.
func (it Item) String(key string) string {
	switch v := it.get(key).(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Bool returns a boolean field.
func (it Item) Bool(key string) bool {
	switch v := it.get(key).(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// Int returns an integer field.
func (it Item) Int(key string) int64 {
	n, _ := media.ToInt64(it.get(key))
	return n
}

// Decimal returns a numeric field as a decimal. ok is false when the field
// is missing or not numeric.
func (it Item) Decimal(key string) (decimal.Decimal, bool) {
	var s string
	switch v := it.get(key).(type) {
	case json.Number:
		s = v.String()
	case string:
		s = v
	case float64:
		return decimal.NewFromFloat(v), true
	default:
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// Time returns a timestamp or date field, or nil when missing.
func (it Item) Time(key string) *time.Time {
	s, ok := it.get(key).(string)
	if !ok || s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// Media returns the normalized media references of a field.
func (it Item) Media(key string) []media.Reference {
	return it.media.Normalize(it.get(key))
}

// MediaOne returns the first media reference of a field.
func (it Item) MediaOne(key string) *media.Reference {
	return it.media.NormalizeOne(it.get(key))
}

// Relations returns the populated relation entries of a field. Wrapped,
// raw, single and list shapes are accepted.
func (it Item) Relations(key string) []Relation {
	var out []Relation
	for _, obj := range objectsOf(it.get(key)) {
		rel := itemOf(obj, it.media)
		id, ok := media.ToInt64(obj["id"])
		if !ok {
			continue
		}
		out = append(out, Relation{
			ID:         id,
			DocumentID: rel.String("documentId"),
			Label:      rel.firstString("title", "name", "username"),
		})
	}
	if out == nil {
		return []Relation{}
	}
	return out
}

func (it Item) firstString(keys ...string) string {
	for _, k := range keys {
		if s := it.String(k); s != "" {
			return s
		}
	}
	return ""
}

func objectsOf(v any) []map[string]any {
	switch t := v.(type) {
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, el := range t {
			if m, ok := el.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		if data, ok := t["data"]; ok {
			return objectsOf(data)
		}
		return []map[string]any{t}
	default:
		return nil
	}
}
