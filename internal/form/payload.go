// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package form

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"

	"github.com/ajwan-web/ajwan-admin/internal/locale"
)

var richTextPolicy = bluemonday.UGCPolicy()

// Payload builds the CMS attribute map of the open draft.
func (c *Controller) Payload() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return PayloadOf(c.schema, c.opts.Locales, c.draft)
}

// PayloadOf builds the CMS attribute map of d for its language. Draft keys
// lose their language suffix. Fields never set on the draft are left out
// so an update does not overwrite server values with empty ones; blank
// values of non-text kinds are left out for the same reason. publishedAt
// is only sent when the publication state changes.
func PayloadOf(schema Schema, locales locale.Locales, d Draft) map[string]any {
	out := map[string]any{}
	suffix := locales.Suffix(d.Language)

	for _, f := range schema.Fields {
		raw, ok := d.Values[schema.Key(f, suffix)]
		if !ok {
			continue
		}
		if value, keep := encodeValue(f, raw); keep {
			out[f.Name] = value
		}
	}

	for _, r := range schema.Relations {
		ids, ok := d.Relations[r.Name]
		if !ok {
			continue
		}
		switch {
		case r.Multiple:
			if ids == nil {
				ids = []int64{}
			}
			out[r.Name] = ids
		case len(ids) > 0:
			out[r.Name] = ids[0]
		default:
			out[r.Name] = nil
		}
	}

	if schema.Publishable && publishChanged(d) {
		if *d.Publish {
			out["publishedAt"] = time.Now().UTC().Format(time.RFC3339)
		} else {
			out["publishedAt"] = nil
		}
	}

	return out
}

// publishChanged reports whether d asks for a publication state other than
// the one the entry already has. Republishing would move publishedAt.
func publishChanged(d Draft) bool {
	if d.Publish == nil {
		return false
	}
	if d.Mode == ModeEdit && d.WasPublished != nil {
		return *d.Publish != *d.WasPublished
	}
	return true
}

func encodeValue(f Field, raw string) (any, bool) {
	value := strings.TrimSpace(raw)

	switch f.Kind {
	case KindText, KindEmail:
		return value, true
	case KindRichText:
		return richTextPolicy.Sanitize(value), true
	case KindDecimal:
		if value == "" {
			return nil, false
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, false
		}
		return json.Number(d.String()), true
	case KindInt:
		if value == "" {
			return nil, false
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, false
		}
		return n, true
	case KindBool:
		return ParseBool(value), true
	case KindDate:
		if value == "" {
			return nil, false
		}
		return value, true
	default:
		return value, true
	}
}

// ParseBool reads checkbox and select values.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}
