// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package form

import (
	"fmt"
	"maps"
	"sort"
	"strconv"
	"strings"
	"time"

	v "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/shopspring/decimal"

	"github.com/ajwan-web/ajwan-admin/internal/locale"
)

// ErrorMap maps draft keys to user-facing messages.
type ErrorMap map[string]string

// Keys returns the keys with errors in sorted order.
func (m ErrorMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidationError carries the field errors that blocked a save. It is
// produced before any network call.
type ValidationError struct {
	Fields ErrorMap
}

func (e *ValidationError) Error() string {
	keys := e.Fields.Keys()
	return fmt.Sprintf("form: %d invalid field(s): %s", len(keys), strings.Join(keys, ", "))
}

// Validate checks the draft for the active language. Only the fields of
// that language are required. A secondary-locale create additionally needs
// a link target. The result is empty when the draft can be saved.
func (c *Controller) Validate() ErrorMap {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errors = validateDraft(c.schema, c.opts.Locales, c.draft)
	return maps.Clone(c.errors)
}

func validateDraft(schema Schema, locales locale.Locales, d Draft) ErrorMap {
	errs := ErrorMap{}
	suffix := locales.Suffix(d.Language)

	for _, f := range schema.Fields {
		key := schema.Key(f, suffix)
		value := strings.TrimSpace(d.Values[key])
		if msg := validateField(f, value); msg != "" {
			errs[key] = msg
		}
	}

	if d.Mode == ModeCreate && schema.Localized &&
		locales.IsSecondary(d.Language) &&
		strings.TrimSpace(d.LinkDocumentID) == "" {
		errs[KeyLink] = "Select the " + locales.Label(locales.Primary()) + " entry this translation belongs to"
	}
	return errs
}

func validateField(f Field, value string) string {
	label := f.Label
	if label == "" {
		label = f.Name
	}

	if f.Required && f.Kind != KindBool {
		if err := v.Validate(value, v.Required); err != nil {
			return label + " is required"
		}
	}
	if value == "" {
		return ""
	}

	switch f.Kind {
	case KindEmail:
		if err := v.Validate(value, is.EmailFormat); err != nil {
			return label + " must be a valid email address"
		}
	case KindDecimal:
		d, err := decimal.NewFromString(value)
		if err != nil {
			return label + " must be a number"
		}
		if d.IsNegative() {
			return label + " must not be negative"
		}
	case KindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return label + " must be a whole number"
		}
		if f.Max > f.Min {
			if err := v.Validate(n, v.Min(f.Min), v.Max(f.Max)); err != nil {
				return fmt.Sprintf("%s must be between %d and %d", label, f.Min, f.Max)
			}
		}
	case KindDate:
		if _, err := time.Parse(DateLayout, value); err != nil {
			return label + " must be a date (YYYY-MM-DD)"
		}
	}
	return ""
}
